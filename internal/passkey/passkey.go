// Package passkey generates and validates session passkeys: eight symbols
// from the uppercase Latin alphabet and the ten digits.
package passkey

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 8
)

var ErrInvalidPasskey = errors.New("invalid passkey")

// Generator produces a fresh passkey. Generate is the production one; tests
// substitute fixed sequences.
type Generator func() (string, error)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate returns a passkey whose symbols are drawn uniformly from Alphabet
// using crypto/rand.
func Generate() (string, error) {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("generate passkey: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Normalize trims surrounding whitespace and upper-cases s, so a passkey
// typed as " ab12cd34" is accepted.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Validate reports ErrInvalidPasskey unless s is exactly Length symbols from
// Alphabet.
func Validate(s string) error {
	if len(s) != Length {
		return fmt.Errorf("%w: must be %d characters", ErrInvalidPasskey, Length)
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Alphabet, s[i]) < 0 {
			return fmt.Errorf("%w: unexpected character %q", ErrInvalidPasskey, s[i])
		}
	}
	return nil
}

// Sequence returns a Generator yielding keys in order and then failing.
// Useful for pinning passkeys in tests and demos.
func Sequence(keys ...string) Generator {
	i := 0
	return func() (string, error) {
		if i >= len(keys) {
			return "", errors.New("passkey sequence exhausted")
		}
		k := keys[i]
		i++
		return k, nil
	}
}
