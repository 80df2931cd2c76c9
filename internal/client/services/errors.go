package services

import (
	"errors"

	"github.com/dmitrijs2005/passshare/internal/client/identity"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNoSession   = errors.New("no active session")
	ErrInSession   = errors.New("already in a session, leave it first")
	ErrUnknownFile = errors.New("file is not in the session file list")

	// ErrNoIdentity is returned when an operation needs a logged-in user.
	ErrNoIdentity = identity.ErrNoIdentity
)

// ValidationError is missing or malformed user input, detected before any
// network call. It matches ErrValidation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
