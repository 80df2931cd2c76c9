// Package identity persists the user identity the client acts as, so it is
// carried across runs without re-prompting.
package identity

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/passshare/internal/client/models"
)

var ErrNoIdentity = errors.New("no identity stored")

// Store is the single place an identity is loaded from, saved to and
// cleared. Load returns ErrNoIdentity when nothing was saved.
type Store interface {
	Load(ctx context.Context) (models.Identity, error)
	Save(ctx context.Context, id models.Identity) error
	Clear(ctx context.Context) error
}
