// Package sessions stores sharing sessions, their members and their file
// metadata.
package sessions

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/passshare/internal/server/models"
)

var (
	ErrDuplicatePasskey = errors.New("passkey already in use")
	ErrNotFound         = errors.New("not found")
)

type Repository interface {
	// Create fails with ErrDuplicatePasskey when the passkey is taken.
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, passkey string) (*models.Session, error)
	// AddMember is idempotent per (passkey, username).
	AddMember(ctx context.Context, passkey, username string) error
	// AddFile assigns file.ID.
	AddFile(ctx context.Context, file *models.File) error
	// ListFiles returns the session's files in upload order.
	ListFiles(ctx context.Context, passkey string) ([]*models.File, error)
	GetFile(ctx context.Context, id int64) (*models.File, error)
}
