package files

import (
	"context"

	"github.com/dmitrijs2005/passshare/internal/client/models"
)

type Repository interface {
	// ReplaceAll drops the cached list of passkey and stores list instead.
	ReplaceAll(ctx context.Context, passkey string, list []models.SharedFile) error

	// List returns the cached list of passkey in server order; empty if none.
	List(ctx context.Context, passkey string) ([]models.SharedFile, error)

	// Clear removes every cached list.
	Clear(ctx context.Context) error
}
