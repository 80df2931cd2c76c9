package api

import (
	"context"
	"io"

	"github.com/dmitrijs2005/passshare/internal/client/models"
)

type Client interface {
	CreateSession(ctx context.Context, passkey, username string) error
	JoinSession(ctx context.Context, passkey, username string) error
	ListFiles(ctx context.Context, passkey string) ([]models.SharedFile, error)
	Upload(ctx context.Context, passkey, userID, fileName string, content io.Reader) error
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Ping(ctx context.Context) error
}
