package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/passshare/internal/client/api"
	"github.com/dmitrijs2005/passshare/internal/filex"
	"github.com/dmitrijs2005/passshare/internal/logging"
)

// TransferService moves file content to and from a session. It keeps no
// state and never touches the session's file list.
type TransferService struct {
	client api.Client
	log    logging.Logger
}

func NewTransferService(client api.Client, log logging.Logger) *TransferService {
	if log == nil {
		log = logging.Nop()
	}
	return &TransferService{client: client, log: log}
}

// Upload streams the file at path to the session and returns the number of
// bytes sent.
func (t *TransferService) Upload(ctx context.Context, passkey, userID, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, invalid(fmt.Sprintf("%s is a directory", path))
	}

	cr := &countingReader{r: f}
	if err := t.client.Upload(ctx, passkey, userID, filepath.Base(path), cr); err != nil {
		return cr.n, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}

	t.log.Info(ctx, "file uploaded", "passkey", passkey, "file", filepath.Base(path), "bytes", cr.n)
	return cr.n, nil
}

// Download saves file fileID as fileName inside destDir and returns the
// written path. A failed transfer leaves no file behind.
func (t *TransferService) Download(ctx context.Context, fileID, fileName, destDir string) (string, int64, error) {
	body, err := t.client.Download(ctx, fileID)
	if err != nil {
		return "", 0, fmt.Errorf("download %s: %w", fileID, err)
	}
	defer body.Close()

	path, n, err := filex.SaveStream(destDir, fileName, body)
	if err != nil {
		return "", n, fmt.Errorf("save %s: %w", fileName, err)
	}

	t.log.Info(ctx, "file downloaded", "file", fileID, "path", path, "bytes", n)
	return path, n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
