// Package blob stores uploaded file content by key.
package blob

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("blob not found")

// Store is a flat key/value store for file content.
type Store interface {
	// Put stores size bytes read from r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get opens the content stored under key, or fails with ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
