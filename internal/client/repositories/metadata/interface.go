// Package metadata is a small key/value table in the client database. It
// backs the persisted identity and other single-value settings.
package metadata

import (
	"context"
)

// Repository stores opaque values by key. Get returns (nil, nil) for a key
// that was never set.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
