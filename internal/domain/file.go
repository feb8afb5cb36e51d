package domain

import "context"

// FileStore abstracts raw file byte storage addressed by key.
// Save overwrites an existing key in place.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
