package sessionstore

import "context"

// Backend is a flat key/value blob store. Multi-key writes and deletes must
// be all-or-nothing.
type Backend interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}
