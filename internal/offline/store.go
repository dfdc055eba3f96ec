package offline

import "context"

// Store is the key/value persistence used by the cache.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetMany writes every entry in one atomic batch: either all entries are stored or none.
	SetMany(ctx context.Context, entries map[string][]byte) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Keys returns every stored key beginning with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
