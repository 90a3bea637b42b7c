package counterstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any backend failure (connection refused, timeout,
// open circuit). Callers decide whether to fail open or propagate.
var ErrUnavailable = errors.New("counter store unavailable")

// Store is a TTL key-value store holding JSON-encoded records.
//
// Get returns the raw value and whether the key existed. Put overwrites
// unconditionally. Delete reports whether a record existed. ListByPrefix
// returns matching key names only, not values.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)

	Put(ctx context.Context, key, value string, ttl time.Duration) error

	Delete(ctx context.Context, key string) (bool, error)

	ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error)
}
