// Package storage defines the key-value contract the engine's cache handler
// consumes. The production implementation lives in storage/redisstore; tests
// substitute in-memory fakes.
package storage

import (
	"context"
	"time"
)

// Backend is the hash-structured key-value store backing the per-edge
// record cache.
type Backend interface {
	// HSet writes one field of the hash at key
	HSet(ctx context.Context, key, field, value string) error

	// HGetAll reads every field of the hash at key; an absent key yields an
	// empty map, not an error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Del removes the key
	Del(ctx context.Context, key string) error

	// Expire sets the key's time-to-live
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Ping verifies connectivity
	Ping(ctx context.Context) error
}

// Unlock releases a held lock. It must be called on every exit path.
type Unlock func() error

// Locker provides single-writer distributed locks; waiters block until the
// holder releases or the lock expires.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}
