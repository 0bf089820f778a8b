// Package redisstore implements the storage contract on Redis, with
// distributed locking via redsync.
package redisstore

import (
	"context"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/c360/biograph/errors"
	"github.com/c360/biograph/storage"
)

// Store is a Redis-backed storage.Backend and storage.Locker
type Store struct {
	client *redis.Client
	rs     *redsync.Redsync

	lockExpiry time.Duration
}

// New connects a store to the Redis endpoint at addr (host:port)
func New(addr string) *Store {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &Store{
		client:     client,
		rs:         redsync.New(goredis.NewPool(client)),
		lockExpiry: 30 * time.Second,
	}
}

// HSet implements storage.Backend
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return errors.WrapTransient(errors.ErrCacheUnavailable, "redisstore", "HSet", err.Error())
	}
	return nil
}

// HGetAll implements storage.Backend
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, errors.WrapTransient(errors.ErrCacheUnavailable, "redisstore", "HGetAll", err.Error())
	}
	return fields, nil
}

// Del implements storage.Backend
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.WrapTransient(errors.ErrCacheUnavailable, "redisstore", "Del", err.Error())
	}
	return nil
}

// Expire implements storage.Backend
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return errors.WrapTransient(errors.ErrCacheUnavailable, "redisstore", "Expire", err.Error())
	}
	return nil
}

// Ping implements storage.Backend
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.WrapTransient(errors.ErrCacheUnavailable, "redisstore", "Ping", err.Error())
	}
	return nil
}

// Lock implements storage.Locker. The mutex auto-expires so a crashed
// holder cannot wedge the key space.
func (s *Store) Lock(ctx context.Context, key string) (storage.Unlock, error) {
	mutex := s.rs.NewMutex("lock:"+key, redsync.WithExpiry(s.lockExpiry))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.WrapTransient(errors.ErrLockFailed, "redisstore", "Lock", err.Error())
	}
	return func() error {
		_, err := mutex.UnlockContext(ctx)
		return err
	}, nil
}

// Close releases the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
