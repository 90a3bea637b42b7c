package counterstore

import (
	"context"
	"fmt"
	"time"

	"github.com/lumenworks/usage-gate/internal/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStore is the persistent Store implementation. Reads may lag writes
// across instances; the read-modify-write cycles built on top accept
// last-writer-wins semantics.
type RedisStore struct {
	redis   *storage.RedisClient
	timeout time.Duration
}

func NewRedisStore(redisClient *storage.RedisClient, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &RedisStore{
		redis:   redisClient,
		timeout: timeout,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	val, err := s.redis.Get(ctx, key)
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}

	return val, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.redis.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.redis.Del(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}

	return deleted > 0, nil
}

func (s *RedisStore) ListByPrefix(ctx context.Context, prefix string, limit int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	keys, err := s.redis.ScanKeys(ctx, prefix+"*", limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", ErrUnavailable, prefix, err)
	}

	return keys, nil
}
