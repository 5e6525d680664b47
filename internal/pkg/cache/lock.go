package cache

import (
	"context"
	"time"
)

// Locker is the single-flight lock used by operations that must not run
// concurrently. Acquire returns false when another holder already owns the
// named lock; the TTL guards against a crashed holder leaving it stuck.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisLocker struct{}

// NewLocker returns the Redis-backed SETNX lock.
func NewLocker() Locker {
	return redisLocker{}
}

func (redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return GetClient().SetNX(ctx, key, "1", ttl).Result()
}

func (redisLocker) Release(ctx context.Context, key string) error {
	return GetClient().Del(ctx, key).Err()
}
