package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/verifact/internal/logging"
)

const keyPrefix = "verifact:lock:"

// RedisLocker serializes holders across processes sharing one Redis
type RedisLocker struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a locker on client. The lock expires after ttl if
// its holder dies; waiters poll every retry interval.
func NewRedisLocker(client *redis.Client, ttl, retry time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	return &RedisLocker{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  retry,
	}
}

// Lock obtains the lock, retrying until ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := keyPrefix + key
	lk, err := l.locker.Obtain(ctx, lockKey, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("could not obtain lock %s: %w", lockKey, err)
	} else if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", lockKey, err)
	}

	return func() {
		// Release must not inherit a cancelled request context
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.Component("lock").WithError(err).WithField("key", lockKey).Warn("failed to release lock")
		}
	}, nil
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
