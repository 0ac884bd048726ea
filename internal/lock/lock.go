// Package lock serializes the check-then-insert unit of the learning
// writeback per store shard.
package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/verifact/internal/errs"
	"github.com/ppiankov/verifact/internal/model"
)

// Locker acquires an exclusive lock on key. The returned release func must
// be called exactly once. Lock gives up when ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker serializes holders within one process
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock blocks until key is free or ctx is done
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

// New builds the locker described by cfg
func New(cfg model.LockConfig) (Locker, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalLocker(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisLocker(client, cfg.TTL, cfg.RetryInterval), nil
	default:
		return nil, errs.New(errs.KindConfiguration, "lock", "unknown lock backend: %s (supported: local, redis)", cfg.Backend)
	}
}
