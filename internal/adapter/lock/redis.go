// Package lock provides a Redis-backed loyalty.Locker so several API
// replicas serialize work on the same merchant and user.
package lock

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jugnudev/JugnuInitial-sub008/internal/core/loyalty"
)

//go:embed lua/release.lua
var luaRelease string

//go:embed lua/extend.lua
var luaExtend string

const (
	DefaultTTL          = 10 * time.Second
	defaultPollInterval = 10 * time.Millisecond
)

// RedisLocker holds one SET NX PX key per lock name. Each key stores a random
// owner token and is deleted only by its owner, so an expired lease taken
// over by another replica is never released by the old holder. While a lock
// is held its keys are extended every ttl/3.
type RedisLocker struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	renew  time.Duration
	scrRel *redis.Script
	scrExt *redis.Script
	logger *slog.Logger
}

func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		rdb:    rdb,
		ttl:    ttl,
		poll:   defaultPollInterval,
		renew:  max(ttl/3, time.Millisecond),
		scrRel: redis.NewScript(luaRelease),
		scrExt: redis.NewScript(luaExtend),
		logger: logger,
	}
}

func lockKey(name string) string { return fmt.Sprintf("lock:{%s}", name) }

// Lock acquires keys in sorted order, polling until each is free or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	token := uuid.NewString()
	var held []string

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if err := l.scrRel.Run(ctx, l.rdb, []string{held[i]}, token).Err(); err != nil {
				l.logger.Warn("Failed to release lock", "key", held[i], "error", err)
			}
		}
	}

	for _, name := range loyalty.SortedKeys(keys) {
		key := lockKey(name)
		if err := l.acquire(ctx, key, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	stop := l.keepAlive(held, token)
	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			release()
		})
	}, nil
}

// keepAlive extends the lease on keys until the returned stop func is called.
// A key found with another owner has expired and been taken over; that is
// logged since the caller's work is no longer serialized.
func (l *RedisLocker) keepAlive(keys []string, token string) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.renew)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, key := range keys {
				n, err := l.scrExt.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
				switch {
				case ctx.Err() != nil:
					return
				case err != nil:
					l.logger.Warn("Failed to extend lock", "key", key, "error", err)
				case n == 0:
					l.logger.Error("Lock lease lost before release", "key", key, "ttl", l.ttl)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
