// Package lock provides a distributed lock for reconciliation regeneration.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"palmledger/internal/core/apperror"
	"palmledger/internal/domain/reconciliation"
	"palmledger/pkg/logger"
)

// RedisLocker implements reconciliation.Locker with redislock.
type RedisLocker struct {
	client *redislock.Client
	// Retry is the wait strategy while the key is held. Nil fails immediately.
	Retry redislock.RetryStrategy
}

var _ reconciliation.Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker on rdb.
func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		Retry:  redislock.LinearBackoff(100 * time.Millisecond),
	}
}

// Lock obtains key for ttl. When the key stays held until ctx is done, or immediately
// without a retry strategy, it returns an apperror with CodeLocked.
func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	opts := &redislock.Options{RetryStrategy: l.Retry}
	if l.Retry != nil {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
		}
	}

	lk, err := l.client.Obtain(ctx, key, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, apperror.NewLocked(key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "lock expired before release", "key", key)
			return nil
		}
		return err
	}, nil
}

// NewRedisClient connects to addr and verifies it with PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}
