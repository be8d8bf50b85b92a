// Package lock serialises work across API replicas with Redis locks. The
// checkout endpoint holds one per register so a cashier's double-submit is
// applied in order.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when MaxWait elapses before the lock is free.
var ErrNotAcquired = errors.New("lock: not acquired")

// compareAndDelete removes the key only while it still carries our token, so
// a holder whose TTL lapsed cannot free a lock someone else now owns.
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
)

// Locker provides a Redis-backed distributed lock.
type Locker struct {
	R            redis.Cmdable
	RetryBackoff time.Duration
	// MaxWait bounds how long Acquire polls for a held lock; zero waits
	// until ctx is done.
	MaxWait time.Duration
}

// Lease is a held lock. Release it exactly once.
type Lease struct {
	r     redis.Scripter
	key   string
	token string
}

// Key returns the locked key.
func (l *Lease) Key() string { return l.key }

// Release frees the lock if this lease still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if err := compareAndDelete.Run(ctx, l.r, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	return nil
}

// Acquire polls SET NX until the key is free, ctx is done or MaxWait passes.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l.R == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.MaxWait, ErrNotAcquired)
		defer cancel()
	}

	lease := &Lease{r: l.R, key: key, token: uuid.NewString()}
	ticker := time.NewTicker(backoff)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(ctx, key, lease.token, ttl).Result()
		switch {
		case ok:
			return lease, nil
		case err != nil && ctx.Err() == nil:
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-ticker.C:
		}
	}
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// including on error.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() { _ = lease.Release(context.WithoutCancel(ctx)) }()
	return fn(ctx)
}
