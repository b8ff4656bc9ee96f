// Package lock provides distributed and local locking abstractions.
// For single-node deployments, memory-based locks are used.
// For multi-instance deployments sharing a database, Redis-based locks
// keep start-up work such as schema migration to one instance at a time.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned by WithLock when the lock stays held by
// another owner for every retry.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker defines the interface for distributed/local locking.
// Ownership is tracked per Locker instance: a lock can only be released or
// extended by the instance that acquired it.
type Locker interface {
	// Acquire attempts to acquire a lock.
	// Returns true if the lock was acquired, false if it's held by another owner.
	// The lock will automatically expire after the specified TTL.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release releases a lock held by this instance.
	// Returns true if the lock was released, false if it wasn't held.
	Release(ctx context.Context, key string) (bool, error)

	// Extend extends the TTL of a lock held by this instance.
	// Returns true if the lock was extended, false if it's not held.
	Extend(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RetryPolicy controls how WithLock waits for a held lock.
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryPolicy waits up to about a minute.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 60, Delay: time.Second}

// AcquireWithRetry attempts to acquire key, retrying while another owner holds it.
func AcquireWithRetry(ctx context.Context, l Locker, key string, ttl time.Duration, p RetryPolicy) (bool, error) {
	for i := 0; i <= p.MaxRetries; i++ {
		acquired, err := l.Acquire(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		// Don't sleep on the last attempt.
		if i < p.MaxRetries {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}
	return false, nil
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// even if fn fails.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, p RetryPolicy, fn func(ctx context.Context) error) error {
	acquired, err := AcquireWithRetry(ctx, l, key, ttl, p)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}

	defer func() {
		// Release with a fresh context so a canceled ctx still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = l.Release(releaseCtx, key)
	}()

	return fn(ctx)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// Migrate returns the lock key guarding schema migrations for a driver.
func (lockKeys) Migrate(driver string) string {
	return "lock:migrate:" + driver
}
