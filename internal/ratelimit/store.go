// Package ratelimit provides fixed-window request quotas keyed by client
// address. For single-node deployments, counters are kept in memory.
// For multiple instances, counters can be shared through Redis.
package ratelimit

import (
	"context"
	"time"
)

// Store defines the interface for quota counters.
// This abstraction allows switching between in-memory counters (single-node)
// and Redis counters (shared) without changing the limiter.
type Store interface {
	// Increment atomically adds one hit to key and returns the new count and
	// the time the current window ends. The first hit opens a window of the
	// given length; the counter resets once it expires.
	Increment(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
}
