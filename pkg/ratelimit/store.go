// Package ratelimit enforces per-client request quotas over sliding
// windows. Counters live behind a pluggable store so a single-instance
// deployment can use process memory while multi-instance deployments
// share a Redis store, without changing limiter call sites.
package ratelimit

import (
	"context"
	"time"
)

// Store is the counter backend. Increment must be atomic per key;
// concurrent increments for the same key must never lose updates.
type Store interface {
	// Increment advances the counter for key within a window of the
	// given length and returns the post-increment count and the
	// window's reset time. A new window starts when the previous one
	// has elapsed.
	Increment(ctx context.Context, key string, window time.Duration) (count int, reset time.Time, err error)

	// Decrement undoes one increment, used to uncount successful
	// requests on limiters configured that way.
	Decrement(ctx context.Context, key string) error

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error
}
