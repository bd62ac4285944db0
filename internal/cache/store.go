// Package cache provides the short-lived key/value store behind origin token
// cooldowns and failure windows.
package cache

import (
	"context"
	"time"
)

// Store is shared by every replica so a token cooled down by one instance is
// skipped by all of them. Implementations must treat expired keys as absent.
type Store interface {
	// IncrementWithTTL bumps a counter, starting its window on first use, and
	// returns the new count with the window's remaining lifetime.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
