// Package cache provides the byte-oriented cache used by the itinerary repo
// decorator. Memory is the in-process default; Redis is used when a
// REDIS_URL is configured so several API instances share one cache.
package cache

import (
	"context"
	"time"
)

// KeyPrefix namespaces every key this service writes to a shared Redis.
// Callers pass keys without it.
const KeyPrefix = "tripplanner:"

// Cache stores opaque values by key.
// Get reports ok=false on a miss; a miss is never an error.
type Cache interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
