package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"ensemble/pkg/cache"
	"ensemble/pkg/logger"
)

// Cached wraps an Orchestrator with a short-TTL read-through cache for
// Get, so a burst of grow/shrink requests against the same pool within
// one heartbeat interval doesn't each round-trip to the backing
// system. Patch always invalidates the cached entry before delegating,
// so a subsequent Get never observes a stale size.
type Cached struct {
	next Orchestrator
	c    cache.Cache
	ttl  time.Duration
}

// NewCached builds a caching decorator around next. backingCache is
// typically pkg/cache's in-memory or Redis implementation, constructed
// from the same pkg/config.CacheConfig the rest of the service uses.
func NewCached(next Orchestrator, backingCache cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, c: backingCache, ttl: ttl}
}

func (c *Cached) Get(ctx context.Context, ref Ref) (Pool, error) {
	key := refKey(ref)
	if raw, err := c.c.Get(ctx, key); err == nil {
		var pool Pool
		if jsonErr := json.Unmarshal(raw, &pool); jsonErr == nil {
			return pool, nil
		}
	}

	pool, err := c.next.Get(ctx, ref)
	if err != nil {
		return Pool{}, err
	}

	if raw, err := json.Marshal(pool); err == nil {
		if err := c.c.Set(ctx, key, raw, c.ttl); err != nil {
			logger.Log.Debug("compute pool cache write failed", "key", key, "error", err)
		}
	}
	return pool, nil
}

func (c *Cached) Patch(ctx context.Context, ref Ref, newSize int) error {
	key := refKey(ref)
	if err := c.c.Delete(ctx, key); err != nil {
		logger.Log.Debug("compute pool cache invalidation failed", "key", key, "error", err)
	}
	return c.next.Patch(ctx, ref, newSize)
}
