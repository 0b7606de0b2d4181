package ledger

import (
	"context"
	"time"

	"github.com/dmitrymomot/pulse/pkg/cache"
)

// Cache holds hot delivery records. Misses and faults fall back to the Store.
type Cache interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Set(ctx context.Context, key string, r Record, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

func cacheKey(notificationID, connectionID string) string {
	return "delivery:" + notificationID + ":" + connectionID
}

// MemoryCache is a bounded in-process Cache.
type MemoryCache struct {
	lru *cache.LRU[string, Record]
}

func NewMemoryCache(capacity int, opts ...cache.Option) *MemoryCache {
	return &MemoryCache{lru: cache.NewLRU[string, Record](capacity, opts...)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Record, bool, error) {
	r, ok := c.lru.Get(key)
	return r, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, r Record, ttl time.Duration) error {
	c.lru.SetWithTTL(key, r, ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.lru.Delete(key)
	return nil
}
