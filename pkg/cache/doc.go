// Package cache provides a generic, thread-safe LRU cache with optional
// time-to-live per entry.
//
//	c := cache.NewLRU[string, []byte](10_000, cache.WithTTL(time.Hour))
//	c.Set("delivery:n1:c1", raw)
//	raw, ok := c.Get("delivery:n1:c1")
//
// Entries are evicted when the capacity is exceeded (least recently used
// first) or when their TTL passes. Expired entries are removed lazily on Get
// or in bulk with Purge.
package cache
