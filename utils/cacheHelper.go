package utils

import (
	"sync"
	"time"
)

// ListCache is a bounded in-process TTL cache for list-endpoint responses.
// Writes to the underlying tables must call Clear so readers never see stale
// post-write data; the TTL is only a secondary fallback.
type ListCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]listCacheEntry
}

type listCacheEntry struct {
	storedAt time.Time
	value    any
}

func NewListCache(ttl time.Duration, maxEntries int) *ListCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &ListCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]listCacheEntry),
	}
}

func (c *ListCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *ListCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		// Full: drop everything rather than track recency. Entries are cheap
		// to recompute and the cache is small.
		c.entries = make(map[string]listCacheEntry)
	}
	c.entries[key] = listCacheEntry{storedAt: time.Now(), value: value}
}

func (c *ListCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]listCacheEntry)
}
