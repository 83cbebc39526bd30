package aggregator

import (
	"strings"
	"sync"
	"time"
)

// Per-operation freshness windows for the result cache.
const (
	quoteTTL    = 5 * time.Minute
	historyTTL  = time.Hour
	searchTTL   = 24 * time.Hour
	trendingTTL = 15 * time.Minute
)

// cacheEntry stores one response with its expiry. Entries are immutable
// once stored; a new fetch overwrites rather than merges.
type cacheEntry struct {
	expiresAt time.Time
	value     any
}

// resultCache is a TTL cache keyed by "operation:symbol[:variant]",
// e.g. "quote:AAPL", "history:AAPL:1y", "search:apple".
type resultCache struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
	now   func() time.Time
}

func newResultCache(now func() time.Time) *resultCache {
	if now == nil {
		now = time.Now
	}
	return &resultCache{
		items: make(map[string]cacheEntry),
		now:   now,
	}
}

func cacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// get returns the live entry for key, if any.
func (c *resultCache) get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// set stores value under key for ttl.
func (c *resultCache) set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	c.items[key] = cacheEntry{
		expiresAt: c.now().Add(ttl),
		value:     value,
	}
	c.mu.Unlock()
}

// remove deletes the entry for key.
func (c *resultCache) remove(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// sweep drops expired entries, bounding memory between invalidations.
func (c *resultCache) sweep() int {
	now := c.now()
	removed := 0

	c.mu.Lock()
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	c.mu.Unlock()

	return removed
}
