package memory

import (
	"time"

	"gamemem/process"

	"github.com/hashicorp/golang-lru/simplelru"
)

type cacheKey struct {
	addr process.ProcessMemoryAddress
	typ  ValueType
}

type cacheEntry struct {
	value Value
	at    time.Time
}

// readCache is not safe for concurrent use, Connection.mu guards it
type readCache struct {
	lru       *simplelru.LRU
	lastPurge time.Time
}

func newReadCache(size int) *readCache {
	if size < 1 {
		size = 1
	}
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		panic(err) // only fails for size <= 0
	}
	return &readCache{lru: lru}
}

// get returns the entry for key when it is younger than freshness
func (c *readCache) get(key cacheKey, now time.Time, freshness time.Duration) (Value, bool) {
	raw, ok := c.lru.Get(key)
	if !ok {
		return Value{}, false
	}
	entry := raw.(cacheEntry)
	if now.Sub(entry.at) >= freshness {
		return Value{}, false
	}
	return entry.value, true
}

func (c *readCache) put(key cacheKey, v Value, now time.Time) {
	c.lru.Add(key, cacheEntry{value: v, at: now})
}

// purgeOlderThan drops entries read more than maxAge ago and returns how many went.
// The walk runs at most once per interval.
func (c *readCache) purgeOlderThan(now time.Time, maxAge, interval time.Duration) int {
	if !c.lastPurge.IsZero() && now.Sub(c.lastPurge) < interval {
		return 0
	}
	c.lastPurge = now

	purged := 0
	for _, k := range c.lru.Keys() {
		raw, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(raw.(cacheEntry).at) > maxAge {
			c.lru.Remove(k)
			purged++
		}
	}
	return purged
}

func (c *readCache) clear() {
	c.lru.Purge()
}

func (c *readCache) len() int {
	return c.lru.Len()
}
