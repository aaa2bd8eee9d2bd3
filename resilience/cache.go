package resilience

import (
	"sync"
	"time"
)

// Cached is a value read back from the cache together with its age
// metadata. Stale is set when the value has outlived its TTL and was
// returned through the allow-stale path.
type Cached struct {
	Value    any
	StoredAt time.Time
	Stale    bool
}

// Age returns how long ago the value was stored.
func (c Cached) Age(now time.Time) time.Duration {
	return now.Sub(c.StoredAt)
}

// Cache is a TTL key/value store with a bounded size and oldest-first
// eviction. The default read path only returns fresh values; GetStale
// returns the last known value past its TTL, tagged, so callers can run
// degraded when the live source is down.
type Cache struct {
	mu      sync.Mutex
	items   map[string]cacheItem
	ttl     time.Duration
	maxSize int
	clock   Clock
}

type cacheItem struct {
	value    any
	storedAt time.Time
}

// NewCache builds a cache holding at most maxSize entries, each fresh
// for ttl after insertion. Expired entries are kept until evicted by
// size so they remain available to GetStale.
func NewCache(maxSize int, ttl time.Duration, clock Clock) *Cache {
	if maxSize <= 0 {
		maxSize = 256
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Cache{
		items:   make(map[string]cacheItem),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clock,
	}
}

// Put stores a value, evicting the oldest entry when over capacity.
func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{value: value, storedAt: c.clock.Now()}

	for len(c.items) > c.maxSize {
		c.evictOldestLocked()
	}
}

// Get returns a fresh (non-expired) value, or ok=false on a miss.
func (c *Cache) Get(key string) (Cached, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return Cached{}, false
	}
	now := c.clock.Now()
	if now.Sub(item.storedAt) > c.ttl {
		return Cached{}, false
	}
	return Cached{Value: item.value, StoredAt: item.storedAt}, true
}

// GetStale returns the last known value regardless of TTL. Values past
// their TTL are tagged Stale so order sizing can refuse them.
func (c *Cache) GetStale(key string) (Cached, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return Cached{}, false
	}
	return Cached{
		Value:    item.value,
		StoredAt: item.storedAt,
		Stale:    c.clock.Now().Sub(item.storedAt) > c.ttl,
	}, true
}

// Delete removes an entry, fresh or stale. Used to invalidate values
// known to be outdated, such as a balance snapshot after a fill.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, item := range c.items {
		if first || item.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = item.storedAt
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}
