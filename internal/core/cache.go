package core

import (
	"container/list"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheCapacity is the default number of cached synthesis
// results held across all personas combined.
const DefaultCacheCapacity = 10

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Invalidations int64   `json:"invalidations"`
	HitRate       float64 `json:"hit_rate"`
}

// PersonaResultCache is a capacity-bounded LRU cache of synthesis
// results keyed by persona, time range and data version. Freshness is
// enforced entirely through key equality: an advanced data version
// never matches an older entry.
type PersonaResultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
	logger   *zap.Logger

	hits          int64
	misses        int64
	evictions     int64
	invalidations int64
}

type cacheEntry struct {
	hash   string
	result *CachedResult
}

// NewPersonaResultCache creates a cache with the given capacity. A
// non-positive capacity falls back to DefaultCacheCapacity.
func NewPersonaResultCache(capacity int, logger *zap.Logger) *PersonaResultCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &PersonaResultCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		logger:   logger,
	}
}

// Get returns the cached result for the key, or nil on a miss. A hit
// refreshes the entry's LRU position and access time.
func (c *PersonaResultCache) Get(key CacheKey) *CachedResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key.Hash()]
	if !ok {
		c.misses++
		return nil
	}
	c.hits++
	c.order.MoveToFront(elem)
	entry := elem.Value.(*cacheEntry)
	entry.result.LastAccessedAt = time.Now()
	return entry.result
}

// Put inserts or overwrites the result for the key, evicting the
// least recently used entry if the cache is full and the key is new.
func (c *PersonaResultCache) Put(key CacheKey, result *CachedResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := key.Hash()
	if elem, ok := c.entries[hash]; ok {
		elem.Value.(*cacheEntry).result = result
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*cacheEntry)
			delete(c.entries, evicted.hash)
			c.order.Remove(oldest)
			c.evictions++
			c.logger.Debug("Evicted cached result",
				zap.String("key", evicted.hash),
				zap.String("persona", evicted.result.PersonaID))
		}
	}

	c.entries[hash] = c.order.PushFront(&cacheEntry{hash: hash, result: result})
}

// Invalidate removes all entries belonging to the persona and returns
// the number removed. An empty persona id removes nothing.
func (c *PersonaResultCache) Invalidate(personaID string) int {
	if personaID == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*cacheEntry)
		if entry.result.PersonaID == personaID {
			delete(c.entries, entry.hash)
			c.order.Remove(elem)
			removed++
		}
		elem = next
	}
	c.invalidations += int64(removed)
	if removed > 0 {
		c.logger.Info("Invalidated cached results for persona",
			zap.String("persona", personaID),
			zap.Int("removed", removed))
	}
	return removed
}

// InvalidateAll clears the cache and returns the number of entries
// removed. Used when the upstream data version advances globally.
func (c *PersonaResultCache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.order.Len()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.invalidations += int64(removed)
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *PersonaResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Invalidations: c.invalidations,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Len returns the current number of cached entries.
func (c *PersonaResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
