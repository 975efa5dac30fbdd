package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// CacheConfig holds configuration for the expansion cache.
type CacheConfig struct {
	TTL             time.Duration // how long entries stay valid
	MaxEntries      int           // maximum entries before eviction
	CleanupInterval time.Duration // how often expired entries are swept
}

// DefaultCacheConfig provides sensible defaults for expansion caching.
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

type cacheEntry struct {
	starts     []time.Time
	expiresAt  time.Time
	accessedAt time.Time
}

// Cache stores materialized per-series expansions keyed by the series
// definition and the naive query window. Entries are at most DefaultLimit
// timestamps each, so memory stays bounded by MaxEntries.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry

	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewCache creates an expansion cache and starts its cleanup loop.
func NewCache(config CacheConfig) *Cache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}
	c := &Cache{
		entries:         make(map[string]*cacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func cacheKey(s Series, naiveFrom, naiveTo time.Time, limit int) string {
	h := sha256.New()
	h.Write([]byte(s.Start.Format(time.RFC3339Nano)))
	if s.End != nil {
		h.Write([]byte(s.End.Format(time.RFC3339Nano)))
	}
	h.Write([]byte{0})
	h.Write([]byte(s.Repeat))
	h.Write([]byte{0})
	if s.RepeatUntil != nil {
		h.Write([]byte(s.RepeatUntil.Format(time.RFC3339Nano)))
	}
	h.Write([]byte{0})
	h.Write([]byte(naiveFrom.Format(time.RFC3339Nano)))
	h.Write([]byte(naiveTo.Format(time.RFC3339Nano)))
	var lim [2]byte
	lim[0], lim[1] = byte(limit>>8), byte(limit)
	h.Write(lim[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached expansion if present and unexpired.
func (c *Cache) Get(s Series, naiveFrom, naiveTo time.Time, limit int) ([]time.Time, bool) {
	key := cacheKey(s, naiveFrom, naiveTo, limit)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := time.Now()
	if now.After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.accessedAt = now
	c.mu.Unlock()
	return entry.starts, true
}

// Set stores an expansion result.
func (c *Cache) Set(s Series, naiveFrom, naiveTo time.Time, limit int, starts []time.Time) {
	key := cacheKey(s, naiveFrom, naiveTo, limit)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		starts:     starts,
		expiresAt:  now.Add(c.ttl),
		accessedAt: now,
	}
	if len(c.entries) > c.maxEntries {
		c.evict()
	}
}

// evict removes expired entries, then least recently accessed entries until
// under the limit. Callers must hold the write lock.
func (c *Cache) evict() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}
	byAge := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		byAge = append(byAge, keyAccess{key, entry.accessedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].accessedAt.Before(byAge[j].accessedAt)
	})

	for i := 0; i < len(byAge) && len(c.entries) > c.maxEntries; i++ {
		delete(c.entries, byAge[i].key)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.evict()
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup loop and clears the cache.
func (c *Cache) Close() {
	close(c.stopCleanup)
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// CacheStats describes cache occupancy.
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

// Stats returns current cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}
	return CacheStats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}
