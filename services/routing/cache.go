package routing

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/contentpilot/engine/models"
)

// CacheKey identifies one cacheable routing question
type CacheKey struct {
	ContentType models.ContentType
	Tier        models.ServiceTier
	Strength    string
}

// KeyFor derives the cache key of a routing request
func KeyFor(req Request) CacheKey {
	return CacheKey{ContentType: req.ContentType, Tier: req.Tier, Strength: req.Strength}
}

// String returns a string representation of the cache key
func (k CacheKey) String() string {
	s := string(k.ContentType) + ":" + string(k.Tier)
	if k.Strength != "" {
		s += ":" + k.Strength
	}
	return s
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        CacheKey
	decision   *Decision
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// DecisionCache is an in-memory LRU cache with TTL for routing decisions.
// Identical requests inside the TTL reuse the same decision; entries are
// invalidated early when provider health changes make them stale.
// Thread-safe implementation using sync.RWMutex.
type DecisionCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry // Key: CacheKey.String()
	lruList *list.List             // Doubly linked list for LRU tracking
	maxSize int                    // Maximum number of entries
	ttl     time.Duration          // Time-to-live for entries
	hits    uint64                 // Cache hit counter
	misses  uint64                 // Cache miss counter
}

// NewDecisionCache creates a new DecisionCache with specified max size and TTL
func NewDecisionCache(maxSize int, ttl time.Duration) *DecisionCache {
	return &DecisionCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached decision
// Returns nil if not found or expired
func (c *DecisionCache) Get(key CacheKey) *Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := key.String()
	entry, exists := c.entries[keyStr]

	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(keyStr)
		}
		return nil
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.decision
}

// Set stores a decision in cache
func (c *DecisionCache) Set(key CacheKey, decision *Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := key.String()

	if entry, exists := c.entries[keyStr]; exists {
		entry.decision = decision
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	// Evict least recently used entry if cache is full
	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        key,
		decision:   decision,
		insertedAt: time.Now(),
	}

	entry.element = c.lruList.PushFront(keyStr)
	c.entries[keyStr] = entry
}

// Invalidate removes a specific cache entry
func (c *DecisionCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key.String())
}

// InvalidateContentType removes all cached decisions for a content type.
// Called when a provider serving that content type changes health state.
// Returns the number of entries removed.
func (c *DecisionCache) InvalidateContentType(ct models.ContentType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for keyStr, entry := range c.entries {
		if entry.key.ContentType == ct {
			c.removeEntry(keyStr)
			removed++
		}
	}
	return removed
}

// InvalidateProvider removes all cached decisions that include a provider
// in their failover chain. Returns the number of entries removed.
func (c *DecisionCache) InvalidateProvider(provider string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for keyStr, entry := range c.entries {
		for _, cand := range entry.decision.Candidates {
			if cand.Provider == provider {
				c.removeEntry(keyStr)
				removed++
				break
			}
		}
	}
	return removed
}

// Clear removes all entries from the cache
func (c *DecisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// Stats returns cache statistics
func (c *DecisionCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// calculateHitRate calculates the cache hit rate
func (c *DecisionCache) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *DecisionCache) removeEntry(keyStr string) {
	if entry, exists := c.entries[keyStr]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, keyStr)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *DecisionCache) evictLRU() {
	if c.lruList.Len() == 0 {
		return
	}

	backElement := c.lruList.Back()
	if backElement != nil {
		keyStr := backElement.Value.(string)
		c.lruList.Remove(backElement)
		delete(c.entries, keyStr)
	}
}

// CleanupExpired removes all expired entries
func (c *DecisionCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredKeys := make([]string, 0)
	for keyStr, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expiredKeys = append(expiredKeys, keyStr)
		}
	}

	for _, keyStr := range expiredKeys {
		c.removeEntry(keyStr)
	}

	return len(expiredKeys)
}

// StartCleanupWorker periodically removes expired entries until the context
// is cancelled. Intended to run as a background goroutine.
func (c *DecisionCache) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-ctx.Done():
			return
		}
	}
}
