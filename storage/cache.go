package storage

import (
	"strings"
	"sync"
	"time"

	"pricecompare/models"
	"pricecompare/utils"
)

type cacheEntry struct {
	groups   []*models.ProductGroup
	storedAt time.Time
}

// ResultCache is an in-memory GroupStore with a freshness window and an
// optional size cap. It is safe for concurrent use.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *utils.Logger
}

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ResultCache) { c.now = now }
}

// WithMaxEntries caps the number of entries; the oldest is evicted when
// full. Zero means unbounded.
func WithMaxEntries(n int) CacheOption {
	return func(c *ResultCache) { c.maxEntries = n }
}

func WithLogger(l *utils.Logger) CacheOption {
	return func(c *ResultCache) { c.logger = l }
}

// NewResultCache creates a cache whose entries stay fresh for ttl.
func NewResultCache(ttl time.Duration, opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  utils.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey normalizes a query into a cache key.
func CacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Get returns the fresh, well-formed groups stored for query. Stale and
// malformed entries are removed and reported as misses.
func (c *ResultCache) Get(query string) ([]*models.ProductGroup, bool) {
	key := CacheKey(query)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	switch {
	case malformed(e.groups):
		c.logger.Warn("[cache] Discarding malformed entry for %q", key)
	case c.stale(e):
		c.logger.Debug("[cache] Entry for %q expired", key)
	default:
		c.logger.Debug("[cache] Hit for %q", key)
		return e.groups, true
	}

	c.mu.Lock()
	if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil, false
}

// Set stores groups for query. Empty or malformed results are not stored.
func (c *ResultCache) Set(query string, groups []*models.ProductGroup) {
	if malformed(groups) {
		return
	}
	key := CacheKey(query)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{groups: groups, storedAt: c.now()}
}

func (c *ResultCache) Delete(query string) {
	c.mu.Lock()
	delete(c.entries, CacheKey(query))
	c.mu.Unlock()
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Sweep removes every stale entry and reports how many were removed.
func (c *ResultCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if c.stale(e) || malformed(e.groups) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len is the number of stored entries, fresh or not.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResultCache) stale(e cacheEntry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

func (c *ResultCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt, found = k, e.storedAt, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.logger.Debug("[cache] Evicted %q to stay within %d entries", oldestKey, c.maxEntries)
	}
}

func malformed(groups []*models.ProductGroup) bool {
	return len(groups) == 0 || groups[0] == nil || groups[0].Products == nil
}
