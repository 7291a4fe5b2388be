package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 5, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sampleGroups(model string) []*models.ProductGroup {
	return []*models.ProductGroup{{
		BaseModel: model,
		Products: []models.Product{{
			Listing:     models.Listing{Domain: "amazon.de", Title: model, Link: "https://amazon.de/dp/B000000001", Price: 959, ReferencePrice: 959},
			IsBestPrice: true,
		}},
		BestPrice: 959,
	}}
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "iphone 16", CacheKey("  iPhone 16 "))
	assert.Equal(t, "", CacheKey("   "))
}

func TestResultCacheFreshnessWindow(t *testing.T) {
	clock := newFakeClock()
	c := NewResultCache(15*time.Minute, WithClock(clock.Now))

	groups := sampleGroups("iPhone 16")
	c.Set("iphone 16", groups)

	clock.Advance(14*time.Minute + 59*time.Second)
	got, ok := c.Get("iPhone 16")
	require.True(t, ok)
	assert.Same(t, groups[0], got[0])

	clock.Advance(time.Second)
	_, ok = c.Get("iphone 16")
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "stale entry should be removed on read")
}

func TestResultCacheDiscardsMalformedEntry(t *testing.T) {
	c := NewResultCache(time.Hour)
	groups := sampleGroups("PlayStation 5")
	c.Set("ps5", groups)
	require.Equal(t, 1, c.Len())

	groups[0].Products = nil
	_, ok := c.Get("ps5")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestResultCacheRejectsEmptyResults(t *testing.T) {
	c := NewResultCache(time.Hour)
	c.Set("nothing", nil)
	c.Set("nothing", []*models.ProductGroup{})
	c.Set("nil group", []*models.ProductGroup{nil})
	c.Set("no products", []*models.ProductGroup{{BaseModel: "x"}})
	assert.Zero(t, c.Len())
}

func TestResultCacheMaxEntriesEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	c := NewResultCache(time.Hour, WithClock(clock.Now), WithMaxEntries(2))

	c.Set("a", sampleGroups("A"))
	clock.Advance(time.Second)
	c.Set("b", sampleGroups("B"))
	clock.Advance(time.Second)
	c.Set("c", sampleGroups("C"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	// Overwriting an existing key does not evict.
	clock.Advance(time.Second)
	c.Set("b", sampleGroups("B2"))
	assert.Equal(t, 2, c.Len())
}

func TestResultCacheSweep(t *testing.T) {
	clock := newFakeClock()
	c := NewResultCache(10*time.Minute, WithClock(clock.Now))

	c.Set("old", sampleGroups("Old"))
	clock.Advance(6 * time.Minute)
	c.Set("new", sampleGroups("New"))
	clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("new")
	assert.True(t, ok)
}

func TestResultCacheDeleteAndClear(t *testing.T) {
	c := NewResultCache(time.Hour)
	c.Set("a", sampleGroups("A"))
	c.Set("b", sampleGroups("B"))

	c.Delete(" A ")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestResultCacheConcurrentUse(t *testing.T) {
	c := NewResultCache(time.Minute, WithMaxEntries(8))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("query %d", i%4)
			c.Set(q, sampleGroups(q))
			c.Get(q)
			if i%5 == 0 {
				c.Sweep()
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
