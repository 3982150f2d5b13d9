package dataset

import (
	"sync"
	"time"
)

// Key identifies a cached dataset: where it came from and what it looked like.
type Key struct {
	Location  string
	Signature string
}

type cacheEntry struct {
	signature string
	data      *Dataset
	loadedAt  time.Time
}

// Cache holds one loaded Dataset per location. A lookup with a different
// signature than the stored one is a miss and evicts the stale entry.
// Cached datasets are shared read-only.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	recorder Recorder
}

// NewCache returns an empty cache. rec may be nil.
func NewCache(rec Recorder) *Cache {
	return &Cache{entries: map[string]cacheEntry{}, recorder: rec}
}

// Get returns the dataset stored under k.
func (c *Cache) Get(k Key) (*Dataset, bool) {
	c.mu.Lock()
	e, ok := c.entries[k.Location]
	if ok && e.signature != k.Signature {
		delete(c.entries, k.Location)
		ok = false
	}
	c.mu.Unlock()
	if c.recorder != nil {
		if ok {
			c.recorder.CacheHit(k.Location)
		} else {
			c.recorder.CacheMiss(k.Location)
		}
	}
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Put stores d under k, replacing any previous entry for the location.
func (c *Cache) Put(k Key, d *Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k.Location] = cacheEntry{signature: k.Signature, data: d, loadedAt: time.Now()}
}

// Invalidate drops the entry for location and reports whether one existed.
func (c *Cache) Invalidate(location string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[location]
	delete(c.entries, location)
	return ok
}

// Len returns the number of cached datasets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// LoadedAt reports when location was cached.
func (c *Cache) LoadedAt(location string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[location]
	return e.loadedAt, ok
}
