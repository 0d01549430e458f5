package cache

import (
	"container/list"
	"fmt"
	"log"
	"sync"
	"time"
)

// ──────────────────────────────────────────────────────────────────
// Bounded Fingerprint Caches
//
// Fingerprints are expensive to derive and cheap to hold, so two
// byte-budgeted caches sit between the generators and the comparison
// entry points: one for whole-image data, one for the much heavier
// tiled data. Keys are opaque file identities — hash strings or ids —
// the cache only needs value equality and stable hashing.
// ──────────────────────────────────────────────────────────────────

// CacheableObject is anything that can report its own byte cost.
type CacheableObject interface {
	EstimatedMemoryFootprint() int
}

type entry struct {
	key         string
	value       CacheableObject
	sizeBytes   int
	lastTouched time.Time
}

// DataCache is a byte-budgeted LRU map. All operations are atomic; a lookup
// and its recency touch happen under one critical section.
type DataCache struct {
	name     string
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently touched
	used    int
}

func NewDataCache(name string, capacityBytes int) *DataCache {
	return &DataCache{
		name:     name,
		capacity: capacityBytes,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Add inserts a value, evicting least-recently-touched entries until it fits.
// A value that alone exceeds the capacity is rejected; the caller keeps the
// fingerprint either way, the cache just declines to hold it.
func (c *DataCache) Add(key string, value CacheableObject) error {
	sizeBytes := value.EstimatedMemoryFootprint()

	if sizeBytes > c.capacity {
		return fmt.Errorf("%s cache: value of %d bytes exceeds capacity %d", c.name, sizeBytes, c.capacity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.used -= elem.Value.(*entry).sizeBytes
		c.order.Remove(elem)
		delete(c.entries, key)
	}

	for c.used+sizeBytes > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.key)
		c.used -= evicted.sizeBytes
	}

	e := &entry{key: key, value: value, sizeBytes: sizeBytes, lastTouched: time.Now()}
	c.entries[key] = c.order.PushFront(e)
	c.used += sizeBytes

	return nil
}

// Get returns the cached value and refreshes its recency.
func (c *DataCache) Get(key string) (CacheableObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	e.lastTouched = time.Now()
	c.order.MoveToFront(elem)

	return e.value, true
}

// Has reports presence without touching recency.
func (c *DataCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	return ok
}

// Delete drops one entry if present.
func (c *DataCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry)
		c.order.Remove(elem)
		delete(c.entries, key)
		c.used -= e.sizeBytes
	}
}

// UsedBytes returns the live byte total.
func (c *DataCache) UsedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Len returns the live entry count.
func (c *DataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

const (
	visualDataCacheCapacity      = 5 * 1024 * 1024
	visualDataTiledCacheCapacity = 32 * 1024 * 1024
)

var (
	visualDataCache      *DataCache
	visualDataTiledCache *DataCache
	initOnce             sync.Once
)

// InitVisualDataCaches initializes the two process-wide caches. Safe to call
// multiple times.
func InitVisualDataCaches() {
	initOnce.Do(func() {
		visualDataCache = NewDataCache("visual_data", visualDataCacheCapacity)
		visualDataTiledCache = NewDataCache("visual_data_tiled", visualDataTiledCacheCapacity)
		log.Println("[Cache] Visual data caches initialized (5MiB simple / 32MiB tiled)")
	})
}

// VisualDataCache returns the whole-image fingerprint cache.
func VisualDataCache() *DataCache {
	InitVisualDataCaches()
	return visualDataCache
}

// VisualDataTiledCache returns the tiled fingerprint cache.
func VisualDataTiledCache() *DataCache {
	InitVisualDataCaches()
	return visualDataTiledCache
}
