package power

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
)

// CachedSource wraps a ClimateSource with an in-memory LRU cache keyed by
// location and day. Failed fetches are not cached.
type CachedSource struct {
	inner   domain.ClimateSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a climate source.
func NewCachedSource(inner domain.ClimateSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSource) FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (domain.ClimateRecord, error) {
	key := cacheKey{coord: domain.Coord{Lat: lat, Lon: lon}, day: date.Format(domain.DateLayout)}
	if rec, ok := c.cache.get(key); ok {
		c.metrics.ClimateCache.WithLabelValues("hit").Inc()
		return rec, nil
	}
	c.metrics.ClimateCache.WithLabelValues("miss").Inc()

	rec, err := c.inner.FetchDaily(ctx, lat, lon, date)
	if err != nil {
		return rec, err
	}
	c.cache.put(key, rec)
	return rec, nil
}

type cacheKey struct {
	coord domain.Coord
	day   string
}

// lruCache is a simple thread-safe LRU cache for climate records.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[cacheKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   cacheKey
	value domain.ClimateRecord
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[cacheKey]*entry),
	}
}

func (c *lruCache) get(key cacheKey) (domain.ClimateRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.ClimateRecord{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key cacheKey, value domain.ClimateRecord) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	tail := c.tail
	delete(c.entries, tail.key)
	c.remove(tail)
}
