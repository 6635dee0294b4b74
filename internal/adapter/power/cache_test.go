package power

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
)

// --- mock for cache tests ---

type countingSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *countingSource) FetchDaily(_ context.Context, lat, lon float64, date time.Time) (domain.ClimateRecord, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.ClimateRecord{}, m.err
	}
	return domain.ClimateRecord{Lat: lat, Lon: lon, Date: date, Temperature: 25}, nil
}

// --- CachedSource tests ---

func TestCachedSource_CacheHit(t *testing.T) {
	inner := &countingSource{}
	metrics := observability.NewMetricsForTesting()
	cached := NewCachedSource(inner, 10, metrics)

	r1, err := cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)
	require.NoError(t, err)
	r2, err := cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClimateCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClimateCache.WithLabelValues("miss")))
}

func TestCachedSource_DifferentKeysMiss(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)
	_, _ = cached.FetchDaily(context.Background(), 12.0, 8.6, testDate)
	_, _ = cached.FetchDaily(context.Background(), 12.0, 8.5, testDate.AddDate(0, 0, 1))

	assert.Equal(t, 3, inner.calls)
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	inner := &countingSource{err: &domain.LocationFetchError{Reason: domain.ReasonHTTPStatus, Err: errors.New("status 500")}}
	cached := NewCachedSource(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)
	require.Error(t, err)
	_, err = cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.cache.size())
}

func TestCachedSource_ZeroSizeDisablesCaching(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 0, observability.NewMetricsForTesting())

	_, _ = cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)
	_, _ = cached.FetchDaily(context.Background(), 12.0, 8.5, testDate)

	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

func key(lat float64) cacheKey {
	return cacheKey{coord: domain.Coord{Lat: lat}, day: "2024-01-01"}
}

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put(key(1), domain.ClimateRecord{Temperature: 1})
	c.put(key(2), domain.ClimateRecord{Temperature: 2})

	result, ok := c.get(key(1))
	assert.True(t, ok)
	assert.Equal(t, 1.0, result.Temperature)

	_, ok = c.get(key(9))
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put(key(1), domain.ClimateRecord{Temperature: 1})
	c.put(key(2), domain.ClimateRecord{Temperature: 2})
	c.put(key(3), domain.ClimateRecord{Temperature: 3}) // evicts 1

	_, ok := c.get(key(1))
	assert.False(t, ok, "1 should have been evicted")

	result, ok := c.get(key(2))
	assert.True(t, ok)
	assert.Equal(t, 2.0, result.Temperature)

	result, ok = c.get(key(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, result.Temperature)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put(key(1), domain.ClimateRecord{Temperature: 1})
	c.put(key(2), domain.ClimateRecord{Temperature: 2})

	c.get(key(1))

	// Inserting 3 evicts 2, the least recently used.
	c.put(key(3), domain.ClimateRecord{Temperature: 3})

	_, ok := c.get(key(1))
	assert.True(t, ok, "1 was accessed recently, should not be evicted")

	_, ok = c.get(key(2))
	assert.False(t, ok, "2 should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put(key(1), domain.ClimateRecord{Temperature: 1})
	c.put(key(1), domain.ClimateRecord{Temperature: 1.5})

	result, ok := c.get(key(1))
	assert.True(t, ok)
	assert.Equal(t, 1.5, result.Temperature)
	assert.Equal(t, 1, c.size())
}

func TestCachedSource_ConcurrentAccess(t *testing.T) {
	inner := &countingSource{}
	cached := NewCachedSource(inner, 4, observability.NewMetricsForTesting())

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cached.FetchDaily(context.Background(), float64(i%8), 0, testDate)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cached.cache.size(), 4)
}
