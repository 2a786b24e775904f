/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type booking struct {
	ID     string
	Guests int
}

type testMetrics struct {
	Amount    int
	Hits      int
	Misses    int
	Evictions int
}

func assertMetrics(t *testing.T, want testMetrics, mc *PrometheusMetrics) {
	t.Helper()
	assert.Equal(t, want.Amount, int(testutil.ToFloat64(mc.EntriesAmount)))
	assert.Equal(t, want.Hits, int(testutil.ToFloat64(mc.HitsTotal)))
	assert.Equal(t, want.Misses, int(testutil.ToFloat64(mc.MissesTotal)))
	assert.Equal(t, want.Evictions, int(testutil.ToFloat64(mc.EvictionsTotal)))
}

func makeCache(t *testing.T, opts Options) (*Cache[string, booking], *clock.Mock, *PrometheusMetrics) {
	t.Helper()
	mockClock := clock.NewMock()
	mc := NewPrometheusMetrics()
	opts.Clock = mockClock
	opts.MetricsCollector = mc
	cache, err := New[string, booking](opts)
	require.NoError(t, err)
	return cache, mockClock, mc
}

func TestCache(t *testing.T) {
	tests := []struct {
		name        string
		opts        Options
		fn          func(t *testing.T, cache *Cache[string, booking], mockClock *clock.Mock)
		wantMetrics testMetrics
	}{
		{
			name: "get not existing key",
			fn: func(t *testing.T, cache *Cache[string, booking], _ *clock.Mock) {
				_, found := cache.Get("b-1")
				require.False(t, found)
			},
			wantMetrics: testMetrics{Misses: 1},
		},
		{
			name: "set and get before expiration",
			fn: func(t *testing.T, cache *Cache[string, booking], mockClock *clock.Mock) {
				cache.Set("b-1", booking{ID: "b-1", Guests: 2}, 5*time.Second)
				mockClock.Add(4 * time.Second)
				val, found := cache.Get("b-1")
				require.True(t, found)
				require.Equal(t, booking{ID: "b-1", Guests: 2}, val)
			},
			wantMetrics: testMetrics{Amount: 1, Hits: 1},
		},
		{
			name: "expired entry is a miss and is removed",
			fn: func(t *testing.T, cache *Cache[string, booking], mockClock *clock.Mock) {
				cache.Set("b-1", booking{ID: "b-1"}, 5*time.Second)
				mockClock.Add(5 * time.Second)
				_, found := cache.Get("b-1")
				require.False(t, found)
				require.Equal(t, 0, cache.Len())
			},
			wantMetrics: testMetrics{Misses: 1},
		},
		{
			name: "non-positive ttl means no expiration",
			fn: func(t *testing.T, cache *Cache[string, booking], mockClock *clock.Mock) {
				cache.Set("b-1", booking{ID: "b-1"}, 0)
				cache.Set("b-2", booking{ID: "b-2"}, -time.Second)
				mockClock.Add(24 * time.Hour)
				_, found := cache.Get("b-1")
				require.True(t, found)
				_, found = cache.Get("b-2")
				require.True(t, found)
			},
			wantMetrics: testMetrics{Amount: 2, Hits: 2},
		},
		{
			name: "add uses default ttl",
			opts: Options{DefaultTTL: time.Minute},
			fn: func(t *testing.T, cache *Cache[string, booking], mockClock *clock.Mock) {
				cache.Add("b-1", booking{ID: "b-1"})
				mockClock.Add(59 * time.Second)
				_, found := cache.Get("b-1")
				require.True(t, found)
				mockClock.Add(time.Second)
				_, found = cache.Get("b-1")
				require.False(t, found)
			},
			wantMetrics: testMetrics{Hits: 1, Misses: 1},
		},
		{
			name: "overwrite resets value and ttl",
			fn: func(t *testing.T, cache *Cache[string, booking], mockClock *clock.Mock) {
				cache.Set("b-1", booking{ID: "b-1", Guests: 1}, time.Second)
				cache.Set("b-1", booking{ID: "b-1", Guests: 3}, time.Hour)
				mockClock.Add(time.Minute)
				val, found := cache.Get("b-1")
				require.True(t, found)
				require.Equal(t, 3, val.Guests)
			},
			wantMetrics: testMetrics{Amount: 1, Hits: 1},
		},
		{
			name: "least recently used entry is evicted",
			opts: Options{MaxEntries: 2},
			fn: func(t *testing.T, cache *Cache[string, booking], _ *clock.Mock) {
				cache.Set("b-1", booking{ID: "b-1"}, 0)
				cache.Set("b-2", booking{ID: "b-2"}, 0)
				_, found := cache.Get("b-1")
				require.True(t, found)
				cache.Set("b-3", booking{ID: "b-3"}, 0)
				_, found = cache.Get("b-2")
				require.False(t, found)
				_, found = cache.Get("b-1")
				require.True(t, found)
				_, found = cache.Get("b-3")
				require.True(t, found)
			},
			wantMetrics: testMetrics{Amount: 2, Hits: 3, Misses: 1, Evictions: 1},
		},
		{
			name: "delete and clear",
			fn: func(t *testing.T, cache *Cache[string, booking], _ *clock.Mock) {
				cache.Set("b-1", booking{ID: "b-1"}, 0)
				cache.Set("b-2", booking{ID: "b-2"}, 0)
				cache.Set("b-3", booking{ID: "b-3"}, 0)
				require.False(t, cache.Delete("b-100500"))
				require.True(t, cache.Delete("b-2"))
				require.Equal(t, 2, cache.Len())
				cache.Clear()
				require.Equal(t, 0, cache.Len())
				_, found := cache.Get("b-1")
				require.False(t, found)
			},
			wantMetrics: testMetrics{Misses: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, mockClock, mc := makeCache(t, tt.opts)
			tt.fn(t, cache, mockClock)
			assertMetrics(t, tt.wantMetrics, mc)
		})
	}
}

func TestNew(t *testing.T) {
	_, err := New[string, int](Options{MaxEntries: -1})
	require.Error(t, err)
	_, err = New[string, int](Options{DefaultTTL: -time.Second})
	require.Error(t, err)

	cache, err := New[string, int](Options{})
	require.NoError(t, err)
	cache.Set("k", 1, time.Hour)
	val, found := cache.Get("k")
	require.True(t, found)
	require.Equal(t, 1, val)
}

func TestCache_RunPeriodicCleanup(t *testing.T) {
	cache, mockClock, mc := makeCache(t, Options{})
	cache.Set("short", booking{ID: "short"}, time.Second)
	cache.Set("long", booking{ID: "long"}, time.Hour)
	cache.Set("forever", booking{ID: "forever"}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cache.RunPeriodicCleanup(ctx, 10*time.Second)
	}()

	// Ticker is created in the cleanup goroutine, wait until time advancing reaches it.
	require.Eventually(t, func() bool {
		mockClock.Add(10 * time.Second)
		return cache.Len() == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, int(testutil.ToFloat64(mc.EntriesAmount)))

	cancel()
	<-done

	_, found := cache.Get("long")
	require.True(t, found)
	_, found = cache.Get("forever")
	require.True(t, found)
}
