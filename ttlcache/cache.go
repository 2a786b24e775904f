/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type cacheEntry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

func (e *cacheEntry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is a key-value store where every entry may have its own time-to-live.
// Expired entries are never returned. They are removed lazily on access or by RunPeriodicCleanup.
// If MaxEntries is set, the least recently used entry is evicted when the cache is full.
type Cache[K comparable, V any] struct {
	maxEntries int
	defaultTTL time.Duration
	clock      clock.Clock

	mu      sync.Mutex
	lruList *list.List
	entries map[K]*list.Element // value is a lruList element

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// MaxEntries limits the number of entries in the cache. Zero means no limit.
	MaxEntries int

	// DefaultTTL is used by Add. Zero means no expiration.
	DefaultTTL time.Duration

	// Clock is used to determine the current time. Real clock is used by default.
	Clock clock.Clock

	// MetricsCollector is used to collect statistics about cache usage. Metrics are disabled if nil.
	MetricsCollector MetricsCollector
}

// New creates a new Cache with the provided options.
func New[K comparable, V any](opts Options) (*Cache[K, V], error) {
	if opts.MaxEntries < 0 {
		return nil, fmt.Errorf("maxEntries must be greater or equal to 0 (no limit)")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0 (no expiration)")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetricsCollector
	}
	return &Cache[K, V]{
		maxEntries:       opts.MaxEntries,
		defaultTTL:       opts.DefaultTTL,
		clock:            opts.Clock,
		lruList:          list.New(),
		entries:          make(map[K]*list.Element),
		metricsCollector: opts.MetricsCollector,
	}, nil
}

// Get returns a value from the cache by the provided key.
// An expired entry is reported as missing and removed.
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, hit := c.entries[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return value, false
	}
	entry := elem.Value.(*cacheEntry[K, V])
	if entry.expired(c.clock.Now()) {
		c.removeElement(elem)
		c.metricsCollector.SetAmount(len(c.entries))
		c.metricsCollector.IncMisses()
		return value, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return entry.value, true
}

// Add stores a value with the default TTL.
func (c *Cache[K, V]) Add(key K, value V) {
	c.Set(key, value, c.defaultTTL)
}

// Set stores a value that expires after ttl. Non-positive ttl means no expiration.
// An existing entry for the key is overwritten.
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.clock.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = &cacheEntry[K, V]{key: key, value: value, expiresAt: expiresAt}
		return
	}

	c.entries[key] = c.lruList.PushFront(&cacheEntry[K, V]{key: key, value: value, expiresAt: expiresAt})
	if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		c.removeElement(c.lruList.Back())
		c.metricsCollector.AddEvictions(1)
	}
	c.metricsCollector.SetAmount(len(c.entries))
}

// Delete removes a value from the cache by the provided key.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.metricsCollector.SetAmount(len(c.entries))
	return true
}

// Clear removes all entries. Removed entries are not counted as evictions.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*list.Element)
	c.lruList.Init()
	c.metricsCollector.SetAmount(0)
}

// Len returns the number of entries in the cache including expired but not yet removed ones.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunPeriodicCleanup removes expired entries every cleanupInterval until ctx is done.
// It's supposed to be run in a separate goroutine.
func (c *Cache[K, V]) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	ticker := c.clock.Ticker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache[K, V]) removeExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, elem := range c.entries {
		if elem.Value.(*cacheEntry[K, V]).expired(now) {
			c.removeElement(elem)
		}
	}
	c.metricsCollector.SetAmount(len(c.entries))
}

func (c *Cache[K, V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.entries, elem.Value.(*cacheEntry[K, V]).key)
}
