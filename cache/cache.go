// Package cache provides the process-local keyed caches that shield the
// document store from read traffic.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is a string-keyed TTL cache. Values are stored by reference, so
// callers must not mutate a value after handing it to Set or receiving it
// from Get.
//
// A Cache never fails: a missing, expired or otherwise unreadable entry is
// reported as a miss.
type Cache[V any] struct {
	name  string
	items *ttlcache.Cache[string, V]
}

// Stats are hit and miss counters accumulated since the cache was created.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// New creates a cache whose entries expire ttl after they were written.
// Reads do not extend an entry's lifetime. The name labels the cache's
// Prometheus series. Call Stop to end the background eviction loop.
func New[V any](name string, ttl time.Duration) *Cache[V] {
	items := ttlcache.New[string, V](
		ttlcache.WithTTL[string, V](ttl),
		ttlcache.WithDisableTouchOnHit[string, V](),
	)
	items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[string, V]) {
		if reason == ttlcache.EvictionReasonExpired {
			cacheEvictions.WithLabelValues(name).Inc()
		}
	})
	go items.Start() // starts the automatic expired-item eviction loop
	return &Cache[V]{name: name, items: items}
}

// Get returns the value stored under key. The boolean is false on a miss or
// when the entry has expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	item := c.items.Get(key)
	if item == nil {
		cacheMisses.WithLabelValues(c.name).Inc()
		var zero V
		return zero, false
	}
	cacheHits.WithLabelValues(c.name).Inc()
	return item.Value(), true
}

// Set stores value under key with the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.items.Set(key, value, ttlcache.DefaultTTL)
	cacheEntries.WithLabelValues(c.name).Set(float64(c.items.Len()))
}

// SetWithTTL stores value under key with a per-entry TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	c.items.Set(key, value, ttl)
	cacheEntries.WithLabelValues(c.name).Set(float64(c.items.Len()))
}

// Delete removes key. Deleting an absent key is a no-op.
func (c *Cache[V]) Delete(key string) {
	c.items.Delete(key)
	cacheEntries.WithLabelValues(c.name).Set(float64(c.items.Len()))
}

// Flush removes every entry.
func (c *Cache[V]) Flush() {
	c.items.DeleteAll()
	cacheEntries.WithLabelValues(c.name).Set(0)
}

// Len returns the number of stored entries, including expired entries the
// eviction loop has not reached yet.
func (c *Cache[V]) Len() int {
	return c.items.Len()
}

// Stats returns the hit and miss counters.
func (c *Cache[V]) Stats() Stats {
	m := c.items.Metrics()
	return Stats{Hits: m.Hits, Misses: m.Misses}
}

// Stop ends the background eviction loop. The cache stays usable; expired
// entries are then only dropped when read.
func (c *Cache[V]) Stop() {
	c.items.Stop()
}
