// Package cache provides the bounded reputation cache shared by the lookup
// components. Eviction is FIFO on capacity overflow (oldest-inserted entry
// goes first) and lazy on TTL expiry. Keys are case-normalized so two
// spellings of the same address share one entry.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Options configures a Cache. A zero MaxEntries means unbounded; a zero
// DefaultTTL means entries never expire unless Set is given an explicit TTL.
type Options struct {
	MaxEntries int
	DefaultTTL time.Duration
}

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
}

// Cache is a process-wide key→value store with FIFO capacity eviction and
// per-entry TTL. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*entry[V]
	order   []string // insertion order for FIFO eviction
	now     func() time.Time
}

// New creates an empty cache with the given options.
func New[V any](opts Options) *Cache[V] {
	return &Cache[V]{
		opts:    opts,
		entries: make(map[string]*entry[V]),
		now:     time.Now,
	}
}

// Get returns the value for key, or the zero value and false if the key is
// absent or its TTL has elapsed. Expired entries are evicted on access.
func (c *Cache[V]) Get(key string) (V, bool) {
	key = normalize(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		c.remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. A positive ttl overrides the cache default;
// ttl <= 0 falls back to the default. Re-setting an existing key refreshes
// the entry in place without duplicating its eviction slot.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	key = normalize(key)
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = e
		return
	}

	if c.opts.MaxEntries > 0 && len(c.entries) >= c.opts.MaxEntries {
		c.evictOldest()
	}
	c.entries[key] = e
	c.order = append(c.order, key)
}

// Has reports whether key holds a live entry. Expired entries are evicted.
func (c *Cache[V]) Has(key string) bool {
	key = normalize(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.expired(e) {
		c.remove(key)
		return false
	}
	return true
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	key = normalize(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key)
}

// Len returns the number of stored entries, including any not yet lazily
// expired.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
	c.order = nil
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

// evictOldest removes the oldest-inserted live entry. Callers must hold mu.
func (c *Cache[V]) evictOldest() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
		// Stale order slot for an already-removed key; keep scanning.
	}
}

// remove deletes key from the map and its FIFO slot. Callers must hold mu.
func (c *Cache[V]) remove(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func normalize(key string) string {
	return strings.ToLower(key)
}
