// Package cache provides a generic, thread-safe in-memory cache with
// combined LRU and TTL eviction. It backs the client-side query cache
// but carries no knowledge of actions or transports.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Statistics tracks hit/miss/eviction counts for a cache instance.
type Statistics struct {
	mu        sync.Mutex
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

func (s *Statistics) hit()     { s.mu.Lock(); s.Hits++; s.mu.Unlock() }
func (s *Statistics) miss()    { s.mu.Lock(); s.Misses++; s.mu.Unlock() }
func (s *Statistics) evict()   { s.mu.Lock(); s.Evictions++; s.mu.Unlock() }
func (s *Statistics) expired() { s.mu.Lock(); s.Expired++; s.mu.Unlock() }

// Snapshot returns a copy of the current counters.
func (s *Statistics) Snapshot() (hits, misses, evictions, expired uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Hits, s.Misses, s.Evictions, s.Expired
}

// EvictCallback is invoked when an entry leaves the cache through LRU
// pressure or TTL expiry. It is called without the cache lock held.
type EvictCallback[V any] func(key string, value V)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time // zero means no expiry
}

func (e *entry[V]) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithMaxEntries caps the cache size; the least recently used entry is
// evicted when the cap is exceeded. Zero or negative means unbounded.
func WithMaxEntries[V any](n int) Option[V] {
	return func(c *Cache[V]) { c.maxEntries = n }
}

// WithTTL sets the lifetime applied to every entry. Zero means entries
// never expire.
func WithTTL[V any](ttl time.Duration) Option[V] {
	return func(c *Cache[V]) { c.ttl = ttl }
}

// WithEvictCallback registers a callback fired on eviction and expiry.
func WithEvictCallback[V any](cb EvictCallback[V]) Option[V] {
	return func(c *Cache[V]) { c.onEvict = cb }
}

// Cache is a thread-safe LRU+TTL cache keyed by string.
type Cache[V any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	onEvict    EvictCallback[V]
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
	stats      Statistics
}

// New creates a cache with the given options.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value by key. An expired entry is removed and
// reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	elem, ok := c.entries[key]
	if !ok {
		c.stats.miss()
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	ent := elem.Value.(*entry[V])
	if ent.isExpired(time.Now()) {
		c.removeLocked(elem)
		c.stats.expired()
		c.stats.miss()
		c.mu.Unlock()
		c.notifyEvict(ent)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.stats.hit()
	c.mu.Unlock()
	return ent.value, true
}

// Set stores a value, refreshing its TTL and recency. Returns true when
// a new entry was created rather than an existing one updated.
func (c *Cache[V]) Set(key string, value V) bool {
	var evicted *entry[V]
	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[V])
		ent.value = value
		ent.expiresAt = c.deadline()
		c.order.MoveToFront(elem)
		c.mu.Unlock()
		return false
	}
	ent := &entry[V]{key: key, value: value, expiresAt: c.deadline()}
	c.entries[key] = c.order.PushFront(ent)
	if c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		evicted = oldest.Value.(*entry[V])
		c.removeLocked(oldest)
		c.stats.evict()
	}
	c.mu.Unlock()
	c.notifyEvict(evicted)
	return true
}

// Delete removes an entry by key, reporting whether it existed.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	elem, ok := c.entries[key]
	if ok {
		c.removeLocked(elem)
	}
	c.mu.Unlock()
	return ok
}

// Clear removes all entries without firing eviction callbacks.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.mu.Unlock()
}

// Size returns the number of stored entries, including any that have
// expired but not yet been observed by Get.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the cached keys ordered from most to least recently used.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[V]).key)
	}
	return keys
}

// Stats exposes the cache counters.
func (c *Cache[V]) Stats() *Statistics { return &c.stats }

func (c *Cache[V]) deadline() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.ttl)
}

func (c *Cache[V]) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry[V])
	c.order.Remove(elem)
	delete(c.entries, ent.key)
}

func (c *Cache[V]) notifyEvict(ent *entry[V]) {
	if ent != nil && c.onEvict != nil {
		c.onEvict(ent.key, ent.value)
	}
}
