// Package cache provides a capacity-bounded, concurrency-safe cache that is
// passed explicitly into the components that need one.
package cache

import (
	"sync"
	"sync/atomic"
)

const defaultCapacity = 1024

// node is an entry in the recency list.
type node[V any] struct {
	key        string
	value      V
	prev, next *node[V]
}

// Cache is an LRU cache keyed by string.
// For bounded mode (capacity > 0): least recently used entries are evicted.
// For unbounded mode (capacity <= 0): entries are never evicted.
type Cache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*node[V]
	head     *node[V] // most recently used
	tail     *node[V] // least recently used
	capacity int

	hits   atomic.Int64
	misses atomic.Int64
}

// Option applies a configuration option to a Cache.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity sets the maximum number of entries.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// New creates a cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		entries:  make(map[string]*node[V]),
		capacity: o.capacity,
	}
}

// Get returns the value for key and marks it as recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.moveToFront(n)
	c.hits.Add(1)
	return n.value, true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}
	if c.capacity > 0 && len(c.entries) >= c.capacity {
		c.evict()
	}
	n := &node[V]{key: key, value: value}
	c.pushFront(n)
	c.entries[key] = n
}

// Remove deletes key if present.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		c.unlink(n)
		delete(c.entries, key)
	}
}

// Purge drops every entry. Counters are kept.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	c.head, c.tail = nil, nil
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Must be called with c.mu held.
func (c *Cache[V]) evict() {
	if c.tail == nil {
		return
	}
	victim := c.tail
	c.unlink(victim)
	delete(c.entries, victim.key)
}

func (c *Cache[V]) pushFront(n *node[V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Cache[V]) moveToFront(n *node[V]) {
	if c.head == n {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}
