// Package cache provides a bounded, concurrency-safe LRU cache used to
// memoize graph lookups that are repeated across many search steps.
package cache

import (
	"sync"
)

// Cache defines the interface for a cache with basic operations.
type Cache[K comparable, V any] interface {
	// Get retrieves a value by key.
	// Returns (value, true) if found, (zero, false) otherwise.
	Get(key K) (V, bool)

	// Set stores a key-value pair in the cache.
	// If the cache is full, LRU eviction will occur.
	Set(key K, value V)

	// Delete removes a key from the cache.
	Delete(key K)

	// Clear removes all entries from the cache.
	Clear()

	// Len returns the number of entries in the cache.
	Len() int
}

// LRUCache is an in-memory LRU cache.
type LRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*listItem[K, V]
	lru     *list[K, V] // doubly-linked list (most recent at front)
	maxSize int
	onEvict func(key K, value V)

	hits   uint64
	misses uint64
}

// listItem is an item in the doubly-linked list.
type listItem[K comparable, V any] struct {
	key   K
	value V
	prev  *listItem[K, V]
	next  *listItem[K, V]
}

// list represents a doubly-linked list.
type list[K comparable, V any] struct {
	head *listItem[K, V] // most recently accessed
	tail *listItem[K, V] // least recently accessed
	len  int
}

// unlink removes an item from wherever it sits in the list.
func (l *list[K, V]) unlink(item *listItem[K, V]) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev = nil
	item.next = nil
	l.len--
}

// moveToFront moves an item to the front (most recently used).
func (l *list[K, V]) moveToFront(item *listItem[K, V]) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

// removeBack removes and returns the least recently used item.
func (l *list[K, V]) removeBack() *listItem[K, V] {
	item := l.tail
	if item == nil {
		return nil
	}
	l.unlink(item)
	return item
}

// pushFront adds an item to the front of the list.
func (l *list[K, V]) pushFront(item *listItem[K, V]) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

// Options configures the LRU cache.
type Options[K comparable, V any] struct {
	// MaxSize is the maximum number of entries.
	// 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted.
	OnEvict func(key K, value V)
}

// New creates a new LRU cache with the given options.
func New[K comparable, V any](opts Options[K, V]) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		items:   make(map[K]*listItem[K, V]),
		lru:     &list[K, V]{},
		maxSize: opts.MaxSize,
		onEvict: opts.OnEvict,
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.lru.moveToFront(item)
	return item.value, true
}

// Set stores a value in the cache.
func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, exists := c.items[key]; exists {
		item.value = value
		c.lru.moveToFront(item)
		return
	}

	item := &listItem[K, V]{key: key, value: value}
	c.items[key] = item
	c.lru.pushFront(item)
	c.evictIfNeeded()
}

// GetOrLoad returns the cached value for key, calling load on a miss and
// caching its result. Errors are not cached. Concurrent misses on the same
// key may call load more than once.
func (c *LRUCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Delete removes a key from the cache.
func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.unlink(item)
	delete(c.items, key)

	if c.onEvict != nil {
		c.onEvict(key, item.value)
	}
}

// Clear removes all entries from the cache.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*listItem[K, V])
	c.lru = &list[K, V]{}
}

// Len returns the number of entries in the cache.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats holds hit/miss counters.
type Stats struct {
	Length int    `json:"length"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Stats returns the current cache counters.
func (c *LRUCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Length: len(c.items), Hits: c.hits, Misses: c.misses}
}

// evictIfNeeded evicts entries if the cache exceeds its limits.
func (c *LRUCache[K, V]) evictIfNeeded() {
	for c.maxSize > 0 && c.lru.len > c.maxSize {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.key)

		if c.onEvict != nil {
			c.onEvict(item.key, item.value)
		}
	}
}
