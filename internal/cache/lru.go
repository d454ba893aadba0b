// Package cache provides the bounded LRU used to memoize extraction and
// intent results.
//
// Entries live in a flat slice (the arena) and the recency list links them
// by index, so there are no per-entry pointers to chase or free. A single
// mutex guards the whole structure; Get mutates recency, so reads take the
// same lock as writes.
//
// Keys are content hashes. Two callers submitting identical input share one
// entry: that deduplication is intentional.
package cache

import "sync"

// nilIndex marks the absence of a neighbour in the recency list.
const nilIndex = -1

// Observer receives cache events. It is optional; see SetObserver.
type Observer interface {
	CacheHit(name string)
	CacheMiss(name string)
	CacheEvict(name string)
	CacheSize(name string, size int)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Capacity  int
}

type entry[K comparable, V any] struct {
	key   K
	value V
	prev  int
	next  int
}

// LRU is a fixed-capacity least-recently-used cache safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	name     string
	capacity int
	entries  []entry[K, V]
	index    map[K]int
	free     []int
	head     int // most recently used
	tail     int // least recently used

	hits, misses, evictions uint64
	observer                Observer
}

// New creates an LRU holding at most capacity entries. A capacity of zero or
// less disables storage: Put is a no-op and Get always misses.
func New[K comparable, V any](name string, capacity int) *LRU[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &LRU[K, V]{
		name:     name,
		capacity: capacity,
		entries:  make([]entry[K, V], 0, min(capacity, 1024)),
		index:    make(map[K]int, min(capacity, 1024)),
		head:     nilIndex,
		tail:     nilIndex,
	}
}

// SetObserver attaches an event observer (e.g. Prometheus metrics).
func (c *LRU[K, V]) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// Get returns the value stored under key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		c.misses++
		if c.observer != nil {
			c.observer.CacheMiss(c.name)
		}
		var zero V
		return zero, false
	}

	c.hits++
	if c.observer != nil {
		c.observer.CacheHit(c.name)
	}
	c.moveToFront(i)
	return c.entries[i].value, true
}

// Put stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	if c.capacity == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[key]; ok {
		c.entries[i].value = value
		c.moveToFront(i)
		return
	}

	if len(c.index) >= c.capacity {
		c.evictTail()
	}

	var i int
	if n := len(c.free); n > 0 {
		i = c.free[n-1]
		c.free = c.free[:n-1]
		c.entries[i] = entry[K, V]{key: key, value: value, prev: nilIndex, next: nilIndex}
	} else {
		i = len(c.entries)
		c.entries = append(c.entries, entry[K, V]{key: key, value: value, prev: nilIndex, next: nilIndex})
	}
	c.index[key] = i
	c.pushFront(i)

	if c.observer != nil {
		c.observer.CacheSize(c.name, len(c.index))
	}
}

// Remove deletes key if present and reports whether it was.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.release(i)
	if c.observer != nil {
		c.observer.CacheSize(c.name, len(c.index))
	}
	return true
}

// Len returns the number of stored entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Capacity returns the configured capacity.
func (c *LRU[K, V]) Capacity() int {
	return c.capacity
}

// Keys returns stored keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.index))
	for i := c.head; i != nilIndex; i = c.entries[i].next {
		keys = append(keys, c.entries[i].key)
	}
	return keys
}

// Purge drops every entry. Counters are kept.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = c.entries[:0]
	c.free = c.free[:0]
	clear(c.index)
	c.head, c.tail = nilIndex, nilIndex
	if c.observer != nil {
		c.observer.CacheSize(c.name, 0)
	}
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.index),
		Capacity:  c.capacity,
	}
}

func (c *LRU[K, V]) evictTail() {
	if c.tail == nilIndex {
		return
	}
	c.release(c.tail)
	c.evictions++
	if c.observer != nil {
		c.observer.CacheEvict(c.name)
	}
}

// release unlinks slot i and returns it to the free list.
func (c *LRU[K, V]) release(i int) {
	c.unlink(i)
	delete(c.index, c.entries[i].key)
	c.entries[i] = entry[K, V]{prev: nilIndex, next: nilIndex}
	c.free = append(c.free, i)
}

func (c *LRU[K, V]) moveToFront(i int) {
	if c.head == i {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

func (c *LRU[K, V]) pushFront(i int) {
	c.entries[i].prev = nilIndex
	c.entries[i].next = c.head
	if c.head != nilIndex {
		c.entries[c.head].prev = i
	}
	c.head = i
	if c.tail == nilIndex {
		c.tail = i
	}
}

func (c *LRU[K, V]) unlink(i int) {
	e := &c.entries[i]
	if e.prev != nilIndex {
		c.entries[e.prev].next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nilIndex {
		c.entries[e.next].prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nilIndex, nilIndex
}
