// Package cache provides a small LRU used to memoize derived GPU state
// (compiled shader modules, pipelines) across graph recompiles.
//
// Graph Compile and Execute are single-threaded, so the cache is not
// synchronized; callers owning concurrent use must lock around it.
package cache

import "hash/fnv"

// DefaultCapacity is the default maximum entry count.
const DefaultCapacity = 64

// HashString computes the FNV-1a hash of a string key.
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// HashBytes computes the FNV-1a hash of a byte key.
func HashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// LRU is a least-recently-used cache with an eviction hook, so evicted
// GPU objects can be released by their owner.
type LRU[K comparable, V any] struct {
	capacity int
	entries  map[K]*node[K, V]
	head     *node[K, V] // most recently used
	tail     *node[K, V] // least recently used

	// onEvict, when set, runs for every entry removed by capacity
	// eviction or Clear. It does not run for Put-overwrites.
	onEvict func(K, V)

	hits   uint64
	misses uint64
}

// node is a doubly-linked list node holding one cached value.
// The node stores its key for O(1) deletion from the map.
type node[K comparable, V any] struct {
	key   K
	value V
	prev  *node[K, V]
	next  *node[K, V]
}

// New creates an LRU with the given capacity.
// If capacity <= 0, DefaultCapacity is used.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU[K, V]{
		capacity: capacity,
		entries:  make(map[K]*node[K, V]),
	}
}

// OnEvict registers the eviction hook.
func (c *LRU[K, V]) OnEvict(fn func(K, V)) { c.onEvict = fn }

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int { return len(c.entries) }

// Stats returns hit and miss counts.
func (c *LRU[K, V]) Stats() (hits, misses uint64) { return c.hits, c.misses }

// Get retrieves a cached value, marking it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	n, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.moveToFront(n)
	c.hits++
	return n.value, true
}

// Put stores a value, evicting the oldest entries while over capacity.
// Storing an existing key overwrites its value without running the
// eviction hook.
func (c *LRU[K, V]) Put(key K, value V) {
	if n, ok := c.entries[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}
	for len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	n := &node[K, V]{key: key, value: value}
	c.entries[key] = n
	c.pushFront(n)
}

// GetOrCreate returns the cached value for key, calling create and
// caching its result on a miss. A create error is returned as-is and
// nothing is cached.
func (c *LRU[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(key, v)
	return v, nil
}

// Clear evicts every entry, running the eviction hook for each.
func (c *LRU[K, V]) Clear() {
	for len(c.entries) > 0 {
		c.evictOldest()
	}
	c.head = nil
	c.tail = nil
}

func (c *LRU[K, V]) evictOldest() {
	n := c.tail
	if n == nil {
		return
	}
	c.unlink(n)
	delete(c.entries, n.key)
	if c.onEvict != nil {
		c.onEvict(n.key, n.value)
	}
}

func (c *LRU[K, V]) pushFront(n *node[K, V]) {
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

func (c *LRU[K, V]) moveToFront(n *node[K, V]) {
	if n == c.head {
		return
	}
	c.unlink(n)
	c.pushFront(n)
}

func (c *LRU[K, V]) unlink(n *node[K, V]) {
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
	n.prev = nil
	n.next = nil
}
