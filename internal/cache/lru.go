package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// LRU is a BlockCache bounded by the total size of its blocks.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[Key]*list.Element
	order    *list.List // front is most recently used

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value []byte
}

// NewLRU returns a cache holding at most capacity bytes.
func NewLRU(capacity int64) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
	}
}

// Get implements BlockCache.
func (c *LRU) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.order.MoveToFront(el)
		return el.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set implements BlockCache. Blocks larger than the capacity are ignored.
func (c *LRU) Set(_ context.Context, key Key, b []byte) {
	n := int64(len(b))
	if n > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.size += n - int64(len(e.value))
		e.value = b
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&entry{key: key, value: b})
		c.size += n
	}
	for c.size > c.capacity {
		c.remove(c.order.Back())
	}
}

// Invalidate implements BlockCache.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.items {
		if predicate(key) {
			c.remove(el)
		}
	}
}

// Stats implements BlockCache.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached blocks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) remove(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.items, e.key)
	c.size -= int64(len(e.value))
}
