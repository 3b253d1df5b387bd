// Package cache provides a bounded in-process cache for per-model query
// embeddings. Repeated queries skip the embedding round-trip entirely.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key       string
	vector    []float32
	expiresAt time.Time
}

// NewEmbeddingCache creates an LRU cache with the given capacity and TTL.
// A non-positive capacity falls back to 1024; a non-positive TTL disables
// expiry.
func NewEmbeddingCache(capacity int, ttl time.Duration) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1024
	}
	return &EmbeddingCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return entry.vector, true
}

func (c *EmbeddingCache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.vector = vector
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		vector:    vector,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[key] = elem
}

func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *EmbeddingCache) removeElement(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.items, entry.key)
	c.order.Remove(elem)
}
