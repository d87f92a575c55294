// Package cache provides a small concurrency-safe map used to memoize
// per-URL lookups within a single audit run.
package cache

import "sync"

// Cache stores values keyed by string.
type Cache[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// New creates an empty Cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{
		items: make(map[string]T),
	}
}

// Get returns a cached value and whether it exists.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.items[key]

	return value, ok
}

// Set stores a value under key, replacing any previous entry.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = value
}

// Len reports the number of stored entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}
