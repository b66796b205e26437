// Package cache provides a small in-memory TTL cache shared by the chain
// registry and the price resolver. Entries are immutable once written and
// lazily evicted on access; there is no background sweeper.
package cache

import (
	"sync"
	"time"
)

// Clock abstracts time so TTL expiry is testable without real delays.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return systemClock{} }

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache is a read-through TTL cache. Concurrent use is safe; overwrite
// races are last-writer-wins, which is acceptable because competing
// writes carry near-identical values.
type Cache[T any] struct {
	mu      sync.RWMutex
	clock   Clock
	entries map[string]entry[T]
}

// New creates a cache. A nil clock means wall-clock time.
func New[T any](clock Clock) *Cache[T] {
	if clock == nil {
		clock = systemClock{}
	}
	return &Cache[T]{clock: clock, entries: make(map[string]entry[T])}
}

// Get returns the cached value for key if it has not expired. Expired
// entries are deleted on access.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		return zero, false
	}
	if c.clock.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a fresh value may have been
		// written since the read.
		if cur, ok := c.entries[key]; ok && c.clock.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes one entry.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
