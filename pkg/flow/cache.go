package flow

import "sync"

// Cacheable is anything a node wants to keep for the rest of a run: model
// handles, connections, compiled scripts. CacheKind names the concrete kind so
// consumers can check it before downcasting.
type Cacheable interface {
	CacheKind() string
}

// Cache is the per-run map of shared resources. It is never persisted and
// never shared across runs. A second Set on the same key replaces the entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Cacheable
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Cacheable)}
}

// Get returns the entry stored under key.
func (c *Cache) Get(key string) (Cacheable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Set stores v under key, replacing any previous entry.
func (c *Cache) Set(key string, v Cacheable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v
}

// Has reports whether key was set.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheAs fetches key and downcasts it to T. ok is false when the key is
// missing or holds a different type.
func CacheAs[T Cacheable](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Shared is a mutex-guarded holder for values that are not Cacheable
// themselves. Read under the lock, copy out, then release before blocking work.
type Shared[T any] struct {
	kind  string
	mu    sync.Mutex
	value T
}

// NewShared wraps value under the given kind.
func NewShared[T any](kind string, value T) *Shared[T] {
	return &Shared[T]{kind: kind, value: value}
}

// CacheKind implements Cacheable.
func (s *Shared[T]) CacheKind() string { return s.kind }

// With runs fn while holding the lock.
func (s *Shared[T]) With(fn func(v *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.value)
}

// Load returns a copy of the value.
func (s *Shared[T]) Load() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Store replaces the value.
func (s *Shared[T]) Store(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
}
