package store

import "sync"

// collection is a set of buckets keyed by the owning entity's id, guarded
// by its own reader/writer lock. Readers always get copies.
type collection[T any] struct {
	mu      sync.RWMutex
	buckets map[string][]T
	cloneFn func(T) T
}

func newCollection[T any](cloneFn func(T) T) *collection[T] {
	return &collection[T]{
		buckets: make(map[string][]T),
		cloneFn: cloneFn,
	}
}

func (c *collection[T]) get(key string) ([]T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[key]
	if !ok {
		return nil, false
	}
	return c.copyBucket(b), true
}

func (c *collection[T]) list() map[string][]T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyAllLocked()
}

// update replaces the bucket under key with fn's result in one write.
// The bucket must already exist; fn receives a copy and errors leave the
// bucket untouched.
func (c *collection[T]) update(key string, fn func([]T) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[key]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := fn(c.copyBucket(b))
	if err != nil {
		return nil, err
	}
	c.buckets[key] = next
	return c.copyBucket(next), nil
}

func (c *collection[T]) lock()    { c.mu.Lock() }
func (c *collection[T]) unlock()  { c.mu.Unlock() }
func (c *collection[T]) rlock()   { c.mu.RLock() }
func (c *collection[T]) runlock() { c.mu.RUnlock() }

// openLocked creates an empty bucket for key. Caller holds the write lock.
func (c *collection[T]) openLocked(key string) {
	if _, ok := c.buckets[key]; !ok {
		c.buckets[key] = []T{}
	}
}

func (c *collection[T]) copyAllLocked() map[string][]T {
	out := make(map[string][]T, len(c.buckets))
	for k, b := range c.buckets {
		out[k] = c.copyBucket(b)
	}
	return out
}

func (c *collection[T]) copyBucket(b []T) []T {
	out := make([]T, len(b))
	for i, v := range b {
		out[i] = c.cloneOf(v)
	}
	return out
}

func (c *collection[T]) cloneOf(v T) T {
	if c.cloneFn == nil {
		return v
	}
	return c.cloneFn(v)
}

type locker interface {
	lock()
	unlock()
	rlock()
	runlock()
}

// dependent is a collection whose buckets are opened by a cascade.
type dependent interface {
	locker
	openLocked(key string)
}
