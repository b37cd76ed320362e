// Package history implements a fixed-capacity, most-recent-first record list
// with tail eviction and optional duplicate suppression.
package history

import "sync"

// Store is a bounded, insertion-ordered history. New items go to the front;
// once capacity is exceeded the oldest items fall off the tail. If a key
// function is set, inserting an item whose key already exists is a no-op:
// the existing item keeps its position and the new item is discarded.
//
// Safe for concurrent use.
type Store[T any] struct {
	mu       sync.RWMutex
	capacity int
	key      func(T) string // nil disables duplicate suppression
	items    []T
}

// New returns an empty store holding at most capacity items. key derives the
// identity used for duplicate suppression; pass nil to always insert.
func New[T any](capacity int, key func(T) string) *Store[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Store[T]{capacity: capacity, key: key}
}

// InsertFront adds item at the front and reports whether it was inserted.
// A duplicate (same key as an existing item) is suppressed and leaves the
// store untouched.
func (s *Store[T]) InsertFront(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		k := s.key(item)
		for _, existing := range s.items {
			if s.key(existing) == k {
				return false
			}
		}
	}

	s.items = append([]T{item}, s.items...)
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	return true
}

// Find returns the first item whose key equals k. It always reports false
// when the store has no key function.
func (s *Store[T]) Find(k string) (T, bool) {
	var zero T
	if s.key == nil {
		return zero, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if s.key(item) == k {
			return item, true
		}
	}
	return zero, false
}

// Items returns a snapshot of the stored items, most recent first.
func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of stored items.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// SetCapacity changes the capacity, trimming the tail if the store already
// holds more items than the new limit.
func (s *Store[T]) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = capacity
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
}

// Clear removes all items.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
