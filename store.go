package engine

import (
	"fmt"
	"sync"
)

// Store is the run-scoped key/value state shared by a plan's tasks.
//
// Task bodies reach it through their TaskContext, which namespaces keys as
// "task:<id>:<key>" so no task can touch another task's entries by
// accident. Driver code and callers may use the un-namespaced surface.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]any)}
}

// Set saves a value under the given key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Get retrieves a value by key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Has reports whether the key exists.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Delete removes a value by key. No-op if the key is absent.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns all keys currently stored, in no particular order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored values.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// LoadValue retrieves a value by key with a type assertion. It returns
// (zero, false) if the key is missing or the stored type does not match.
func LoadValue[T any](s *Store, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}

// MustLoadValue is LoadValue or panic. Use it when the plan structure
// guarantees the key exists.
func MustLoadValue[T any](s *Store, key string) T {
	v, ok := LoadValue[T](s, key)
	if !ok {
		panic(fmt.Sprintf("store: key %q not found or wrong type (expected %T)", key, *new(T)))
	}
	return v
}

// taskKey namespaces a task-scoped key into the run store.
func taskKey(taskID, key string) string {
	return "task:" + taskID + ":" + key
}
