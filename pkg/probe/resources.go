package probe

import (
	"fmt"
	"sync"
)

// Manager shares named resources and counts their references. A resource
// is loaded on the first Get and freed when the last reference is
// released. It is safe for concurrent use.
type Manager[T any] struct {
	mu      sync.Mutex
	load    func(name string) (T, error)
	free    func(T)
	entries map[string]*resource[T]
}

type resource[T any] struct {
	value T
	refs  int
}

// NewManager returns a manager that loads missing resources with load.
// free may be nil.
func NewManager[T any](load func(name string) (T, error), free func(T)) *Manager[T] {
	return &Manager[T]{load: load, free: free, entries: make(map[string]*resource[T])}
}

// Get returns the named resource and takes a reference to it.
func (m *Manager[T]) Get(name string) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.entries[name]; ok {
		r.refs++
		return r.value, nil
	}
	if m.load == nil {
		var zero T
		return zero, fmt.Errorf("resource %q not found", name)
	}
	v, err := m.load(name)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %q: %w", name, err)
	}
	m.entries[name] = &resource[T]{value: v, refs: 1}
	return v, nil
}

// Put registers v under name with one reference. If name is already live
// the stored value gains the reference and is returned instead.
func (m *Manager[T]) Put(name string, v T) T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.entries[name]; ok {
		r.refs++
		return r.value
	}
	m.entries[name] = &resource[T]{value: v, refs: 1}
	return v
}

// Release drops one reference. Releasing an unknown name does nothing.
func (m *Manager[T]) Release(name string) {
	m.mu.Lock()
	r, ok := m.entries[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	r.refs--
	if r.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, name)
	m.mu.Unlock()
	if m.free != nil {
		m.free(r.value)
	}
}

// Refs returns the reference count of name.
func (m *Manager[T]) Refs(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.entries[name]; ok {
		return r.refs
	}
	return 0
}

// Len returns the number of live resources.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
