package concurrent

import "sync"

type Map[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		values: make(map[K]V),
	}
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.values[key]
	return val, ok
}

func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
}

// Update replaces the value for key with fn(current, ok) while holding the
// lock, so read-modify-write sequences cannot interleave.
func (m *Map[K, V]) Update(key K, fn func(current V, ok bool) V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[key]
	next := fn(current, ok)
	m.values[key] = next
	return next
}

func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
}
