// Package locks provides small generic concurrency primitives used in place
// of hand-rolled mutex/map pairs scattered through the codebase: a
// read-mostly map (for the storage factory's per-chain handle cache) and a
// single guarded value (for the in-memory finalized-L1 cell).
package locks

import "sync"

// RWMap is a map guarded by a RWMutex, safe for concurrent readers and
// writers. Zero value is ready to use.
type RWMap[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func (m *RWMap[K, V]) Get(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[k]
	return v, ok
}

func (m *RWMap[K, V]) Has(k K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.m[k]
	return ok
}

func (m *RWMap[K, V]) Set(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.m == nil {
		m.m = make(map[K]V)
	}
	m.m[k] = v
}

// GetOrInsert returns the existing value for k, or inserts and returns the
// value produced by make if absent. The double-checked-locking pattern
// avoids calling make() while holding the map open to other readers.
func (m *RWMap[K, V]) GetOrInsert(k K, make_ func() (V, error)) (V, error) {
	m.mu.RLock()
	if v, ok := m.m[k]; ok {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.m[k]; ok {
		return v, nil
	}
	v, err := make_()
	if err != nil {
		var zero V
		return zero, err
	}
	if m.m == nil {
		m.m = make(map[K]V)
	}
	m.m[k] = v
	return v, nil
}

func (m *RWMap[K, V]) Delete(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, k)
}

// Range calls fn for every entry, stopping early if fn returns false. The
// lock is held as a reader for the duration of the call, so fn must not
// re-enter the map.
func (m *RWMap[K, V]) Range(fn func(k K, v V) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.m {
		if !fn(k, v) {
			return
		}
	}
}

func (m *RWMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// RWValue is a single value guarded by a RWMutex.
type RWValue[V any] struct {
	mu sync.RWMutex
	v  V
	ok bool
}

func (r *RWValue[V]) Get() (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v, r.ok
}

func (r *RWValue[V]) Set(v V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.v = v
	r.ok = true
}
