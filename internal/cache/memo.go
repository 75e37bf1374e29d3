package cache

import (
	"golang.org/x/sync/singleflight"
)

// Memo puts a Cache in front of an expensive computation. Concurrent misses
// on the same key share one call to the loader.
type Memo[T any] struct {
	cache  Cache[T]
	group  singleflight.Group
	onHit  func()
	onMiss func()
}

// MemoOption configures a Memo.
type MemoOption[T any] func(*Memo[T])

// WithStats installs hit and miss callbacks, e.g. metrics counters.
func WithStats[T any](onHit, onMiss func()) MemoOption[T] {
	return func(m *Memo[T]) {
		m.onHit = onHit
		m.onMiss = onMiss
	}
}

func NewMemo[T any](c Cache[T], opts ...MemoOption[T]) *Memo[T] {
	m := &Memo[T]{cache: c, onHit: func() {}, onMiss: func() {}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the cached value for key, computing and storing it on a miss.
// Loader errors are returned and nothing is cached.
func (m *Memo[T]) Get(key string, load func() (T, error)) (T, error) {
	if v, ok := m.cache.Get(key); ok {
		m.onHit()
		return v, nil
	}
	m.onMiss()

	v, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.cache.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		m.cache.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
