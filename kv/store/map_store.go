package store

import (
	"context"
	"sync"
)

// MapStore 内存存储，读写由读写锁保护
type MapStore[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewMapStore[K comparable, V any]() *MapStore[K, V] {
	return &MapStore[K, V]{
		m: make(map[K]V),
	}
}

func (s *MapStore[K, V]) Set(ctx context.Context, key K, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = value
	return nil
}

func (s *MapStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.m[key]
	if !exists {
		var zero V
		return zero, ErrKeyNotFound
	}
	return value, nil
}

func (s *MapStore[K, V]) Del(ctx context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, key)
	return nil
}

func (s *MapStore[K, V]) BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error) {
	if len(keys) != len(vals) {
		return nil, ErrConditionFailed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, key := range keys {
		s.m[key] = vals[i]
	}
	return make([]error, len(keys)), nil
}

func (s *MapStore[K, V]) Close() error {
	return nil
}
