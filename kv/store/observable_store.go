package store

import (
	"context"

	"github.com/hatlonely/odb/observe"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableStore 装饰器，为任何 Store 添加观测能力
type ObservableStore[K, V any] struct {
	store    Store[K, V]
	observer *observe.Observer
}

func NewObservableStore[K, V any](store Store[K, V], observer *observe.Observer) *ObservableStore[K, V] {
	return &ObservableStore[K, V]{
		store:    store,
		observer: observer,
	}
}

// Unwrap 返回被包装的底层存储
func (obs *ObservableStore[K, V]) Unwrap() Store[K, V] {
	return obs.store
}

func (obs *ObservableStore[K, V]) Set(ctx context.Context, key K, value V) error {
	return obs.observer.Observe(ctx, "store_set", func(ctx context.Context) error {
		return obs.store.Set(ctx, key, value)
	})
}

func (obs *ObservableStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var result V
	err := obs.observer.Observe(ctx, "store_get", func(ctx context.Context) error {
		var getErr error
		result, getErr = obs.store.Get(ctx, key)
		return getErr
	})
	return result, err
}

func (obs *ObservableStore[K, V]) Del(ctx context.Context, key K) error {
	return obs.observer.Observe(ctx, "store_del", func(ctx context.Context) error {
		return obs.store.Del(ctx, key)
	})
}

func (obs *ObservableStore[K, V]) BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error) {
	var result []error
	err := obs.observer.Observe(ctx, "store_batch_set", func(ctx context.Context) error {
		var batchErr error
		result, batchErr = obs.store.BatchSet(ctx, keys, vals)
		return batchErr
	}, attribute.Int("batch_size", len(keys)))
	obs.observer.ObserveRows("store_batch_set", len(keys))
	return result, err
}

func (obs *ObservableStore[K, V]) Close() error {
	return obs.store.Close()
}
