package store

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/hatlonely/odb/kv/serializer"
	"github.com/pkg/errors"
)

type FreeCacheStoreOptions struct {
	// Size 缓存大小，单位字节，freecache 最小 512KB
	Size       int           `cfg:"size" def:"1048576"`
	DefaultTTL time.Duration `cfg:"defaultTTL"`
	KeyCodec   string        `cfg:"keyCodec"`
	ValCodec   string        `cfg:"valCodec"`
}

// FreeCacheStore 基于 freecache 的进程内缓存，容量满时淘汰旧数据
type FreeCacheStore[K, V any] struct {
	cache           *freecache.Cache
	defaultTTL      time.Duration
	keySerializer   serializer.Serializer[K, []byte]
	valueSerializer serializer.Serializer[V, []byte]
}

func NewFreeCacheStoreWithOptions[K, V any](options *FreeCacheStoreOptions) (*FreeCacheStore[K, V], error) {
	keySerializer, valueSerializer, err := newSerializers[K, V](options.KeyCodec, options.ValCodec)
	if err != nil {
		return nil, err
	}

	return &FreeCacheStore[K, V]{
		cache:           freecache.NewCache(options.Size),
		defaultTTL:      options.DefaultTTL,
		keySerializer:   keySerializer,
		valueSerializer: valueSerializer,
	}, nil
}

func (s *FreeCacheStore[K, V]) Set(ctx context.Context, key K, value V) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return err
	}

	valueBytes, err := s.valueSerializer.Serialize(value)
	if err != nil {
		return err
	}

	return s.cache.Set(keyBytes, valueBytes, int(s.defaultTTL.Seconds()))
}

func (s *FreeCacheStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V

	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return zero, err
	}

	valueBytes, err := s.cache.Get(keyBytes)
	if err != nil {
		return zero, ErrKeyNotFound
	}

	return s.valueSerializer.Deserialize(valueBytes)
}

func (s *FreeCacheStore[K, V]) Del(ctx context.Context, key K) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return err
	}

	s.cache.Del(keyBytes)
	return nil
}

func (s *FreeCacheStore[K, V]) BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error) {
	if len(keys) != len(vals) {
		return nil, errors.New("keys and vals length mismatch")
	}

	errs := make([]error, len(keys))
	for i := range keys {
		errs[i] = s.Set(ctx, keys[i], vals[i])
	}
	return errs, nil
}

// HitRate 命中率
func (s *FreeCacheStore[K, V]) HitRate() float64 {
	return s.cache.HitRate()
}

func (s *FreeCacheStore[K, V]) Close() error {
	s.cache.Clear()
	return nil
}
