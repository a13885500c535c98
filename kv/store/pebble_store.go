package store

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/hatlonely/odb/kv/serializer"
	"github.com/pkg/errors"
)

type PebbleStoreOptions struct {
	// DBPath 是数据库目录，不存在时自动创建
	DBPath string `cfg:"dbPath"`

	// 键和值的编码
	KeyCodec string `cfg:"keyCodec"`
	ValCodec string `cfg:"valCodec"`

	// CacheSize 块缓存大小，单位字节，0 使用 pebble 默认值
	CacheSize int64 `cfg:"cacheSize"`

	// MemTableSize 内存表大小，0 使用 pebble 默认值
	MemTableSize int64 `cfg:"memTableSize"`

	// DisableWAL 关闭预写日志
	DisableWAL bool `cfg:"disableWAL"`

	// SetWithoutSync 写入时不等待 fsync
	SetWithoutSync bool `cfg:"setWithoutSync"`

	// ReadOnly 以只读模式打开
	ReadOnly bool `cfg:"readOnly"`
}

type PebbleStore[K, V any] struct {
	db            *pebble.DB
	keyMarshaller serializer.Serializer[K, []byte]
	valMarshaller serializer.Serializer[V, []byte]
	setOptions    *pebble.WriteOptions
}

func NewPebbleStoreWithOptions[K, V any](options *PebbleStoreOptions) (*PebbleStore[K, V], error) {
	if options.DBPath == "" {
		return nil, errors.New("dbPath is required")
	}

	keySerializer, valSerializer, err := newSerializers[K, V](options.KeyCodec, options.ValCodec)
	if err != nil {
		return nil, err
	}

	pebbleOptions := &pebble.Options{
		DisableWAL: options.DisableWAL,
		ReadOnly:   options.ReadOnly,
	}
	if options.MemTableSize > 0 {
		pebbleOptions.MemTableSize = uint64(options.MemTableSize)
	}
	if options.CacheSize > 0 {
		cache := pebble.NewCache(options.CacheSize)
		defer cache.Unref()
		pebbleOptions.Cache = cache
	}

	db, err := pebble.Open(options.DBPath, pebbleOptions)
	if err != nil {
		return nil, errors.Wrap(err, "pebble.Open failed")
	}

	setOptions := pebble.Sync
	if options.SetWithoutSync {
		setOptions = pebble.NoSync
	}

	return &PebbleStore[K, V]{
		db:            db,
		keyMarshaller: keySerializer,
		valMarshaller: valSerializer,
		setOptions:    setOptions,
	}, nil
}

func (s *PebbleStore[K, V]) Set(ctx context.Context, key K, value V) error {
	keyBytes, err := s.keyMarshaller.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "marshal key failed")
	}
	valueBytes, err := s.valMarshaller.Serialize(value)
	if err != nil {
		return errors.Wrap(err, "marshal value failed")
	}
	return errors.Wrap(s.db.Set(keyBytes, valueBytes, s.setOptions), "pebble set failed")
}

func (s *PebbleStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zeroV V

	keyBytes, err := s.keyMarshaller.Serialize(key)
	if err != nil {
		return zeroV, errors.Wrap(err, "marshal key failed")
	}

	data, closer, err := s.db.Get(keyBytes)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return zeroV, ErrKeyNotFound
		}
		return zeroV, errors.Wrap(err, "pebble get failed")
	}
	// closer 关闭后 data 不再有效
	valueBytes := make([]byte, len(data))
	copy(valueBytes, data)
	if err := closer.Close(); err != nil {
		return zeroV, errors.Wrap(err, "pebble closer failed")
	}

	value, err := s.valMarshaller.Deserialize(valueBytes)
	if err != nil {
		return zeroV, errors.Wrap(err, "unmarshal value failed")
	}
	return value, nil
}

func (s *PebbleStore[K, V]) Del(ctx context.Context, key K) error {
	keyBytes, err := s.keyMarshaller.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "marshal key failed")
	}
	return errors.Wrap(s.db.Delete(keyBytes, s.setOptions), "pebble delete failed")
}

// BatchSet 通过 pebble.Batch 原子写入
func (s *PebbleStore[K, V]) BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error) {
	if len(keys) != len(vals) {
		return nil, errors.New("keys and values length mismatch")
	}

	errs := make([]error, len(keys))
	batch := s.db.NewBatch()
	defer batch.Close()

	for i, key := range keys {
		keyBytes, err := s.keyMarshaller.Serialize(key)
		if err != nil {
			errs[i] = errors.Wrap(err, "marshal key failed")
			continue
		}
		valueBytes, err := s.valMarshaller.Serialize(vals[i])
		if err != nil {
			errs[i] = errors.Wrap(err, "marshal value failed")
			continue
		}
		if err := batch.Set(keyBytes, valueBytes, nil); err != nil {
			errs[i] = errors.Wrap(err, "batch set failed")
		}
	}

	if err := batch.Commit(s.setOptions); err != nil {
		return errs, errors.Wrap(err, "pebble batch commit failed")
	}
	return errs, nil
}

func (s *PebbleStore[K, V]) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close database failed")
	}
	s.db = nil
	return nil
}
