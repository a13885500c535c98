package store

import (
	"context"

	"github.com/hatlonely/odb/kv/serializer"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

type LevelDBStoreOptions struct {
	// DBPath 是数据库目录，不存在时自动创建
	DBPath string `cfg:"dbPath"`

	// 键和值的编码
	KeyCodec string `cfg:"keyCodec"`
	ValCodec string `cfg:"valCodec"`

	// BlockCacheCapacity 定义 'sorted table' 块缓存的容量。
	//
	// 默认值是 8MiB。
	BlockCacheCapacity int `cfg:"blockCacheCapacity"`

	// Compression 压缩算法：default, none, snappy
	Compression string `cfg:"compression" validate:"omitempty,oneof=default none snappy"`

	// WriteBuffer 定义内存表的大小，默认值是 4MiB。
	WriteBuffer int `cfg:"writeBuffer"`

	// NoSync 跳过写入后的 fsync
	NoSync bool `cfg:"noSync"`

	// ReadOnly 以只读模式打开
	ReadOnly bool `cfg:"readOnly"`
}

type LevelDBStore[K, V any] struct {
	db            *leveldb.DB
	keySerializer serializer.Serializer[K, []byte]
	valSerializer serializer.Serializer[V, []byte]
	writeOptions  *opt.WriteOptions
}

func NewLevelDBStoreWithOptions[K, V any](options *LevelDBStoreOptions) (*LevelDBStore[K, V], error) {
	if options.DBPath == "" {
		return nil, errors.New("dbPath is required")
	}

	keySerializer, valSerializer, err := newSerializers[K, V](options.KeyCodec, options.ValCodec)
	if err != nil {
		return nil, err
	}

	compression, err := leveldbParseCompression(options.Compression)
	if err != nil {
		return nil, errors.WithMessage(err, "leveldbParseCompression failed")
	}

	db, err := leveldb.OpenFile(options.DBPath, &opt.Options{
		BlockCacheCapacity: options.BlockCacheCapacity,
		Compression:        compression,
		WriteBuffer:        options.WriteBuffer,
		NoSync:             options.NoSync,
		ReadOnly:           options.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrap(err, "leveldb.OpenFile failed. path: "+options.DBPath)
	}

	return &LevelDBStore[K, V]{
		db:            db,
		keySerializer: keySerializer,
		valSerializer: valSerializer,
		writeOptions:  &opt.WriteOptions{Sync: !options.NoSync},
	}, nil
}

func (s *LevelDBStore[K, V]) Set(ctx context.Context, key K, value V) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "marshal key failed")
	}
	valueBytes, err := s.valSerializer.Serialize(value)
	if err != nil {
		return errors.Wrap(err, "marshal value failed")
	}
	return errors.Wrap(s.db.Put(keyBytes, valueBytes, s.writeOptions), "leveldb put failed")
}

func (s *LevelDBStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zeroV V

	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return zeroV, errors.Wrap(err, "marshal key failed")
	}

	valueBytes, err := s.db.Get(keyBytes, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return zeroV, ErrKeyNotFound
		}
		return zeroV, errors.Wrap(err, "leveldb get failed")
	}

	value, err := s.valSerializer.Deserialize(valueBytes)
	if err != nil {
		return zeroV, errors.Wrap(err, "unmarshal value failed")
	}
	return value, nil
}

func (s *LevelDBStore[K, V]) Del(ctx context.Context, key K) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "marshal key failed")
	}
	return errors.Wrap(s.db.Delete(keyBytes, s.writeOptions), "leveldb delete failed")
}

// BatchSet 通过 leveldb.Batch 原子写入
func (s *LevelDBStore[K, V]) BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error) {
	if len(keys) != len(vals) {
		return nil, errors.New("keys and values length mismatch")
	}

	errs := make([]error, len(keys))
	batch := new(leveldb.Batch)
	for i, key := range keys {
		keyBytes, err := s.keySerializer.Serialize(key)
		if err != nil {
			errs[i] = errors.Wrap(err, "marshal key failed")
			continue
		}
		valueBytes, err := s.valSerializer.Serialize(vals[i])
		if err != nil {
			errs[i] = errors.Wrap(err, "marshal value failed")
			continue
		}
		batch.Put(keyBytes, valueBytes)
	}

	if err := s.db.Write(batch, s.writeOptions); err != nil {
		return errs, errors.Wrap(err, "leveldb write batch failed")
	}
	return errs, nil
}

func (s *LevelDBStore[K, V]) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close database failed")
	}
	s.db = nil
	return nil
}

func leveldbParseCompression(compression string) (opt.Compression, error) {
	m := map[string]opt.Compression{
		"DefaultCompression": opt.DefaultCompression,
		"NoCompression":      opt.NoCompression,
		"SnappyCompression":  opt.SnappyCompression,

		"default": opt.DefaultCompression,
		"none":    opt.NoCompression,
		"snappy":  opt.SnappyCompression,
	}

	if compression == "" {
		return opt.DefaultCompression, nil
	}

	val, ok := m[compression]
	if !ok {
		return 0, errors.Errorf("invalid compression value: %s", compression)
	}

	return val, nil
}
