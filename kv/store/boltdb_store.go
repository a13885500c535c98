package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hatlonely/odb/kv/serializer"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

type BoltDBStoreOptions struct {
	// DBPath 是数据库文件的路径，文件不存在时自动创建
	DBPath string `cfg:"dbPath"`

	// 键和值的编码
	KeyCodec string `cfg:"keyCodec"`
	ValCodec string `cfg:"valCodec"`

	// Timeout 是获取文件锁的等待时间。
	// 设置为零时将无限期等待。此选项仅在 Darwin 和 Linux 上可用。
	Timeout time.Duration `cfg:"timeout" def:"1s"`

	// 不将 freelist 同步到磁盘。这在正常操作下提高了数据库写入性能，
	// 但在恢复期间需要完全重新同步数据库。
	NoFreelistSync bool `cfg:"noFreelistSync"`

	// 以只读模式打开数据库
	ReadOnly bool `cfg:"readOnly"`

	// NoSync 跳过每次提交后的 fsync
	NoSync bool `cfg:"noSync"`

	// 默认桶名称
	BucketName string `cfg:"bucketName"`
}

type BoltDBStore[K, V any] struct {
	db            *bolt.DB
	keySerializer serializer.Serializer[K, []byte]
	valSerializer serializer.Serializer[V, []byte]
	bucketName    []byte
}

func NewBoltDBStoreWithOptions[K, V any](options *BoltDBStoreOptions) (*BoltDBStore[K, V], error) {
	if options.DBPath == "" {
		return nil, errors.New("dbPath is required")
	}

	keySerializer, valSerializer, err := newSerializers[K, V](options.KeyCodec, options.ValCodec)
	if err != nil {
		return nil, err
	}

	directory := filepath.Dir(options.DBPath)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, errors.Wrapf(err, "os.MkdirAll failed. directory: %s", directory)
	}

	db, err := bolt.Open(options.DBPath, 0600, &bolt.Options{
		Timeout:        options.Timeout,
		NoFreelistSync: options.NoFreelistSync,
		ReadOnly:       options.ReadOnly,
		NoSync:         options.NoSync,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "bolt.Open failed. dbPath: %s", options.DBPath)
	}

	// 设置默认桶名称
	bucketName := "default"
	if options.BucketName != "" {
		bucketName = options.BucketName
	}

	store := &BoltDBStore[K, V]{
		db:            db,
		keySerializer: keySerializer,
		valSerializer: valSerializer,
		bucketName:    []byte(bucketName),
	}

	if !options.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(store.bucketName)
			return err
		})
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "create bucket failed")
		}
	}

	return store, nil
}

func (s *BoltDBStore[K, V]) Set(ctx context.Context, key K, value V) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "marshal key failed")
	}

	valueBytes, err := s.valSerializer.Serialize(value)
	if err != nil {
		return errors.Wrap(err, "marshal value failed")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return errors.New("bucket not found")
		}
		return bucket.Put(keyBytes, valueBytes)
	})
}

func (s *BoltDBStore[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zeroV V

	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return zeroV, errors.Wrap(err, "marshal key failed")
	}

	var valueBytes []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return ErrKeyNotFound
		}

		data := bucket.Get(keyBytes)
		if data == nil {
			return ErrKeyNotFound
		}

		// 复制数据，因为 BoltDB 会重用内存
		valueBytes = make([]byte, len(data))
		copy(valueBytes, data)
		return nil
	})
	if err != nil {
		return zeroV, err
	}

	value, err := s.valSerializer.Deserialize(valueBytes)
	if err != nil {
		return zeroV, errors.Wrap(err, "unmarshal value failed")
	}
	return value, nil
}

func (s *BoltDBStore[K, V]) Del(ctx context.Context, key K) error {
	keyBytes, err := s.keySerializer.Serialize(key)
	if err != nil {
		return errors.Wrap(err, "marshal key failed")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return errors.New("bucket not found")
		}
		return bucket.Delete(keyBytes)
	})
}

// BatchSet 所有键在同一个 bolt 事务中写入
func (s *BoltDBStore[K, V]) BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error) {
	if len(keys) != len(vals) {
		return nil, errors.New("keys and values length mismatch")
	}

	errs := make([]error, len(keys))
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.bucketName)
		if bucket == nil {
			return errors.New("bucket not found")
		}

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

			if err := bucket.Put(keyBytes, valueBytes); err != nil {
				errs[i] = errors.Wrap(err, "put failed")
			}
		}
		return nil
	})

	return errs, err
}

func (s *BoltDBStore[K, V]) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close database failed")
	}
	// 标记数据库已关闭，防止重复关闭
	s.db = nil
	return nil
}
