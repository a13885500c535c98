package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrConditionFailed = errors.New("condition failed")
)

// Store KV 存储相关接口
type Store[K, V any] interface {
	// Set 设置键值对
	Set(ctx context.Context, key K, value V) error
	// Get 获取键对应的值，键不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key K) (V, error)
	// Del 删除键，键不存在时也返回成功
	Del(ctx context.Context, key K) error
	// BatchSet 在一次写入中设置多个键值对，返回每个键的操作结果
	BatchSet(ctx context.Context, keys []K, vals []V) ([]error, error)
	Close() error
}

// Options 存储配置，Type 选择具体的存储实现
type Options struct {
	// 存储类型：memory, boltdb, leveldb, pebble
	Type string `cfg:"type" def:"memory" validate:"omitempty,oneof=memory boltdb leveldb pebble"`

	// 数据库路径，memory 以外的类型必填
	Path string `cfg:"path"`

	// 键和值的编码：msgpack, json, bson, raw
	KeyCodec string `cfg:"keyCodec" def:"raw"`
	ValCodec string `cfg:"valCodec" def:"raw"`

	BoltDB  BoltDBStoreOptions  `cfg:"boltdb"`
	LevelDB LevelDBStoreOptions `cfg:"leveldb"`
	Pebble  PebbleStoreOptions  `cfg:"pebble"`
}

// NewStoreWithOptions 根据 Type 创建存储
func NewStoreWithOptions[K comparable, V any](options *Options) (Store[K, V], error) {
	if options == nil {
		return NewMapStore[K, V](), nil
	}

	switch strings.ToLower(options.Type) {
	case "", "memory", "map":
		return NewMapStore[K, V](), nil
	case "boltdb", "bolt":
		opts := options.BoltDB
		opts.DBPath = firstNonEmpty(opts.DBPath, options.Path)
		opts.KeyCodec = firstNonEmpty(opts.KeyCodec, options.KeyCodec)
		opts.ValCodec = firstNonEmpty(opts.ValCodec, options.ValCodec)
		return NewBoltDBStoreWithOptions[K, V](&opts)
	case "leveldb":
		opts := options.LevelDB
		opts.DBPath = firstNonEmpty(opts.DBPath, options.Path)
		opts.KeyCodec = firstNonEmpty(opts.KeyCodec, options.KeyCodec)
		opts.ValCodec = firstNonEmpty(opts.ValCodec, options.ValCodec)
		return NewLevelDBStoreWithOptions[K, V](&opts)
	case "pebble":
		opts := options.Pebble
		opts.DBPath = firstNonEmpty(opts.DBPath, options.Path)
		opts.KeyCodec = firstNonEmpty(opts.KeyCodec, options.KeyCodec)
		opts.ValCodec = firstNonEmpty(opts.ValCodec, options.ValCodec)
		return NewPebbleStoreWithOptions[K, V](&opts)
	}
	return nil, errors.Errorf("unsupported store type: %s", options.Type)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
