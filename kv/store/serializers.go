package store

import (
	"github.com/hatlonely/odb/kv/serializer"
	"github.com/pkg/errors"
)

// newSerializers 构造键和值的序列化器
func newSerializers[K, V any](keyCodec, valCodec string) (serializer.Serializer[K, []byte], serializer.Serializer[V, []byte], error) {
	keySerializer, err := serializer.NewByteSerializer[K](keyCodec)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "create key serializer failed")
	}
	valSerializer, err := serializer.NewByteSerializer[V](valCodec)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "create value serializer failed")
	}
	return keySerializer, valSerializer, nil
}
