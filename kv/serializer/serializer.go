package serializer

import (
	"strings"

	"github.com/pkg/errors"
)

type Serializer[F, T any] interface {
	Serialize(from F) (T, error)
	Deserialize(to T) (F, error)
}

// 支持的编码格式
const (
	CodecMsgPack = "msgpack"
	CodecJSON    = "json"
	CodecBSON    = "bson"
	CodecRaw     = "raw"
)

// NewByteSerializer 按编码名称创建序列化器，codec 为空时使用 msgpack
func NewByteSerializer[T any](codec string) (Serializer[T, []byte], error) {
	switch strings.ToLower(codec) {
	case "", CodecMsgPack:
		return NewMsgPackSerializer[T](), nil
	case CodecJSON:
		return NewJSONSerializer[T](), nil
	case CodecBSON:
		return NewBSONSerializer[T](), nil
	case CodecRaw:
		return NewRawSerializer[T](), nil
	}
	return nil, errors.Errorf("unsupported codec: %s", codec)
}
