package serializer

import (
	"github.com/pkg/errors"
)

// RawSerializer 不做编码，只支持 string 和 []byte
type RawSerializer[T any] struct{}

func NewRawSerializer[T any]() *RawSerializer[T] {
	return &RawSerializer[T]{}
}

func (s *RawSerializer[T]) Serialize(from T) ([]byte, error) {
	switch v := any(from).(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.Errorf("raw serializer does not support %T", from)
}

func (s *RawSerializer[T]) Deserialize(to []byte) (T, error) {
	var result T
	switch p := any(&result).(type) {
	case *[]byte:
		*p = append([]byte(nil), to...)
	case *string:
		*p = string(to)
	default:
		return result, errors.Errorf("raw serializer does not support %T", result)
	}
	return result, nil
}
