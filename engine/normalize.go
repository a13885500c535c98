package engine

import (
	"math"
	"reflect"
	"time"

	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// Normalize 将 Go 值转换为列类型的存储表示
//
//	int -> int64, float -> float32, double -> float64, date -> time.Time,
//	binary -> []byte(副本), object -> int64 行号, list -> []int64 行号
//
// nil 和空指针返回 nil，是否允许为空由调用方判断
func Normalize(kind schema.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	v = rv.Interface()

	switch kind {
	case schema.KindInteger, schema.KindObject:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if rv.Uint() > math.MaxInt64 {
				return nil, errors.Wrapf(ErrInvalidValue, "%d overflows int64", rv.Uint())
			}
			return int64(rv.Uint()), nil
		}
	case schema.KindFloat:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return float32(rv.Float()), nil
		}
	case schema.KindDouble:
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		}
	case schema.KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	case schema.KindString:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case schema.KindBinary:
		if b, ok := v.([]byte); ok {
			return append([]byte{}, b...), nil
		}
		if rv.Kind() == reflect.String {
			return []byte(rv.String()), nil
		}
	case schema.KindDate:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	case schema.KindList:
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			rows := make([]int64, 0, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				row, err := Normalize(schema.KindInteger, rv.Index(i).Interface())
				if err != nil || row == nil {
					return nil, errors.Wrapf(ErrInvalidValue, "list element %d: %v", i, rv.Index(i).Interface())
				}
				rows = append(rows, row.(int64))
			}
			return rows, nil
		}
	}
	return nil, errors.Wrapf(ErrInvalidValue, "%T is not a valid %s value", v, kind)
}

// zeroValue 非空列缺省时的值
func zeroValue(kind schema.Kind) any {
	switch kind {
	case schema.KindInteger:
		return int64(0)
	case schema.KindFloat:
		return float32(0)
	case schema.KindDouble:
		return float64(0)
	case schema.KindBool:
		return false
	case schema.KindString:
		return ""
	case schema.KindBinary:
		return []byte{}
	case schema.KindDate:
		return time.Time{}
	case schema.KindList:
		return []int64{}
	}
	return nil
}
