package query

import (
	"reflect"
	"time"

	"github.com/hatlonely/odb/schema"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// kindOf 推断 Go 值对应的列类型。空指针按元素类型推断，返回的 isNull 为 true；
// 无类型的 nil 返回空类型
func kindOf(v any) (kind schema.Kind, isNull bool, ok bool) {
	if v == nil {
		return "", true, true
	}
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	for rt.Kind() == reflect.Ptr {
		if rv.IsNil() {
			isNull = true
		} else if !isNull {
			rv = rv.Elem()
		}
		rt = rt.Elem()
	}

	switch rt {
	case timeType:
		return schema.KindDate, isNull, true
	case bytesType:
		return schema.KindBinary, isNull || rv.IsNil(), true
	}
	switch rt.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.KindInteger, isNull, true
	case reflect.Float32:
		return schema.KindFloat, isNull, true
	case reflect.Float64:
		return schema.KindDouble, isNull, true
	case reflect.String:
		return schema.KindString, isNull, true
	case reflect.Bool:
		return schema.KindBool, isNull, true
	}
	return "", false, false
}

var (
	rangeKinds = []schema.Kind{schema.KindInteger, schema.KindFloat, schema.KindDouble, schema.KindDate}
	emptyKinds = []schema.Kind{schema.KindString, schema.KindBinary, schema.KindList}
)

func isRangeKind(kind schema.Kind) bool {
	for _, k := range rangeKinds {
		if k == kind {
			return true
		}
	}
	return false
}
