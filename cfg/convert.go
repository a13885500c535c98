package cfg

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func reflectValue(v any) reflect.Value {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.Elem()
	}
	return rv
}

// convertValue 将解析出的通用数据写入目标值
func convertValue(src any, dst reflect.Value) error {
	srcValue := reflect.ValueOf(src)
	if !srcValue.IsValid() {
		return nil
	}
	if !dst.CanSet() {
		return errors.Errorf("destination %v is not settable", dst.Type())
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	switch dst.Type() {
	case durationType:
		return convertToDuration(srcValue, dst)
	case timeType:
		return convertToTime(srcValue, dst)
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}

	switch dst.Kind() {
	case reflect.Map:
		return convertToMap(srcValue, dst)
	case reflect.Slice:
		return convertToSlice(srcValue, dst)
	case reflect.Struct:
		return convertToStruct(srcValue, dst)
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(srcValue)
			return nil
		}
	case reflect.String:
		// 只接受字符串，避免数字被转换为码点
		if srcValue.Kind() != reflect.String {
			return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
		}
		dst.SetString(srcValue.String())
		return nil
	}

	if srcValue.Type().ConvertibleTo(dst.Type()) {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}
	return errors.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
}

// convertToDuration 字符串按 time.ParseDuration 解析，整数视为纳秒，浮点数视为秒
func convertToDuration(src, dst reflect.Value) error {
	switch src.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(src.String())
		if err != nil {
			return errors.Wrapf(err, "parse duration %q failed", src.String())
		}
		dst.SetInt(int64(d))
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.SetInt(src.Int())
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetInt(int64(src.Uint()))
		return nil
	case reflect.Float32, reflect.Float64:
		dst.SetInt(int64(src.Float() * float64(time.Second)))
		return nil
	}
	return errors.Errorf("cannot convert %v to time.Duration", src.Type())
}

// convertToTime 字符串支持常见格式，数字视为 Unix 秒
func convertToTime(src, dst reflect.Value) error {
	if src.Type() == timeType {
		dst.Set(src)
		return nil
	}
	switch src.Kind() {
	case reflect.String:
		for _, format := range timeFormats {
			if t, err := time.Parse(format, src.String()); err == nil {
				dst.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return errors.Errorf("parse time %q failed", src.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		dst.Set(reflect.ValueOf(time.Unix(src.Int(), 0)))
		return nil
	case reflect.Float32, reflect.Float64:
		sec := src.Float()
		dst.Set(reflect.ValueOf(time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9))))
		return nil
	}
	return errors.Errorf("cannot convert %v to time.Time", src.Type())
}

func convertToMap(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}
	for _, key := range src.MapKeys() {
		val := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(src.MapIndex(key).Interface(), val); err != nil {
			return errors.WithMessagef(err, "key %v", key.Interface())
		}

		k := reflect.ValueOf(key.Interface())
		if !k.Type().AssignableTo(dst.Type().Key()) {
			if !k.Type().ConvertibleTo(dst.Type().Key()) {
				return errors.Errorf("cannot convert key %v to %v", k.Type(), dst.Type().Key())
			}
			k = k.Convert(dst.Type().Key())
		}
		dst.SetMapIndex(k, val)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}
	n := src.Len()
	dst.Set(reflect.MakeSlice(dst.Type(), n, n))
	for i := 0; i < n; i++ {
		if err := convertValue(src.Index(i).Interface(), dst.Index(i)); err != nil {
			return errors.WithMessagef(err, "index %d", i)
		}
	}
	return nil
}

func convertToStruct(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return errors.Errorf("cannot convert %v to %v", src.Type(), dst.Type())
	}

	keys := make(map[string]reflect.Value, src.Len())
	for _, key := range src.MapKeys() {
		if name, ok := key.Interface().(string); ok {
			keys[strings.ToLower(name)] = src.MapIndex(key)
		}
	}

	rt := dst.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := FieldName(field)
		if name == "-" {
			continue
		}
		val, ok := keys[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := convertValue(val.Interface(), dst.Field(i)); err != nil {
			return errors.WithMessagef(err, "field %s", name)
		}
	}
	return nil
}

// FieldName 结构体字段在配置中的名称，依次取 cfg、json、yaml tag，都没有时使用字段名
func FieldName(field reflect.StructField) string {
	for _, tag := range []string{"cfg", "json", "yaml"} {
		if name := strings.Split(field.Tag.Get(tag), ",")[0]; name != "" {
			return name
		}
	}
	return field.Name
}
