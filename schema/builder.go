package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Tabler 自定义结构体对应的表名
type Tabler interface {
	TableName() string
}

// Builder 表定义构建器
type Builder struct{}

// NewBuilder 创建新的表定义构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// FromStruct 从结构体构建 Table
// 支持的 tag 格式：
// - `odb:"column_name,type=string,index,required,primary"`
// - `odb:"-"` 忽略字段
// 表名优先使用 TableName() 方法，否则使用结构体名的小写形式
func (b *Builder) FromStruct(v any) (*Table, error) {
	rt := indirectType(reflect.TypeOf(v))
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected struct, got %T", v)
	}

	var columns []Column
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("odb")
		if tag == "-" {
			continue
		}

		column, err := b.parseField(field, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to parse field %s: %v", field.Name, err)
		}
		columns = append(columns, column)
	}

	return NewTable(TableNameOf(rt), columns...)
}

// TableNameOf 获取结构体类型对应的表名
func TableNameOf(rt reflect.Type) string {
	rt = indirectType(rt)
	if rt == nil {
		return ""
	}
	if tabler, ok := reflect.New(rt).Interface().(Tabler); ok {
		if name := tabler.TableName(); name != "" {
			return name
		}
	}
	return strings.ToLower(rt.Name())
}

// ColumnName 获取结构体字段对应的列名，字段被忽略时返回空字符串
func ColumnName(field reflect.StructField) string {
	tag := field.Tag.Get("odb")
	if tag == "-" {
		return ""
	}
	if name := strings.TrimSpace(strings.Split(tag, ",")[0]); name != "" && !strings.Contains(name, "=") {
		return name
	}
	return field.Name
}

// parseField 解析字段的 odb tag
func (b *Builder) parseField(field reflect.StructField, tag string) (Column, error) {
	column, err := b.inferColumn(field.Type)
	if err != nil {
		return Column{}, err
	}
	column.Name = ColumnName(field)

	parts := strings.Split(tag, ",")
	if len(parts) > 0 && !strings.Contains(parts[0], "=") {
		parts = parts[1:]
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if key, value, ok := strings.Cut(part, "="); ok {
			switch strings.TrimSpace(key) {
			case "type":
				column.Kind = Kind(strings.TrimSpace(value))
			case "link":
				column.Target = strings.TrimSpace(value)
			default:
				return Column{}, fmt.Errorf("unknown tag option %q", key)
			}
			continue
		}

		switch part {
		case "required", "not_null":
			column.Nullable = false
		case "nullable":
			column.Nullable = true
		case "index":
			column.Indexed = true
		case "primary", "pk":
			column.Primary = true
			column.Indexed = true
			column.Nullable = false
		default:
			return Column{}, fmt.Errorf("unknown tag option %q", part)
		}
	}

	return column, nil
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

// inferColumn 从 Go 类型推断列类型，指针类型可以为空
func (b *Builder) inferColumn(t reflect.Type) (Column, error) {
	nullable := false
	if t.Kind() == reflect.Ptr {
		nullable = true
		t = t.Elem()
	}

	switch {
	case t == timeType:
		return Column{Kind: KindDate, Nullable: nullable}, nil
	case t == bytesType:
		return Column{Kind: KindBinary, Nullable: true}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return Column{Kind: KindString, Nullable: true}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return Column{Kind: KindInteger, Nullable: nullable}, nil
	case reflect.Float32:
		return Column{Kind: KindFloat, Nullable: nullable}, nil
	case reflect.Float64:
		return Column{Kind: KindDouble, Nullable: nullable}, nil
	case reflect.Bool:
		return Column{Kind: KindBool, Nullable: nullable}, nil
	case reflect.Struct:
		return Column{Kind: KindObject, Nullable: true, Target: TableNameOf(t)}, nil
	case reflect.Slice:
		elem := indirectType(t.Elem())
		if elem.Kind() == reflect.Struct && elem != timeType {
			return Column{Kind: KindList, Target: TableNameOf(elem)}, nil
		}
	}

	return Column{}, fmt.Errorf("unsupported type %v", t)
}

// FromTables 从表定义列表构建 schema，用于从持久化快照恢复
func FromTables(tables []*Table) (*Schema, error) {
	s := New()
	for _, t := range tables {
		t.reindex()
		if err := s.AddTable(t); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
