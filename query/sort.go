package query

import (
	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// Sort 排序方向
type Sort int

const (
	Ascending Sort = iota
	Descending
)

func (s Sort) String() string {
	if s == Descending {
		return "DESC"
	}
	return "ASC"
}

var (
	sortKinds     = []schema.Kind{schema.KindInteger, schema.KindBool, schema.KindFloat, schema.KindDouble, schema.KindString, schema.KindDate}
	distinctKinds = []schema.Kind{schema.KindInteger, schema.KindBool, schema.KindString, schema.KindDate}
)

// SortDescriptor 编译后的排序条件，只包含表本身的列
type SortDescriptor struct {
	Table  string
	Fields []string
	Keys   []engine.SortKey
}

// DistinctDescriptor 编译后的去重条件
type DistinctDescriptor struct {
	Table   string
	Fields  []string
	Columns []int
}

// CompileSort fields 与 orders 必须非空且长度相同，不支持跨链接排序
func CompileSort(r *Resolver, table string, fields []string, orders []Sort) (*SortDescriptor, error) {
	if len(fields) == 0 || len(orders) == 0 {
		return nil, errors.Wrap(ErrArityMismatch, "non-empty field names and sort orders must be provided")
	}
	if len(fields) != len(orders) {
		return nil, errors.Wrapf(ErrArityMismatch, "%d field names but %d sort orders", len(fields), len(orders))
	}

	desc := &SortDescriptor{
		Table:  table,
		Fields: append([]string(nil), fields...),
		Keys:   make([]engine.SortKey, len(fields)),
	}
	for i, field := range fields {
		col, _, err := r.ResolveColumn(table, field, sortKinds...)
		if err != nil {
			return nil, errors.WithMessage(err, "sort")
		}
		desc.Keys[i] = engine.SortKey{Column: col, Ascending: orders[i] != Descending}
	}
	return desc, nil
}

// CompileDistinct 去重列必须建立索引
func CompileDistinct(r *Resolver, table string, fields []string) (*DistinctDescriptor, error) {
	if len(fields) == 0 {
		return nil, errors.Wrap(ErrArityMismatch, "non-empty field names must be provided")
	}

	desc := &DistinctDescriptor{
		Table:   table,
		Fields:  append([]string(nil), fields...),
		Columns: make([]int, len(fields)),
	}
	for i, field := range fields {
		col, _, err := r.ResolveColumn(table, field, distinctKinds...)
		if err != nil {
			return nil, errors.WithMessage(err, "distinct")
		}
		if !r.view.IsIndexed(table, col) {
			return nil, errors.Wrapf(ErrTypeMismatch, "distinct: field '%s' must be indexed", field)
		}
		desc.Columns[i] = col
	}
	return desc, nil
}
