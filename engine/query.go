package engine

import (
	"time"

	"github.com/hatlonely/odb/predicate"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// TableQuery 绑定到快照和作用域的谓词
type TableQuery struct {
	snap  *Snapshot
	scope Scope
	node  predicate.Node
}

func (q *TableQuery) Scope() Scope {
	return q.scope
}

func (q *TableQuery) Snapshot() *Snapshot {
	return q.snap
}

// FindAll 按作用域顺序返回所有匹配的行
func (q *TableQuery) FindAll() ([]int, error) {
	rows, err := q.snap.Rows(q.scope)
	if err != nil {
		return nil, err
	}
	matched := make([]int, 0, len(rows))
	for _, row := range rows {
		ok, err := q.snap.match(q.node, row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// Find 返回第一个匹配的行
func (q *TableQuery) Find() (int, bool, error) {
	rows, err := q.snap.Rows(q.scope)
	if err != nil {
		return 0, false, err
	}
	for _, row := range rows {
		ok, err := q.snap.match(q.node, row)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return row, true, nil
		}
	}
	return 0, false, nil
}

func (q *TableQuery) Count() (int64, error) {
	rows, err := q.FindAll()
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// values 匹配行在 col 列上的非空值
func (q *TableQuery) values(col int, kinds ...schema.Kind) (schema.Kind, []any, error) {
	name := q.scope.Table()
	t, err := q.snap.table(name)
	if err != nil {
		return "", nil, err
	}
	if col < 0 || col >= len(t.columns) {
		return "", nil, errors.Wrapf(ErrColumnNotFound, "table %s column #%d", name, col)
	}
	kind := t.def.Column(col).Kind
	supported := false
	for _, k := range kinds {
		supported = supported || k == kind
	}
	if !supported {
		return "", nil, errors.Wrapf(ErrInvalidValue, "cannot aggregate %s column %s", kind, t.def.Column(col).Name)
	}

	rows, err := q.FindAll()
	if err != nil {
		return "", nil, err
	}
	values := make([]any, 0, len(rows))
	for _, row := range rows {
		if v := t.value(row, col); v != nil {
			values = append(values, v)
		}
	}
	return kind, values, nil
}

// Sum 整数列返回 int64，浮点列返回 float64，没有值时为 0
func (q *TableQuery) Sum(col int) (any, error) {
	kind, values, err := q.values(col, schema.KindInteger, schema.KindFloat, schema.KindDouble)
	if err != nil {
		return nil, err
	}
	if kind == schema.KindInteger {
		var sum int64
		for _, v := range values {
			sum += v.(int64)
		}
		return sum, nil
	}
	var sum float64
	for _, v := range values {
		sum += toFloat64(v)
	}
	return sum, nil
}

// Average 没有值时为 0
func (q *TableQuery) Average(col int) (float64, error) {
	_, values, err := q.values(col, schema.KindInteger, schema.KindFloat, schema.KindDouble)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	var sum float64
	for _, v := range values {
		sum += toFloat64(v)
	}
	return sum / float64(len(values)), nil
}

// Min 返回列类型对应的值，没有值时返回 nil
func (q *TableQuery) Min(col int) (any, error) {
	return q.extreme(col, -1)
}

// Max 返回列类型对应的值，没有值时返回 nil
func (q *TableQuery) Max(col int) (any, error) {
	return q.extreme(col, 1)
}

func (q *TableQuery) extreme(col int, sign int) (any, error) {
	_, values, err := q.values(col, schema.KindInteger, schema.KindFloat, schema.KindDouble, schema.KindDate)
	if err != nil {
		return nil, err
	}
	var best any
	for _, v := range values {
		if best == nil {
			best = v
			continue
		}
		if cmp, ok := compareValues(v, best); ok && cmp*sign > 0 {
			best = v
		}
	}
	return best, nil
}

// MinDate 日期列的最小值
func (q *TableQuery) MinDate(col int) (*time.Time, error) {
	return q.extremeDate(col, -1)
}

// MaxDate 日期列的最大值
func (q *TableQuery) MaxDate(col int) (*time.Time, error) {
	return q.extremeDate(col, 1)
}

func (q *TableQuery) extremeDate(col int, sign int) (*time.Time, error) {
	_, values, err := q.values(col, schema.KindDate)
	if err != nil {
		return nil, err
	}
	var best *time.Time
	for _, v := range values {
		t := v.(time.Time)
		if best == nil || t.Compare(*best)*sign > 0 {
			best = &t
		}
	}
	return best, nil
}

func toFloat64(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return 0
}
