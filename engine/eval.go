package engine

import (
	"bytes"
	"strings"
	"time"
	"unicode"

	"github.com/hatlonely/odb/predicate"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// latinLimit 大小写折叠和排序只对该码点以下的字符有定义
const latinLimit = 0x250

func (s *Snapshot) match(node predicate.Node, row int) (bool, error) {
	switch n := node.(type) {
	case predicate.True:
		return true, nil
	case *predicate.Comparison:
		return s.matchComparison(n, row), nil
	case *predicate.And:
		for _, child := range n.Children {
			ok, err := s.match(child, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case *predicate.Or:
		for _, child := range n.Children {
			ok, err := s.match(child, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return len(n.Children) == 0, nil
	case *predicate.Not:
		ok, err := s.match(n.Child, row)
		return !ok, err
	}
	return false, errors.Wrapf(ErrUnsupportedNode, "%T", node)
}

// collect 沿字段路径收集终点的值。空的单对象链接贡献一个 nil，多对象链接展开为多个值
func (s *Snapshot) collect(path schema.FieldPath, row int) []any {
	current := []int{row}
	var values []any

	last := len(path.Hops) - 1
	for _, hop := range path.Hops[:last] {
		t := s.tables[hop.Table]
		var next []int
		for _, r := range current {
			if t == nil || !t.isLive(r) {
				continue
			}
			switch v := t.value(r, hop.Column).(type) {
			case nil:
				values = append(values, nil)
			case int64:
				next = append(next, int(v))
			case []int64:
				for _, target := range v {
					next = append(next, int(target))
				}
			}
		}
		current = next
	}

	terminal := path.Hops[last]
	t := s.tables[terminal.Table]
	for _, r := range current {
		if t != nil && t.isLive(r) {
			values = append(values, t.value(r, terminal.Column))
		}
	}
	return values
}

func (s *Snapshot) matchComparison(c *predicate.Comparison, row int) bool {
	if len(c.Path.Hops) == 0 {
		return false
	}
	values := s.collect(c.Path, row)

	switch c.Op {
	case predicate.OpIsNull:
		for _, v := range values {
			if v == nil {
				return true
			}
		}
		return false
	case predicate.OpIsNotNull:
		for _, v := range values {
			if v != nil {
				return true
			}
		}
		return false
	case predicate.OpIsEmpty, predicate.OpIsNotEmpty:
		for _, v := range values {
			if v == nil {
				continue
			}
			if empty := length(v) == 0; empty == (c.Op == predicate.OpIsEmpty) {
				return true
			}
		}
		return false
	}

	for _, v := range values {
		if matchValue(c, v) {
			return true
		}
	}
	return false
}

func matchValue(c *predicate.Comparison, v any) bool {
	if v == nil {
		return c.Op == predicate.OpNotEqual && c.Value != nil
	}

	insensitive := c.Case == predicate.CaseInsensitive
	switch c.Op {
	case predicate.OpEqual:
		return equalValues(v, c.Value, insensitive)
	case predicate.OpNotEqual:
		return !equalValues(v, c.Value, insensitive)
	case predicate.OpGreater, predicate.OpGreaterEqual, predicate.OpLess, predicate.OpLessEqual:
		cmp, ok := compareValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case predicate.OpGreater:
			return cmp > 0
		case predicate.OpGreaterEqual:
			return cmp >= 0
		case predicate.OpLess:
			return cmp < 0
		}
		return cmp <= 0
	case predicate.OpBetween:
		lower, ok1 := compareValues(v, c.Value)
		upper, ok2 := compareValues(v, c.Upper)
		return ok1 && ok2 && lower >= 0 && upper <= 0
	case predicate.OpContains, predicate.OpBeginsWith, predicate.OpEndsWith:
		str, ok1 := v.(string)
		sub, ok2 := c.Value.(string)
		if !ok1 || !ok2 {
			return false
		}
		if insensitive {
			str, sub = FoldCase(str), FoldCase(sub)
		}
		switch c.Op {
		case predicate.OpContains:
			return strings.Contains(str, sub)
		case predicate.OpBeginsWith:
			return strings.HasPrefix(str, sub)
		}
		return strings.HasSuffix(str, sub)
	}
	return false
}

// FoldCase 拉丁字符转小写，其余字符保持不变
func FoldCase(s string) string {
	return strings.Map(func(r rune) rune {
		if r < latinLimit {
			return unicode.ToLower(r)
		}
		return r
	}, s)
}

func length(v any) int {
	switch val := v.(type) {
	case string:
		return len(val)
	case []byte:
		return len(val)
	case []int64:
		return len(val)
	}
	return -1
}

func equalValues(a, b any, insensitive bool) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return false
		}
		if insensitive {
			return FoldCase(x) == FoldCase(y)
		}
		return x == y
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []int64:
		return false
	}
	return a == b
}

// compareValues 比较同类型的两个值，类型不同或不可比较时返回 false
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		return compareOrdered(x, y), ok
	case float32:
		y, ok := b.(float32)
		return compareOrdered(x, y), ok
	case float64:
		y, ok := b.(float64)
		return compareOrdered(x, y), ok
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case []byte:
		y, ok := b.([]byte)
		return bytes.Compare(x, y), ok
	case time.Time:
		y, ok := b.(time.Time)
		return x.Compare(y), ok
	case bool:
		y, ok := b.(bool)
		return compareBool(x, y), ok
	}
	return 0, false
}

type ordered interface {
	~int64 | ~float32 | ~float64
}

func compareOrdered[T ordered](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareBool(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	}
	return 1
}
