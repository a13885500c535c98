package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SortKey 排序列及方向
type SortKey struct {
	Column    int
	Ascending bool
}

// Sort 稳定排序，升序时空值在前，相等的行保持原有顺序
func (s *Snapshot) Sort(name string, rows []int, keys []SortKey) ([]int, error) {
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.Column < 0 || k.Column >= len(t.columns) {
			return nil, errors.Wrapf(ErrColumnNotFound, "table %s column #%d", name, k.Column)
		}
	}

	sorted := append([]int(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		for _, k := range keys {
			cmp := CompareForSort(t.value(sorted[i], k.Column), t.value(sorted[j], k.Column))
			if cmp == 0 {
				continue
			}
			if k.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return sorted, nil
}

// Distinct 按当前顺序保留每组列值的第一行
func (s *Snapshot) Distinct(name string, rows []int, columns []int) ([]int, error) {
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		if col < 0 || col >= len(t.columns) {
			return nil, errors.Wrapf(ErrColumnNotFound, "table %s column #%d", name, col)
		}
	}

	seen := make(map[string]struct{}, len(rows))
	result := make([]int, 0, len(rows))
	for _, row := range rows {
		var sb strings.Builder
		for _, col := range columns {
			sb.WriteString(distinctKey(t.value(row, col)))
			sb.WriteByte(0)
		}
		key := sb.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, row)
	}
	return result, nil
}

func distinctKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "n"
	case string:
		return "s" + strconv.Quote(x)
	case time.Time:
		return "t" + strconv.FormatInt(x.UnixNano(), 10)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

// CompareForSort 排序比较，空值最小，字符串按 Collate 比较
func CompareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if x, ok := a.(string); ok {
		if y, ok := b.(string); ok {
			return Collate(x, y)
		}
	}
	cmp, _ := compareValues(a, b)
	return cmp
}

// Collate 拉丁字符先按忽略大小写比较，再以大写在前区分大小写；
// 只要一对字符中有一个码点超出拉丁范围，这对字符视为相等
func Collate(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	tie := 0
	for i := 0; i < len(ra) && i < len(rb); i++ {
		x, y := ra[i], rb[i]
		if x >= latinLimit || y >= latinLimit {
			continue
		}
		fx, fy := FoldCase(string(x)), FoldCase(string(y))
		if fx != fy {
			return strings.Compare(fx, fy)
		}
		if tie == 0 && x != y {
			tie = compareOrdered(int64(x), int64(y))
		}
	}
	switch {
	case len(ra) < len(rb):
		return -1
	case len(ra) > len(rb):
		return 1
	}
	return tie
}
