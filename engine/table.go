package engine

import (
	"github.com/hatlonely/odb/schema"
)

// table 列式存储的一张表，删除的行只打标记以保持行号稳定
type table struct {
	def     *schema.Table
	columns [][]any
	deleted []bool
}

func newTable(def *schema.Table) *table {
	return &table{
		def:     def,
		columns: make([][]any, def.NumColumns()),
	}
}

func (t *table) rowCount() int {
	return len(t.deleted)
}

func (t *table) isLive(row int) bool {
	return row >= 0 && row < len(t.deleted) && !t.deleted[row]
}

func (t *table) value(row, col int) any {
	return t.columns[col][row]
}

// clone 复制列切片，值本身视为不可变，修改链接列表时整体替换
func (t *table) clone() *table {
	c := &table{
		def:     t.def,
		columns: make([][]any, len(t.columns)),
		deleted: append([]bool(nil), t.deleted...),
	}
	for i, col := range t.columns {
		c.columns[i] = append([]any(nil), col...)
	}
	return c
}

func (t *table) liveRows() []int {
	rows := make([]int, 0, len(t.deleted))
	for i, d := range t.deleted {
		if !d {
			rows = append(rows, i)
		}
	}
	return rows
}
