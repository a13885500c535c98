package schema

import (
	"fmt"
)

// Column 列定义
type Column struct {
	Name     string `msgpack:"name" json:"name" bson:"name"`
	Kind     Kind   `msgpack:"kind" json:"kind" bson:"kind"`
	Nullable bool   `msgpack:"nullable" json:"nullable" bson:"nullable"`
	Indexed  bool   `msgpack:"indexed" json:"indexed" bson:"indexed"`
	Primary  bool   `msgpack:"primary" json:"primary" bson:"primary"`
	Target   string `msgpack:"target,omitempty" json:"target,omitempty" bson:"target,omitempty"` // 链接列的目标表
}

// Table 表定义，创建后不可修改
type Table struct {
	Name    string   `msgpack:"name" json:"name" bson:"name"`
	Columns []Column `msgpack:"columns" json:"columns" bson:"columns"`

	index map[string]int
}

// NewTable 创建表定义，校验列名唯一、类型合法、链接列声明目标表
func NewTable(name string, columns ...Column) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table name cannot be empty")
	}

	t := &Table{
		Name:    name,
		Columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for _, c := range columns {
		if err := t.addColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNewTable 同 NewTable，出错时 panic
func MustNewTable(name string, columns ...Column) *Table {
	t, err := NewTable(name, columns...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) addColumn(c Column) error {
	if c.Name == "" {
		return fmt.Errorf("table %s: column name cannot be empty", t.Name)
	}
	if _, ok := t.index[c.Name]; ok {
		return fmt.Errorf("table %s: duplicate column %s", t.Name, c.Name)
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("table %s: column %s has invalid kind %q", t.Name, c.Name, c.Kind)
	}

	switch c.Kind {
	case KindObject:
		if c.Target == "" {
			return fmt.Errorf("table %s: link column %s has no target", t.Name, c.Name)
		}
		// 单对象链接总是可以为空
		c.Nullable = true
	case KindList:
		if c.Target == "" {
			return fmt.Errorf("table %s: list column %s has no target", t.Name, c.Name)
		}
		c.Nullable = false
	default:
		c.Target = ""
	}

	t.index[c.Name] = len(t.Columns)
	t.Columns = append(t.Columns, c)
	return nil
}

// reindex 反序列化后重建列名索引
func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c.Name] = i
	}
}

// ColumnIndex 根据列名查找列序号
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Column 返回指定序号的列，序号越界时返回零值
func (t *Table) Column(i int) Column {
	if i < 0 || i >= len(t.Columns) {
		return Column{}
	}
	return t.Columns[i]
}

func (t *Table) NumColumns() int {
	return len(t.Columns)
}
