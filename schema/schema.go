package schema

import (
	"fmt"
	"reflect"
	"sort"
)

// View 只读的 schema 视图，查询层只通过该接口读取元数据
type View interface {
	HasTable(table string) bool
	ColumnIndex(table, name string) (int, bool)
	ColumnKind(table string, index int) Kind
	LinkTarget(table string, index int) string
	IsIndexed(table string, index int) bool
	IsNullable(table string, index int) bool
}

// Schema 表定义集合，打开数据库后不再修改
type Schema struct {
	tables map[string]*Table
	types  map[reflect.Type]string
}

func New() *Schema {
	return &Schema{
		tables: make(map[string]*Table),
		types:  make(map[reflect.Type]string),
	}
}

// FromStructs 从结构体构建 schema
func FromStructs(models ...any) (*Schema, error) {
	s := New()
	for _, m := range models {
		if _, err := s.Register(m); err != nil {
			return nil, err
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// AddTable 添加表定义
func (s *Schema) AddTable(t *Table) error {
	if t == nil {
		return fmt.Errorf("table cannot be nil")
	}
	if _, ok := s.tables[t.Name]; ok {
		return fmt.Errorf("table %s already exists", t.Name)
	}
	if t.index == nil {
		t.reindex()
	}
	s.tables[t.Name] = t
	return nil
}

// Register 从结构体注册表定义，并记录 Go 类型到表名的映射
func (s *Schema) Register(model any) (*Table, error) {
	rt := indirectType(reflect.TypeOf(model))
	if name, ok := s.types[rt]; ok {
		return s.tables[name], nil
	}

	t, err := NewBuilder().FromStruct(model)
	if err != nil {
		return nil, err
	}
	if err := s.AddTable(t); err != nil {
		return nil, err
	}
	s.types[rt] = t.Name
	return t, nil
}

// Validate 校验所有链接列的目标表都存在
func (s *Schema) Validate() error {
	for _, name := range s.TableNames() {
		t := s.tables[name]
		for _, c := range t.Columns {
			if !c.Kind.IsLink() {
				continue
			}
			if _, ok := s.tables[c.Target]; !ok {
				return fmt.Errorf("table %s: column %s links to unknown table %s", t.Name, c.Name, c.Target)
			}
		}
	}
	return nil
}

// Table 按表名获取表定义
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableFor 获取 Go 类型对应的表名
func (s *Schema) TableFor(rt reflect.Type) (string, bool) {
	name, ok := s.types[indirectType(rt)]
	return name, ok
}

// TableNames 返回排序后的表名
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tables 返回按表名排序的表定义
func (s *Schema) Tables() []*Table {
	names := s.TableNames()
	tables := make([]*Table, 0, len(names))
	for _, name := range names {
		tables = append(tables, s.tables[name])
	}
	return tables
}

// Equal 比较两个 schema 的表定义是否一致
func (s *Schema) Equal(other *Schema) bool {
	if other == nil || len(s.tables) != len(other.tables) {
		return false
	}
	for name, t := range s.tables {
		o, ok := other.tables[name]
		if !ok || !reflect.DeepEqual(t.Columns, o.Columns) {
			return false
		}
	}
	return true
}

func (s *Schema) HasTable(table string) bool {
	_, ok := s.tables[table]
	return ok
}

func (s *Schema) ColumnIndex(table, name string) (int, bool) {
	t, ok := s.tables[table]
	if !ok {
		return 0, false
	}
	return t.ColumnIndex(name)
}

func (s *Schema) ColumnKind(table string, index int) Kind {
	return s.column(table, index).Kind
}

func (s *Schema) LinkTarget(table string, index int) string {
	return s.column(table, index).Target
}

func (s *Schema) IsIndexed(table string, index int) bool {
	return s.column(table, index).Indexed
}

func (s *Schema) IsNullable(table string, index int) bool {
	return s.column(table, index).Nullable
}

func (s *Schema) column(table string, index int) Column {
	t, ok := s.tables[table]
	if !ok {
		return Column{}
	}
	return t.Column(index)
}

func indirectType(rt reflect.Type) reflect.Type {
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	return rt
}
