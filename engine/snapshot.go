package engine

import (
	"github.com/hatlonely/odb/predicate"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// Snapshot 某个版本的全部表数据。已提交的快照不再修改，可以被多个 goroutine 同时读取；
// 写事务中的快照只属于所有者 goroutine
type Snapshot struct {
	version uint64
	schema  *schema.Schema
	tables  map[string]*table
	dirty   map[string]bool // 写事务中已复制的表
}

func newSnapshot(s *schema.Schema) *Snapshot {
	snap := &Snapshot{
		schema: s,
		tables: make(map[string]*table),
	}
	for _, def := range s.Tables() {
		snap.tables[def.Name] = newTable(def)
	}
	return snap
}

// begin 基于当前快照创建写事务快照，表在第一次修改时才复制
func (s *Snapshot) begin() *Snapshot {
	w := &Snapshot{
		version: s.version,
		schema:  s.schema,
		tables:  make(map[string]*table, len(s.tables)),
		dirty:   make(map[string]bool),
	}
	for name, t := range s.tables {
		w.tables[name] = t
	}
	return w
}

func (s *Snapshot) mutable(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table %s", name)
	}
	if s.dirty == nil {
		return nil, ErrNoTransaction
	}
	if s.dirty[name] {
		return t, nil
	}
	c := t.clone()
	s.tables[name] = c
	s.dirty[name] = true
	return c, nil
}

func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) Schema() *schema.Schema {
	return s.schema
}

func (s *Snapshot) table(name string) (*table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrapf(ErrTableNotFound, "table %s", name)
	}
	return t, nil
}

// RowCount 表中的行数，包括已删除的行
func (s *Snapshot) RowCount(name string) int {
	t, ok := s.tables[name]
	if !ok {
		return 0
	}
	return t.rowCount()
}

// IsLive 行存在且未被删除
func (s *Snapshot) IsLive(name string, row int) bool {
	t, ok := s.tables[name]
	return ok && t.isLive(row)
}

// Value 读取一个单元格，链接列表返回副本
func (s *Snapshot) Value(name string, row, col int) (any, error) {
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	if !t.isLive(row) {
		return nil, errors.Wrapf(ErrRowNotFound, "table %s row %d", name, row)
	}
	if col < 0 || col >= len(t.columns) {
		return nil, errors.Wrapf(ErrColumnNotFound, "table %s column #%d", name, col)
	}
	v := t.value(row, col)
	if rows, ok := v.([]int64); ok {
		return append([]int64{}, rows...), nil
	}
	return v, nil
}

// Rows 返回作用域内存活的行，顺序为作用域自身的顺序
func (s *Snapshot) Rows(scope Scope) ([]int, error) {
	switch sc := scope.(type) {
	case TableScope:
		t, err := s.table(sc.Name)
		if err != nil {
			return nil, err
		}
		return t.liveRows(), nil
	case LinkListScope:
		owner, err := s.table(sc.Owner)
		if err != nil {
			return nil, err
		}
		if !owner.isLive(sc.Row) {
			return nil, errors.Wrapf(ErrDetached, "owner %s row %d", sc.Owner, sc.Row)
		}
		target, err := s.table(sc.Target)
		if err != nil {
			return nil, err
		}
		links, _ := owner.value(sc.Row, sc.Column).([]int64)
		rows := make([]int, 0, len(links))
		for _, r := range links {
			if target.isLive(int(r)) {
				rows = append(rows, int(r))
			}
		}
		return rows, nil
	case ViewScope:
		t, err := s.table(sc.Name)
		if err != nil {
			return nil, err
		}
		rows := make([]int, 0, len(sc.Rows))
		for _, r := range sc.Rows {
			if t.isLive(r) {
				rows = append(rows, r)
			}
		}
		return rows, nil
	}
	return nil, errors.Errorf("unsupported scope %T", scope)
}

// Where 在作用域上绑定谓词，nil 谓词匹配所有行
func (s *Snapshot) Where(scope Scope, node predicate.Node) *TableQuery {
	if node == nil {
		node = predicate.True{}
	}
	return &TableQuery{snap: s, scope: scope, node: node}
}
