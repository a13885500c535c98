package query

import (
	"github.com/hatlonely/odb/engine"
	"github.com/pkg/errors"
)

// List 某个对象的多对象链接列
type List struct {
	owner  *Object
	field  string
	column int
	target string
}

func (l *List) Target() string {
	return l.target
}

func (l *List) scope() engine.LinkListScope {
	return engine.LinkListScope{Owner: l.owner.table, Row: l.owner.row, Column: l.column, Target: l.target}
}

// IsValid 所有者对象仍然存在
func (l *List) IsValid() bool {
	return l.owner.IsValid()
}

// Rows 链接的目标行，按链接顺序，已删除的目标被跳过
func (l *List) Rows() ([]int, error) {
	if err := l.owner.readable(); err != nil {
		return nil, err
	}
	snap, err := l.owner.session.current()
	if err != nil {
		return nil, err
	}
	rows, err := snap.Rows(l.scope())
	return rows, wrapEngineError(err)
}

func (l *List) Len() (int, error) {
	rows, err := l.Rows()
	return len(rows), err
}

func (l *List) Get(i int) (*Object, error) {
	rows, err := l.Rows()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(rows) {
		return nil, errors.Errorf("index %d out of range [0, %d)", i, len(rows))
	}
	return newObject(l.owner.session, l.target, rows[i]), nil
}

// Where 在链接列表上创建查询，结果按链接顺序
func (l *List) Where() *Query {
	return newQuery(l.owner.session, DynamicSource{Name: l.target}, l.scope())
}
