package engine

import "fmt"

// Scope 查询遍历的行集合
type Scope interface {
	// Table 返回行所在的表
	Table() string
	String() string
	scope()
}

// TableScope 整张表
type TableScope struct {
	Name string
}

// LinkListScope 某一行的多对象链接列指向的行，按链接顺序
type LinkListScope struct {
	Owner  string
	Row    int
	Column int
	Target string
}

// ViewScope 固定的一组行，通常来自一次查询的结果
type ViewScope struct {
	Name string
	Rows []int
}

func (s TableScope) Table() string    { return s.Name }
func (s LinkListScope) Table() string { return s.Target }
func (s ViewScope) Table() string     { return s.Name }

func (s TableScope) String() string { return s.Name }
func (s LinkListScope) String() string {
	return fmt.Sprintf("%s[%d].#%d -> %s", s.Owner, s.Row, s.Column, s.Target)
}
func (s ViewScope) String() string { return fmt.Sprintf("%s(%d rows)", s.Name, len(s.Rows)) }

func (TableScope) scope()    {}
func (LinkListScope) scope() {}
func (ViewScope) scope()     {}
