package schema

import "strings"

// Hop 字段路径中的一跳
type Hop struct {
	Table  string `msgpack:"t"` // 该跳所在的表
	Name   string `msgpack:"n"`
	Column int    `msgpack:"c"`
	Kind   Kind   `msgpack:"k"`
}

// FieldPath 字段路径，除最后一跳外都是链接列
type FieldPath struct {
	Name string `msgpack:"name"`
	Hops []Hop  `msgpack:"hops"`
}

// Terminal 返回最后一跳
func (p FieldPath) Terminal() Hop {
	if len(p.Hops) == 0 {
		return Hop{}
	}
	return p.Hops[len(p.Hops)-1]
}

// IsLinkPath 是否跨越链接
func (p FieldPath) IsLinkPath() bool {
	return len(p.Hops) > 1
}

// Indices 返回每一跳的列序号
func (p FieldPath) Indices() []int {
	indices := make([]int, len(p.Hops))
	for i, h := range p.Hops {
		indices[i] = h.Column
	}
	return indices
}

func (p FieldPath) String() string {
	if p.Name != "" {
		return p.Name
	}
	names := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		names[i] = h.Name
	}
	return strings.Join(names, ".")
}
