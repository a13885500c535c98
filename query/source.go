package query

import (
	"reflect"
)

// Source 查询的来源：结构体类型或者按表名的动态查询
type Source interface {
	Table() string
	source()
}

// ClassSource 通过 Go 结构体类型查询，结果可以扫描回该类型
type ClassSource struct {
	Type reflect.Type
	Name string
}

// DynamicSource 只按表名查询
type DynamicSource struct {
	Name string
}

func (s ClassSource) Table() string   { return s.Name }
func (s DynamicSource) Table() string { return s.Name }

func (ClassSource) source()   {}
func (DynamicSource) source() {}
