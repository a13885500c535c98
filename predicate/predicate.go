package predicate

import (
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

var ErrMalformed = errors.New("malformed predicate")

// Op 比较操作
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpBetween      Op = "BETWEEN"
	OpContains     Op = "CONTAINS"
	OpBeginsWith   Op = "BEGINSWITH"
	OpEndsWith     Op = "ENDSWITH"
	OpIsNull       Op = "ISNULL"
	OpIsNotNull    Op = "ISNOTNULL"
	OpIsEmpty      Op = "ISEMPTY"
	OpIsNotEmpty   Op = "ISNOTEMPTY"
)

// Case 字符串比较的大小写策略，零值为大小写敏感
type Case int

const (
	CaseSensitive Case = iota
	CaseInsensitive
)

func (c Case) String() string {
	if c == CaseInsensitive {
		return "insensitive"
	}
	return "sensitive"
}

// NodeType 谓词节点类型
type NodeType string

const (
	NodeTypeComparison NodeType = "comparison"
	NodeTypeAnd        NodeType = "and"
	NodeTypeOr         NodeType = "or"
	NodeTypeNot        NodeType = "not"
	NodeTypeTrue       NodeType = "true"
)

// Node 谓词树节点，只能由本包中的类型实现
type Node interface {
	Type() NodeType
	String() string
	node()
}

// Comparison 叶子比较节点
type Comparison struct {
	Path  schema.FieldPath
	Op    Op
	Value any
	Upper any // 仅 OpBetween 使用
	Case  Case
}

// And 合取，也是分组的表示
type And struct {
	Children []Node
}

// Or 析取
type Or struct {
	Children []Node
}

// Not 取反
type Not struct {
	Child Node
}

// True 空谓词，匹配所有行
type True struct{}

func (*Comparison) Type() NodeType { return NodeTypeComparison }
func (*And) Type() NodeType        { return NodeTypeAnd }
func (*Or) Type() NodeType         { return NodeTypeOr }
func (*Not) Type() NodeType        { return NodeTypeNot }
func (True) Type() NodeType        { return NodeTypeTrue }

func (*Comparison) node() {}
func (*And) node()        {}
func (*Or) node()         {}
func (*Not) node()        {}
func (True) node()        {}
