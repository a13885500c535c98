package query

import (
	"reflect"

	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/predicate"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// Case 字符串比较是否区分大小写
type Case = predicate.Case

const (
	Sensitive   = predicate.CaseSensitive
	Insensitive = predicate.CaseInsensitive
)

// State 查询的执行状态
type State int

const (
	Unexecuted State = iota
	Evaluating
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Unexecuted:
		return "unexecuted"
	case Evaluating:
		return "evaluating"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Query 链式构建的查询，只能在创建它的 goroutine 上使用
//
// 出错的调用不会修改已记录的条件，第一个错误由 Err 返回，之后的终结调用都返回该错误
type Query struct {
	session *Session
	source  Source
	scope   engine.Scope
	builder *predicate.Builder
	err     error
	state   State
}

func newQuery(s *Session, src Source, scope engine.Scope) *Query {
	q := &Query{
		session: s,
		source:  src,
		scope:   scope,
		builder: predicate.NewBuilder(),
	}
	if !s.engine.Schema().HasTable(scope.Table()) {
		q.err = errors.Wrapf(ErrInvalidQueryState, "table %s does not exist", scope.Table())
	}
	return q
}

func (q *Query) Source() Source {
	return q.source
}

func (q *Query) Table() string {
	return q.scope.Table()
}

func (q *Query) Scope() engine.Scope {
	return q.scope
}

// Err 第一个失败调用的错误
func (q *Query) Err() error {
	return q.err
}

func (q *Query) State() State {
	return q.state
}

// IsValid 会话未关闭且作用域仍然存在
func (q *Query) IsValid() bool {
	return q.checkValid() == nil
}

// Validate 立即编译谓词，检查分组和 Or/Not 是否完整
func (q *Query) Validate() error {
	_, err := q.compile()
	return err
}

// Description 编译后的谓词描述，出错时返回错误信息
func (q *Query) Description() string {
	node, err := q.compile()
	if err != nil {
		return "invalid query: " + err.Error()
	}
	return node.String()
}

// SQL 以 SQL where 子句的形式返回编译后的谓词
func (q *Query) SQL() (string, []any, error) {
	node, err := q.compile()
	if err != nil {
		return "", nil, err
	}
	return predicate.ToSQL(node)
}

// Clone 复制查询条件，两个查询互不影响
func (q *Query) Clone() *Query {
	return &Query{
		session: q.session,
		source:  q.source,
		scope:   q.scope,
		builder: q.builder.Clone(),
		err:     q.err,
	}
}

func (q *Query) EqualTo(field string, value any, casing ...Case) *Query {
	return q.compare(field, predicate.OpEqual, value, casing)
}

func (q *Query) NotEqualTo(field string, value any, casing ...Case) *Query {
	return q.compare(field, predicate.OpNotEqual, value, casing)
}

func (q *Query) GreaterThan(field string, value any) *Query {
	return q.compare(field, predicate.OpGreater, value, nil)
}

func (q *Query) GreaterThanOrEqualTo(field string, value any) *Query {
	return q.compare(field, predicate.OpGreaterEqual, value, nil)
}

func (q *Query) LessThan(field string, value any) *Query {
	return q.compare(field, predicate.OpLess, value, nil)
}

func (q *Query) LessThanOrEqualTo(field string, value any) *Query {
	return q.compare(field, predicate.OpLessEqual, value, nil)
}

// Between 闭区间 [from, to]
func (q *Query) Between(field string, from, to any) *Query {
	if q.err != nil {
		return q
	}
	leaf, err := q.comparison(field, predicate.OpBetween, from, Sensitive)
	if err != nil {
		return q.fail(err)
	}
	upper, err := q.comparison(field, predicate.OpBetween, to, Sensitive)
	if err != nil {
		return q.fail(err)
	}
	if leaf.Path.Terminal().Kind != upper.Path.Terminal().Kind {
		return q.fail(errors.Wrapf(ErrTypeMismatch, "field '%s': between bounds have different types", field))
	}
	leaf.Upper = upper.Value
	q.builder.Leaf(leaf)
	return q
}

func (q *Query) Contains(field string, value string, casing ...Case) *Query {
	return q.compare(field, predicate.OpContains, value, casing)
}

func (q *Query) BeginsWith(field string, value string, casing ...Case) *Query {
	return q.compare(field, predicate.OpBeginsWith, value, casing)
}

func (q *Query) EndsWith(field string, value string, casing ...Case) *Query {
	return q.compare(field, predicate.OpEndsWith, value, casing)
}

// In 等价于 BeginGroup().EqualTo(v0).Or().EqualTo(v1)...EndGroup()，values 必须是非空切片或数组
func (q *Query) In(field string, values any, casing ...Case) *Query {
	if q.err != nil {
		return q
	}
	rv := reflect.ValueOf(values)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Len() == 0 {
		return q.fail(errors.Wrapf(ErrEmptyValues, "field '%s'", field))
	}

	leaves := make([]*predicate.Comparison, rv.Len())
	for i := range leaves {
		leaf, err := q.comparison(field, predicate.OpEqual, rv.Index(i).Interface(), caseOf(casing))
		if err != nil {
			return q.fail(errors.WithMessagef(err, "value #%d", i))
		}
		leaves[i] = leaf
	}

	q.builder.BeginGroup()
	for i, leaf := range leaves {
		if i > 0 {
			q.builder.Or()
		}
		q.builder.Leaf(leaf)
	}
	q.builder.EndGroup()
	return q
}

// IsNull 跨链接时路径上任意一跳为空即为真
func (q *Query) IsNull(field string) *Query {
	return q.nullTest(field, predicate.OpIsNull)
}

func (q *Query) IsNotNull(field string) *Query {
	return q.nullTest(field, predicate.OpIsNotNull)
}

// IsEmpty 字符串、二进制长度为 0，或者链接列表没有对象
func (q *Query) IsEmpty(field string) *Query {
	return q.emptyTest(field, predicate.OpIsEmpty)
}

func (q *Query) IsNotEmpty(field string) *Query {
	return q.emptyTest(field, predicate.OpIsNotEmpty)
}

func (q *Query) BeginGroup() *Query {
	if q.err == nil {
		q.builder.BeginGroup()
	}
	return q
}

func (q *Query) EndGroup() *Query {
	if q.err == nil {
		q.builder.EndGroup()
	}
	return q
}

// Or 析取紧邻的前后两个条件
func (q *Query) Or() *Query {
	if q.err == nil {
		q.builder.Or()
	}
	return q
}

// Not 对下一个条件取反
func (q *Query) Not() *Query {
	if q.err == nil {
		q.builder.Not()
	}
	return q
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

func (q *Query) compare(field string, op predicate.Op, value any, casing []Case) *Query {
	if q.err != nil {
		return q
	}
	leaf, err := q.comparison(field, op, value, caseOf(casing))
	if err != nil {
		return q.fail(err)
	}
	q.builder.Leaf(leaf)
	return q
}

func caseOf(casing []Case) Case {
	if len(casing) == 0 {
		return Sensitive
	}
	return casing[0]
}

// comparison 校验并生成比较节点，不修改查询状态
func (q *Query) comparison(field string, op predicate.Op, value any, casing Case) (*predicate.Comparison, error) {
	if err := q.checkValid(); err != nil {
		return nil, err
	}

	kind, isNull, ok := kindOf(value)
	if !ok {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': unsupported value type %T", field, value)
	}
	if isNull {
		switch op {
		case predicate.OpEqual:
			return q.nullComparison(field, predicate.OpIsNull, kind)
		case predicate.OpNotEqual:
			return q.nullComparison(field, predicate.OpIsNotNull, kind)
		}
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': null is not allowed for %s", field, op)
	}

	switch op {
	case predicate.OpGreater, predicate.OpGreaterEqual, predicate.OpLess, predicate.OpLessEqual, predicate.OpBetween:
		if !isRangeKind(kind) {
			return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': %s is not supported for %s values", field, op, kind)
		}
	case predicate.OpContains, predicate.OpBeginsWith, predicate.OpEndsWith:
		if kind != schema.KindString {
			return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': %s requires a string value", field, op)
		}
	}
	if casing == Insensitive && kind != schema.KindString {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': case-insensitive comparison requires a string value", field)
	}

	path, err := q.session.resolver.Resolve(q.Table(), field, kind)
	if err != nil {
		return nil, err
	}
	if op == predicate.OpNotEqual && casing == Insensitive && path.IsLinkPath() {
		return nil, errors.Wrapf(ErrUnsupportedCaseInsensitiveLinkQuery, "field '%s'", field)
	}

	v, err := engine.Normalize(kind, value)
	if err != nil {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': %v", field, err)
	}
	if b, ok := v.(bool); ok && op == predicate.OpNotEqual {
		op, v = predicate.OpEqual, !b
	}
	return &predicate.Comparison{Path: path, Op: op, Value: v, Case: casing}, nil
}

// nullComparison kind 非空时为带类型的空指针，字段类型必须一致
func (q *Query) nullComparison(field string, op predicate.Op, kind schema.Kind) (*predicate.Comparison, error) {
	var kinds []schema.Kind
	if kind != "" {
		kinds = append(kinds, kind)
	}
	path, err := q.session.resolver.Resolve(q.Table(), field, kinds...)
	if err != nil {
		return nil, err
	}
	terminal := path.Terminal()
	if terminal.Kind == schema.KindList {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': list fields cannot be null, use IsEmpty", field)
	}
	if !path.IsLinkPath() && !q.session.engine.Schema().IsNullable(terminal.Table, terminal.Column) {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s' is not nullable", field)
	}
	return &predicate.Comparison{Path: path, Op: op}, nil
}

func (q *Query) nullTest(field string, op predicate.Op) *Query {
	if q.err != nil {
		return q
	}
	if err := q.checkValid(); err != nil {
		return q.fail(err)
	}
	leaf, err := q.nullComparison(field, op, "")
	if err != nil {
		return q.fail(err)
	}
	q.builder.Leaf(leaf)
	return q
}

func (q *Query) emptyTest(field string, op predicate.Op) *Query {
	if q.err != nil {
		return q
	}
	if err := q.checkValid(); err != nil {
		return q.fail(err)
	}
	path, err := q.session.resolver.Resolve(q.Table(), field, emptyKinds...)
	if err != nil {
		return q.fail(err)
	}
	q.builder.Leaf(&predicate.Comparison{Path: path, Op: op})
	return q
}

// checkValid 会话关闭或者链接列表的所有者被删除后查询不可用
func (q *Query) checkValid() error {
	snap, err := q.session.current()
	if err != nil {
		return err
	}
	if sc, ok := q.scope.(engine.LinkListScope); ok && !snap.IsLive(sc.Owner, sc.Row) {
		return errors.Wrapf(ErrInvalidQueryState, "owner %s row %d was deleted", sc.Owner, sc.Row)
	}
	return nil
}

// compile 把记录的条件解析为谓词树
func (q *Query) compile() (predicate.Node, error) {
	if q.err != nil {
		return nil, q.err
	}
	if err := q.checkValid(); err != nil {
		return nil, err
	}
	node, err := q.builder.Build()
	if err != nil {
		return nil, errors.Wrap(ErrMalformedPredicate, err.Error())
	}
	return node, nil
}
