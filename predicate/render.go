package predicate

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

func (c *Comparison) String() string {
	field := c.Path.String()
	switch c.Op {
	case OpIsNull, OpIsNotNull, OpIsEmpty, OpIsNotEmpty:
		return fmt.Sprintf("%s %s", field, c.Op)
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN {%s, %s}", field, formatValue(c.Value), formatValue(c.Upper))
	}
	op := string(c.Op)
	if c.Case == CaseInsensitive {
		op += "[c]"
	}
	return fmt.Sprintf("%s %s %s", field, op, formatValue(c.Value))
}

func (n *And) String() string {
	return joinNodes(n.Children, " AND ")
}

func (n *Or) String() string {
	return joinNodes(n.Children, " OR ")
}

func (n *Not) String() string {
	return "NOT " + wrap(n.Child)
}

func (True) String() string {
	return "TRUEPREDICATE"
}

func joinNodes(children []Node, sep string) string {
	if len(children) == 0 {
		return "TRUEPREDICATE"
	}
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func wrap(n Node) string {
	if n.Type() == NodeTypeComparison || n.Type() == NodeTypeTrue {
		return "(" + n.String() + ")"
	}
	return n.String()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", val)
	case []byte:
		return fmt.Sprintf("B64\"%x\"", val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}

// ToSQL 将谓词树渲染为 SQL 风格的 where 子句，参数使用 ? 占位
func ToSQL(n Node) (string, []any, error) {
	switch node := n.(type) {
	case nil:
		return "", nil, errors.Wrap(ErrMalformed, "nil node")
	case True:
		return "1 = 1", nil, nil
	case *Comparison:
		return comparisonToSQL(node)
	case *And:
		return joinSQL(node.Children, " AND ")
	case *Or:
		return joinSQL(node.Children, " OR ")
	case *Not:
		sql, args, err := ToSQL(node.Child)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	}
	return "", nil, errors.Wrapf(ErrMalformed, "unsupported node type %T", n)
}

func joinSQL(children []Node, sep string) (string, []any, error) {
	if len(children) == 0 {
		return "1 = 1", nil, nil
	}

	conditions := make([]string, 0, len(children))
	var args []any
	for _, child := range children {
		sql, childArgs, err := ToSQL(child)
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, sql)
		args = append(args, childArgs...)
	}
	return "(" + strings.Join(conditions, sep) + ")", args, nil
}

func comparisonToSQL(c *Comparison) (string, []any, error) {
	field := c.Path.String()
	if c.Case == CaseInsensitive {
		field = fmt.Sprintf("LOWER(%s)", field)
	}

	switch c.Op {
	case OpEqual:
		return fmt.Sprintf("%s = ?", field), []any{c.Value}, nil
	case OpNotEqual:
		return fmt.Sprintf("%s != ?", field), []any{c.Value}, nil
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		return fmt.Sprintf("%s %s ?", field, c.Op), []any{c.Value}, nil
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN ? AND ?", field), []any{c.Value, c.Upper}, nil
	case OpContains:
		return fmt.Sprintf("%s LIKE ?", field), []any{fmt.Sprintf("%%%v%%", c.Value)}, nil
	case OpBeginsWith:
		return fmt.Sprintf("%s LIKE ?", field), []any{fmt.Sprintf("%v%%", c.Value)}, nil
	case OpEndsWith:
		return fmt.Sprintf("%s LIKE ?", field), []any{fmt.Sprintf("%%%v", c.Value)}, nil
	case OpIsNull:
		return fmt.Sprintf("%s IS NULL", field), nil, nil
	case OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", field), nil, nil
	case OpIsEmpty:
		return fmt.Sprintf("LENGTH(%s) = 0", field), nil, nil
	case OpIsNotEmpty:
		return fmt.Sprintf("LENGTH(%s) > 0", field), nil, nil
	}
	return "", nil, errors.Wrapf(ErrMalformed, "unsupported operator %s", c.Op)
}
