package predicate

import (
	"testing"

	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func leaf(name string, op Op, value any) *Comparison {
	return &Comparison{
		Path:  schema.FieldPath{Name: name, Hops: []schema.Hop{{Table: "t", Name: name}}},
		Op:    op,
		Value: value,
	}
}

func TestBuilderBuild(t *testing.T) {
	a := leaf("a", OpEqual, 1)
	b := leaf("b", OpEqual, 2)
	c := leaf("c", OpEqual, 3)

	Convey("测试空谓词", t, func() {
		node, err := NewBuilder().Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, True{})
	})

	Convey("测试单个叶子不包装", t, func() {
		node, err := NewBuilder().Leaf(a).Build()
		So(err, ShouldBeNil)
		So(node, ShouldEqual, a)
	})

	Convey("测试相邻子句以 AND 连接", t, func() {
		node, err := NewBuilder().Leaf(a).Leaf(b).Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &And{Children: []Node{a, b}})
	})

	Convey("测试 OR 只析取紧邻的两个子句", t, func() {
		node, err := NewBuilder().Leaf(a).Leaf(b).Or().Leaf(c).Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &And{Children: []Node{a, &Or{Children: []Node{b, c}}}})
	})

	Convey("测试连续 OR 合并", t, func() {
		node, err := NewBuilder().Leaf(a).Or().Leaf(b).Or().Leaf(c).Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &Or{Children: []Node{a, b, c}})
	})

	Convey("测试 NOT 只作用于下一个子句", t, func() {
		node, err := NewBuilder().Not().Leaf(a).Leaf(b).Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &And{Children: []Node{&Not{Child: a}, b}})

		node, err = NewBuilder().Not().Leaf(a).Or().Leaf(b).Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &Or{Children: []Node{&Not{Child: a}, b}})
	})

	Convey("测试分组", t, func() {
		node, err := NewBuilder().Not().BeginGroup().Leaf(a).Or().Leaf(b).EndGroup().Leaf(c).Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &And{Children: []Node{
			&Not{Child: &Or{Children: []Node{a, b}}},
			c,
		}})

		node, err = NewBuilder().BeginGroup().Leaf(a).EndGroup().Build()
		So(err, ShouldBeNil)
		So(node, ShouldEqual, a)

		node, err = NewBuilder().Leaf(a).BeginGroup().EndGroup().Build()
		So(err, ShouldBeNil)
		So(node, ShouldResemble, &And{Children: []Node{a, True{}}})
	})

	Convey("测试非法语法", t, func() {
		cases := []*Builder{
			NewBuilder().BeginGroup().Leaf(a),
			NewBuilder().Leaf(a).EndGroup(),
			NewBuilder().Leaf(a).Or(),
			NewBuilder().Or().Leaf(a),
			NewBuilder().Leaf(a).Or().Or().Leaf(b),
			NewBuilder().Not(),
			NewBuilder().BeginGroup().Leaf(a).Or().EndGroup(),
			NewBuilder().BeginGroup().Not().EndGroup(),
		}
		for _, builder := range cases {
			_, err := builder.Build()
			So(errors.Is(err, ErrMalformed), ShouldBeTrue)
		}
	})

	Convey("测试 Clone 互不影响", t, func() {
		origin := NewBuilder().Leaf(a)
		clone := origin.Clone().Leaf(b)
		So(origin.Len(), ShouldEqual, 1)
		So(clone.Len(), ShouldEqual, 2)
	})
}

func TestNodeString(t *testing.T) {
	Convey("测试谓词描述", t, func() {
		a := leaf("name", OpEqual, "a")
		b := leaf("age", OpGreater, 3)
		insensitive := leaf("name", OpBeginsWith, "x")
		insensitive.Case = CaseInsensitive

		So(a.String(), ShouldEqual, `name == "a"`)
		So(insensitive.String(), ShouldEqual, `name BEGINSWITH[c] "x"`)
		So((&Or{Children: []Node{a, b}}).String(), ShouldEqual, `(name == "a" OR age > 3)`)
		So((&Not{Child: a}).String(), ShouldEqual, `NOT (name == "a")`)
		So(leaf("nick", OpIsNull, nil).String(), ShouldEqual, "nick ISNULL")
		So(True{}.String(), ShouldEqual, "TRUEPREDICATE")
	})
}

func TestToSQL(t *testing.T) {
	Convey("测试渲染 SQL", t, func() {
		between := leaf("score", OpBetween, 2.0)
		between.Upper = 5.0
		node := &And{Children: []Node{
			leaf("name", OpContains, "ab"),
			&Or{Children: []Node{between, leaf("nick", OpIsNull, nil)}},
			&Not{Child: leaf("age", OpLessEqual, 3)},
		}}

		sql, args, err := ToSQL(node)
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, "(name LIKE ? AND (score BETWEEN ? AND ? OR nick IS NULL) AND NOT (age <= ?))")
		So(args, ShouldResemble, []any{"%ab%", 2.0, 5.0, 3})

		sql, args, err = ToSQL(True{})
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, "1 = 1")
		So(args, ShouldBeEmpty)

		_, _, err = ToSQL(nil)
		So(errors.Is(err, ErrMalformed), ShouldBeTrue)
	})
}
