package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hatlonely/odb/kv/store"
	"github.com/hatlonely/odb/log"
	"github.com/hatlonely/odb/predicate"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func testSchema() *schema.Schema {
	s := schema.New()
	if err := s.AddTable(schema.MustNewTable("Person",
		schema.Column{Name: "id", Kind: schema.KindInteger},
		schema.Column{Name: "name", Kind: schema.KindString, Nullable: true},
		schema.Column{Name: "score", Kind: schema.KindDouble},
		schema.Column{Name: "born", Kind: schema.KindDate, Nullable: true},
		schema.Column{Name: "dogs", Kind: schema.KindList, Target: "Dog"},
	)); err != nil {
		panic(err)
	}
	if err := s.AddTable(schema.MustNewTable("Dog",
		schema.Column{Name: "name", Kind: schema.KindString},
		schema.Column{Name: "owner", Kind: schema.KindObject, Target: "Person"},
		schema.Column{Name: "ratio", Kind: schema.KindFloat},
		schema.Column{Name: "good", Kind: schema.KindBool},
		schema.Column{Name: "chip", Kind: schema.KindBinary, Nullable: true},
	)); err != nil {
		panic(err)
	}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

func path(s *schema.Schema, table string, names ...string) schema.FieldPath {
	p := schema.FieldPath{}
	for _, name := range names {
		i, ok := s.ColumnIndex(table, name)
		if !ok {
			panic("unknown column " + table + "." + name)
		}
		kind := s.ColumnKind(table, i)
		p.Hops = append(p.Hops, schema.Hop{Table: table, Name: name, Column: i, Kind: kind})
		if kind.IsLink() {
			table = s.LinkTarget(table, i)
		}
	}
	return p
}

func cmp(p schema.FieldPath, op predicate.Op, value any) *predicate.Comparison {
	return &predicate.Comparison{Path: p, Op: op, Value: value}
}

// seed 写入三个人和三条狗
func seed(e *Engine) {
	So(e.BeginWrite(), ShouldBeNil)
	born := time.Date(2000, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err := e.Insert("Person", map[string]any{"id": 1, "name": "a", "score": 2.0, "born": born})
	So(err, ShouldBeNil)
	_, err = e.Insert("Person", map[string]any{"id": 2, "name": nil, "score": 5.0})
	So(err, ShouldBeNil)
	_, err = e.Insert("Person", map[string]any{"id": 3, "name": "b", "score": 5.0, "born": born.AddDate(1, 0, 0)})
	So(err, ShouldBeNil)

	for i, name := range []string{"Rex", "fido", "Bello"} {
		dog, err := e.Insert("Dog", map[string]any{"name": name, "owner": i % 2, "ratio": float32(i), "good": i != 1})
		So(err, ShouldBeNil)
		So(e.AddLink("Person", i%2, "dogs", dog), ShouldBeNil)
	}
	So(e.Commit(context.Background()), ShouldBeNil)
}

func TestEngineTransaction(t *testing.T) {
	ctx := context.Background()

	Convey("测试写事务", t, func() {
		e, err := New(ctx, testSchema(), nil, nil, log.Discard())
		So(err, ShouldBeNil)
		defer e.Close()

		_, err = e.Insert("Person", map[string]any{"id": 1})
		So(errors.Is(err, ErrNoTransaction), ShouldBeTrue)

		So(e.BeginWrite(), ShouldBeNil)
		So(errors.Is(e.BeginWrite(), ErrInTransaction), ShouldBeTrue)
		So(e.InTransaction(), ShouldBeTrue)

		row, err := e.Insert("Person", map[string]any{"id": 1, "name": "a"})
		So(err, ShouldBeNil)
		So(row, ShouldEqual, 0)

		Convey("事务内的修改对已提交快照不可见", func() {
			committed, err := e.Committed()
			So(err, ShouldBeNil)
			So(committed.RowCount("Person"), ShouldEqual, 0)

			current, err := e.Current()
			So(err, ShouldBeNil)
			So(current.RowCount("Person"), ShouldEqual, 1)

			So(e.Commit(ctx), ShouldBeNil)
			So(e.Version(), ShouldEqual, 1)
			So(committed.RowCount("Person"), ShouldEqual, 0)

			committed, _ = e.Committed()
			v, err := committed.Value("Person", 0, 0)
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(1))
			v, _ = committed.Value("Person", 0, 2)
			So(v, ShouldEqual, float64(0))
		})

		Convey("回滚丢弃修改", func() {
			So(e.Rollback(), ShouldBeNil)
			So(e.InTransaction(), ShouldBeFalse)
			committed, _ := e.Committed()
			So(committed.RowCount("Person"), ShouldEqual, 0)
			So(errors.Is(e.Rollback(), ErrNoTransaction), ShouldBeTrue)
			So(errors.Is(e.Commit(ctx), ErrNoTransaction), ShouldBeTrue)
		})

		Convey("非法的值", func() {
			_, err := e.Insert("Person", map[string]any{"missing": 1})
			So(errors.Is(err, ErrColumnNotFound), ShouldBeTrue)
			_, err = e.Insert("Person", map[string]any{"id": "x"})
			So(errors.Is(err, ErrInvalidValue), ShouldBeTrue)
			_, err = e.Insert("Person", map[string]any{"id": nil})
			So(errors.Is(err, ErrNullValue), ShouldBeTrue)
			_, err = e.Insert("Person", map[string]any{"id": uint64(1 << 63)})
			So(errors.Is(err, ErrInvalidValue), ShouldBeTrue)
			v, err := Normalize(schema.KindInteger, uint64(1<<63-1))
			So(err, ShouldBeNil)
			So(v, ShouldEqual, int64(1<<63-1))
			_, err = e.Insert("Cat", nil)
			So(errors.Is(err, ErrTableNotFound), ShouldBeTrue)
			_, err = e.Insert("Dog", map[string]any{"owner": 9})
			So(errors.Is(err, ErrRowNotFound), ShouldBeTrue)
			So(errors.Is(e.Set("Person", 7, "id", 1), ErrRowNotFound), ShouldBeTrue)
			So(errors.Is(e.AddLink("Person", 0, "name", 0), ErrInvalidValue), ShouldBeTrue)
		})

		Convey("关闭后不可读写", func() {
			So(e.Close(), ShouldBeNil)
			_, err := e.Committed()
			So(errors.Is(err, ErrClosed), ShouldBeTrue)
			So(errors.Is(e.BeginWrite(), ErrClosed), ShouldBeTrue)
		})
	})
}

func TestEngineQuery(t *testing.T) {
	ctx := context.Background()
	s := testSchema()

	Convey("测试查询求值", t, func() {
		e, err := New(ctx, s, nil, nil, log.Discard())
		So(err, ShouldBeNil)
		seed(e)
		snap, _ := e.Committed()
		people := TableScope{Name: "Person"}

		find := func(scope Scope, node predicate.Node) []int {
			rows, err := snap.Where(scope, node).FindAll()
			So(err, ShouldBeNil)
			return rows
		}

		Convey("比较", func() {
			So(find(people, nil), ShouldResemble, []int{0, 1, 2})
			So(find(people, cmp(path(s, "Person", "score"), predicate.OpEqual, 5.0)), ShouldResemble, []int{1, 2})
			So(find(people, cmp(path(s, "Person", "name"), predicate.OpNotEqual, "a")), ShouldResemble, []int{1, 2})
			So(find(people, cmp(path(s, "Person", "name"), predicate.OpIsNull, nil)), ShouldResemble, []int{1})

			between := cmp(path(s, "Person", "id"), predicate.OpBetween, int64(2))
			between.Upper = int64(3)
			So(find(people, between), ShouldResemble, []int{1, 2})

			insensitive := cmp(path(s, "Dog", "name"), predicate.OpBeginsWith, "re")
			So(find(TableScope{Name: "Dog"}, insensitive), ShouldBeEmpty)
			insensitive.Case = predicate.CaseInsensitive
			So(find(TableScope{Name: "Dog"}, insensitive), ShouldResemble, []int{0})

			node := &predicate.Not{Child: cmp(path(s, "Person", "score"), predicate.OpGreater, 2.0)}
			So(find(people, node), ShouldResemble, []int{0})

			count, err := snap.Where(people, node).Count()
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)
		})

		Convey("链接路径", func() {
			dogs := TableScope{Name: "Dog"}
			So(find(dogs, cmp(path(s, "Dog", "owner", "id"), predicate.OpEqual, int64(2))), ShouldResemble, []int{1})
			So(find(people, cmp(path(s, "Person", "dogs", "name"), predicate.OpEqual, "Bello")), ShouldResemble, []int{0})
			So(find(people, cmp(path(s, "Person", "dogs", "good"), predicate.OpEqual, false)), ShouldResemble, []int{1})

			scope := LinkListScope{Owner: "Person", Row: 0, Column: 4, Target: "Dog"}
			So(find(scope, nil), ShouldResemble, []int{0, 2})
		})

		Convey("排序和去重", func() {
			rows := find(people, nil)
			sorted, err := snap.Sort("Person", rows, []SortKey{{Column: 2, Ascending: false}, {Column: 0, Ascending: true}})
			So(err, ShouldBeNil)
			So(sorted, ShouldResemble, []int{1, 2, 0})

			sorted, err = snap.Sort("Person", rows, []SortKey{{Column: 1, Ascending: true}})
			So(err, ShouldBeNil)
			So(sorted, ShouldResemble, []int{1, 0, 2})

			distinct, err := snap.Distinct("Person", rows, []int{2})
			So(err, ShouldBeNil)
			So(distinct, ShouldResemble, []int{0, 1})
		})

		Convey("聚合", func() {
			q := snap.Where(people, nil)
			sum, err := q.Sum(0)
			So(err, ShouldBeNil)
			So(sum, ShouldEqual, int64(6))
			avg, err := q.Average(2)
			So(err, ShouldBeNil)
			So(avg, ShouldEqual, 4.0)
			max, err := q.Max(2)
			So(err, ShouldBeNil)
			So(max, ShouldEqual, 5.0)
			minDate, err := q.MinDate(3)
			So(err, ShouldBeNil)
			So(minDate.Year(), ShouldEqual, 2000)

			_, err = q.Sum(1)
			So(errors.Is(err, ErrInvalidValue), ShouldBeTrue)

			empty := snap.Where(people, cmp(path(s, "Person", "id"), predicate.OpGreater, int64(10)))
			min, err := empty.Min(2)
			So(err, ShouldBeNil)
			So(min, ShouldBeNil)
			avg, err = empty.Average(2)
			So(err, ShouldBeNil)
			So(avg, ShouldEqual, 0.0)
		})

		Convey("删除时清除链接", func() {
			So(e.BeginWrite(), ShouldBeNil)
			So(e.Delete("Person", 0), ShouldBeNil)
			So(e.Delete("Dog", 1), ShouldBeNil)
			So(e.Commit(ctx), ShouldBeNil)

			next, _ := e.Committed()
			owner, err := next.Value("Dog", 0, 1)
			So(err, ShouldBeNil)
			So(owner, ShouldBeNil)
			links, err := next.Value("Person", 1, 4)
			So(err, ShouldBeNil)
			So(links, ShouldResemble, []int64{})

			_, err = next.Where(LinkListScope{Owner: "Person", Row: 0, Column: 4, Target: "Dog"}, nil).FindAll()
			So(errors.Is(err, ErrDetached), ShouldBeTrue)

			// 旧快照不受影响
			So(snap.IsLive("Person", 0), ShouldBeTrue)
		})
	})
}

func TestCollate(t *testing.T) {
	Convey("测试字符串排序规则", t, func() {
		So(Collate("a", "B"), ShouldBeLessThan, 0)
		So(Collate("A", "a"), ShouldBeLessThan, 0)
		So(Collate("ab", "A"), ShouldBeGreaterThan, 0)
		So(Collate("你", "好"), ShouldEqual, 0)
		So(Collate("abc", "abc"), ShouldEqual, 0)
		So(CompareForSort(nil, "a"), ShouldBeLessThan, 0)
		So(FoldCase("ÀB中"), ShouldEqual, "àb中")
	})
}

type failingStore struct {
	store.Store[string, []byte]
}

func (failingStore) BatchSet(ctx context.Context, keys []string, vals [][]byte) ([]error, error) {
	return nil, errors.New("disk full")
}

func TestEnginePersistence(t *testing.T) {
	ctx := context.Background()

	for _, codec := range []string{"msgpack", "json", "bson"} {
		Convey("测试持久化 "+codec, t, func() {
			backend, err := store.NewBoltDBStoreWithOptions[string, []byte](&store.BoltDBStoreOptions{
				DBPath:   filepath.Join(t.TempDir(), "odb.db"),
				KeyCodec: "raw",
				ValCodec: "raw",
			})
			So(err, ShouldBeNil)
			defer backend.Close()

			e, err := New(ctx, testSchema(), backend, &Options{Codec: codec}, log.Discard())
			So(err, ShouldBeNil)
			seed(e)
			So(e.Close(), ShouldBeNil)

			reopened, err := New(ctx, testSchema(), backend, &Options{Codec: codec}, log.Discard())
			So(err, ShouldBeNil)
			So(reopened.Version(), ShouldEqual, 1)

			snap, _ := reopened.Committed()
			So(snap.RowCount("Person"), ShouldEqual, 3)
			born, _ := snap.Value("Person", 0, 3)
			So(born.(time.Time).Equal(time.Date(2000, 1, 2, 3, 4, 5, 0, time.UTC)), ShouldBeTrue)
			name, _ := snap.Value("Person", 1, 1)
			So(name, ShouldBeNil)
			links, _ := snap.Value("Person", 0, 4)
			So(links, ShouldResemble, []int64{0, 2})
			ratio, _ := snap.Value("Dog", 2, 2)
			So(ratio, ShouldEqual, float32(2))
			good, _ := snap.Value("Dog", 1, 3)
			So(good, ShouldEqual, false)
		})
	}

	Convey("测试 schema 不一致", t, func() {
		backend := store.NewMapStore[string, []byte]()
		e, err := New(ctx, testSchema(), backend, nil, log.Discard())
		So(err, ShouldBeNil)
		seed(e)

		other := schema.New()
		So(other.AddTable(schema.MustNewTable("Person", schema.Column{Name: "id", Kind: schema.KindInteger})), ShouldBeNil)
		_, err = New(ctx, other, backend, nil, log.Discard())
		So(errors.Is(err, ErrSchemaMismatch), ShouldBeTrue)
	})

	Convey("测试持久化失败时回滚", t, func() {
		e, err := New(ctx, testSchema(), failingStore{store.NewMapStore[string, []byte]()}, nil, log.Discard())
		So(err, ShouldBeNil)
		So(e.BeginWrite(), ShouldBeNil)
		_, err = e.Insert("Person", map[string]any{"id": 1})
		So(err, ShouldBeNil)
		So(e.Commit(ctx), ShouldNotBeNil)
		So(e.InTransaction(), ShouldBeFalse)
		So(e.Version(), ShouldEqual, 0)
	})
}
