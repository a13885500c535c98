package odb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hatlonely/odb/async"
	"github.com/hatlonely/odb/log/logger"
	"github.com/hatlonely/odb/query"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type Person struct {
	ID    int64      `odb:"id,primary"`
	Name  *string    `odb:"name,index"`
	Score float64    `odb:"score"`
	Born  *time.Time `odb:"born"`
	Dogs  []*Dog     `odb:"dogs"`
}

func (Person) TableName() string { return "Person" }

type Dog struct {
	Name  string  `odb:"name,required"`
	Owner *Person `odb:"owner"`
}

func (Dog) TableName() string { return "Dog" }

type Cat struct {
	Tag string `odb:"tag"`
}

func strPtr(s string) *string {
	return &s
}

func testSchema() *schema.Schema {
	s, err := schema.FromStructs(&Person{}, &Dog{})
	So(err, ShouldBeNil)
	return s
}

func seed(ctx context.Context, db *DB) {
	err := db.Write(ctx, func(tx *Tx) error {
		for _, p := range []*Person{
			{ID: 1, Name: strPtr("a"), Score: 2.0},
			{ID: 2, Score: 5.0},
			{ID: 3, Name: strPtr("b"), Score: 5.0},
		} {
			if _, err := tx.InsertStruct(p); err != nil {
				return err
			}
		}
		dog, err := tx.Insert("Dog", map[string]any{"name": "Rex", "owner": 0})
		if err != nil {
			return err
		}
		return tx.AddLink("Person", 0, "dogs", dog)
	})
	So(err, ShouldBeNil)
}

func quietOptions() *Options {
	return &Options{
		Name:          "test",
		Logger:        &logger.SLogOptions{Output: "discard"},
		PathCacheSize: 1 << 20,
		Worker:        async.WorkerOptions{QueueSize: 16},
		Looper:        async.LooperOptions{QueueSize: 16},
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	Convey("测试内存数据库", t, func() {
		db, err := Open(ctx, quietOptions(), testSchema())
		So(err, ShouldBeNil)
		Reset(func() { _ = db.Close() })
		seed(ctx, db)
		So(db.Version(), ShouldEqual, uint64(1))

		Convey("按表名和类型查询", func() {
			count, err := db.Where("Person").EqualTo("score", 5.0).Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, int64(2))

			people, err := query.FindAllAs[Person](ctx, Of[Person](db).IsNotNull("name"))
			So(err, ShouldBeNil)
			So(people, ShouldHaveLength, 2)
			So(*people[1].Name, ShouldEqual, "b")

			r, err := db.Where("Dog").EqualTo("owner.name", "a").FindAll(ctx)
			So(err, ShouldBeNil)
			So(r.Rows(), ShouldResemble, []int{0})
		})

		Convey("fn 返回错误时回滚", func() {
			boom := errors.New("boom")
			err := db.Write(ctx, func(tx *Tx) error {
				if _, err := tx.Insert("Person", map[string]any{"id": 4, "score": 1.0}); err != nil {
					return err
				}
				return boom
			})
			So(err, ShouldEqual, boom)
			So(db.Version(), ShouldEqual, uint64(1))
			count, err := db.Where("Person").Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, int64(3))
		})

		Convey("panic 时回滚", func() {
			So(func() {
				_ = db.Write(ctx, func(tx *Tx) error {
					_, _ = tx.Insert("Person", map[string]any{"id": 4, "score": 1.0})
					panic("boom")
				})
			}, ShouldPanic)
			tx, err := db.BeginWrite()
			So(err, ShouldBeNil)
			So(tx.Rollback(), ShouldBeNil)
		})

		Convey("同时只能有一个写事务", func() {
			tx, err := db.BeginWrite()
			So(err, ShouldBeNil)
			_, err = db.BeginWrite()
			So(err, ShouldNotBeNil)
			So(tx.Commit(ctx), ShouldBeNil)
			So(tx.Commit(ctx), ShouldNotBeNil)
			So(tx.Rollback(), ShouldBeNil)
		})

		Convey("删除后链接被置空", func() {
			So(db.Write(ctx, func(tx *Tx) error { return tx.Delete("Person", 0) }), ShouldBeNil)
			r, err := db.Where("Dog").IsNull("owner").FindAll(ctx)
			So(err, ShouldBeNil)
			So(r.Len(), ShouldEqual, 1)
		})

		Convey("InsertStruct 校验参数", func() {
			So(db.Write(ctx, func(tx *Tx) error {
				_, err := tx.InsertStruct(42)
				So(err, ShouldNotBeNil)
				var p *Person
				_, err = tx.InsertStruct(p)
				So(err, ShouldNotBeNil)
				_, err = tx.InsertStruct(struct{ A int }{})
				So(err, ShouldNotBeNil)
				return nil
			}), ShouldBeNil)
		})

		Convey("异步查询通过 Looper 完成", func() {
			obj, err := db.Where("Person").EqualTo("id", 3).FindFirstAsync(ctx)
			So(err, ShouldBeNil)
			So(obj.State(), ShouldEqual, query.Pending)

			waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			So(db.Looper().Wait(waitCtx, obj.IsLoaded), ShouldBeNil)
			name, err := obj.Get("name")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "b")
		})

		Convey("关闭后未完成的对象失效", func() {
			obj, err := db.Where("Person").EqualTo("id", 3).FindFirstAsync(ctx)
			So(err, ShouldBeNil)
			So(db.Close(), ShouldBeNil)
			So(obj.State(), ShouldEqual, query.LoadedInvalid)
			_, err = db.Where("Person").FindAll(ctx)
			So(errors.Is(err, query.ErrInvalidQueryState), ShouldBeTrue)
		})
	})

	Convey("测试队列已满时关闭", t, func() {
		options := quietOptions()
		options.Worker.QueueSize = 1
		options.Looper.QueueSize = 1
		db, err := Open(ctx, options, testSchema())
		So(err, ShouldBeNil)
		seed(ctx, db)

		objects := make([]*query.Object, 0, 8)
		for i := 0; i < 8; i++ {
			obj, err := db.Where("Person").EqualTo("id", 3).FindFirstAsync(ctx)
			So(err, ShouldBeNil)
			objects = append(objects, obj)
		}

		closed := make(chan error, 1)
		go func() { closed <- db.Close() }()
		select {
		case err := <-closed:
			So(err, ShouldBeNil)
		case <-time.After(5 * time.Second):
			So("db.Close blocked", ShouldBeEmpty)
		}
		for _, obj := range objects {
			So(obj.State(), ShouldNotEqual, query.Pending)
		}
	})

	Convey("测试默认配置", t, func() {
		db, err := Open(ctx, nil, testSchema())
		So(err, ShouldBeNil)
		So(db.Name(), ShouldEqual, "odb")
		So(db.Close(), ShouldBeNil)
	})
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	for _, storage := range []string{"boltdb", "leveldb", "pebble"} {
		Convey("测试持久化 "+storage, t, func() {
			options := quietOptions()
			options.Storage = StorageOptions{
				Type:  storage,
				Path:  filepath.Join(t.TempDir(), storage),
				Codec: "msgpack",
			}

			db, err := Open(ctx, options, testSchema())
			So(err, ShouldBeNil)
			seed(ctx, db)
			So(db.Close(), ShouldBeNil)

			db, err = Open(ctx, options, testSchema())
			So(err, ShouldBeNil)
			defer db.Close()

			So(db.Version(), ShouldEqual, uint64(1))
			count, err := db.Where("Person").Count(ctx)
			So(err, ShouldBeNil)
			So(count, ShouldEqual, int64(3))

			owner, err := db.Where("Dog").FindFirst(ctx)
			So(err, ShouldBeNil)
			person, err := owner.GetObject("owner")
			So(err, ShouldBeNil)
			id, err := person.Get("id")
			So(err, ShouldBeNil)
			So(id, ShouldEqual, int64(1))
		})
	}

	Convey("测试存储中的 schema 不一致", t, func() {
		options := quietOptions()
		options.Storage = StorageOptions{Type: "boltdb", Path: filepath.Join(t.TempDir(), "odb.db")}

		db, err := Open(ctx, options, testSchema())
		So(err, ShouldBeNil)
		seed(ctx, db)
		So(db.Close(), ShouldBeNil)

		other, err := schema.FromStructs(&Dog{}, &Person{}, &Cat{})
		So(err, ShouldBeNil)
		_, err = Open(ctx, options, other)
		So(err, ShouldNotBeNil)
	})
}

func TestOpenFile(t *testing.T) {
	ctx := context.Background()

	Convey("测试从配置文件打开", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "odb.yaml")
		content := `
name: file
storage:
  type: boltdb
  path: ` + filepath.Join(dir, "data.db") + `
logger:
  output: discard
observe:
  enableMetrics: false
`
		So(os.WriteFile(path, []byte(content), 0644), ShouldBeNil)

		db, err := OpenFile(ctx, path, testSchema())
		So(err, ShouldBeNil)
		defer db.Close()
		So(db.Name(), ShouldEqual, "file")
		seed(ctx, db)

		_, err = OpenFile(ctx, filepath.Join(dir, "missing.yaml"), testSchema())
		So(err, ShouldNotBeNil)

		bad := filepath.Join(dir, "bad.yaml")
		So(os.WriteFile(bad, []byte("storage:\n  type: redis\n"), 0644), ShouldBeNil)
		_, err = OpenFile(ctx, bad, testSchema())
		So(err, ShouldNotBeNil)
	})
}
