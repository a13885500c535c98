package store

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestStores(t *testing.T) map[string]Store[string, []byte] {
	dir := t.TempDir()
	stores := map[string]Store[string, []byte]{}
	for _, typ := range []string{"memory", "boltdb", "leveldb", "pebble"} {
		s, err := NewStoreWithOptions[string, []byte](&Options{
			Type:     typ,
			Path:     filepath.Join(dir, typ),
			KeyCodec: "raw",
			ValCodec: "raw",
		})
		if err != nil {
			t.Fatalf("NewStoreWithOptions(%s) failed: %v", typ, err)
		}
		stores[typ] = s
	}
	return stores
}

func TestStoreBackends(t *testing.T) {
	ctx := context.Background()
	stores := newTestStores(t)
	defer func() {
		for _, s := range stores {
			_ = s.Close()
		}
	}()

	for typ, s := range stores {
		Convey("测试 "+typ+" 存储", t, func() {
			So(s.Set(ctx, "schema", []byte("v1")), ShouldBeNil)

			val, err := s.Get(ctx, "schema")
			So(err, ShouldBeNil)
			So(string(val), ShouldEqual, "v1")

			_, err = s.Get(ctx, "missing")
			So(err, ShouldEqual, ErrKeyNotFound)

			errs, err := s.BatchSet(ctx, []string{"table:A", "table:B"}, [][]byte{[]byte("a"), []byte("b")})
			So(err, ShouldBeNil)
			So(errs, ShouldHaveLength, 2)
			So(errs[0], ShouldBeNil)
			So(errs[1], ShouldBeNil)

			val, err = s.Get(ctx, "table:B")
			So(err, ShouldBeNil)
			So(string(val), ShouldEqual, "b")

			So(s.Del(ctx, "table:A"), ShouldBeNil)
			_, err = s.Get(ctx, "table:A")
			So(err, ShouldEqual, ErrKeyNotFound)
			So(s.Del(ctx, "table:A"), ShouldBeNil)

			_, err = s.BatchSet(ctx, []string{"x"}, nil)
			So(err, ShouldNotBeNil)
		})
	}
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()

	Convey("测试重新打开后数据仍在", t, func() {
		for _, typ := range []string{"boltdb", "leveldb", "pebble"} {
			options := &Options{Type: typ, Path: filepath.Join(t.TempDir(), typ), KeyCodec: "raw", ValCodec: "json"}

			s, err := NewStoreWithOptions[string, map[string]int](options)
			So(err, ShouldBeNil)
			So(s.Set(ctx, "k", map[string]int{"rows": 3}), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
			So(s.Close(), ShouldBeNil)

			s, err = NewStoreWithOptions[string, map[string]int](options)
			So(err, ShouldBeNil)
			val, err := s.Get(ctx, "k")
			So(err, ShouldBeNil)
			So(val["rows"], ShouldEqual, 3)
			So(s.Close(), ShouldBeNil)
		}
	})

	Convey("测试非法配置", t, func() {
		_, err := NewStoreWithOptions[string, []byte](&Options{Type: "redis"})
		So(err, ShouldNotBeNil)
		_, err = NewStoreWithOptions[string, []byte](&Options{Type: "boltdb"})
		So(err, ShouldNotBeNil)
		_, err = NewStoreWithOptions[string, []byte](&Options{Type: "memory"})
		So(err, ShouldBeNil)
	})
}

func TestFreeCacheStore(t *testing.T) {
	ctx := context.Background()

	Convey("测试 freecache 缓存", t, func() {
		s, err := NewFreeCacheStoreWithOptions[string, []int](&FreeCacheStoreOptions{Size: 1024 * 1024, KeyCodec: "raw"})
		So(err, ShouldBeNil)
		defer s.Close()

		So(s.Set(ctx, "Dog\x00owner.name", []int{2, 0}), ShouldBeNil)
		val, err := s.Get(ctx, "Dog\x00owner.name")
		So(err, ShouldBeNil)
		So(val, ShouldResemble, []int{2, 0})

		_, err = s.Get(ctx, "Dog\x00age")
		So(err, ShouldEqual, ErrKeyNotFound)
		So(s.HitRate(), ShouldBeGreaterThan, 0)

		So(s.Del(ctx, "Dog\x00owner.name"), ShouldBeNil)
		_, err = s.Get(ctx, "Dog\x00owner.name")
		So(err, ShouldEqual, ErrKeyNotFound)
	})
}
