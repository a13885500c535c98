package odb

import (
	"context"
	"io"

	"github.com/hatlonely/odb/async"
	"github.com/hatlonely/odb/cfg"
	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/kv/store"
	"github.com/hatlonely/odb/log"
	"github.com/hatlonely/odb/log/logger"
	"github.com/hatlonely/odb/observe"
	"github.com/hatlonely/odb/query"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

type StorageOptions struct {
	// 存储类型：memory, boltdb, leveldb, pebble
	Type string `cfg:"type" def:"memory" validate:"omitempty,oneof=memory boltdb leveldb pebble"`

	// 数据库路径，memory 以外的类型必填
	Path string `cfg:"path"`

	// 快照编码：msgpack, json, bson
	Codec string `cfg:"codec" def:"msgpack" validate:"omitempty,oneof=msgpack json bson"`
}

type Options struct {
	Name          string              `cfg:"name" def:"odb"`
	Storage       StorageOptions      `cfg:"storage"`
	Worker        async.WorkerOptions `cfg:"worker"`
	Looper        async.LooperOptions `cfg:"looper"`
	Logger        *logger.SLogOptions `cfg:"logger"`
	Observe       observe.Options     `cfg:"observe"`
	PathCacheSize int                 `cfg:"pathCacheSize" def:"1048576" validate:"min=0"`
}

// DB 打开的数据库，只能在打开它的 goroutine 上使用；
// 异步查询的结果通过 Looper 回到该 goroutine
type DB struct {
	name    string
	backend store.Store[string, []byte]
	engine  *engine.Engine
	session *query.Session
	worker  *async.Worker
	looper  *async.Looper
	logger  logger.Logger
	closer  io.Closer
}

// OpenFile 从配置文件加载 Options 后打开数据库
func OpenFile(ctx context.Context, path string, s *schema.Schema) (*DB, error) {
	var options Options
	if err := cfg.Load(path, &options); err != nil {
		return nil, errors.WithMessagef(err, "load config %s failed", path)
	}
	return Open(ctx, &options, s)
}

// Open options 为空时使用内存存储，不持久化
func Open(ctx context.Context, options *Options, s *schema.Schema) (*DB, error) {
	if options == nil {
		options = &Options{}
		if err := cfg.SetDefaults(options); err != nil {
			return nil, err
		}
	}

	l, err := log.NewLoggerWithOptions(options.Logger)
	if err != nil {
		return nil, err
	}
	db := &DB{name: options.Name, logger: l}
	if options.Logger != nil {
		if c, ok := l.(io.Closer); ok {
			db.closer = c
		}
	}
	l = l.With("db", options.Name)

	ok := false
	defer func() {
		if !ok {
			db.release()
		}
	}()

	observer := observe.New(&options.Observe, l)

	if options.Storage.Type != "" && options.Storage.Type != "memory" {
		backend, err := store.NewStoreWithOptions[string, []byte](&store.Options{
			Type: options.Storage.Type,
			Path: options.Storage.Path,
		})
		if err != nil {
			return nil, errors.WithMessagef(err, "open %s storage failed", options.Storage.Type)
		}
		db.backend = store.NewObservableStore(backend, observer)
	}

	db.engine, err = engine.New(ctx, s, db.backend, &engine.Options{Codec: options.Storage.Codec}, l.WithGroup("engine"))
	if err != nil {
		return nil, errors.WithMessage(err, "engine.New failed")
	}

	resolver, err := query.NewResolver(s, options.PathCacheSize)
	if err != nil {
		return nil, errors.WithMessage(err, "query.NewResolver failed")
	}
	if db.worker, err = async.NewWorker(&options.Worker, l.WithGroup("async")); err != nil {
		return nil, errors.WithMessage(err, "async.NewWorker failed")
	}
	db.looper = async.NewLooper(&options.Looper)

	db.session, err = query.NewSession(db.engine, &query.SessionOptions{
		Resolver: resolver,
		Worker:   db.worker,
		Looper:   db.looper,
		Logger:   l,
		Observer: observer,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "query.NewSession failed")
	}

	ok = true
	l.InfoContext(ctx, "database opened", "storage", options.Storage.Type, "version", db.engine.Version())
	return db, nil
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Schema() *schema.Schema {
	return db.engine.Schema()
}

func (db *DB) Session() *query.Session {
	return db.session
}

// Looper 异步查询结果的事件循环，需要在打开数据库的 goroutine 上 Poll 或 Wait
func (db *DB) Looper() *async.Looper {
	return db.looper
}

// Version 最近一次提交的版本号
func (db *DB) Version() uint64 {
	return db.engine.Version()
}

// Where 按表名创建查询
func (db *DB) Where(table string) *query.Query {
	return db.session.Where(query.DynamicSource{Name: table})
}

// Of 按结构体类型创建查询
func Of[T any](db *DB) *query.Query {
	return query.ClassOf[T](db.session)
}

// Close 未完成的异步对象变为 LoadedInvalid，之后关闭事件循环、后台 worker 和存储
func (db *DB) Close() error {
	if db.session != nil {
		db.session.Close()
	}
	return db.release()
}

func (db *DB) release() error {
	var firstErr error
	record := func(err error, message string) {
		if err != nil && firstErr == nil {
			firstErr = errors.WithMessage(err, message)
		}
	}

	// 先关闭 Looper，阻塞在 Post 上的后台任务随之返回，worker 才能退出
	if db.looper != nil {
		db.looper.Close()
	}
	if db.worker != nil {
		record(db.worker.Close(), "close worker failed")
		db.worker = nil
	}
	if db.engine != nil {
		record(db.engine.Close(), "close engine failed")
	}
	if db.backend != nil {
		record(db.backend.Close(), "close storage failed")
		db.backend = nil
	}
	if db.closer != nil {
		record(db.closer.Close(), "close logger failed")
		db.closer = nil
	}
	return firstErr
}
