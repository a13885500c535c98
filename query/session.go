package query

import (
	"sync"

	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/log"
	"github.com/hatlonely/odb/log/logger"
	"github.com/hatlonely/odb/observe"
	"github.com/pkg/errors"
)

// Submitter 在后台 goroutine 上执行任务
type Submitter interface {
	Submit(task func()) error
}

// Poster 把任务投递到所有者 goroutine 的事件循环
type Poster interface {
	Post(task func()) error
}

type SessionOptions struct {
	Resolver *Resolver
	Worker   Submitter
	Looper   Poster
	Logger   logger.Logger
	Observer *observe.Observer
}

// Session 查询共享的数据库会话，只属于打开它的 goroutine
type Session struct {
	engine   *engine.Engine
	resolver *Resolver
	worker   Submitter
	looper   Poster
	logger   logger.Logger
	observer *observe.Observer

	mu      sync.Mutex
	closed  bool
	pending map[*Object]struct{}
}

// NewSession Resolver 为空时创建不带缓存的解析器；Worker 或 Looper 为空时异步查询退化为同步
func NewSession(eng *engine.Engine, options *SessionOptions) (*Session, error) {
	if eng == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if options == nil {
		options = &SessionOptions{}
	}

	resolver := options.Resolver
	if resolver == nil {
		var err error
		if resolver, err = NewResolver(eng.Schema(), 0); err != nil {
			return nil, err
		}
	}
	l := options.Logger
	if l == nil {
		l = log.Default()
	}

	return &Session{
		engine:   eng,
		resolver: resolver,
		worker:   options.Worker,
		looper:   options.Looper,
		logger:   l.WithGroup("query"),
		observer: options.Observer,
		pending:  make(map[*Object]struct{}),
	}, nil
}

func (s *Session) Engine() *engine.Engine {
	return s.engine
}

func (s *Session) Resolver() *Resolver {
	return s.resolver
}

// Where 在整张表上创建查询
func (s *Session) Where(src Source) *Query {
	return newQuery(s, src, engine.TableScope{Name: src.Table()})
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close 未完成的异步对象变为 LoadedInvalid
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for obj := range pending {
		obj.rebind(0, false)
	}
	if len(pending) > 0 {
		s.logger.Info("pending objects invalidated on close", "count", len(pending))
	}
}

// current 所有者 goroutine 看到的快照，写事务中包含未提交的修改
func (s *Session) current() (*engine.Snapshot, error) {
	if s.IsClosed() {
		return nil, errors.Wrap(ErrInvalidQueryState, "session is closed")
	}
	snap, err := s.engine.Current()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidQueryState, err.Error())
	}
	return snap, nil
}

func (s *Session) track(obj *Object) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending[obj] = struct{}{}
	return true
}

func (s *Session) untrack(obj *Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, obj)
}
