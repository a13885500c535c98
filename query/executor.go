package query

import (
	"context"

	"github.com/hatlonely/odb/async"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// FindAll 按作用域顺序返回所有匹配的对象
func (q *Query) FindAll(ctx context.Context) (*Results, error) {
	return q.execute(ctx, "query_find_all", nil, nil)
}

// FindAllSorted 按单个字段排序，默认升序
func (q *Query) FindAllSorted(ctx context.Context, field string, order ...Sort) (*Results, error) {
	if len(order) > 1 {
		return nil, q.failed(errors.Wrapf(ErrArityMismatch, "one sort order expected for field '%s', got %d", field, len(order)))
	}
	if len(order) == 0 {
		order = []Sort{Ascending}
	}
	return q.FindAllSortedMulti(ctx, []string{field}, order)
}

// FindAllSortedMulti 按多个字段排序，fields 与 orders 一一对应
func (q *Query) FindAllSortedMulti(ctx context.Context, fields []string, orders []Sort) (*Results, error) {
	if q.err != nil {
		return nil, q.failed(q.err)
	}
	desc, err := CompileSort(q.session.resolver, q.Table(), fields, orders)
	if err != nil {
		return nil, q.failed(err)
	}
	return q.execute(ctx, "query_find_all_sorted", desc, nil)
}

// Distinct 每组字段值只保留第一个对象
func (q *Query) Distinct(ctx context.Context, field string, more ...string) (*Results, error) {
	if q.err != nil {
		return nil, q.failed(q.err)
	}
	desc, err := CompileDistinct(q.session.resolver, q.Table(), append([]string{field}, more...))
	if err != nil {
		return nil, q.failed(err)
	}
	return q.execute(ctx, "query_distinct", nil, desc)
}

func (q *Query) execute(ctx context.Context, operation string, sort *SortDescriptor, distinct *DistinctDescriptor) (*Results, error) {
	node, err := q.compile()
	if err != nil {
		return nil, q.failed(err)
	}
	q.state = Evaluating
	q.session.logger.DebugContext(ctx, "execute query", "operation", operation, "table", q.Table(), "predicate", node.String())

	r := &Results{
		session:  q.session,
		source:   q.source,
		scope:    q.scope,
		node:     node,
		sort:     sort,
		distinct: distinct,
	}
	if err := r.evaluate(ctx, operation); err != nil {
		return nil, q.failed(err)
	}
	q.state = Ready
	return r, nil
}

// FindFirst 第一个匹配的对象，没有匹配时返回 nil
func (q *Query) FindFirst(ctx context.Context) (*Object, error) {
	node, err := q.compile()
	if err != nil {
		return nil, q.failed(err)
	}
	q.state = Evaluating

	var obj *Object
	err = q.session.observer.Observe(ctx, "query_find_first", func(ctx context.Context) error {
		snap, err := q.session.current()
		if err != nil {
			return err
		}
		row, found, err := snap.Where(q.scope, node).Find()
		if err != nil {
			return wrapEngineError(err)
		}
		if found {
			obj = newObject(q.session, q.Table(), row)
		}
		return nil
	}, attribute.String("table", q.Table()))
	if err != nil {
		return nil, q.failed(err)
	}
	q.state = Ready
	return obj, nil
}

// FindFirstAsync 立即返回 Pending 对象，后台完成后在事件循环上绑定结果。
// 写事务中、没有后台 worker 或者 worker 队列已满时同步执行，返回已加载的对象
func (q *Query) FindFirstAsync(ctx context.Context) (*Object, error) {
	node, err := q.compile()
	if err != nil {
		return nil, q.failed(err)
	}

	s := q.session
	if s.worker == nil || s.looper == nil || s.engine.InTransaction() {
		obj, err := q.FindFirst(ctx)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return newInvalidObject(s, q.Table()), nil
		}
		return obj, nil
	}

	obj := newPendingObject(s, q.scope, node)
	if !s.track(obj) {
		return nil, q.failed(errors.Wrap(ErrInvalidQueryState, "session is closed"))
	}

	eng, looper, logger, scope := s.engine, s.looper, s.logger, q.scope
	err = s.observer.Observe(ctx, "query_find_first_async", func(ctx context.Context) error {
		return s.worker.Submit(func() {
			var (
				row     int
				found   bool
				version uint64
			)
			snap, err := eng.Committed()
			if err == nil {
				version = snap.Version()
				row, found, err = snap.Where(scope, node).Find()
			}
			if postErr := looper.Post(func() { obj.deliver(row, found, version, err) }); postErr != nil {
				logger.Warn("deliver pending object failed", "table", scope.Table(), "error", postErr.Error())
			}
		})
	}, attribute.String("table", q.Table()))
	if errors.Is(err, async.ErrQueueFull) {
		// 后台队列已满，在当前 goroutine 上完成，避免等待只能由自己驱动的事件循环
		s.logger.DebugContext(ctx, "worker queue is full, resolve pending object synchronously", "table", q.Table())
		if err := obj.Load(ctx); err != nil {
			return nil, q.failed(err)
		}
		q.state = Ready
		return obj, nil
	}
	if err != nil {
		s.untrack(obj)
		return nil, q.failed(errors.Wrap(ErrInvalidQueryState, err.Error()))
	}
	q.state = Ready
	return obj, nil
}

func (q *Query) failed(err error) error {
	q.state = Failed
	return err
}

