package query

import (
	"context"
	"reflect"

	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/predicate"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Results 查询结果集合，绑定到查询的作用域，Reload 在最新快照上重新计算
type Results struct {
	session  *Session
	source   Source
	scope    engine.Scope
	node     predicate.Node
	sort     *SortDescriptor
	distinct *DistinctDescriptor

	rows    []int
	version uint64
	state   State
}

func (r *Results) Table() string {
	return r.scope.Table()
}

func (r *Results) State() State {
	return r.state
}

// Version 结果所基于的快照版本
func (r *Results) Version() uint64 {
	return r.version
}

func (r *Results) Len() int {
	return len(r.rows)
}

// Rows 结果的行号副本
func (r *Results) Rows() []int {
	return append([]int(nil), r.rows...)
}

// IsValid 会话未关闭且作用域仍然存在
func (r *Results) IsValid() bool {
	snap, err := r.session.current()
	if err != nil {
		return false
	}
	if sc, ok := r.scope.(engine.LinkListScope); ok {
		return snap.IsLive(sc.Owner, sc.Row)
	}
	return true
}

// Get 第 i 个对象
func (r *Results) Get(i int) (*Object, error) {
	if i < 0 || i >= len(r.rows) {
		return nil, errors.Errorf("index %d out of range [0, %d)", i, len(r.rows))
	}
	if !r.IsValid() {
		return nil, errors.Wrap(ErrInvalidQueryState, "results are no longer valid")
	}
	return newObject(r.session, r.Table(), r.rows[i]), nil
}

// Reload 在当前快照上重新执行查询
func (r *Results) Reload(ctx context.Context) error {
	return r.evaluate(ctx, "results_reload")
}

// Where 在当前结果之上继续查询
func (r *Results) Where() *Query {
	return newQuery(r.session, r.source, engine.ViewScope{Name: r.Table(), Rows: r.Rows()})
}

// Sort 返回按 fields 排序的新结果，当前结果不变
func (r *Results) Sort(ctx context.Context, fields []string, orders []Sort) (*Results, error) {
	desc, err := CompileSort(r.session.resolver, r.Table(), fields, orders)
	if err != nil {
		return nil, err
	}
	next := r.derive()
	next.sort = desc
	if err := next.evaluate(ctx, "results_sort"); err != nil {
		return nil, err
	}
	return next, nil
}

// Distinct 返回按 fields 去重的新结果
func (r *Results) Distinct(ctx context.Context, fields ...string) (*Results, error) {
	desc, err := CompileDistinct(r.session.resolver, r.Table(), fields)
	if err != nil {
		return nil, err
	}
	next := r.derive()
	next.distinct = desc
	if err := next.evaluate(ctx, "results_distinct"); err != nil {
		return nil, err
	}
	return next, nil
}

// Scan 把结果写入结构体切片，dest 为 *[]T 或 *[]*T
func (r *Results) Scan(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Slice {
		return errors.Errorf("scan destination must be a pointer to slice, got %T", dest)
	}
	snap, err := r.session.current()
	if err != nil {
		return err
	}

	slice := reflect.MakeSlice(rv.Elem().Type(), len(r.rows), len(r.rows))
	for i, row := range r.rows {
		if !snap.IsLive(r.Table(), row) {
			return errors.Wrapf(ErrInvalidQueryState, "table %s row %d was deleted", r.Table(), row)
		}
		if err := scanRow(snap, r.Table(), row, slice.Index(i)); err != nil {
			return errors.WithMessagef(err, "row %d", row)
		}
	}
	rv.Elem().Set(slice)
	return nil
}

// derive 沿用原结果的范围和条件，Reload 时重新过滤
func (r *Results) derive() *Results {
	return &Results{
		session:  r.session,
		source:   r.source,
		scope:    r.scope,
		node:     r.node,
		sort:     r.sort,
		distinct: r.distinct,
	}
}

// evaluate 依次执行过滤、排序、去重
func (r *Results) evaluate(ctx context.Context, operation string) error {
	r.state = Evaluating
	attrs := []attribute.KeyValue{attribute.String("table", r.Table()), attribute.String("scope", r.scope.String())}
	err := r.session.observer.Observe(ctx, operation, func(ctx context.Context) error {
		snap, err := r.session.current()
		if err != nil {
			return err
		}
		rows, err := snap.Where(r.scope, r.node).FindAll()
		if err != nil {
			return wrapEngineError(err)
		}
		if r.sort != nil {
			if rows, err = snap.Sort(r.Table(), rows, r.sort.Keys); err != nil {
				return err
			}
		}
		if r.distinct != nil {
			if rows, err = snap.Distinct(r.Table(), rows, r.distinct.Columns); err != nil {
				return err
			}
		}
		r.rows, r.version = rows, snap.Version()
		r.session.observer.ObserveRows(operation, len(rows))
		return nil
	}, attrs...)
	if err != nil {
		r.state = Failed
		return err
	}
	r.state = Ready
	return nil
}
