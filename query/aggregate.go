package query

import (
	"context"
	"time"

	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

var numericKinds = []schema.Kind{schema.KindInteger, schema.KindFloat, schema.KindDouble}

// Count 匹配的行数
func (q *Query) Count(ctx context.Context) (int64, error) {
	var count int64
	err := q.aggregate(ctx, "query_count", "", nil, func(tq *engine.TableQuery, _ int) error {
		var err error
		count, err = tq.Count()
		return err
	})
	return count, err
}

// Sum int 列返回 int64，float 和 double 列返回 float64，没有匹配时为 0
func (q *Query) Sum(ctx context.Context, field string) (any, error) {
	var sum any
	err := q.aggregate(ctx, "query_sum", field, numericKinds, func(tq *engine.TableQuery, col int) error {
		var err error
		sum, err = tq.Sum(col)
		return err
	})
	return sum, err
}

// Average 没有匹配时为 0
func (q *Query) Average(ctx context.Context, field string) (float64, error) {
	var avg float64
	err := q.aggregate(ctx, "query_average", field, numericKinds, func(tq *engine.TableQuery, col int) error {
		var err error
		avg, err = tq.Average(col)
		return err
	})
	return avg, err
}

// Min 返回列类型的值，没有匹配时为 nil
func (q *Query) Min(ctx context.Context, field string) (any, error) {
	var v any
	err := q.aggregate(ctx, "query_min", field, numericKinds, func(tq *engine.TableQuery, col int) error {
		var err error
		v, err = tq.Min(col)
		return err
	})
	return v, err
}

// Max 返回列类型的值，没有匹配时为 nil
func (q *Query) Max(ctx context.Context, field string) (any, error) {
	var v any
	err := q.aggregate(ctx, "query_max", field, numericKinds, func(tq *engine.TableQuery, col int) error {
		var err error
		v, err = tq.Max(col)
		return err
	})
	return v, err
}

func (q *Query) MinimumDate(ctx context.Context, field string) (*time.Time, error) {
	var v *time.Time
	err := q.aggregate(ctx, "query_min_date", field, []schema.Kind{schema.KindDate}, func(tq *engine.TableQuery, col int) error {
		var err error
		v, err = tq.MinDate(col)
		return err
	})
	return v, err
}

func (q *Query) MaximumDate(ctx context.Context, field string) (*time.Time, error) {
	var v *time.Time
	err := q.aggregate(ctx, "query_max_date", field, []schema.Kind{schema.KindDate}, func(tq *engine.TableQuery, col int) error {
		var err error
		v, err = tq.MaxDate(col)
		return err
	})
	return v, err
}

// aggregate 聚合只解析表本身的列，field 为空时不解析
func (q *Query) aggregate(ctx context.Context, operation, field string, kinds []schema.Kind, fn func(*engine.TableQuery, int) error) error {
	node, err := q.compile()
	if err != nil {
		return err
	}
	col := -1
	if field != "" {
		if col, _, err = q.session.resolver.ResolveColumn(q.Table(), field, kinds...); err != nil {
			return err
		}
	}

	return q.session.observer.Observe(ctx, operation, func(ctx context.Context) error {
		snap, err := q.session.current()
		if err != nil {
			return err
		}
		return wrapEngineError(fn(snap.Where(q.scope, node), col))
	})
}

// wrapEngineError 作用域失效的引擎错误转换为 ErrInvalidQueryState，其余原样返回
func wrapEngineError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, engine.ErrDetached) || errors.Is(err, engine.ErrClosed) {
		return errors.Wrap(ErrInvalidQueryState, err.Error())
	}
	if errors.Is(err, engine.ErrUnsupportedNode) {
		return errors.Wrap(ErrMalformedPredicate, err.Error())
	}
	return err
}
