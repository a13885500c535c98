package query

import (
	"context"
	"reflect"

	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/predicate"
	"github.com/pkg/errors"
)

// ClassOf 按结构体类型 T 创建查询，T 必须已注册到 schema
func ClassOf[T any](s *Session) *Query {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	name, ok := s.engine.Schema().TableFor(rt)
	if !ok {
		return &Query{
			session: s,
			source:  ClassSource{Type: rt},
			scope:   engine.TableScope{},
			builder: predicate.NewBuilder(),
			err:     errors.Wrapf(ErrInvalidQueryState, "type %v is not registered", rt),
		}
	}
	return s.Where(ClassSource{Type: rt, Name: name})
}

// FindAllAs 执行查询并把结果扫描为 []T
func FindAllAs[T any](ctx context.Context, q *Query) ([]T, error) {
	r, err := q.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var values []T
	if err := r.Scan(&values); err != nil {
		return nil, err
	}
	return values, nil
}

// FindFirstAs 执行查询并扫描第一个结果，没有匹配时返回 nil
func FindFirstAs[T any](ctx context.Context, q *Query) (*T, error) {
	obj, err := q.FindFirst(ctx)
	if err != nil || obj == nil {
		return nil, err
	}
	var v T
	if err := obj.Scan(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
