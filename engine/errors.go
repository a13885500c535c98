package engine

import "github.com/pkg/errors"

var (
	ErrClosed          = errors.New("engine is closed")
	ErrNoTransaction   = errors.New("not in a write transaction")
	ErrInTransaction   = errors.New("write transaction already in progress")
	ErrTableNotFound   = errors.New("table not found")
	ErrColumnNotFound  = errors.New("column not found")
	ErrRowNotFound     = errors.New("row not found")
	ErrInvalidValue    = errors.New("invalid value for column")
	ErrNullValue       = errors.New("null value for non-nullable column")
	ErrSchemaMismatch  = errors.New("stored schema does not match")
	ErrDetached        = errors.New("scope is detached")
	ErrUnsupportedNode = errors.New("unsupported predicate node")
)
