package query

import (
	"github.com/pkg/errors"
)

var (
	ErrFieldNotFound                       = errors.New("field not found")
	ErrInvalidLinkPath                     = errors.New("invalid link path")
	ErrTypeMismatch                        = errors.New("type mismatch")
	ErrUnsupportedCaseInsensitiveLinkQuery = errors.New("case-insensitive not-equal is not supported across links")
	ErrArityMismatch                       = errors.New("arity mismatch")
	ErrMalformedPredicate                  = errors.New("malformed predicate")
	ErrNotYetLoaded                        = errors.New("object is not loaded yet")
	ErrInvalidQueryState                   = errors.New("invalid query state")
)

// ErrEmptyValues In 的取值为空
var ErrEmptyValues = errors.WithMessage(ErrArityMismatch, "non-empty values must be provided")
