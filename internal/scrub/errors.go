package scrub

import (
	"errors"
	"fmt"
)

// Error codes carried by scrub errors.
const (
	ErrCodeValueNotScalar   = "VALUE_NOT_SCALAR"
	ErrCodeUnresolvedRef    = "UNRESOLVED_REFERENCE"
	ErrCodeUnknownScheme    = "UNKNOWN_SCHEME"
	ErrCodeInvalidBody      = "INVALID_BODY"
	ErrCodeEmptyPlaceholder = "EMPTY_PLACEHOLDER"
)

// ValueNotScalarError reports an input value that cannot be substituted as
// text: lists, or anything that is not a string, number, bool or object.
type ValueNotScalarError struct {
	Path  string
	Value any
}

func (e *ValueNotScalarError) Error() string {
	return fmt.Sprintf("%s: input %q has non-scalar value of type %T", ErrCodeValueNotScalar, e.Path, e.Value)
}

// ReferenceError reports a $NAME reference the lookup function could not
// resolve.
type ReferenceError struct {
	Code string
	Ref  string
	For  string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s: %s: reference $%s is not set", e.Code, e.For, e.Ref)
}

// ApplyError reports an interaction that could not be rewritten.
type ApplyError struct {
	Code  string
	Index int
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s: interaction %d: %v", e.Code, e.Index, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsValueNotScalar reports whether err is or wraps a *ValueNotScalarError.
func IsValueNotScalar(err error) bool {
	var target *ValueNotScalarError
	return errors.As(err, &target)
}
