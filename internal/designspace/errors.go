package designspace

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyAxisName   = errors.New("axis name is empty")
	ErrDuplicateAxis   = errors.New("axis already exists")
	ErrInvalidStatus   = errors.New("invalid axis status")
	ErrNoExploringAxis = errors.New("no axis is exploring")
	// ErrSuperseded is returned to the caller of a regeneration whose
	// response arrived after a newer request was issued. The response is
	// discarded.
	ErrSuperseded = errors.New("regeneration superseded by a newer request")
)

// ValidationError is a user-facing precondition failure. No network call
// has been made when one is returned.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// PayloadError reports a backend response that does not have the expected
// shape.
type PayloadError struct {
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed generation payload: %s: %s", e.Field, e.Reason)
}
