package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidDesignSpace is matched by a StatusError carrying 422, which the
// backend returns when it cannot use the design space it was sent.
var ErrInvalidDesignSpace = errors.New("backend rejected the design space")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := e.Body
	if msg == "" {
		msg = http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, msg)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnprocessableEntity {
		return ErrInvalidDesignSpace
	}
	return nil
}

// PayloadError is a 2xx answer whose body could not be decoded.
type PayloadError struct {
	Path string
	Err  error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }
