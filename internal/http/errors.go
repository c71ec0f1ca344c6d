package http

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned for attempts that run against a pool that was
	// closed while they were queued or in flight.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrInvalidValue marks caller configuration errors such as an
	// unsupported response shape or an unparseable endpoint.
	ErrInvalidValue = errors.New("invalid value")

	// ErrIntegrity marks data that failed an integrity check.
	ErrIntegrity = errors.New("integrity check failed")
)

// ResponseError is a protocol-level fault raised while a response was being
// received, such as exceeding the redirect limit.
type ResponseError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("response error %d: %s", e.Status, e.Message)
	}
	return "response error: " + e.Message
}

// PayloadError wraps a failure to read the response body.
type PayloadError struct {
	Err error
}

// Error implements the error interface.
func (e *PayloadError) Error() string {
	return "read response body: " + e.Err.Error()
}

// Unwrap returns the underlying read error.
func (e *PayloadError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a payload cannot be decoded into the
// requested shape.
type DecodeError struct {
	Shape Shape
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Shape, e.Err)
}

// Unwrap returns the underlying decode error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func invalidValue(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidValue, fmt.Sprintf(format, args...))
}
