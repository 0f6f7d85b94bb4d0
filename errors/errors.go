// Package errors provides domain-specific error types for the bridge.
// All error types support error unwrapping via errors.As() and errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrUnsupportedType is the sentinel matched by errors.Is for any conversion
// failure caused by a value outside the supported type set.
var ErrUnsupportedType = stdErrors.New("unsupported type")

// ErrClosed is returned by bridge operations after the bridge has been shut
// down.
var ErrClosed = stdErrors.New("bridge is closed")

// UnsupportedTypeError reports that box or unbox encountered a host or guest
// value outside the supported type set. It wraps ErrUnsupportedType.
type UnsupportedTypeError struct {
	// Direction is "box" or "unbox".
	Direction string
	// Type names the offending type as reported by the originating side.
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: unsupported type %s", e.Direction, e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// NewBoxError returns an UnsupportedTypeError for the host-to-guest direction.
func NewBoxError(typeName string) *UnsupportedTypeError {
	return &UnsupportedTypeError{Direction: "box", Type: typeName}
}

// NewUnboxError returns an UnsupportedTypeError for the guest-to-host
// direction.
func NewUnboxError(typeName string) *UnsupportedTypeError {
	return &UnsupportedTypeError{Direction: "unbox", Type: typeName}
}

// LookupError reports that a named guest function does not exist in the
// guest's base namespace.
type LookupError struct {
	Err  error
	Name string
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("guest function %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("guest function %q not found", e.Name)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// EvalError reports a failure to parse or evaluate guest source text.
type EvalError struct {
	Err error
	Src string
}

func (e *EvalError) Error() string {
	src := e.Src
	if len(src) > 40 {
		src = src[:40] + "..."
	}
	return fmt.Sprintf("eval %q: %v", src, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// CallError reports a failure inside a guest callable invocation.
type CallError struct {
	Err   error
	Arity int
}

func (e *CallError) Error() string {
	return fmt.Sprintf("guest call (%d args) failed: %v", e.Arity, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
