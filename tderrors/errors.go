// Package tderrors defines the error taxonomy shared by the cell re-layout
// and filter pipelines. Errors carry a Kind so callers can branch on category
// (e.g. recoverable buffer overflow) without string matching, the same way
// github.com/grailbio/base/errors lets callers branch on errors.Kind.
package tderrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error into one of the taxonomy buckets from the core's
// error handling design. It is not a concrete error type: two errors of the
// same Kind may carry different messages and wrapped causes.
type Kind int

const (
	// Other is the zero value, used when no more specific kind applies.
	Other Kind = iota
	// BufferOverflow means a user buffer could not hold the next cell slab.
	// It is recoverable: the caller may retry with a larger buffer.
	BufferOverflow
	// ReadOnly means a mutating operation was attempted on a read-only buffer.
	ReadOnly
	// FixedAllocViolation means a second prepend/append was attempted on a
	// fixed-allocation buffer.
	FixedAllocViolation
	// CompressionError means a codec rejected its input or produced a
	// malformed stream.
	CompressionError
	// StorageError means the underlying file I/O failed.
	StorageError
	// InvalidArgument means an option was out of range, a type was
	// incompatible, or a required setting was missing.
	InvalidArgument
	// NotSupported means the requested capability (e.g. an optional codec)
	// is not available in this build.
	NotSupported
)

func (k Kind) String() string {
	switch k {
	case BufferOverflow:
		return "buffer overflow"
	case ReadOnly:
		return "read only"
	case FixedAllocViolation:
		return "fixed allocation violation"
	case CompressionError:
		return "compression error"
	case StorageError:
		return "storage error"
	case InvalidArgument:
		return "invalid argument"
	case NotSupported:
		return "not supported"
	default:
		return "error"
	}
}

// Error is the concrete error type produced by this module. It pairs a Kind
// with a message and an optional wrapped cause, mirroring the
// upspin/grailbio style errors.Error without depending on the exact Kind set
// of github.com/grailbio/base/errors (whose taxonomy is fixed to filesystem
// concerns and does not cover BufferOverflow, CompressionError, etc.).
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap lets the standard library's errors.Is/errors.As see through to the
// wrapped error.
func (e *Error) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface, so
// errors.Cause(err) unwraps an *Error the same way it unwraps a
// pkg/errors-wrapped one.
func (e *Error) Cause() error { return e.Err }

// E constructs an *Error. Pass a Kind, an op string, a wrapped error, and/or
// a message string, in any order; the first string is the op and the last
// later string is the message. No formatting is applied, and arguments of
// any other type are ignored. A wrapped error that isn't
// already an *Error is annotated with errors.WithStack before being stored,
// so the cause can be attributed back to a source line with %+v.
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, a := range args {
		switch v := a.(type) {
		case Kind:
			e.Kind = v
		case *Error:
			e.Err = v
		case error:
			e.Err = errors.WithStack(v)
		case string:
			if e.Op == "" && e.Message == "" {
				e.Op = v
			} else {
				e.Message = v
			}
		}
	}
	return e
}

// Errorf is a convenience constructor for a plain-message Other-kind error.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Kind: Other, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error of the given Kind.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
