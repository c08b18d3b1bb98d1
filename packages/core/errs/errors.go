// Package errs defines the error kinds surfaced by the capis pipeline.
//
// Every stage wraps its failures in an *Error carrying a Kind, so callers
// can decide per input whether a failure aborts that input (malformed
// document, build failure) or is only reported (transport failure).
package errs

import (
	"errors"
	"fmt"
)

// Kind is the category of a pipeline failure
type Kind int

const (
	KindUnknown Kind = iota
	// KindDocumentMalformed: the event stream failed or ended before the
	// top-level mapping closed
	KindDocumentMalformed
	// KindAllocation: an intermediate buffer could not grow
	KindAllocation
	// KindBuild: the request builder could not assemble a wire request
	KindBuild
	// KindTransport: the HTTP call did not complete
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindDocumentMalformed:
		return "document malformed"
	case KindAllocation:
		return "allocation failure"
	case KindBuild:
		return "build failure"
	case KindTransport:
		return "transport failure"
	default:
		return "unknown error"
	}
}

// Error is a categorized pipeline error
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "no error"
	}
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an error of the given kind with a formatted cause
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether any error in err's chain has the given kind
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the outermost kind in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
