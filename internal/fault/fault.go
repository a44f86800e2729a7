// Package fault defines the typed error taxonomy shared by every pipeline
// stage. Callers can distinguish "your input is bad" kinds (NotFound,
// InvalidInput, PermissionDenied, Unsupported) from "the system could not
// complete this" kinds (Unavailable, OutOfMemory, Internal, Timeout).
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound         Kind = "not_found"
	PermissionDenied Kind = "permission_denied"
	InvalidInput     Kind = "invalid_input"
	Unsupported      Kind = "unsupported"
	Unavailable      Kind = "unavailable"
	OutOfMemory      Kind = "out_of_memory"
	Internal         Kind = "internal"
	Timeout          Kind = "timeout"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so errors.Is(err, fault.New(kind, ""))
// style checks work. Prefer KindOf for readability.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind carried by err, or Internal for untyped errors.
// A nil err has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether the nearest classified error in err's chain carries
// the given kind. Re-wrapping an error deliberately re-classifies it, so only
// the outermost kind counts.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the error kind is worth retrying by a caller
// policy. The pipeline itself never retries.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Unavailable, Timeout:
		return true
	default:
		return false
	}
}
