// Package apierrors implements the seven-member error taxonomy (spec §7)
// and the single normalization boundary every handler funnels through on
// its way out to a models.ResponseEnvelope.
package apierrors

import (
	"errors"
	"fmt"
)

// Kind is one of the seven closed error categories.
type Kind string

const (
	InvalidInput   Kind = "InvalidInput"
	NotFound       Kind = "NotFound"
	Ambiguous      Kind = "Ambiguous"
	Connectivity   Kind = "Connectivity"
	Timeout        Kind = "Timeout"
	BufferOverflow Kind = "BufferOverflow"
	RemoteFailure  Kind = "RemoteFailure"
)

// Error is the normalized, user-facing error. Message is a short English
// phrase; it must never contain credentials, stack traces, or raw paths
// that could leak host secrets.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a normalized error directly, for call sites that already know
// the kind (most handler validation code).
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and contextual message to a lower-level error,
// preserving it for %w-style unwrapping by logging middleware while keeping
// the user-facing message free of internal detail.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// As extracts an *Error from err, or returns (nil, false).
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to RemoteFailure for any error
// that did not already carry a normalized Kind — the handler boundary must
// never let a bare error escape as a success.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return RemoteFailure
}

// Normalize converts any error into a normalized *Error, defaulting unknown
// errors to RemoteFailure with their message preserved verbatim (per §7:
// "RemoteFailure ... message preserved").
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return &Error{Kind: RemoteFailure, Message: err.Error(), cause: err}
}
