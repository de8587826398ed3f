// Package errs defines the stable error kinds shared by every component of
// the ingest-to-file-list pipeline, so that callers across package
// boundaries (codec -> wal -> ingest -> client response) can branch on a
// single small vocabulary instead of package-private sentinel values.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a stable, client-visible error classification.
type Kind string

const (
	BadRequest  Kind = "bad_request"
	Throttled   Kind = "throttled"
	OutOfRange  Kind = "out_of_range"
	Timeout     Kind = "timeout"
	Unavailable Kind = "unavailable"
	Incomplete  Kind = "incomplete"
	Internal    Kind = "internal"
)

// Error is the typed error carried across component boundaries. Client
// responses mirror its exported fields: {code, message, retry_after?, trace_id}.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	TraceID    string
	Missing    []string // for Incomplete: partitions/files that were not scanned
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Wrap attaches a kind and message to an existing error without losing it.
func Wrap(kind Kind, cause error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, a...), Cause: cause}
}

// WithRetryAfter returns a copy of err with RetryAfter set, used by the
// ingest coordinator's Throttled responses.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	cp := *e
	cp.RetryAfter = d
	return &cp
}

// WithTraceID returns a copy of err with TraceID set.
func (e *Error) WithTraceID(id string) *Error {
	cp := *e
	cp.TraceID = id
	return &cp
}

// WithMissing returns a copy of err (expected to be Incomplete) annotated
// with the partitions that could not be scanned.
func (e *Error) WithMissing(missing []string) *Error {
	cp := *e
	cp.Missing = missing
	return &cp
}

// KindOf extracts the Kind of err, defaulting to Internal for errors that
// were never classified -- an invariant violation by definition, since every
// boundary must translate foreign errors before returning them.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Retryable reports whether a local retry (not a client retry) makes sense
// for this kind. Internal is never retried, per spec.
func Retryable(kind Kind) bool {
	switch kind {
	case Unavailable, Timeout, Throttled:
		return true
	default:
		return false
	}
}
