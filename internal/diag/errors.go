// Package diag carries the diagnostics model shared by every pipeline stage:
// the error taxonomy, row-scoped issues, the accumulating Report, and the
// user-facing error code catalog.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. A Kind is itself an error so callers
// can test an error chain with errors.Is(err, diag.RemoteError).
type Kind string

func (k Kind) Error() string { return string(k) }

// Error kinds.
const (
	// ValidationError is a bad, missing or conflicting field on one row.
	ValidationError Kind = "validation error"
	// ResolutionError is a file or glob that did not resolve, or an image
	// that is too small or unreadable.
	ResolutionError Kind = "resolution error"
	// CacheConsistencyError is a changed source file that was not allowed
	// to replace its cached upload.
	CacheConsistencyError Kind = "cache consistency error"
	// MergeConflictError is an identity mismatch or duplicate slug/id.
	MergeConflictError Kind = "merge conflict"
	// RemoteError is an upload, list or download failure, or missing
	// service credentials.
	RemoteError Kind = "remote error"
	// IOError is a local read or write failure.
	IOError Kind = "io error"
)

// Error is a classified failure. Row is the 1-based source line when the
// failure is row-scoped, zero otherwise. Source names the file, object or
// spec the failure concerns.
type Error struct {
	Kind   Kind
	Row    int
	Source string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Source != "" {
		msg = msg + " (" + e.Source + ")"
	}
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. It returns nil when err is nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// AtRow returns a copy of e scoped to a source row.
func (e *Error) AtRow(row int) *Error {
	cp := *e
	cp.Row = row
	return &cp
}

// WithSource returns a copy of e naming the file, object or spec involved.
func (e *Error) WithSource(source string) *Error {
	cp := *e
	cp.Source = source
	return &cp
}

// KindOf returns the Kind of the first classified error in err's chain, or
// the empty Kind when none is found.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}
