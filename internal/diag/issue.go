package diag

// issue.go provides the accumulate-then-fail model used by every stage.
//
// Row and source-scoped problems are appended to a Report in the order they
// are found. A stage never stops at the first defect; the caller inspects
// the Report once the pass is complete and fails when it holds any error.

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Level is the severity of an Issue.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
)

// Issue is one diagnostic produced while processing input.
type Issue struct {
	Level   Level  `json:"level"`
	Kind    Kind   `json:"kind,omitempty"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Row > 0 {
		return fmt.Sprintf("row %d: %s", i.Row, i.Message)
	}
	return i.Message
}

// Report accumulates issues in discovery order.
// The zero value is ready to use.
type Report struct {
	issues []Issue
}

// Warn records an advisory issue.
func (r *Report) Warn(row int, format string, args ...any) {
	r.issues = append(r.issues, Issue{Level: LevelWarn, Row: row, Message: fmt.Sprintf(format, args...)})
}

// Fail records a fatal issue of the given kind.
func (r *Report) Fail(kind Kind, row int, format string, args ...any) {
	r.issues = append(r.issues, Issue{Level: LevelError, Kind: kind, Row: row, Message: fmt.Sprintf(format, args...)})
}

// Either records a fatal issue when strict is set and a warning otherwise.
func (r *Report) Either(strict bool, kind Kind, row int, format string, args ...any) {
	if strict {
		r.Fail(kind, row, format, args...)
		return
	}
	r.Warn(row, format, args...)
}

// AddError records err as a fatal issue. Classified errors keep their kind
// and row; anything else is recorded as an IOError.
func (r *Report) AddError(err error) {
	if err == nil {
		return
	}
	var e *Error
	if errors.As(err, &e) {
		msg := e.Msg
		if e.Err != nil {
			if msg == "" {
				msg = e.Err.Error()
			} else {
				msg = msg + ": " + e.Err.Error()
			}
		}
		if e.Source != "" {
			msg = msg + " (" + e.Source + ")"
		}
		r.issues = append(r.issues, Issue{Level: LevelError, Kind: e.Kind, Row: e.Row, Message: msg})
		return
	}
	kind := KindOf(err)
	if kind == "" {
		kind = IOError
	}
	r.issues = append(r.issues, Issue{Level: LevelError, Kind: kind, Message: err.Error()})
}

// Merge appends every issue of other after the issues already held.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.issues = append(r.issues, other.issues...)
}

// Issues returns all issues in discovery order.
func (r *Report) Issues() []Issue {
	return append([]Issue(nil), r.issues...)
}

// Warnings returns the advisory issues in discovery order.
func (r *Report) Warnings() []Issue { return r.filter(LevelWarn) }

// Errors returns the fatal issues in discovery order.
func (r *Report) Errors() []Issue { return r.filter(LevelError) }

func (r *Report) filter(level Level) []Issue {
	var out []Issue
	for _, i := range r.issues {
		if i.Level == level {
			out = append(out, i)
		}
	}
	return out
}

// HasErrors reports whether any fatal issue was recorded.
func (r *Report) HasErrors() bool {
	for _, i := range r.issues {
		if i.Level == LevelError {
			return true
		}
	}
	return false
}

// Err returns a *BatchError holding every fatal issue, or nil.
func (r *Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	return &BatchError{Issues: errs}
}

// BatchError is returned when a pass finished with fatal issues.
type BatchError struct {
	Issues []Issue
}

func (e *BatchError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].String()
	}
	return fmt.Sprintf("%d errors; first: %s", len(e.Issues), e.Issues[0].String())
}

// Is reports whether any issue in the batch has the target Kind.
func (e *BatchError) Is(target error) bool {
	k, ok := target.(Kind)
	if !ok {
		return false
	}
	for _, i := range e.Issues {
		if i.Kind == k {
			return true
		}
	}
	return false
}

// Write prints every warning, then every error, then the summary line.
func (r *Report) Write(w io.Writer, summary string) {
	for _, i := range r.Warnings() {
		fmt.Fprintf(w, "warning: %s\n", i)
	}
	for _, i := range r.Errors() {
		fmt.Fprintf(w, "error: %s\n", i)
	}
	if summary != "" {
		fmt.Fprintln(w, strings.TrimRight(summary, "\n"))
	}
}
