package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrUnknownVariant      = errors.New("unknown question type")
	ErrNotNumeric          = errors.New("value is not a finite number")
	ErrMalformedPacked     = errors.New("malformed packed answer")
	ErrUnresolvedTask      = errors.New("answer does not resolve to a session task")
	ErrNoQuestionsAnswered = errors.New("no questions answered")
	ErrProtocolMismatch    = errors.New("form model was built for a different answer protocol")
	ErrBusy                = errors.New("another operation is in progress")
	ErrInvalidState        = errors.New("operation not allowed in current state")
	ErrFormLocked          = errors.New("form is locked for submission")
	ErrUnknownEntry        = errors.New("no form entry for task")
	ErrValueShape          = errors.New("value does not match the question type")
)

// FailureKind classifies a failure
type FailureKind string

const (
	FetchFailure      FailureKind = "fetch_failure"
	ValidationFailure FailureKind = "validation_failure"
	DecodeFailure     FailureKind = "decode_failure"
	SubmitFailure     FailureKind = "submit_failure"
	UnknownVariant    FailureKind = "unknown_variant"
	Timeout           FailureKind = "timeout"
)

// Failure is a contained, non-fatal error with enough context to report it.
// Index is the entry position in the presented task list, -1 when not applicable.
type Failure struct {
	Kind   FailureKind
	Op     string
	TaskID string
	Index  int
	Err    error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	if f.Op != "" {
		b.WriteString(" during " + f.Op)
	}
	if f.TaskID != "" {
		fmt.Fprintf(&b, " (task %s)", f.TaskID)
	} else if f.Index >= 0 {
		fmt.Fprintf(&b, " (entry %d)", f.Index)
	}
	if f.Err != nil {
		b.WriteString(": " + f.Err.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Diagnostics collects per-entry failures that did not abort an operation
type Diagnostics []Failure

func (d *Diagnostics) add(kind FailureKind, op, taskID string, index int, err error) {
	*d = append(*d, Failure{Kind: kind, Op: op, TaskID: taskID, Index: index, Err: err})
}

// Count returns the number of diagnostics of the given kind
func (d Diagnostics) Count(kind FailureKind) int {
	n := 0
	for _, f := range d {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// KindOf returns the failure kind of err, or "" if err is not a *Failure
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
