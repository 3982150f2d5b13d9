// Package errs defines the error kinds reported by the loading and analysis pipeline.
package errs

import (
	"errors"
	"fmt"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	// SourceUnavailable means the dataset location could not be reached or read.
	SourceUnavailable Kind = "source_unavailable"
	// SchemaMismatch means a required column is entirely absent.
	SchemaMismatch Kind = "schema_mismatch"
	// InsufficientData means too few valid rows for the requested statistic.
	InsufficientData Kind = "insufficient_data"
	// InvalidParameter means a caller-supplied parameter is out of range or unknown.
	InvalidParameter Kind = "invalid_parameter"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageLoad     Stage = "load"
	StageFilter   Stage = "filter"
	StageAnalysis Stage = "analysis"
	StageConfig   Stage = "config"
)

// Error is a pipeline error carrying its kind and stage.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Stage, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value detail and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given kind.
func New(kind Kind, stage Stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Newf is New with a format string.
func Newf(kind Kind, stage Stage, format string, args ...any) *Error {
	return New(kind, stage, fmt.Sprintf(format, args...))
}

// Wrap wraps cause with a kind and stage. It returns nil when cause is nil.
func Wrap(cause error, kind Kind, stage Stage, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// StageOf reports the stage of the first *Error in err's chain.
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
