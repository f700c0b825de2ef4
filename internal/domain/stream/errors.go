package stream

import (
	"errors"
	"fmt"
)

// ValidationError signals that a record's content is unacceptable. Validators
// may return it instead of an Invalid verdict; the handler treats both the
// same way.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Reason != "":
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
	case e.Reason != "":
		return "validation failed: " + e.Reason
	case e.Err != nil:
		return "validation failed: " + e.Err.Error()
	default:
		return "validation failed"
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AsValidationError reports whether err is, or wraps, a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// DecodeError wraps a codec failure for a specific record.
type DecodeError struct {
	SequenceID string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding record %s: %v", e.SequenceID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	// ErrBatchFatal is matched by every error that aborts a whole invocation.
	ErrBatchFatal = errors.New("batch invocation failed")
	// ErrCollaboratorPanic indicates a codec, validator or processor panicked.
	ErrCollaboratorPanic = errors.New("collaborator panicked")
)

// FatalError aborts an invocation. It is returned instead of a BatchResult
// when a failure cannot be attributed to a record's content, so the runtime
// must treat the whole batch as failed.
type FatalError struct {
	RecordID string
	Stage    FailureStage
	Err      error
}

func (e *FatalError) Error() string {
	if e.RecordID == "" {
		return fmt.Sprintf("%v: %v", ErrBatchFatal, e.Err)
	}
	return fmt.Sprintf("%v: record %s (%s): %v", ErrBatchFatal, e.RecordID, e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBatchFatal) match any FatalError.
func (e *FatalError) Is(target error) bool { return target == ErrBatchFatal }
