// Package errors provides custom error types for the sync engine
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeValidationFailure      ErrorCode = "VALIDATION_FAILURE"
	ErrCodeComparisonFailure      ErrorCode = "COMPARISON_FAILURE"
	ErrCodeConflictDetectFailure  ErrorCode = "CONFLICT_DETECTION_FAILURE"
	ErrCodeSynchronizationFailure ErrorCode = "SYNCHRONIZATION_FAILURE"
	ErrCodeRetryExhausted         ErrorCode = "RETRY_EXHAUSTED"
	ErrCodeStorageFailure         ErrorCode = "STORAGE_FAILURE"
)

// Kind classifies an error within the engine's taxonomy.
type Kind string

const (
	KindUnknown           Kind = ""
	KindValidation        Kind = "validation"
	KindComparison        Kind = "comparison"
	KindConflictDetection Kind = "conflict_detection"
	KindSynchronization   Kind = "synchronization"
	KindRetryExhausted    Kind = "retry_exhausted"
	KindInternal          Kind = "internal"
)

// Stage identifies the pipeline phase that produced an error.
type Stage string

const (
	StageUnknown           Stage = "UNKNOWN"
	StageComparison        Stage = "COMPARISON"
	StageConflictDetection Stage = "CONFLICT_DETECTION"
	StageSynchronization   Stage = "SYNCHRONIZATION"
)

// Operation represents the type of engine operation
type Operation string

const (
	OpOrchestrate     Operation = "orchestrate"
	OpValidate        Operation = "validate"
	OpCompare         Operation = "compare"
	OpDetectConflicts Operation = "detect_conflicts"
	OpSync            Operation = "sync"
	OpResolve         Operation = "resolve"
	OpRetry           Operation = "retry"
	OpStore           Operation = "store"
	OpLoad            Operation = "load"
	OpConfigure       Operation = "configure"
)

// Op is a string alias used by the E builder to set the operation.
type Op string

// Component is a string alias used by the E builder to set the component.
type Component string

// SyncError represents an error that occurred inside the engine
type SyncError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "diff", "retry")
	Component string

	// Kind is the taxonomy entry of the error
	Kind Kind

	// Stage is the pipeline phase that was executing, if known
	Stage Stage

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *SyncError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	if e.Err == nil {
		return msg
	}
	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// E builds a SyncError from its arguments. Accepted argument types are
// Operation, Op, Component, Kind, Stage, ErrorCode, error and string (which
// becomes the underlying error message). A nested SyncError's fields are
// inherited when not set explicitly.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E called with no arguments")
	}
	e := &SyncError{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Operation:
			e.Op = a
		case Op:
			e.Op = Operation(a)
		case Component:
			e.Component = string(a)
		case Kind:
			e.Kind = a
		case Stage:
			e.Stage = a
		case ErrorCode:
			e.Code = a
		case string:
			e.Err = errors.New(a)
		case *SyncError:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		default:
			panic(fmt.Sprintf("errors.E: unknown argument type %T, value %v", arg, arg))
		}
	}

	var inner *SyncError
	if errors.As(e.Err, &inner) {
		if e.Kind == KindUnknown {
			e.Kind = inner.Kind
		}
		if e.Stage == "" {
			e.Stage = inner.Stage
		}
		if e.Code == "" {
			e.Code = inner.Code
		}
		e.Retryable = inner.Retryable
	}
	return e
}

// NewValidationError creates a new validation-related SyncError
func NewValidationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeValidationFailure,
		Kind:      KindValidation,
		Op:        op,
		Component: "orchestrator",
		Err:       cause,
		Retryable: false,
	}
}

// NewComparisonError creates a SyncError raised by the difference engine
func NewComparisonError(cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeComparisonFailure,
		Kind:      KindComparison,
		Stage:     StageComparison,
		Op:        OpCompare,
		Component: "diff",
		Err:       cause,
		Retryable: false,
	}
}

// NewConflictDetectionError creates a SyncError raised by the conflict detector
func NewConflictDetectionError(cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeConflictDetectFailure,
		Kind:      KindConflictDetection,
		Stage:     StageConflictDetection,
		Op:        OpDetectConflicts,
		Component: "conflict",
		Err:       cause,
		Retryable: false,
	}
}

// NewSynchronizationError creates a SyncError for a failed collaborator call.
// Collaborator failures are transient unless proven otherwise.
func NewSynchronizationError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeSynchronizationFailure,
		Kind:      KindSynchronization,
		Stage:     StageSynchronization,
		Op:        op,
		Component: "coordinator",
		Err:       cause,
		Retryable: true,
	}
}

// NewRetryExhaustedError creates a SyncError reported once a job ran out of attempts
func NewRetryExhaustedError(jobID string, attempts int, cause error) *SyncError {
	if cause == nil {
		cause = errors.New("maximum retries exceeded")
	} else {
		cause = fmt.Errorf("maximum retries exceeded: %w", cause)
	}
	return &SyncError{
		Code:      ErrCodeRetryExhausted,
		Kind:      KindRetryExhausted,
		Stage:     StageSynchronization,
		Op:        OpRetry,
		Component: "retry",
		Err:       cause,
		Retryable: false,
		Metadata: map[string]interface{}{
			"job_id":   jobID,
			"attempts": attempts,
		},
	}
}

// NewStorageError creates a new storage-related SyncError
func NewStorageError(op Operation, cause error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStorageFailure,
		Kind:      KindSynchronization,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: true,
	}
}

// New creates a new SyncError
func New(op Operation, err error) *SyncError {
	return &SyncError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new SyncError with component information
func NewWithComponent(op Operation, component string, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewRetryable creates a new retryable SyncError
func NewRetryable(op Operation, err error) *SyncError {
	return &SyncError{
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// WithStage returns err tagged with stage. An existing stage tag is kept.
func WithStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		if syncErr.Stage != "" {
			return err
		}
		cp := *syncErr
		cp.Stage = stage
		return &cp
	}
	return &SyncError{Op: OpOrchestrate, Stage: stage, Err: err}
}

// IsRetryable checks if an error is a retryable SyncError
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}

// IsContextError reports whether err stems from context cancellation or deadline.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// KindOf returns the Kind of the outermost SyncError in err's chain.
func KindOf(err error) Kind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return KindUnknown
}

// StageOf returns the Stage tag carried by err, or "" when none is set.
func StageOf(err error) Stage {
	for err != nil {
		var syncErr *SyncError
		if !errors.As(err, &syncErr) {
			return ""
		}
		if syncErr.Stage != "" {
			return syncErr.Stage
		}
		err = syncErr.Err
	}
	return ""
}
