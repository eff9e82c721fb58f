package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while submitting, executing or
// controlling an apply job.
//
// Job-level codes are returned to callers of Submit, Retry, Cancel and Poll.
// Step-level codes end up on the failed job as its ErrorCode.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// JobID identifies the affected job, when there is one.
	JobID string

	// SheetID identifies the target sheet, when there is one.
	SheetID string

	// Position is the failing step's position for step-level errors, or -1.
	Position int

	// Err is the underlying collaborator error, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidPattern: the pattern has no enabled steps or its records
	// do not decode.
	ErrCodeInvalidPattern RuntimeErrorCode = "INVALID_PATTERN"

	// ErrCodeTargetUnavailable: the target sheet could not be reached.
	ErrCodeTargetUnavailable RuntimeErrorCode = "TARGET_UNAVAILABLE"

	// ErrCodeJobAlreadyRunning: another job is queued or running on the sheet.
	ErrCodeJobAlreadyRunning RuntimeErrorCode = "JOB_ALREADY_RUNNING"

	// ErrCodeJobNotFailed: retry called on a job that is not failed.
	ErrCodeJobNotFailed RuntimeErrorCode = "JOB_NOT_FAILED"

	// ErrCodeJobNotFound: no job with the given id.
	ErrCodeJobNotFound RuntimeErrorCode = "JOB_NOT_FOUND"

	// ErrCodeJobNotCancelable: cancel called on a finished job.
	ErrCodeJobNotCancelable RuntimeErrorCode = "JOB_NOT_CANCELABLE"

	// ErrCodeExecutorStopped: the executor no longer accepts work.
	ErrCodeExecutorStopped RuntimeErrorCode = "EXECUTOR_STOPPED"

	// ErrCodeLocatorResolution: a header locator matched nothing and had no
	// fallback.
	ErrCodeLocatorResolution RuntimeErrorCode = "LOCATOR_RESOLUTION_FAILED"

	// ErrCodeExecutionFailed: the sheet collaborator rejected a step.
	ErrCodeExecutionFailed RuntimeErrorCode = "EXECUTION_FAILED"

	// ErrCodeInvalidStep: a step cannot be dispatched.
	ErrCodeInvalidStep RuntimeErrorCode = "INVALID_STEP"

	// ErrCodeInterrupted: the executor stopped before the job finished.
	ErrCodeInterrupted RuntimeErrorCode = "INTERRUPTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.JobID != "" && e.Position >= 0:
		return fmt.Sprintf("%s: %s (job=%s, step=%d)", e.Code, msg, e.JobID, e.Position)
	case e.JobID != "":
		return fmt.Sprintf("%s: %s (job=%s)", e.Code, msg, e.JobID)
	case e.SheetID != "":
		return fmt.Sprintf("%s: %s (sheet=%s)", e.Code, msg, e.SheetID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying collaborator error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the RuntimeError inside err, or "" when
// err is not one.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsInvalidPatternError returns true if err rejects a pattern at submit.
func IsInvalidPatternError(err error) bool {
	return ErrorCode(err) == ErrCodeInvalidPattern
}

// IsTargetUnavailableError returns true if err reports an unreachable sheet.
func IsTargetUnavailableError(err error) bool {
	return ErrorCode(err) == ErrCodeTargetUnavailable
}

// IsJobAlreadyRunningError returns true if err reports a busy sheet.
func IsJobAlreadyRunningError(err error) bool {
	return ErrorCode(err) == ErrCodeJobAlreadyRunning
}

// IsJobNotFailedError returns true if err rejects a retry.
func IsJobNotFailedError(err error) bool {
	return ErrorCode(err) == ErrCodeJobNotFailed
}

// IsJobNotFoundError returns true if err reports an unknown job id.
func IsJobNotFoundError(err error) bool {
	return ErrorCode(err) == ErrCodeJobNotFound
}

// IsJobNotCancelableError returns true if err rejects a cancel.
func IsJobNotCancelableError(err error) bool {
	return ErrorCode(err) == ErrCodeJobNotCancelable
}

func newJobError(code RuntimeErrorCode, jobID, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, JobID: jobID, Position: -1, Message: fmt.Sprintf(format, args...)}
}

func newSheetError(code RuntimeErrorCode, sheetID string, err error, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, SheetID: sheetID, Position: -1, Err: err, Message: fmt.Sprintf(format, args...)}
}

// stepError wraps a failure of the step at position.
func stepError(code RuntimeErrorCode, position int, err error, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Position: position, Err: err, Message: fmt.Sprintf(format, args...)}
}
