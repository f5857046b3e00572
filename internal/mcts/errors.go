package mcts

import (
	"errors"
	"fmt"
)

// OptimizeError represents a failed optimization. No partial plan
// accompanies it and the search tree has already been released.
type OptimizeError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Iteration is the 1-based iteration that failed, or 0 when the
	// failure happened before the first iteration.
	Iteration int

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes optimization errors.
type ErrorCode string

const (
	// ErrCodeAllocation indicates the search tree could not allocate a node.
	ErrCodeAllocation ErrorCode = "ALLOCATION_FAILED"

	// ErrCodeCancelled indicates the caller's context ended the search.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeInvalidInput indicates arguments the optimizer cannot run with.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Error implements the error interface.
func (e *OptimizeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Iteration > 0 {
		msg = fmt.Sprintf("%s (iteration=%d)", msg, e.Iteration)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *OptimizeError) Unwrap() error {
	return e.Err
}

// IsAllocationError reports whether err is an allocation failure.
// Uses errors.As to handle wrapped errors.
func IsAllocationError(err error) bool {
	return hasCode(err, ErrCodeAllocation)
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

// IsInvalidInput reports whether err rejects the optimizer's arguments.
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

func hasCode(err error, code ErrorCode) bool {
	var oe *OptimizeError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}

func newAllocationError(iteration int, err error) *OptimizeError {
	return &OptimizeError{
		Code:      ErrCodeAllocation,
		Message:   "search tree allocation failed",
		Iteration: iteration,
		Err:       err,
	}
}

func newCancelledError(iteration int, err error) *OptimizeError {
	return &OptimizeError{
		Code:      ErrCodeCancelled,
		Message:   "optimization cancelled",
		Iteration: iteration,
		Err:       err,
	}
}

func newInvalidInputError(format string, args ...any) *OptimizeError {
	return &OptimizeError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}
