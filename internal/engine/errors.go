package engine

import (
	"errors"
	"fmt"
	"strings"
)

// QueryError represents an error detected while validating a query.
//
// Query errors include:
//   - Cycle detection: a (query, key) pair re-entered its own validation
//   - Depth exceeded: the validation chain grew past the configured limit
//   - Compute failure: a compute function returned an error
//   - Cancellation: the context was done before a compute function ran
//
// A failed Get never writes or updates an entry, so failures are not cached.
type QueryError struct {
	// Code identifies the error category.
	Code QueryErrorCode

	// Message is a human-readable description.
	Message string

	// Query is the name of the query whose Get failed.
	Query string

	// Key is the rendered key being validated.
	Key string

	// Path is the validation chain for cycle and depth errors, outermost first.
	Path []string

	// Err is the underlying cause (compute error or context error).
	Err error
}

// QueryErrorCode categorizes query errors.
type QueryErrorCode string

const (
	// ErrCodeCycleDetected indicates a query transitively depends on itself.
	ErrCodeCycleDetected QueryErrorCode = "CYCLE_DETECTED"

	// ErrCodeDepthExceeded indicates the dependency chain is deeper than allowed.
	ErrCodeDepthExceeded QueryErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeComputeFailed indicates a compute function returned an error.
	ErrCodeComputeFailed QueryErrorCode = "COMPUTE_FAILED"

	// ErrCodeCancelled indicates the context was done before computing.
	ErrCodeCancelled QueryErrorCode = "CANCELLED"
)

// Error implements the error interface.
func (e *QueryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Query != "" {
		fmt.Fprintf(&b, " (query=%s, key=%s)", e.Query, e.Key)
	}
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Path, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsCycleError returns true if the error is a cycle detection error.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeCycleDetected
	}
	return false
}

// IsDepthError returns true if the error is a depth limit error.
func IsDepthError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeDepthExceeded
	}
	return false
}

// IsComputeError returns true if a compute function failed somewhere in the chain.
func IsComputeError(err error) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeComputeFailed
	}
	return false
}

// NewCycleError creates a QueryError for cycle detection.
func NewCycleError(query, key string, path []string) *QueryError {
	return &QueryError{
		Code:    ErrCodeCycleDetected,
		Message: "query depends on itself",
		Query:   query,
		Key:     key,
		Path:    path,
	}
}

// NewDepthError creates a QueryError for an over-deep validation chain.
func NewDepthError(query, key string, depth, maxDepth int) *QueryError {
	return &QueryError{
		Code:    ErrCodeDepthExceeded,
		Message: fmt.Sprintf("validation depth exceeded (%d > %d)", depth, maxDepth),
		Query:   query,
		Key:     key,
	}
}

func newComputeError(query, key string, err error) *QueryError {
	return &QueryError{
		Code:    ErrCodeComputeFailed,
		Message: "compute failed",
		Query:   query,
		Key:     key,
		Err:     err,
	}
}

func newCancelledError(query, key string, err error) *QueryError {
	return &QueryError{
		Code:    ErrCodeCancelled,
		Message: "context done before compute",
		Query:   query,
		Key:     key,
		Err:     err,
	}
}

// wrapDependencyError passes a QueryError from a deeper query through
// unchanged and wraps any other error as COMPUTE_FAILED.
func wrapDependencyError(query, key string, err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return newComputeError(query, key, err)
}
