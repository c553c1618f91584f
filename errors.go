package dagflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and matching
const (
	// ErrorTypeAll acts as a wildcard that matches any error except fatal errors
	ErrorTypeAll = "all"

	// ErrorTypeNodeFailed matches any node execution error except timeouts
	// and fatal errors
	ErrorTypeNodeFailed = "node_failed"

	// ErrorTypeTimeout matches a timeout or context canceled error
	ErrorTypeTimeout = "timeout"

	// ErrorTypeIterationLimit indicates a run hit its iteration budget. It is
	// surfaced on the Result, never thrown past the executor.
	ErrorTypeIterationLimit = "iteration_limit"

	// ErrorTypeCheckpointMismatch indicates a resume was attempted against a
	// checkpoint recorded for a different workflow.
	ErrorTypeCheckpointMismatch = "checkpoint_mismatch"

	// ErrorTypeFatal indicates an error that must not be retried. Unknown
	// errors default to ErrorTypeNodeFailed so that retries remain possible;
	// mark an error fatal when it is known to be unretryable.
	ErrorTypeFatal = "fatal_error"
)

// ErrCheckpointMismatch is returned when resuming against a checkpoint whose
// workflow name does not match the workflow being resumed.
var ErrCheckpointMismatch = errors.New("checkpoint workflow mismatch")

// WorkflowError represents a structured error with classification. It
// supports Go's error wrapping patterns via Unwrap.
type WorkflowError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	NodeID  string `json:"node_id,omitempty"`
	Wrapped error  `json:"-"`
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %q: %s", e.Type, e.NodeID, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

// Unwrap implements the error unwrapping interface for errors.Is and errors.As
func (e *WorkflowError) Unwrap() error {
	return e.Wrapped
}

// NewWorkflowError creates a new WorkflowError with the specified type and
// cause. The type can be any user-defined string; it is matched against the
// patterns accepted by MatchesErrorType.
func NewWorkflowError(errorType, cause string) *WorkflowError {
	return &WorkflowError{Type: errorType, Cause: cause}
}

// newNodeError wraps a node execution failure with the failing node id.
func newNodeError(nodeID string, err error) *WorkflowError {
	return &WorkflowError{
		Type:    ErrorTypeNodeFailed,
		Cause:   err.Error(),
		NodeID:  nodeID,
		Wrapped: err,
	}
}

// newIterationLimitError reports an exhausted iteration budget. The message
// names the configured limit so callers can see which budget was hit.
func newIterationLimitError(limit int) *WorkflowError {
	return &WorkflowError{
		Type:  ErrorTypeIterationLimit,
		Cause: fmt.Sprintf("max iterations (%d) reached", limit),
	}
}

// ClassifyError attempts to classify a regular error into a WorkflowError
func ClassifyError(err error) *WorkflowError {
	var workflowError *WorkflowError
	if errors.As(err, &workflowError) {
		return workflowError
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &WorkflowError{
			Type:    ErrorTypeTimeout,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	// Default to a node failed error
	return &WorkflowError{
		Type:    ErrorTypeNodeFailed,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// MatchesErrorType checks if an error matches a specified error type pattern
func MatchesErrorType(err error, errorType string) bool {
	wErr := ClassifyError(err)
	// Fatal errors are only matched by the ErrorTypeFatal pattern
	if wErr.Type == ErrorTypeFatal {
		return errorType == ErrorTypeFatal
	}
	switch errorType {
	case ErrorTypeAll:
		return true
	case ErrorTypeNodeFailed:
		return wErr.Type != ErrorTypeTimeout
	default:
		// Arbitrary user-defined type strings are matched exactly
		return wErr.Type == errorType
	}
}
