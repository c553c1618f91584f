package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// RecoverableError lets an error declare whether retrying it can help.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// IsRecoverable checks if an error can be retried. Errors implementing
// RecoverableError decide for themselves; everything else falls back to
// heuristics over common transient failure shapes.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var recoverable RecoverableError
	if errors.As(err, &recoverable) {
		return recoverable.IsRecoverable()
	}
	return isRecoverableByType(err)
}

func isRecoverableByType(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled):
		// Cancellation is intentional, don't retry
		return false
	}

	var netErr *net.OpError
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isRecoverableByType(urlErr.Err)
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"rate limit",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

type recoverableError struct {
	err error
}

func (e *recoverableError) Error() string       { return e.err.Error() }
func (e *recoverableError) IsRecoverable() bool { return true }
func (e *recoverableError) Unwrap() error       { return e.err }

// NewRecoverableError marks an error as retryable.
func NewRecoverableError(err error) RecoverableError {
	return &recoverableError{err: err}
}

// NonRecoverableError represents an error that should not be retried
type NonRecoverableError struct {
	err error
}

func (e *NonRecoverableError) Error() string       { return e.err.Error() }
func (e *NonRecoverableError) IsRecoverable() bool { return false }
func (e *NonRecoverableError) Unwrap() error       { return e.err }

// NewNonRecoverableError marks an error as permanently failing.
func NewNonRecoverableError(err error) *NonRecoverableError {
	return &NonRecoverableError{err: err}
}
