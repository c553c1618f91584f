package dagflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkflowErrorWrapping(t *testing.T) {
	err := NewWorkflowError(ErrorTypeTimeout, "operation timed out")
	require.Equal(t, "timeout: operation timed out", err.Error())
	require.Nil(t, err.Unwrap())

	originalErr := errors.New("network connection failed")
	wrappedErr := &WorkflowError{
		Type:    ErrorTypeTimeout,
		Cause:   originalErr.Error(),
		Wrapped: originalErr,
	}
	require.Equal(t, "timeout: network connection failed", wrappedErr.Error())
	require.True(t, errors.Is(wrappedErr, originalErr))

	var wErr *WorkflowError
	require.True(t, errors.As(wrappedErr, &wErr))
	require.Equal(t, ErrorTypeTimeout, wErr.Type)
}

func TestNodeErrorMessage(t *testing.T) {
	err := newNodeError("charge-card", errors.New("card declined"))
	require.Equal(t, `node_failed: node "charge-card": card declined`, err.Error())
	require.Equal(t, "charge-card", err.NodeID)
}

func TestErrorClassification(t *testing.T) {
	t.Run("deadline exceeded classifies as timeout", func(t *testing.T) {
		classified := ClassifyError(context.DeadlineExceeded)
		require.Equal(t, ErrorTypeTimeout, classified.Type)
	})

	t.Run("canceled classifies as timeout", func(t *testing.T) {
		classified := ClassifyError(context.Canceled)
		require.Equal(t, ErrorTypeTimeout, classified.Type)
	})

	t.Run("timeout in message classifies as timeout", func(t *testing.T) {
		classified := ClassifyError(errors.New("request Timeout talking to upstream"))
		require.Equal(t, ErrorTypeTimeout, classified.Type)
	})

	t.Run("unknown errors default to node failed", func(t *testing.T) {
		classified := ClassifyError(errors.New("something odd"))
		require.Equal(t, ErrorTypeNodeFailed, classified.Type)
	})

	t.Run("workflow errors pass through unchanged", func(t *testing.T) {
		original := NewWorkflowError(ErrorTypeIterationLimit, "max iterations (10) reached")
		classified := ClassifyError(original)
		require.Same(t, original, classified)
	})
}

func TestMatchesErrorType(t *testing.T) {
	plain := errors.New("boom")
	timeout := context.DeadlineExceeded
	fatal := NewWorkflowError(ErrorTypeFatal, "unrecoverable")

	require.True(t, MatchesErrorType(plain, ErrorTypeAll))
	require.True(t, MatchesErrorType(plain, ErrorTypeNodeFailed))
	require.False(t, MatchesErrorType(plain, ErrorTypeTimeout))

	require.True(t, MatchesErrorType(timeout, ErrorTypeAll))
	require.True(t, MatchesErrorType(timeout, ErrorTypeTimeout))
	require.False(t, MatchesErrorType(timeout, ErrorTypeNodeFailed))

	// Fatal errors only match the fatal pattern, never the wildcard.
	require.True(t, MatchesErrorType(fatal, ErrorTypeFatal))
	require.False(t, MatchesErrorType(fatal, ErrorTypeAll))
	require.False(t, MatchesErrorType(fatal, ErrorTypeNodeFailed))

	// User-defined type strings match exactly.
	custom := NewWorkflowError("rate_limited", "429 from provider")
	require.True(t, MatchesErrorType(custom, "rate_limited"))
	require.False(t, MatchesErrorType(custom, "quota_exceeded"))
}
