package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExecutorSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	executor := New(Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		RetryIf:     func(error) bool { return true },
	}, nil)

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	attempts := 0
	lastErr := errors.New("still broken")
	executor := New(Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		RetryIf:     func(error) bool { return true },
	}, nil)

	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return lastErr
	})
	require.Error(t, err)
	require.Equal(t, 3, attempts)
	require.ErrorIs(t, err, lastErr)
	require.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestExecutorStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	executor := New(DefaultPolicy(), nil)

	permanent := NewNonRecoverableError(errors.New("bad request"))
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return permanent
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.NotContains(t, err.Error(), "failed after")
}

func TestExecutorRecordsAttempts(t *testing.T) {
	var attempts []Attempt
	executor := New(Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		RetryIf:     func(error) bool { return true },
		OnAttempt:   func(a Attempt) { attempts = append(attempts, a) },
	}, nil)

	opErr := errors.New("flaky")
	calls := 0
	err := executor.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return opErr
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	require.Equal(t, 1, attempts[0].Number)
	require.Zero(t, attempts[0].Delay)
	require.ErrorIs(t, attempts[0].Err, opErr)

	require.Equal(t, 2, attempts[1].Number)
	require.Positive(t, attempts[1].Delay)
	require.NoError(t, attempts[1].Err)
}

func TestExecutorHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	executor := New(Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Hour, // never actually waited out
		RetryIf:     func(error) bool { return true },
	}, nil)

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := executor.Do(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("transient")
	})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	executor := New(Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, nil)
	result, err := executor.DoWithResult(context.Background(), func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

func TestPolicyDelay(t *testing.T) {
	t.Run("first attempt has no delay", func(t *testing.T) {
		policy := Policy{BaseDelay: time.Second, Backoff: BackoffExponential}
		require.Zero(t, policy.Delay(1))
	})

	t.Run("exponential doubles per attempt", func(t *testing.T) {
		policy := Policy{BaseDelay: 100 * time.Millisecond, Backoff: BackoffExponential}
		require.Equal(t, 100*time.Millisecond, policy.Delay(2))
		require.Equal(t, 200*time.Millisecond, policy.Delay(3))
		require.Equal(t, 400*time.Millisecond, policy.Delay(4))
	})

	t.Run("linear grows per attempt", func(t *testing.T) {
		policy := Policy{BaseDelay: 100 * time.Millisecond, Backoff: BackoffLinear}
		require.Equal(t, 100*time.Millisecond, policy.Delay(2))
		require.Equal(t, 200*time.Millisecond, policy.Delay(3))
		require.Equal(t, 300*time.Millisecond, policy.Delay(4))
	})

	t.Run("max delay clamps growth", func(t *testing.T) {
		policy := Policy{
			BaseDelay: time.Second,
			MaxDelay:  2 * time.Second,
			Backoff:   BackoffExponential,
		}
		require.Equal(t, 2*time.Second, policy.Delay(10))
	})

	t.Run("jitter stays within 25 percent", func(t *testing.T) {
		policy := Policy{
			BaseDelay: 100 * time.Millisecond,
			Backoff:   BackoffExponential,
			Jitter:    true,
		}
		for i := 0; i < 100; i++ {
			delay := policy.Delay(3) // 200ms nominal
			require.GreaterOrEqual(t, delay, 150*time.Millisecond)
			require.LessOrEqual(t, delay, 250*time.Millisecond)
		}
	})
}

func TestIsRecoverable(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		recoverable bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"rate limited", errors.New("429 rate limit exceeded"), true},
		{"service unavailable", fmt.Errorf("call failed: %w", errors.New("service unavailable")), true},
		{"plain error", errors.New("validation failed"), false},
		{"marked recoverable", NewRecoverableError(errors.New("try again")), true},
		{"marked non-recoverable", NewNonRecoverableError(errors.New("timeout")), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.recoverable, IsRecoverable(tc.err))
		})
	}
}

func TestRecoverableErrorWrapping(t *testing.T) {
	inner := errors.New("root cause")
	marked := NewRecoverableError(inner)
	require.True(t, errors.Is(marked, inner))
	require.Equal(t, inner.Error(), marked.Error())

	permanent := NewNonRecoverableError(inner)
	require.True(t, errors.Is(permanent, inner))
	require.False(t, permanent.IsRecoverable())
}
