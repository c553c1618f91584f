// Package retry executes operations with configurable backoff and jitter.
package retry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"
)

// BackoffStrategy selects how the delay grows between attempts.
type BackoffStrategy string

const (
	// BackoffLinear waits BaseDelay * attempt between attempts.
	BackoffLinear BackoffStrategy = "linear"

	// BackoffExponential waits BaseDelay * 2^(attempt-1) between attempts.
	BackoffExponential BackoffStrategy = "exponential"
)

// Attempt records one execution attempt for observability.
type Attempt struct {
	// Number is the attempt number, starting at 1.
	Number int

	// Delay is the backoff delay that preceded this attempt (zero for the
	// first attempt).
	Delay time.Duration

	// Err is the error the attempt produced, nil on success.
	Err error
}

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Defaults to 3.
	MaxAttempts int

	// BaseDelay seeds the backoff computation. Defaults to 100ms.
	BaseDelay time.Duration

	// MaxDelay clamps the computed delay. Zero means no clamp.
	MaxDelay time.Duration

	// Backoff selects the growth strategy. Defaults to BackoffExponential.
	Backoff BackoffStrategy

	// Jitter adds bounded randomness (±25%) to each delay to avoid
	// thundering-herd retries.
	Jitter bool

	// RetryIf decides whether an error is worth retrying. Defaults to
	// IsRecoverable.
	RetryIf func(error) bool

	// OnAttempt is invoked after every attempt with its record.
	OnAttempt func(Attempt)
}

// DefaultPolicy returns a policy suitable for transient I/O failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Backoff:     BackoffExponential,
		Jitter:      true,
	}
}

// Delay computes the backoff delay preceding the given attempt number
// (attempt 2 is the first retry). Jitter, when enabled, keeps the result
// within ±25% of the computed delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	var delay float64
	switch p.Backoff {
	case BackoffLinear:
		delay = float64(p.BaseDelay) * float64(attempt-1)
	default:
		delay = float64(p.BaseDelay)
		for i := 2; i < attempt; i++ {
			delay *= 2
		}
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		delay += (rand.Float64()*2 - 1) * delay * 0.25
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Executor retries operations according to a Policy.
type Executor struct {
	policy Policy
	logger *slog.Logger
}

// New creates a retry executor. Zero-valued policy fields are filled with
// defaults.
func New(policy Policy, logger *slog.Logger) *Executor {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 100 * time.Millisecond
	}
	if policy.Backoff == "" {
		policy.Backoff = BackoffExponential
	}
	if policy.RetryIf == nil {
		policy.RetryIf = IsRecoverable
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{policy: policy, logger: logger}
}

// Do executes op, retrying per the policy, and returns the last error when
// all attempts are exhausted. The wait between attempts honors context
// cancellation.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := e.DoWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	return err
}

// DoWithResult executes op and returns its value, retrying per the policy.
func (e *Executor) DoWithResult(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		delay := e.policy.Delay(attempt)
		if delay > 0 {
			e.logger.Debug("retrying",
				"attempt", attempt,
				"max_attempts", e.policy.MaxAttempts,
				"delay", delay,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := op(ctx)
		if e.policy.OnAttempt != nil {
			e.policy.OnAttempt(Attempt{Number: attempt, Delay: delay, Err: err})
		}
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !e.policy.RetryIf(err) {
			e.logger.Debug("error not retryable", "error", err)
			return nil, err
		}
	}
	e.logger.Warn("retry attempts exhausted",
		"attempts", e.policy.MaxAttempts,
		"error", lastErr)
	return nil, fmt.Errorf("failed after %d attempts: %w", e.policy.MaxAttempts, lastErr)
}
