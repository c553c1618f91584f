// Package breaker provides a per-operation circuit breaker: a guard that
// stops calling a failing operation for a cooldown period to avoid cascading
// failure.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed lets requests pass through while counting failures.
	StateClosed State = iota
	// StateOpen fails fast without invoking the underlying operation.
	StateOpen
	// StateHalfOpen allows a single trial request to probe recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is the sentinel all open-circuit rejections unwrap to. Use
// errors.Is(err, ErrOpen) to distinguish "the breaker rejected the call
// without trying" from "the operation failed".
var ErrOpen = errors.New("circuit breaker open")

// OpenError is returned for calls rejected while the breaker is open or
// while a half-open trial is already in flight.
type OpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker open for %q, retry after %s", e.Key, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit breaker open for %q", e.Key)
}

func (e *OpenError) Unwrap() error {
	return ErrOpen
}

// Config configures a circuit breaker.
type Config struct {
	// FailureThreshold is the failure count that trips the breaker.
	// Defaults to 5.
	FailureThreshold int

	// Window bounds the period over which failures accumulate: a failure
	// arriving after the window since the previous one restarts the count.
	// Defaults to 1 minute.
	Window time.Duration

	// Cooldown is how long an open breaker waits before allowing a trial
	// request. Defaults to 30 seconds.
	Cooldown time.Duration
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker guards a single operation key. State transitions are atomic
// with respect to that key.
type CircuitBreaker struct {
	key    string
	config Config
	logger *slog.Logger

	mutex       sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool
}

// New creates a circuit breaker for one operation key.
func New(key string, config Config, logger *slog.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CircuitBreaker{
		key:    key,
		config: config,
		state:  StateClosed,
		logger: logger.With("breaker_key", key),
	}
}

// Do invokes op through the breaker. While open it returns an *OpenError
// without invoking op; otherwise op's own error is returned unchanged.
func (cb *CircuitBreaker) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := cb.DoWithResult(ctx, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	return err
}

// DoWithResult invokes op through the breaker and returns its value.
func (cb *CircuitBreaker) DoWithResult(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	if err := cb.allow(); err != nil {
		return nil, err
	}
	result, err := op(ctx)
	cb.record(err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// allow decides whether a request may proceed, transitioning Open to
// HalfOpen once the cooldown has elapsed. In HalfOpen exactly one trial is
// allowed through.
func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		elapsed := time.Since(cb.lastFailure)
		if elapsed < cb.config.Cooldown {
			return &OpenError{Key: cb.key, RetryAfter: cb.config.Cooldown - elapsed}
		}
		cb.transitionTo(StateHalfOpen, "cooldown elapsed")
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return &OpenError{Key: cb.key}
		}
		cb.probing = true
		return nil
	default:
		return fmt.Errorf("unknown circuit breaker state: %d", cb.state)
	}
}

// record applies the outcome of an allowed request.
func (cb *CircuitBreaker) record(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		if success {
			cb.failures = 0
			return
		}
		// Failures outside the rolling window restart the count.
		if !cb.lastFailure.IsZero() && time.Since(cb.lastFailure) > cb.config.Window {
			cb.failures = 0
		}
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen, fmt.Sprintf("%d failures within window", cb.failures))
		}
	case StateHalfOpen:
		cb.probing = false
		if success {
			cb.failures = 0
			cb.transitionTo(StateClosed, "trial request succeeded")
		} else {
			cb.lastFailure = time.Now()
			cb.transitionTo(StateOpen, "trial request failed")
		}
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

// Reset returns the breaker to closed with cleared counters.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	if cb.state != StateClosed {
		cb.transitionTo(StateClosed, "manual reset")
	}
	cb.failures = 0
	cb.probing = false
	cb.lastFailure = time.Time{}
}

// transitionTo must be called with the mutex held.
func (cb *CircuitBreaker) transitionTo(newState State, reason string) {
	oldState := cb.state
	cb.state = newState
	cb.logger.Info("circuit breaker state change",
		"old_state", oldState.String(),
		"new_state", newState.String(),
		"reason", reason,
		"failures", cb.failures)
}

// Registry manages one breaker per protected operation key so independent
// operations fail independently.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	config   Config
	logger   *slog.Logger
}

// NewRegistry creates a breaker registry. All breakers share config.
func NewRegistry(config Config, logger *slog.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// GetOrCreate returns the breaker for a key, creating it on first use.
func (r *Registry) GetOrCreate(key string) *CircuitBreaker {
	r.mutex.RLock()
	if cb, ok := r.breakers[key]; ok {
		r.mutex.RUnlock()
		return cb
	}
	r.mutex.RUnlock()

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb := New(key, r.config, r.logger)
	r.breakers[key] = cb
	return cb
}

// Do invokes op through the breaker registered for key.
func (r *Registry) Do(ctx context.Context, key string, op func(context.Context) error) error {
	return r.GetOrCreate(key).Do(ctx, op)
}

// States returns the current state of every registered breaker.
func (r *Registry) States() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	states := make(map[string]State, len(r.breakers))
	for key, cb := range r.breakers {
		states[key] = cb.State()
	}
	return states
}
