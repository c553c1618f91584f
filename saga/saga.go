// Package saga manages compensation steps for multi-stage operations:
// forward work registers an undo action as it proceeds, and on failure the
// registered undos run in strict reverse order.
package saga

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// UndoFunc reverses a forward action that has already taken effect. Undo
// actions should be idempotent.
type UndoFunc func(ctx context.Context) error

// Step pairs a forward action with its undo action for use with Run.
type Step struct {
	Name string

	// Execute performs the forward action.
	Execute func(ctx context.Context) error

	// Compensate undoes the Execute action. May be nil if no cleanup is
	// needed.
	Compensate UndoFunc
}

// StepReport records the outcome of compensating one registered step.
type StepReport struct {
	Name string `json:"name"`
	// Compensated is true when the undo action completed without error.
	Compensated bool   `json:"compensated"`
	Error       string `json:"error,omitempty"`
}

// Report summarizes a compensation pass.
type Report struct {
	Steps    []StepReport  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// FullyCompensated reports whether every registered step was undone
// successfully. Partial rollback is a reportable outcome, not an error.
func (r *Report) FullyCompensated() bool {
	for _, step := range r.Steps {
		if !step.Compensated {
			return false
		}
	}
	return true
}

// Manager accumulates compensation steps as forward work proceeds and runs
// them in reverse order on demand.
type Manager struct {
	logger *slog.Logger

	mutex sync.Mutex
	steps []registeredStep
}

type registeredStep struct {
	name string
	undo UndoFunc
}

// NewManager creates an empty compensation manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{logger: logger}
}

// Register records an undo action for forward work that has just completed.
func (m *Manager) Register(name string, undo UndoFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.steps = append(m.steps, registeredStep{name: name, undo: undo})
}

// Len returns the number of registered compensation steps.
func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.steps)
}

// Compensate runs every registered undo action in reverse registration order
// (LIFO). A failing undo does not stop the pass: remaining undos still run,
// and the report records which steps compensated and which did not. The
// registered steps are cleared afterwards.
func (m *Manager) Compensate(ctx context.Context) *Report {
	m.mutex.Lock()
	steps := m.steps
	m.steps = nil
	m.mutex.Unlock()

	started := time.Now()
	report := &Report{}
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		entry := StepReport{Name: step.name, Compensated: true}
		if step.undo != nil {
			if err := step.undo(ctx); err != nil {
				m.logger.Warn("compensation step failed",
					"step", step.name, "error", err)
				entry.Compensated = false
				entry.Error = err.Error()
			} else {
				m.logger.Debug("compensation step succeeded", "step", step.name)
			}
		}
		report.Steps = append(report.Steps, entry)
	}
	report.Duration = time.Since(started)
	return report
}

// Run executes forward steps in order, registering each step's undo as it
// completes. On the first forward failure it compensates everything already
// done and returns the failing step's error along with the compensation
// report. On success the returned report is nil and registered undos remain
// available for a later Compensate call by the caller.
func (m *Manager) Run(ctx context.Context, steps []Step) (*Report, error) {
	for _, step := range steps {
		if err := step.Execute(ctx); err != nil {
			m.logger.Warn("saga step failed, compensating",
				"step", step.Name, "error", err)
			report := m.Compensate(ctx)
			return report, fmt.Errorf("step %q failed: %w", step.Name, err)
		}
		if step.Compensate != nil {
			m.Register(step.Name, step.Compensate)
		}
	}
	return nil, nil
}
