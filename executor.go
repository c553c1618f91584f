package dagflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.jetify.com/typeid"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxConcurrency caps the number of node functions in flight
	// within one batch.
	DefaultMaxConcurrency = 4

	// DefaultMaxIterations caps the number of scheduler passes per run.
	DefaultMaxIterations = 100
)

// CheckpointStrategy controls checkpoint granularity.
type CheckpointStrategy string

const (
	// CheckpointPerIteration writes one checkpoint per scheduler pass.
	CheckpointPerIteration CheckpointStrategy = "per-iteration"

	// CheckpointPerNode writes one checkpoint per individual node
	// completion, which yields more checkpoints under parallel fan-out.
	CheckpointPerNode CheckpointStrategy = "per-node"
)

// NewExecutionID returns a new prefixed ID for execution identification
func NewExecutionID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// newCheckpointID returns a new prefixed checkpoint ID.
func newCheckpointID() string {
	id, err := typeid.WithPrefix("chk")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// ExecutionOptions configures a new execution
type ExecutionOptions struct {
	Workflow *Workflow

	// InitialState entries override the workflow's initial state.
	InitialState map[string]any

	// MaxConcurrency caps concurrently running node functions within a
	// batch. Defaults to DefaultMaxConcurrency.
	MaxConcurrency int

	// MaxIterations caps scheduler passes. Exceeding it produces an error
	// result, not a returned error. Defaults to DefaultMaxIterations.
	MaxIterations int

	// Checkpointing enables checkpoint persistence via CheckpointStore.
	Checkpointing bool

	// CheckpointStrategy selects checkpoint granularity. Defaults to
	// CheckpointPerIteration.
	CheckpointStrategy CheckpointStrategy

	// CheckpointStore persists checkpoints. Defaults to a no-op store.
	CheckpointStore CheckpointStore

	// Callbacks receives lifecycle notifications. Node-level callbacks may
	// be invoked from concurrent goroutines.
	Callbacks ExecutionCallbacks

	Logger      *slog.Logger
	ExecutionID string
}

// Execution runs a workflow to completion. Workflow state is exclusively
// owned by the execution between iterations; node functions only ever see
// independent snapshots.
type Execution struct {
	workflow   *Workflow
	id         string
	maxWorkers int
	maxSteps   int

	checkpointing      bool
	checkpointStrategy CheckpointStrategy
	store              CheckpointStore
	callbacks          ExecutionCallbacks
	logger             *slog.Logger

	sem *semaphore.Weighted

	state       map[string]any
	nodeOutputs map[string]any
	nodeResults map[string]*NodeExecution
	completed   map[string]bool
	// completedOrder preserves completion order for checkpointing
	completedOrder []string
	// scheduledBy records which node proposed each frontier member, used to
	// resolve input for nodes reached through conditional routes that have
	// no static dependencies.
	scheduledBy map[string]string

	iteration        int
	lastCheckpointID string

	mutex   sync.Mutex
	started bool
}

// NewExecution creates an execution for a single run of a workflow. An
// Execution is single-use: create a new one for every run.
func NewExecution(opts ExecutionOptions) (*Execution, error) {
	if opts.Workflow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.CheckpointStrategy == "" {
		opts.CheckpointStrategy = CheckpointPerIteration
	}
	if opts.CheckpointStrategy != CheckpointPerIteration && opts.CheckpointStrategy != CheckpointPerNode {
		return nil, fmt.Errorf("unknown checkpoint strategy %q", opts.CheckpointStrategy)
	}
	if opts.CheckpointStore == nil {
		opts.CheckpointStore = NewNullCheckpointStore()
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseExecutionCallbacks{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.ExecutionID == "" {
		opts.ExecutionID = NewExecutionID()
	}

	state := opts.Workflow.InitialState()
	for k, v := range opts.InitialState {
		state[k] = v
	}

	return &Execution{
		workflow:           opts.Workflow,
		id:                 opts.ExecutionID,
		maxWorkers:         opts.MaxConcurrency,
		maxSteps:           opts.MaxIterations,
		checkpointing:      opts.Checkpointing,
		checkpointStrategy: opts.CheckpointStrategy,
		store:              opts.CheckpointStore,
		callbacks:          opts.Callbacks,
		logger:             opts.Logger.With("execution_id", opts.ExecutionID),
		sem:                semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		state:              state,
		nodeOutputs:        map[string]any{},
		nodeResults:        map[string]*NodeExecution{},
		completed:          map[string]bool{},
		scheduledBy:        map[string]string{},
	}, nil
}

// ID returns the execution ID
func (e *Execution) ID() string {
	return e.id
}

func (e *Execution) start() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.started {
		return fmt.Errorf("execution already started")
	}
	e.started = true
	return nil
}

// Run executes the workflow to completion, blocking until it finishes. The
// returned Result always carries whatever state and node outputs were
// produced; Result.Err is set for expected failure modes (a failing node, an
// exhausted iteration budget). The returned error is reserved for
// infrastructure failures: checkpoint persistence, routing evaluation, or a
// misused execution.
func (e *Execution) Run(ctx context.Context) (*Result, error) {
	if err := e.start(); err != nil {
		return nil, err
	}
	return e.run(ctx, []string{e.workflow.EntryPoint()})
}

// Resume continues a run from a checkpoint previously written for the same
// workflow. Nodes recorded as completed are not re-executed; if the
// checkpoint already covers every node, the checkpointed state is returned
// without running anything. Resuming against a checkpoint recorded for a
// different workflow name fails with ErrCheckpointMismatch.
func (e *Execution) Resume(ctx context.Context, checkpointID string) (*Result, error) {
	if err := e.start(); err != nil {
		return nil, err
	}

	checkpoint, err := e.store.LoadCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return nil, fmt.Errorf("checkpoint %q not found", checkpointID)
	}
	if checkpoint.WorkflowName != e.workflow.Name() {
		return nil, fmt.Errorf("%w: checkpoint is for workflow %q, not %q",
			ErrCheckpointMismatch, checkpoint.WorkflowName, e.workflow.Name())
	}

	e.state = copyMap(checkpoint.State)
	e.nodeOutputs = copyMap(checkpoint.NodeOutputs)
	for _, nodeID := range checkpoint.CompletedNodes {
		e.completed[nodeID] = true
		e.completedOrder = append(e.completedOrder, nodeID)
		e.nodeResults[nodeID] = &NodeExecution{Output: checkpoint.NodeOutputs[nodeID]}
	}
	e.lastCheckpointID = checkpoint.ID

	// Nothing left to run if the completed set covers every node.
	if len(e.completed) >= e.workflow.NodeCount() {
		e.logger.Info("execution already completed from checkpoint",
			"checkpoint_id", checkpointID)
		result := e.buildResult(nil, 0)
		e.callbacks.OnWorkflowComplete(ctx, result)
		return result, nil
	}

	frontier, err := e.resumeFrontier(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("resuming execution from checkpoint",
		"checkpoint_id", checkpointID,
		"completed_nodes", len(e.completed),
		"frontier", frontier)
	return e.run(ctx, frontier)
}

// resumeFrontier recomputes the runnable frontier from the checkpointed
// completed set: successors of completed nodes that have not themselves
// completed. An untouched workflow restarts at the entry point.
func (e *Execution) resumeFrontier(ctx context.Context) ([]string, error) {
	if !e.completed[e.workflow.EntryPoint()] {
		return []string{e.workflow.EntryPoint()}, nil
	}
	var frontier []string
	seen := make(map[string]bool)
	for _, completedID := range e.completedOrder {
		successors, err := NextNodes(ctx, e.workflow, completedID, e.state)
		if err != nil {
			return nil, err
		}
		for _, id := range successors {
			if e.completed[id] || seen[id] {
				continue
			}
			seen[id] = true
			e.scheduledBy[id] = completedID
			frontier = append(frontier, id)
		}
	}
	return frontier, nil
}

// run drives the frontier loop: execute a batch, merge its results, persist
// progress, recompute the frontier.
func (e *Execution) run(ctx context.Context, frontier []string) (*Result, error) {
	startTime := time.Now()

	e.logger.Info("starting execution",
		"workflow", e.workflow.Name(),
		"entry_point", e.workflow.EntryPoint(),
		"max_concurrency", e.maxWorkers)

	var runErr error
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if e.iteration >= e.maxSteps {
			runErr = newIterationLimitError(e.maxSteps)
			break
		}

		// Drop frontier ids that are not (or no longer) workflow nodes,
		// such as a stale loop target.
		batch := frontier[:0:0]
		for _, id := range frontier {
			if _, ok := e.workflow.GetNode(id); ok {
				batch = append(batch, id)
			} else {
				e.logger.Debug("dropping unknown frontier node", "node_id", id)
			}
		}
		if len(batch) == 0 {
			break
		}

		e.logger.Debug("executing batch",
			"iteration", e.iteration,
			"nodes", batch)

		outcomes := e.executeBatch(ctx, batch)

		next, err := e.mergeBatch(ctx, batch, outcomes)
		if err != nil {
			// A failing node produces an error result; anything else
			// (checkpointing, routing) is surfaced directly.
			var wErr *WorkflowError
			if isNodeError(err, &wErr) {
				runErr = wErr
				break
			}
			result := e.buildResult(err, time.Since(startTime))
			e.callbacks.OnWorkflowComplete(ctx, result)
			return result, err
		}
		e.iteration++
		frontier = next
	}

	duration := time.Since(startTime)
	result := e.buildResult(runErr, duration)
	if runErr != nil {
		e.logger.Error("execution failed", "error", runErr, "iterations", e.iteration)
	} else {
		e.logger.Info("execution completed",
			"iterations", e.iteration,
			"completed_nodes", len(e.completed),
			"duration", duration)
	}
	e.callbacks.OnWorkflowComplete(ctx, result)
	return result, nil
}

// isNodeError reports whether err is a node execution failure (as opposed to
// an infrastructure error raised while merging or checkpointing).
func isNodeError(err error, target **WorkflowError) bool {
	wErr, ok := err.(*WorkflowError)
	if !ok || wErr.Type != ErrorTypeNodeFailed {
		return false
	}
	*target = wErr
	return true
}

// batchOutcome holds the result of one node invocation within a batch.
type batchOutcome struct {
	result   *NodeResult
	err      error
	duration time.Duration
}

// executeBatch runs every node in the batch under the concurrency cap. All
// nodes observe the same state snapshot taken before the batch starts; a
// node finishing early immediately frees its slot for a pending sibling.
func (e *Execution) executeBatch(ctx context.Context, batch []string) []batchOutcome {
	snapshot := copyMap(e.state)
	outcomes := make([]batchOutcome, len(batch))

	var wg sync.WaitGroup
	for i, nodeID := range batch {
		node, _ := e.workflow.GetNode(nodeID)
		nc := &NodeContext{
			State:      copyMap(snapshot),
			NodeID:     nodeID,
			WorkflowID: e.id,
			Step:       e.iteration,
			Input:      e.resolveInput(nodeID),
		}
		wg.Add(1)
		go func(i int, node *Node, nc *NodeContext) {
			defer wg.Done()
			if err := e.sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = batchOutcome{err: err}
				return
			}
			defer e.sem.Release(1)

			e.callbacks.OnNodeStart(ctx, node.ID)
			started := time.Now()
			result, err := node.Fn(ctx, nc)
			elapsed := time.Since(started)
			if err != nil {
				e.logger.Debug("node failed", "node_id", node.ID, "error", err)
				e.callbacks.OnNodeError(ctx, node.ID, err)
				outcomes[i] = batchOutcome{err: err, duration: elapsed}
				return
			}
			if result == nil {
				result = &NodeResult{}
			}
			e.logger.Debug("node completed", "node_id", node.ID, "duration", elapsed)
			e.callbacks.OnNodeComplete(ctx, node.ID, result.Output, elapsed)
			outcomes[i] = batchOutcome{result: result, duration: elapsed}
		}(i, node, nc)
	}
	wg.Wait()
	return outcomes
}

// mergeBatch applies batch outcomes in node-list order (last writer wins for
// overlapping state keys), records outputs, persists checkpoints per the
// configured strategy, and returns the deduplicated next frontier. A node
// failure is reported only after every successful sibling has been merged,
// so the error result carries all partial progress from the batch.
func (e *Execution) mergeBatch(ctx context.Context, batch []string, outcomes []batchOutcome) ([]string, error) {
	var next []string
	seen := make(map[string]bool)
	var failedID string
	var failedErr error

	for i, nodeID := range batch {
		outcome := outcomes[i]
		if outcome.err != nil {
			if failedErr == nil {
				failedID, failedErr = nodeID, outcome.err
			}
			continue
		}

		for k, v := range outcome.result.State {
			e.state[k] = v
		}
		e.nodeOutputs[nodeID] = outcome.result.Output
		e.nodeResults[nodeID] = &NodeExecution{
			Output:   outcome.result.Output,
			Duration: outcome.duration,
		}
		if !e.completed[nodeID] {
			e.completed[nodeID] = true
			e.completedOrder = append(e.completedOrder, nodeID)
		}

		successors := outcome.result.Next
		if successors == nil {
			var err error
			successors, err = NextNodes(ctx, e.workflow, nodeID, e.state)
			if err != nil {
				return nil, err
			}
		}
		for _, id := range successors {
			if seen[id] {
				continue
			}
			seen[id] = true
			e.scheduledBy[id] = nodeID
			next = append(next, id)
		}

		if e.checkpointing && e.checkpointStrategy == CheckpointPerNode {
			if err := e.saveCheckpoint(ctx); err != nil {
				return nil, err
			}
		}
	}

	if e.checkpointing && e.checkpointStrategy == CheckpointPerIteration {
		if err := e.saveCheckpoint(ctx); err != nil {
			return nil, err
		}
	}

	if failedErr != nil {
		return nil, newNodeError(failedID, failedErr)
	}
	return next, nil
}

// resolveInput gathers the outputs of a node's direct dependencies: the
// single output when exactly one dependency has produced one, or an ordered
// slice when multiple have. Nodes without static dependencies (conditional
// routes) receive the output of the node that scheduled them.
func (e *Execution) resolveInput(nodeID string) any {
	deps := e.workflow.Dependencies(nodeID)
	var produced []string
	for _, dep := range deps {
		if _, ok := e.nodeOutputs[dep]; ok {
			produced = append(produced, dep)
		}
	}
	if len(produced) == 0 {
		if source, ok := e.scheduledBy[nodeID]; ok {
			return e.nodeOutputs[source]
		}
		return nil
	}
	if len(produced) == 1 {
		return e.nodeOutputs[produced[0]]
	}
	inputs := make([]any, len(produced))
	for i, dep := range produced {
		inputs[i] = e.nodeOutputs[dep]
	}
	return inputs
}

// saveCheckpoint writes a write-once snapshot of current progress.
func (e *Execution) saveCheckpoint(ctx context.Context) error {
	completed := make([]string, len(e.completedOrder))
	copy(completed, e.completedOrder)
	checkpoint := &Checkpoint{
		ID:             newCheckpointID(),
		WorkflowID:     e.id,
		WorkflowName:   e.workflow.Name(),
		State:          copyMap(e.state),
		CompletedNodes: completed,
		NodeOutputs:    copyMap(e.nodeOutputs),
		CreatedAt:      time.Now(),
	}
	if err := e.store.SaveCheckpoint(ctx, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	e.lastCheckpointID = checkpoint.ID
	e.logger.Debug("checkpoint saved", "checkpoint_id", checkpoint.ID)
	return nil
}

func (e *Execution) buildResult(err error, duration time.Duration) *Result {
	nodeResults := make(map[string]*NodeExecution, len(e.nodeResults))
	for id, execution := range e.nodeResults {
		nodeResults[id] = &NodeExecution{
			Output:   execution.Output,
			Duration: execution.Duration,
		}
	}
	return &Result{
		WorkflowID:   e.id,
		WorkflowName: e.workflow.Name(),
		State:        copyMap(e.state),
		NodeResults:  nodeResults,
		Duration:     duration,
		CheckpointID: e.lastCheckpointID,
		Err:          err,
	}
}

// RunStream executes the workflow in a background goroutine and returns an
// ordered event stream. Events are pushed as they occur by the executing
// goroutine and received in emission order; the channel is closed after the
// workflow:complete event.
func (e *Execution) RunStream(ctx context.Context) <-chan Event {
	events := make(chan Event, 64)
	chain := NewCallbackChain(e.callbacks, &streamCallbacks{events: events})
	e.callbacks = chain
	go func() {
		defer close(events)
		if _, err := e.Run(ctx); err != nil {
			e.logger.Error("streaming execution failed", "error", err)
		}
	}()
	return events
}
