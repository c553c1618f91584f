package dagflow

import (
	"context"
)

// NodeFunc is the unit of work executed for a node. It receives a context
// built fresh for this invocation and returns a result describing state
// updates and routing. Expected business failures should be encoded in the
// result output; returned errors terminate the run.
type NodeFunc func(ctx context.Context, nc *NodeContext) (*NodeResult, error)

// Node is a single vertex in a workflow graph.
type Node struct {
	ID string
	Fn NodeFunc
}

// NewNode creates a node with the given id and function.
func NewNode(id string, fn NodeFunc) *Node {
	return &Node{ID: id, Fn: fn}
}

// NodeContext carries the inputs for one node invocation. It is never shared
// between invocations: State is an independent snapshot of workflow state
// taken at the start of the batch, and Input holds the merged outputs of the
// node's direct dependencies.
type NodeContext struct {
	// State is a snapshot of the workflow state at the start of this step.
	// Mutating it has no effect on the engine; return updates via NodeResult.
	State map[string]any

	// NodeID is the id of the node being executed.
	NodeID string

	// WorkflowID identifies the current run.
	WorkflowID string

	// Step is the scheduler iteration number, starting at 0.
	Step int

	// Input is the output of the node's single dependency, or an ordered
	// []any of outputs when the node has multiple dependencies. Nil when the
	// node has no recorded dependencies.
	Input any
}

// NodeResult is returned by a NodeFunc to report the outcome of one
// invocation.
type NodeResult struct {
	// State holds a partial state update that is shallow-merged into the
	// workflow state after the batch completes.
	State map[string]any

	// Output is recorded as this node's output and fed to dependents.
	Output any

	// Next overrides edge-based routing when non-nil: the listed node ids
	// become this node's successors for the next frontier.
	Next []string
}
