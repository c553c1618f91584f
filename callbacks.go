package dagflow

import (
	"context"
	"time"
)

// ExecutionCallbacks receives lifecycle notifications for one execution. A
// callback set is passed into each execution rather than registered on a
// process-wide emitter, so concurrent runs stay isolated.
type ExecutionCallbacks interface {
	// OnNodeStart is called just before a node function runs.
	OnNodeStart(ctx context.Context, nodeID string)

	// OnNodeComplete is called after a node function returns successfully.
	OnNodeComplete(ctx context.Context, nodeID string, output any, duration time.Duration)

	// OnNodeError is called when a node function returns an error.
	OnNodeError(ctx context.Context, nodeID string, err error)

	// OnWorkflowComplete is called once with the final result, whether the
	// run succeeded or failed.
	OnWorkflowComplete(ctx context.Context, result *Result)
}

// BaseExecutionCallbacks provides a default implementation that does nothing.
// Embed this in your own callbacks to get a default implementation.
type BaseExecutionCallbacks struct{}

func (b *BaseExecutionCallbacks) OnNodeStart(ctx context.Context, nodeID string) {
	// noop
}

func (b *BaseExecutionCallbacks) OnNodeComplete(ctx context.Context, nodeID string, output any, duration time.Duration) {
	// noop
}

func (b *BaseExecutionCallbacks) OnNodeError(ctx context.Context, nodeID string, err error) {
	// noop
}

func (b *BaseExecutionCallbacks) OnWorkflowComplete(ctx context.Context, result *Result) {
	// noop
}

// CallbackChain fans lifecycle notifications out to multiple callback sets.
type CallbackChain struct {
	callbacks []ExecutionCallbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...ExecutionCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback ExecutionCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) OnNodeStart(ctx context.Context, nodeID string) {
	for _, callback := range c.callbacks {
		callback.OnNodeStart(ctx, nodeID)
	}
}

func (c *CallbackChain) OnNodeComplete(ctx context.Context, nodeID string, output any, duration time.Duration) {
	for _, callback := range c.callbacks {
		callback.OnNodeComplete(ctx, nodeID, output, duration)
	}
}

func (c *CallbackChain) OnNodeError(ctx context.Context, nodeID string, err error) {
	for _, callback := range c.callbacks {
		callback.OnNodeError(ctx, nodeID, err)
	}
}

func (c *CallbackChain) OnWorkflowComplete(ctx context.Context, result *Result) {
	for _, callback := range c.callbacks {
		callback.OnWorkflowComplete(ctx, result)
	}
}
