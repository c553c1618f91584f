package dagflow

import (
	"context"
	"time"
)

// EventType identifies a streaming lifecycle event.
type EventType string

const (
	EventNodeStart        EventType = "node:start"
	EventNodeComplete     EventType = "node:complete"
	EventNodeError        EventType = "node:error"
	EventWorkflowComplete EventType = "workflow:complete"
)

// Event is one entry in the ordered event sequence produced by a streaming
// execution. Events are emitted as they occur, in real completion order.
type Event struct {
	Type     EventType     `json:"type"`
	NodeID   string        `json:"node_id,omitempty"`
	Output   any           `json:"output,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration,omitempty"`
	Result   *Result       `json:"result,omitempty"`
}

// streamCallbacks adapts lifecycle callbacks into channel sends. The channel
// is bounded; the producing goroutine blocks when the consumer falls behind,
// which preserves emission order without busy-waiting.
type streamCallbacks struct {
	events chan<- Event
}

func (s *streamCallbacks) OnNodeStart(ctx context.Context, nodeID string) {
	s.send(ctx, Event{Type: EventNodeStart, NodeID: nodeID})
}

func (s *streamCallbacks) OnNodeComplete(ctx context.Context, nodeID string, output any, duration time.Duration) {
	s.send(ctx, Event{Type: EventNodeComplete, NodeID: nodeID, Output: output, Duration: duration})
}

func (s *streamCallbacks) OnNodeError(ctx context.Context, nodeID string, err error) {
	s.send(ctx, Event{Type: EventNodeError, NodeID: nodeID, Err: err})
}

func (s *streamCallbacks) OnWorkflowComplete(ctx context.Context, result *Result) {
	s.send(ctx, Event{Type: EventWorkflowComplete, Result: result})
}

func (s *streamCallbacks) send(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}
