package dagflow

import "time"

// Checkpoint is a point-in-time snapshot of workflow progress. Checkpoints
// are written once, read on resume, and never mutated in place.
type Checkpoint struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	WorkflowName   string         `json:"workflow_name"`
	State          map[string]any `json:"state"`
	CompletedNodes []string       `json:"completed_nodes"`
	NodeOutputs    map[string]any `json:"node_outputs"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Copy returns a copy of the checkpoint with independent maps and slices, so
// callers cannot mutate stored state through a loaded checkpoint.
func (c *Checkpoint) Copy() *Checkpoint {
	completed := make([]string, len(c.CompletedNodes))
	copy(completed, c.CompletedNodes)
	return &Checkpoint{
		ID:             c.ID,
		WorkflowID:     c.WorkflowID,
		WorkflowName:   c.WorkflowName,
		State:          copyMap(c.State),
		CompletedNodes: completed,
		NodeOutputs:    copyMap(c.NodeOutputs),
		CreatedAt:      c.CreatedAt,
	}
}
