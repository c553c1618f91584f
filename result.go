package dagflow

import "time"

// NodeExecution records the recorded output and wall-clock duration of one
// completed node.
type NodeExecution struct {
	Output   any           `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is returned by every execution, successful or not. Partial state and
// node results are always populated so callers can inspect how far a failed
// run got; Err is non-nil when the run terminated abnormally.
type Result struct {
	WorkflowID   string                    `json:"workflow_id"`
	WorkflowName string                    `json:"workflow_name"`
	State        map[string]any            `json:"state"`
	NodeResults  map[string]*NodeExecution `json:"node_results"`
	Duration     time.Duration             `json:"duration"`
	CheckpointID string                    `json:"checkpoint_id,omitempty"`
	Err          error                     `json:"-"`
}

// Failed reports whether the run terminated abnormally.
func (r *Result) Failed() bool {
	return r.Err != nil
}
