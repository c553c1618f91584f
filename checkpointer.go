package dagflow

import (
	"context"
)

// CheckpointStore persists workflow checkpoints. Implementations outside
// this package can back the same contract with alternate storage.
type CheckpointStore interface {
	// SaveCheckpoint persists a checkpoint.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// LoadCheckpoint loads a checkpoint by id. A missing checkpoint returns
	// (nil, nil).
	LoadCheckpoint(ctx context.Context, id string) (*Checkpoint, error)

	// ListCheckpoints returns all checkpoints recorded for a workflow name,
	// sorted by creation time descending.
	ListCheckpoints(ctx context.Context, workflowName string) ([]*Checkpoint, error)

	// DeleteCheckpoint removes a checkpoint by id.
	DeleteCheckpoint(ctx context.Context, id string) error
}
