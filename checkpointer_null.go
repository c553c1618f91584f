package dagflow

import "context"

// NullCheckpointStore is a no-op implementation
type NullCheckpointStore struct{}

func NewNullCheckpointStore() *NullCheckpointStore {
	return &NullCheckpointStore{}
}

func (s *NullCheckpointStore) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	return nil
}

func (s *NullCheckpointStore) LoadCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	return nil, nil
}

func (s *NullCheckpointStore) ListCheckpoints(ctx context.Context, workflowName string) ([]*Checkpoint, error) {
	return nil, nil
}

func (s *NullCheckpointStore) DeleteCheckpoint(ctx context.Context, id string) error {
	return nil
}
