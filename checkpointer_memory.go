package dagflow

import (
	"context"
	"sort"
	"sync"
)

// MemoryCheckpointStore keeps checkpoints in process memory. Reads return
// defensive copies so callers cannot mutate stored state.
type MemoryCheckpointStore struct {
	mutex       sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// NewMemoryCheckpointStore creates an empty in-memory checkpoint store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: map[string]*Checkpoint{}}
}

func (s *MemoryCheckpointStore) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.checkpoints[checkpoint.ID] = checkpoint.Copy()
	return nil
}

func (s *MemoryCheckpointStore) LoadCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	checkpoint, ok := s.checkpoints[id]
	if !ok {
		return nil, nil
	}
	return checkpoint.Copy(), nil
}

func (s *MemoryCheckpointStore) ListCheckpoints(ctx context.Context, workflowName string) ([]*Checkpoint, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var results []*Checkpoint
	for _, checkpoint := range s.checkpoints {
		if checkpoint.WorkflowName == workflowName {
			results = append(results, checkpoint.Copy())
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (s *MemoryCheckpointStore) DeleteCheckpoint(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.checkpoints, id)
	return nil
}
