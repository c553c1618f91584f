package dagflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileCheckpointStore persists one JSON file per checkpoint id under a data
// directory.
type FileCheckpointStore struct {
	dataDir string
}

// NewFileCheckpointStore creates a file-based checkpoint store. The data
// directory is created if it does not exist; an empty dataDir defaults to
// ~/.dagflow/checkpoints.
func NewFileCheckpointStore(dataDir string) (*FileCheckpointStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".dagflow", "checkpoints")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &FileCheckpointStore{dataDir: dataDir}, nil
}

// sanitizeCheckpointID rejects ids that could escape the data directory when
// used as a filename.
func sanitizeCheckpointID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("checkpoint id required")
	}
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid checkpoint id %q", id)
	}
	return id, nil
}

func (s *FileCheckpointStore) checkpointPath(id string) (string, error) {
	safe, err := sanitizeCheckpointID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dataDir, safe+".json"), nil
}

func (s *FileCheckpointStore) SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error {
	path, err := s.checkpointPath(checkpoint.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}

func (s *FileCheckpointStore) LoadCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	path, err := s.checkpointPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *FileCheckpointStore) ListCheckpoints(ctx context.Context, workflowName string) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var results []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, entry.Name()))
		if err != nil {
			continue // skip checkpoints we cannot read
		}
		var checkpoint Checkpoint
		if err := json.Unmarshal(data, &checkpoint); err != nil {
			continue
		}
		if checkpoint.WorkflowName == workflowName {
			results = append(results, &checkpoint)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

func (s *FileCheckpointStore) DeleteCheckpoint(ctx context.Context, id string) error {
	path, err := s.checkpointPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}
