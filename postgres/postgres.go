// Package postgres backs the dagflow checkpoint store with PostgreSQL via
// pgx. Checkpoint payloads are stored as JSONB alongside indexed identity
// columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deepnoodle-ai/dagflow"
)

// Schema creates the checkpoints table. Run it once at deploy time or via
// EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS dagflow_checkpoints (
	id            TEXT PRIMARY KEY,
	workflow_id   TEXT NOT NULL,
	workflow_name TEXT NOT NULL,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS dagflow_checkpoints_workflow_name_idx
	ON dagflow_checkpoints (workflow_name, created_at DESC);
`

// CheckpointStore implements dagflow.CheckpointStore on a pgx connection
// pool.
type CheckpointStore struct {
	db *pgxpool.Pool
}

// NewCheckpointStore creates a store backed by the given pool. The pool's
// lifecycle belongs to the caller.
func NewCheckpointStore(db *pgxpool.Pool) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// EnsureSchema creates the checkpoints table if it does not exist.
func (s *CheckpointStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, checkpoint *dagflow.Checkpoint) error {
	payload, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO dagflow_checkpoints (id, workflow_id, workflow_name, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		checkpoint.ID, checkpoint.WorkflowID, checkpoint.WorkflowName,
		payload, checkpoint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, id string) (*dagflow.Checkpoint, error) {
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT payload FROM dagflow_checkpoints WHERE id = $1`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var checkpoint dagflow.Checkpoint
	if err := json.Unmarshal(payload, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return &checkpoint, nil
}

func (s *CheckpointStore) ListCheckpoints(ctx context.Context, workflowName string) ([]*dagflow.Checkpoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT payload FROM dagflow_checkpoints
		 WHERE workflow_name = $1 ORDER BY created_at DESC`, workflowName)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*dagflow.Checkpoint
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		var checkpoint dagflow.Checkpoint
		if err := json.Unmarshal(payload, &checkpoint); err != nil {
			return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, &checkpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoints: %w", err)
	}
	return checkpoints, nil
}

func (s *CheckpointStore) DeleteCheckpoint(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM dagflow_checkpoints WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
