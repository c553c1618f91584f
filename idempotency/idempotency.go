// Package idempotency deduplicates operation executions by content key: an
// operation whose key was already recorded returns the stored result instead
// of running again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// KeyFrom derives a deterministic idempotency key from an operation name and
// its inputs. Inputs are serialized as JSON, so two calls with equal inputs
// produce the same key.
func KeyFrom(operation string, inputs any) (string, error) {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("failed to serialize idempotency inputs: %w", err)
	}
	sum := sha256.Sum256(append([]byte(operation+":"), data...))
	return hex.EncodeToString(sum[:]), nil
}

// Record is a stored operation outcome.
type Record struct {
	Key       string    `json:"key"`
	Result    any       `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Store keeps completed operation results keyed by idempotency key. Entries
// with a TTL lapse silently once expired.
type Store struct {
	ttl time.Duration

	mutex   sync.RWMutex
	records map[string]*Record
}

// NewStore creates a store. A zero ttl means records never expire.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		records: make(map[string]*Record),
	}
}

// Check looks up a previously recorded result. The second return value is
// false when the key is unknown or its record has expired.
func (s *Store) Check(ctx context.Context, key string) (*Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mutex.RLock()
	record, ok := s.records[key]
	s.mutex.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !record.ExpiresAt.IsZero() && time.Now().After(record.ExpiresAt) {
		s.mutex.Lock()
		delete(s.records, key)
		s.mutex.Unlock()
		return nil, false, nil
	}
	copied := *record
	return &copied, true, nil
}

// Record stores the result of a completed operation under key.
func (s *Store) Record(ctx context.Context, key string, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	record := &Record{Key: key, Result: result, CreatedAt: now}
	if s.ttl > 0 {
		record.ExpiresAt = now.Add(s.ttl)
	}
	s.mutex.Lock()
	s.records[key] = record
	s.mutex.Unlock()
	return nil
}

// Delete removes a record, forcing the next Do for that key to re-execute.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mutex.Lock()
	delete(s.records, key)
	s.mutex.Unlock()
	return nil
}

// Len returns the number of live records, counting expired ones not yet
// swept.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}

// Do runs op at most once per key: if a record exists its stored result is
// returned and op is skipped, otherwise op runs and its result is recorded.
// Failed operations are not recorded, so they may be retried.
func Do(ctx context.Context, store *Store, key string, op func(context.Context) (any, error)) (any, error) {
	record, ok, err := store.Check(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return record.Result, nil
	}
	result, err := op(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Record(ctx, key, result); err != nil {
		return nil, err
	}
	return result, nil
}
