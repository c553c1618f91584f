// Package dlq captures operations that exhausted their retries so they can
// be inspected and replayed later instead of being lost.
package dlq

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one dead-lettered operation.
type Entry struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error"`
	// Attempts is how many times the operation was tried before giving up.
	Attempts      int       `json:"attempts"`
	FirstFailedAt time.Time `json:"first_failed_at"`
	LastFailedAt  time.Time `json:"last_failed_at"`
}

// Filter narrows a Query. Zero-valued fields match everything.
type Filter struct {
	// Operation, when non-empty, matches entries for that operation name.
	Operation string

	// Since matches entries whose last failure is at or after this time.
	Since time.Time

	// Until matches entries whose last failure is before this time.
	Until time.Time
}

func (f Filter) matches(e *Entry) bool {
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if !f.Since.IsZero() && e.LastFailedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.LastFailedAt.Before(f.Until) {
		return false
	}
	return true
}

// Store is an append-only in-memory dead letter queue. Entries are never
// mutated after Add; Query returns copies.
type Store struct {
	logger *slog.Logger

	mutex   sync.RWMutex
	entries []*Entry
}

// NewStore creates an empty dead letter store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{logger: logger}
}

// Add records a failed operation and returns the assigned entry ID. The
// first/last failure timestamps default to now when unset.
func (s *Store) Add(ctx context.Context, entry Entry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry.ID = uuid.New().String()
	now := time.Now()
	if entry.FirstFailedAt.IsZero() {
		entry.FirstFailedAt = now
	}
	if entry.LastFailedAt.IsZero() {
		entry.LastFailedAt = now
	}
	if entry.Payload != nil {
		payload := make(map[string]any, len(entry.Payload))
		for k, v := range entry.Payload {
			payload[k] = v
		}
		entry.Payload = payload
	}

	s.mutex.Lock()
	s.entries = append(s.entries, &entry)
	s.mutex.Unlock()

	s.logger.Warn("operation dead-lettered",
		"id", entry.ID,
		"operation", entry.Operation,
		"attempts", entry.Attempts,
		"error", entry.Error)
	return entry.ID, nil
}

// Get returns the entry with the given ID, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

// Query returns entries matching the filter, newest last failure first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var results []*Entry
	for _, e := range s.entries {
		if filter.matches(e) {
			copied := *e
			results = append(results, &copied)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].LastFailedAt.After(results[j].LastFailedAt)
	})
	return results, nil
}

// Len returns the number of dead-lettered entries.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entries)
}
