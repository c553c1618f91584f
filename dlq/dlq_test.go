package dlq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddAssignsIdentityAndTimestamps(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	id, err := store.Add(ctx, Entry{
		Operation: "charge-card",
		Payload:   map[string]any{"order": "ord_123"},
		Error:     "card declined",
		Attempts:  3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entry, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "charge-card", entry.Operation)
	require.Equal(t, 3, entry.Attempts)
	require.False(t, entry.FirstFailedAt.IsZero())
	require.False(t, entry.LastFailedAt.IsZero())
	require.Equal(t, 1, store.Len())
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := NewStore(nil)
	entry, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestEntriesAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)

	payload := map[string]any{"order": "ord_1"}
	id, err := store.Add(ctx, Entry{Operation: "ship", Payload: payload, Error: "boom"})
	require.NoError(t, err)

	// Mutating the caller's payload after Add must not change the stored
	// entry, and mutating a fetched entry must not either.
	payload["order"] = "mutated"
	fetched, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "ord_1", fetched.Payload["order"])

	fetched.Error = "rewritten"
	again, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "boom", again.Error)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil)
	base := time.Now()

	add := func(operation string, lastFailed time.Time) {
		_, err := store.Add(ctx, Entry{
			Operation:    operation,
			Error:        "failed",
			LastFailedAt: lastFailed,
		})
		require.NoError(t, err)
	}
	add("charge-card", base.Add(-2*time.Hour))
	add("charge-card", base.Add(-time.Hour))
	add("send-email", base.Add(-30*time.Minute))

	t.Run("empty filter matches everything, newest first", func(t *testing.T) {
		entries, err := store.Query(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		require.Equal(t, "send-email", entries[0].Operation)
		require.True(t, entries[0].LastFailedAt.After(entries[2].LastFailedAt))
	})

	t.Run("filter by operation", func(t *testing.T) {
		entries, err := store.Query(ctx, Filter{Operation: "charge-card"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, entry := range entries {
			require.Equal(t, "charge-card", entry.Operation)
		}
	})

	t.Run("filter by time range", func(t *testing.T) {
		entries, err := store.Query(ctx, Filter{
			Since: base.Add(-90 * time.Minute),
			Until: base.Add(-45 * time.Minute),
		})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "charge-card", entries[0].Operation)
	})

	t.Run("no matches returns empty", func(t *testing.T) {
		entries, err := store.Query(ctx, Filter{Operation: "unknown"})
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}
