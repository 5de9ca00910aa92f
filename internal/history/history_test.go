package history

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/fluxgraph/fluxgraph/internal/eventbus"
	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// TestMemoryStoreAppendAndList verifies append ordering and per-workflow
// filtering in the in-memory store.
func TestMemoryStoreAppendAndList(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	require.NoError(t, store.Append(ctx, api.HistoryEvent{WorkflowID: "wf-1", Type: api.EventWorkflowStarted}))
	require.NoError(t, store.Append(ctx, api.HistoryEvent{WorkflowID: "wf-2", Type: api.EventWorkflowStarted}))
	require.NoError(t, store.Append(ctx, api.HistoryEvent{WorkflowID: "wf-1", Type: api.EventWorkflowCompleted}))

	events, err := store.List(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, api.EventWorkflowStarted, events[0].Type)
	require.Equal(t, api.EventWorkflowCompleted, events[1].Type)
	require.NotEmpty(t, events[0].ID, "ids are assigned on append")
	require.False(t, events[0].At.IsZero(), "timestamps are assigned on append")

	none, err := store.List(ctx, "wf-3")
	require.NoError(t, err)
	require.Empty(t, none)
}

// TestSQLiteStoreRoundTrip verifies schema creation and append/list against
// a real SQLite file.
func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_journal=WAL")
	require.NoError(t, err)
	defer db.Close()

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)

	at := time.Now()
	require.NoError(t, store.Append(ctx, api.HistoryEvent{
		WorkflowID: "wf-db",
		Type:       api.EventNodeFailed,
		NodeID:     "n1",
		Detail:     "boom",
		At:         at,
	}))
	require.NoError(t, store.Append(ctx, api.HistoryEvent{
		WorkflowID: "wf-db",
		Type:       api.EventWorkflowFailed,
		At:         at.Add(time.Millisecond),
	}))

	events, err := store.List(ctx, "wf-db")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, api.EventNodeFailed, events[0].Type)
	require.Equal(t, "n1", events[0].NodeID)
	require.Equal(t, "boom", events[0].Detail)
	require.Equal(t, at.UnixNano(), events[0].At.UnixNano())
}

// TestRecorderJournalsBusEvents verifies that the recorder turns bus
// lifecycle events into journal records and stops after Close.
func TestRecorderJournalsBusEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := eventbus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	store := NewMemoryStore()
	rec := NewRecorder(bus, store)

	require.NoError(t, bus.Publish(ctx, api.EventWorkflowStarted, map[string]any{
		"workflowId": "wf-r",
	}))
	require.NoError(t, bus.Publish(ctx, api.EventNodeFailed, map[string]any{
		"workflowId": "wf-r",
		"nodeId":     "n2",
		"error":      "exploded",
	}))
	// Not in the journaled set; must be ignored.
	require.NoError(t, bus.Publish(ctx, "custom:event", map[string]any{
		"workflowId": "wf-r",
	}))

	events, err := store.List(ctx, "wf-r")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, api.EventWorkflowStarted, events[0].Type)
	require.Equal(t, api.EventNodeFailed, events[1].Type)
	require.Equal(t, "n2", events[1].NodeID)
	require.Equal(t, "exploded", events[1].Detail)

	rec.Close()
	require.NoError(t, bus.Publish(ctx, api.EventWorkflowStarted, map[string]any{
		"workflowId": "wf-r",
	}))
	events, err = store.List(ctx, "wf-r")
	require.NoError(t, err)
	require.Len(t, events, 2, "a closed recorder journals nothing")
}
