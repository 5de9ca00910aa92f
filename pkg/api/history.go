package api

import (
	"context"
	"time"
)

// HistoryEvent is a minimal append-only journal record for post-mortem
// debugging of runs. It is intentionally small and stable; it records that
// something happened, not payload dumps.
type HistoryEvent struct {
	ID         string
	WorkflowID string
	At         time.Time
	Type       string

	// Optional context.
	NodeID string

	// Detail is a short human-oriented note (error string, output count).
	// Keep this low-volume.
	Detail string
}

// HistoryStore is an append-only store for run journal records. It is an
// observability sink, not durable execution state: the engine never reads
// it back.
type HistoryStore interface {
	Append(ctx context.Context, ev HistoryEvent) error
	List(ctx context.Context, workflowID string) ([]HistoryEvent, error)
}
