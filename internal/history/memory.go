// Package history journals workflow lifecycle events for post-mortem
// debugging. Stores are append-only observability sinks; a failed run
// leaves a partial journal and consumers must tolerate that.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// MemoryStore is a goroutine-safe in-memory HistoryStore, useful for tests
// and short-lived processes.
type MemoryStore struct {
	mu     sync.RWMutex
	events []api.HistoryEvent
}

var _ api.HistoryStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, ev api.HistoryEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, workflowID string) ([]api.HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.HistoryEvent
	for _, ev := range s.events {
		if ev.WorkflowID == workflowID {
			out = append(out, ev)
		}
	}
	return out, nil
}
