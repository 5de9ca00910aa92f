package fluxgraph

import (
	"context"
	"sync/atomic"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// Metrics collects simple counters from a bus. Attach it to the bus whose
// engine you want to observe; combine with a LoggingSubscriber freely, as
// each holds its own subscriptions.
type Metrics struct {
	runsStarted   atomic.Int64
	runsCompleted atomic.Int64
	runsFailed    atomic.Int64
	nodesStarted  atomic.Int64
	nodesDone     atomic.Int64
	nodesFailed   atomic.Int64

	subs []Subscription
}

// MetricsSnapshot is an immutable snapshot of Metrics.
type MetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	PendingRuns   int64

	NodesStarted   int64
	NodesCompleted int64
	NodesFailed    int64
}

// NewMetrics creates a Metrics collector subscribed to the bus's lifecycle
// events. Call Close to detach.
func NewMetrics(bus EventBus) *Metrics {
	m := &Metrics{}

	count := func(counter *atomic.Int64) HandlerFunc {
		return func(ctx context.Context, evt Event) error {
			counter.Add(1)
			return nil
		}
	}

	for eventType, counter := range map[string]*atomic.Int64{
		api.EventWorkflowStarted:   &m.runsStarted,
		api.EventWorkflowCompleted: &m.runsCompleted,
		api.EventWorkflowFailed:    &m.runsFailed,
		api.EventNodeStarted:       &m.nodesStarted,
		api.EventNodeCompleted:     &m.nodesDone,
		api.EventNodeFailed:        &m.nodesFailed,
	} {
		m.subs = append(m.subs, bus.Subscribe(eventType, count(counter), SubscribeOptions{Sync: true}))
	}
	return m
}

// Close detaches the collector from its bus.
func (m *Metrics) Close() {
	for _, sub := range m.subs {
		sub.Unsubscribe()
	}
	m.subs = nil
}

// Snapshot returns a snapshot of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	failed := m.runsFailed.Load()

	return MetricsSnapshot{
		RunsStarted:    started,
		RunsCompleted:  completed,
		RunsFailed:     failed,
		PendingRuns:    started - completed - failed,
		NodesStarted:   m.nodesStarted.Load(),
		NodesCompleted: m.nodesDone.Load(),
		NodesFailed:    m.nodesFailed.Load(),
	}
}
