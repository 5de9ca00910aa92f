package history

import (
	"context"
	"fmt"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// journaledEvents are the bus event types the recorder listens to.
var journaledEvents = []string{
	api.EventWorkflowStarted,
	api.EventWorkflowCompleted,
	api.EventWorkflowFailed,
	api.EventWorkflowPaused,
	api.EventWorkflowResumed,
	api.EventNodeStarted,
	api.EventNodeCompleted,
	api.EventNodeFailed,
	api.EventDataFlowFailed,
	api.EventSystemError,
}

// Recorder subscribes to lifecycle events on a bus and appends one journal
// record per event. Subscriptions are synchronous with a low priority so
// journal order matches delivery order and other subscribers run first.
type Recorder struct {
	store api.HistoryStore
	subs  []api.Subscription
}

// NewRecorder attaches a Recorder to the bus. Call Close to detach.
func NewRecorder(bus api.EventBus, store api.HistoryStore) *Recorder {
	r := &Recorder{store: store}
	for _, eventType := range journaledEvents {
		sub := bus.Subscribe(eventType, r.record, api.SubscribeOptions{
			Priority: -100,
			Sync:     true,
		})
		r.subs = append(r.subs, sub)
	}
	return r
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	r.subs = nil
}

func (r *Recorder) record(ctx context.Context, evt api.Event) error {
	ev := api.HistoryEvent{
		Type: evt.Type,
		At:   evt.At,
	}
	if v, ok := evt.Payload["workflowId"].(string); ok {
		ev.WorkflowID = v
	}
	if v, ok := evt.Payload["nodeId"].(string); ok {
		ev.NodeID = v
	}
	if v, ok := evt.Payload["error"]; ok && v != nil {
		ev.Detail = fmt.Sprint(v)
	}
	return r.store.Append(ctx, ev)
}
