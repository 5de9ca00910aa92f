package fluxgraph

import (
	"context"
	"log/slog"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// LoggingSubscriber writes structured logs for lifecycle events using
// log/slog.
type LoggingSubscriber struct {
	logger *slog.Logger
	subs   []Subscription
}

// NewLoggingSubscriber subscribes structured logging to the bus's
// lifecycle events. If logger is nil, slog.Default() is used. Call Close
// to detach.
func NewLoggingSubscriber(bus EventBus, logger *slog.Logger) *LoggingSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	l := &LoggingSubscriber{logger: logger}

	log := func(level slog.Level, msg string) HandlerFunc {
		return func(ctx context.Context, evt Event) error {
			attrs := make([]any, 0, 6)
			if v, ok := evt.Payload["workflowId"].(string); ok {
				attrs = append(attrs, slog.String("workflow_id", v))
			}
			if v, ok := evt.Payload["nodeId"].(string); ok {
				attrs = append(attrs, slog.String("node_id", v))
			}
			if v, ok := evt.Payload["error"]; ok && v != nil {
				attrs = append(attrs, slog.Any("error", v))
			}
			l.logger.Log(ctx, level, msg, attrs...)
			return nil
		}
	}

	subscribe := func(eventType string, level slog.Level, msg string) {
		l.subs = append(l.subs, bus.Subscribe(eventType, log(level, msg), SubscribeOptions{Sync: true}))
	}

	subscribe(api.EventWorkflowStarted, slog.LevelInfo, "workflow_started")
	subscribe(api.EventWorkflowCompleted, slog.LevelInfo, "workflow_completed")
	subscribe(api.EventWorkflowFailed, slog.LevelError, "workflow_failed")
	subscribe(api.EventWorkflowPaused, slog.LevelInfo, "workflow_paused")
	subscribe(api.EventWorkflowResumed, slog.LevelInfo, "workflow_resumed")
	subscribe(api.EventNodeStarted, slog.LevelDebug, "node_started")
	subscribe(api.EventNodeCompleted, slog.LevelDebug, "node_completed")
	subscribe(api.EventNodeFailed, slog.LevelError, "node_failed")
	subscribe(api.EventSystemError, slog.LevelError, "system_error")

	return l
}

// Close detaches the subscriber from its bus.
func (l *LoggingSubscriber) Close() {
	for _, sub := range l.subs {
		sub.Unsubscribe()
	}
	l.subs = nil
}
