// Package eventbus implements the publish/subscribe bus used for workflow
// lifecycle signals. Each Bus is constructed explicitly; there is no
// package-level instance.
package eventbus

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

// subscriber is one entry in the subscription table.
type subscriber struct {
	id       string
	handler  api.HandlerFunc
	priority int
	once     bool
	sync     bool

	// seq breaks priority ties by insertion order.
	seq    int64
	active *atomic.Bool
}

// subscription is the capability handle returned to callers.
type subscription struct {
	bus       *Bus
	eventType string
	id        string
	active    *atomic.Bool
}

func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) ID() string        { return s.id }
func (s *subscription) Active() bool      { return s.active.Load() }
func (s *subscription) Unsubscribe()      { s.bus.Unsubscribe(s) }

// Bus is the default EventBus implementation. A Bus is safe for concurrent
// use; subscribe and unsubscribe are linearizable with respect to publish
// snapshots.
type Bus struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string][]*subscriber
	nextSeq     int64
}

var _ api.EventBus = (*Bus)(nil)

// New creates an empty Bus. If logger is nil, slog.Default() is used.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:      logger,
		subscribers: make(map[string][]*subscriber),
	}
}

func (b *Bus) Subscribe(eventType string, handler api.HandlerFunc, opts api.SubscribeOptions) api.Subscription {
	if handler == nil {
		panic("eventbus: nil handler")
	}

	active := &atomic.Bool{}
	active.Store(true)

	b.mu.Lock()
	b.nextSeq++
	sub := &subscriber{
		id:       uuid.NewString(),
		handler:  handler,
		priority: opts.Priority,
		once:     opts.Once,
		sync:     opts.Sync,
		seq:      b.nextSeq,
		active:   active,
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
	b.mu.Unlock()

	return &subscription{
		bus:       b,
		eventType: eventType,
		id:        sub.id,
		active:    active,
	}
}

// Publish delivers the event to a snapshot of the current subscribers in
// descending priority order (ties by insertion order) and returns once all
// of them have settled. Subscriptions added during delivery do not receive
// the in-flight event.
func (b *Bus) Publish(ctx context.Context, eventType string, payload map[string]any) error {
	evt := api.Event{
		Type:    eventType,
		Payload: payload,
		At:      time.Now(),
	}

	snapshot := b.claim(eventType)
	if len(snapshot) == 0 {
		return nil
	}

	type failure struct {
		subID string
		err   error
	}

	var (
		wg       sync.WaitGroup
		failMu   sync.Mutex
		failures []failure
	)
	record := func(subID string, err error) {
		failMu.Lock()
		failures = append(failures, failure{subID: subID, err: err})
		failMu.Unlock()
	}

	for _, sub := range snapshot {
		sub := sub
		if sub.sync {
			if err := invoke(ctx, sub, evt); err != nil {
				record(sub.id, err)
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := invoke(ctx, sub, evt); err != nil {
				record(sub.id, err)
			}
		}()
	}
	wg.Wait()

	for _, f := range failures {
		b.logger.Error("event subscriber failed",
			slog.String("event_type", eventType),
			slog.String("subscription_id", f.subID),
			slog.Any("error", f.err),
		)
		// Reentrancy guard: a failing system:error subscriber is logged
		// only, never republished.
		if eventType == api.EventSystemError {
			continue
		}
		_ = b.Publish(ctx, api.EventSystemError, map[string]any{
			"error":           f.err,
			"sourceEventType": eventType,
			"subscriptionId":  f.subID,
		})
	}

	return nil
}

// claim snapshots the subscribers for eventType in delivery order. Once
// subscribers are removed from the table as part of the snapshot so that
// concurrent publishes cannot deliver to them twice; their handles stay
// active until their invocation settles.
func (b *Bus) claim(eventType string) []*subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	if len(subs) == 0 {
		return nil
	}

	snapshot := make([]*subscriber, len(subs))
	copy(snapshot, subs)
	sort.SliceStable(snapshot, func(i, j int) bool {
		if snapshot[i].priority != snapshot[j].priority {
			return snapshot[i].priority > snapshot[j].priority
		}
		return snapshot[i].seq < snapshot[j].seq
	})

	remaining := subs[:0]
	for _, s := range subs {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		delete(b.subscribers, eventType)
	} else {
		b.subscribers[eventType] = remaining
	}

	return snapshot
}

// invoke runs one handler with panic containment.
func invoke(ctx context.Context, sub *subscriber, evt api.Event) (err error) {
	if !sub.active.Load() {
		return nil
	}
	defer func() {
		if sub.once {
			sub.active.Store(false)
		}
		if r := recover(); r != nil {
			err = &api.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return sub.handler(ctx, evt)
}

// Unsubscribe removes the subscription from the table and flips its handle
// inactive. Unsubscribing an already-inactive handle is a no-op.
func (b *Bus) Unsubscribe(handle api.Subscription) {
	if handle == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[handle.EventType()]
	for i, s := range subs {
		if s.id == handle.ID() {
			s.active.Store(false)
			b.subscribers[handle.EventType()] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) HasSubscribers(eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[eventType]) > 0
}

func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[eventType])
}

func (b *Bus) ClearEventSubscriptions(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subscribers[eventType] {
		s.active.Store(false)
	}
	delete(b.subscribers, eventType)
}

func (b *Bus) ClearAllSubscriptions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.subscribers {
		for _, s := range subs {
			s.active.Store(false)
		}
	}
	b.subscribers = make(map[string][]*subscriber)
}
