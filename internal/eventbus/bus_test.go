package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/pkg/api"
)

func testBus() *Bus {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestPublishPriorityOrder verifies that subscribers run in descending
// priority order within one publish, with ties broken by insertion order.
func TestPublishPriorityOrder(t *testing.T) {
	t.Parallel()

	bus := testBus()

	var mu sync.Mutex
	var order []string
	record := func(name string) api.HandlerFunc {
		return func(ctx context.Context, evt api.Event) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// Synchronous subscribers so the delivery order is observable.
	bus.Subscribe("tick", record("low"), api.SubscribeOptions{Priority: -1, Sync: true})
	bus.Subscribe("tick", record("high"), api.SubscribeOptions{Priority: 10, Sync: true})
	bus.Subscribe("tick", record("mid-a"), api.SubscribeOptions{Priority: 5, Sync: true})
	bus.Subscribe("tick", record("mid-b"), api.SubscribeOptions{Priority: 5, Sync: true})

	require.NoError(t, bus.Publish(context.Background(), "tick", nil))
	require.Equal(t, []string{"high", "mid-a", "mid-b", "low"}, order)
}

// TestPublishJoinsAsyncSubscribers verifies that Publish does not return
// until asynchronous subscribers have settled.
func TestPublishJoinsAsyncSubscribers(t *testing.T) {
	t.Parallel()

	bus := testBus()

	var done atomic.Int32
	for i := 0; i < 4; i++ {
		bus.Subscribe("work", func(ctx context.Context, evt api.Event) error {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
			return nil
		}, api.SubscribeOptions{})
	}

	require.NoError(t, bus.Publish(context.Background(), "work", nil))
	require.Equal(t, int32(4), done.Load(), "all async subscribers must settle before Publish returns")
}

// TestOnceSubscriberRemovedAfterDelivery verifies one-shot semantics: a
// once-subscriber fires on the first publish only and its handle reports
// inactive afterwards.
func TestOnceSubscriberRemovedAfterDelivery(t *testing.T) {
	t.Parallel()

	bus := testBus()

	var calls atomic.Int32
	sub := bus.Subscribe("ping", func(ctx context.Context, evt api.Event) error {
		calls.Add(1)
		return nil
	}, api.SubscribeOptions{Once: true, Sync: true})

	require.True(t, sub.Active())
	require.NoError(t, bus.Publish(context.Background(), "ping", nil))
	require.NoError(t, bus.Publish(context.Background(), "ping", nil))

	require.Equal(t, int32(1), calls.Load())
	require.False(t, sub.Active())
	require.False(t, bus.HasSubscribers("ping"))
}

// TestSubscriberFailureIsolated verifies that one failing subscriber does
// not affect the others, does not surface from Publish, and is republished
// as a system:error event.
func TestSubscriberFailureIsolated(t *testing.T) {
	t.Parallel()

	bus := testBus()

	var healthy atomic.Int32
	bus.Subscribe("evt", func(ctx context.Context, evt api.Event) error {
		return errors.New("boom")
	}, api.SubscribeOptions{Priority: 10, Sync: true})
	bus.Subscribe("evt", func(ctx context.Context, evt api.Event) error {
		healthy.Add(1)
		return nil
	}, api.SubscribeOptions{Sync: true})

	var systemErrors atomic.Int32
	bus.Subscribe(api.EventSystemError, func(ctx context.Context, evt api.Event) error {
		systemErrors.Add(1)
		require.Equal(t, "evt", evt.Payload["sourceEventType"])
		return nil
	}, api.SubscribeOptions{Sync: true})

	require.NoError(t, bus.Publish(context.Background(), "evt", nil))
	require.Equal(t, int32(1), healthy.Load())
	require.Equal(t, int32(1), systemErrors.Load())
}

// TestSystemErrorReentrancyGuard verifies that a failing system:error
// subscriber is not republished, so a broken error handler cannot loop the
// bus forever.
func TestSystemErrorReentrancyGuard(t *testing.T) {
	t.Parallel()

	bus := testBus()

	var calls atomic.Int32
	bus.Subscribe(api.EventSystemError, func(ctx context.Context, evt api.Event) error {
		calls.Add(1)
		return errors.New("handler itself is broken")
	}, api.SubscribeOptions{Sync: true})

	require.NoError(t, bus.Publish(context.Background(), api.EventSystemError, map[string]any{
		"error": "original",
	}))
	require.Equal(t, int32(1), calls.Load())
}

// TestPanickingSubscriberIsolated verifies that a panicking subscriber is
// contained the same way as an erroring one.
func TestPanickingSubscriberIsolated(t *testing.T) {
	t.Parallel()

	bus := testBus()

	bus.Subscribe("evt", func(ctx context.Context, evt api.Event) error {
		panic("subscriber panic")
	}, api.SubscribeOptions{Sync: true})

	var sawError atomic.Bool
	bus.Subscribe(api.EventSystemError, func(ctx context.Context, evt api.Event) error {
		var perr *api.PanicError
		require.ErrorAs(t, evt.Payload["error"].(error), &perr)
		sawError.Store(true)
		return nil
	}, api.SubscribeOptions{Sync: true})

	require.NoError(t, bus.Publish(context.Background(), "evt", nil))
	require.True(t, sawError.Load())
}

// TestSubscribeDuringDeliveryNotInvoked verifies that a subscription
// registered while an event is being delivered does not receive that
// event.
func TestSubscribeDuringDeliveryNotInvoked(t *testing.T) {
	t.Parallel()

	bus := testBus()

	var lateCalls atomic.Int32
	bus.Subscribe("evt", func(ctx context.Context, evt api.Event) error {
		bus.Subscribe("evt", func(ctx context.Context, evt api.Event) error {
			lateCalls.Add(1)
			return nil
		}, api.SubscribeOptions{Sync: true})
		return nil
	}, api.SubscribeOptions{Sync: true})

	require.NoError(t, bus.Publish(context.Background(), "evt", nil))
	require.Equal(t, int32(0), lateCalls.Load())

	// The late subscription sees the next publish.
	require.NoError(t, bus.Publish(context.Background(), "evt", nil))
	require.Equal(t, int32(1), lateCalls.Load())
}

// TestUnsubscribeIdempotent verifies that unsubscribing twice, or through
// both the handle and the bus, is a safe no-op.
func TestUnsubscribeIdempotent(t *testing.T) {
	t.Parallel()

	bus := testBus()

	sub := bus.Subscribe("evt", func(ctx context.Context, evt api.Event) error {
		return nil
	}, api.SubscribeOptions{})

	require.Equal(t, 1, bus.SubscriberCount("evt"))
	sub.Unsubscribe()
	require.False(t, sub.Active())
	require.Equal(t, 0, bus.SubscriberCount("evt"))

	sub.Unsubscribe()
	bus.Unsubscribe(sub)
	require.Equal(t, 0, bus.SubscriberCount("evt"))
}

// TestClearSubscriptions verifies per-event and global bulk removal.
func TestClearSubscriptions(t *testing.T) {
	t.Parallel()

	bus := testBus()
	nop := func(ctx context.Context, evt api.Event) error { return nil }

	a := bus.Subscribe("a", nop, api.SubscribeOptions{})
	bus.Subscribe("a", nop, api.SubscribeOptions{})
	b := bus.Subscribe("b", nop, api.SubscribeOptions{})

	require.Equal(t, 2, bus.SubscriberCount("a"))

	bus.ClearEventSubscriptions("a")
	require.False(t, bus.HasSubscribers("a"))
	require.False(t, a.Active())
	require.True(t, b.Active())

	bus.ClearAllSubscriptions()
	require.False(t, bus.HasSubscribers("b"))
	require.False(t, b.Active())
}
