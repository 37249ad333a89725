package eventbus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PFerreria/Concilium/pkg/channels/gochannel"
	"github.com/PFerreria/Concilium/pkg/eventbus"
	"github.com/PFerreria/Concilium/pkg/events"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub := gochannel.CreateChannel(watermill.NopLogger{}, 0)
	bus := eventbus.NewWatermillEventBus(pub, sub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_RoutesByType(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	received := make(chan *events.JobSubmitted, 1)

	require.NoError(t, bus.Handle(events.JobSubmittedEvent, func(_ context.Context, event any) error {
		submitted, ok := event.(*events.JobSubmitted)
		if !ok {
			return errors.New("unexpected event type")
		}

		received <- submitted

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler for processing events; the bus acks and moves on.
	require.NoError(t, bus.Publish(ctx, events.JobProcessing{
		BaseEvent: events.NewBaseEvent(events.JobProcessingEvent, "job-1"),
	}))
	require.NoError(t, bus.Publish(ctx, events.JobSubmitted{
		BaseEvent: events.NewBaseEvent(events.JobSubmittedEvent, "job-1"),
		Title:     "Onboarding",
		StepCount: 3,
	}))

	select {
	case got := <-received:
		assert.Equal(t, "job-1", got.JobID)
		assert.Equal(t, "Onboarding", got.Title)
		assert.Equal(t, 3, got.StepCount)
	case <-time.After(5 * time.Second):
		t.Fatal("JobSubmitted was not delivered")
	}
}

func TestWatermillEventBus_HandlerReplaced(t *testing.T) {
	t.Parallel()

	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	calls := make(chan string, 2)

	require.NoError(t, bus.Handle(events.JobFailedEvent, func(context.Context, any) error {
		calls <- "first"

		return nil
	}))
	require.NoError(t, bus.Handle(events.JobFailedEvent, func(context.Context, any) error {
		calls <- "second"

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, events.JobFailed{
		BaseEvent: events.NewBaseEvent(events.JobFailedEvent, "job-2"),
		Kind:      "RenderError",
	}))

	select {
	case got := <-calls:
		assert.Equal(t, "second", got)
	case <-time.After(5 * time.Second):
		t.Fatal("JobFailed was not delivered")
	}
}
