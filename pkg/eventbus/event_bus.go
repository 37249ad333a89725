// Package eventbus carries job lifecycle events between the orchestrator and
// the workers that execute jobs.
package eventbus

import (
	"context"

	"github.com/PFerreria/Concilium/pkg/events"
)

// Event is a lifecycle event of one job. The job id keys the message so that
// every event of a job is delivered in publish order.
type Event interface {
	GetType() events.EventType
	GetJobID() string
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives the decoded event, a pointer to one of the events types.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
