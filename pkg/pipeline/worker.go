package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/PFerreria/Concilium/pkg/eventbus"
	"github.com/PFerreria/Concilium/pkg/events"
)

// Worker consumes job.submitted events and hands the jobs to a Pool.
type Worker struct {
	id       string
	eventBus eventbus.EventBus
	pool     Dispatcher
	logger   *slog.Logger
}

func NewWorker(id string, eventBus eventbus.EventBus, pool Dispatcher, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		eventBus: eventBus,
		pool:     pool,
		logger:   logger.With("module", "worker", "worker_id", id),
	}
}

// Start registers the handler and subscribes to the bus. Delivery runs in the
// background until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.eventBus.Handle(events.JobSubmittedEvent, w.handleJobSubmitted)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	return nil
}

func (w *Worker) handleJobSubmitted(ctx context.Context, event any) error {
	submitted, ok := event.(*events.JobSubmitted)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for JobSubmitted")

		return nil
	}

	w.logger.InfoContext(ctx, "Dispatching submitted job", "job_id", submitted.JobID, "event_id", submitted.ID)

	err := w.pool.Dispatch(ctx, submitted.JobID)
	if errors.Is(err, ErrPoolClosed) {
		// The job stays pending and is picked up by Recover on the next start.
		w.logger.WarnContext(ctx, "Pool closed, job left pending", "job_id", submitted.JobID)

		return nil
	}

	return err
}
