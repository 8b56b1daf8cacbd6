package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/resume"
	"github.com/dukex/autoflow/pkg/workflow"
)

const shutdownTimeout = 30 * time.Second

// Worker runs execution requests from the event bus and drives the resume poller.
type Worker struct {
	id          string
	logger      *slog.Logger
	eventBus    eventbus.EventSubscriber
	coordinator *workflow.Coordinator
	poller      *resume.Poller
}

// NewWorker creates a Worker identified by id.
func NewWorker(
	id string,
	eventBus eventbus.EventSubscriber,
	coordinator *workflow.Coordinator,
	poller *resume.Poller,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:          id,
		logger:      logger.With("module", "autoflow-worker", "worker_id", id),
		eventBus:    eventBus,
		coordinator: coordinator,
		poller:      poller,
	}
}

// Start consumes execution requests and runs the resume poller until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.coordinator.HandleExecutionRequested)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.poller.Start(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	w.logger.InfoContext(ctx, "Shutting down worker...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	w.poller.Stop(stopCtx)

	return nil
}
