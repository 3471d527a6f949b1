package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadflow/flowd/pkg/eventbus"
	"github.com/leadflow/flowd/pkg/events"
	"github.com/leadflow/flowd/pkg/execution"
	"github.com/leadflow/flowd/pkg/intake"
	"github.com/leadflow/flowd/pkg/scheduler"
)

// Worker consumes run requests from the event bus, and optionally from a
// Redis intake queue and a cron scheduler, and executes them through the run
// submission service.
type Worker struct {
	id        string
	logger    *slog.Logger
	runner    *execution.Runner
	eventBus  eventbus.EventBus
	intake    *intake.Consumer
	scheduler *scheduler.Scheduler
	refresh   time.Duration
}

func NewWorker(
	id string,
	runner *execution.Runner,
	eventBus eventbus.EventBus,
	intakeConsumer *intake.Consumer,
	sched *scheduler.Scheduler,
	refresh time.Duration,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:        id,
		logger:    logger.With("module", "worker", "worker_id", id),
		runner:    runner,
		eventBus:  eventBus,
		intake:    intakeConsumer,
		scheduler: sched,
		refresh:   refresh,
	}
}

// Start blocks until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	if err := w.eventBus.Handle(events.RunRequestedEvent, w.handleRunRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if w.intake != nil {
		if err := w.intake.Start(ctx); err != nil {
			return err
		}
	}

	if w.scheduler != nil {
		if err := w.scheduler.Start(ctx); err != nil {
			return err
		}

		go w.refreshSchedules(ctx)
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	w.logger.Info("Shutting down worker...")

	return w.stop()
}

func (w *Worker) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if w.intake != nil {
		if err := w.intake.Stop(ctx); err != nil {
			w.logger.Error("Failed to stop intake consumer", "error", err)
		}
	}

	if w.scheduler != nil {
		if err := w.scheduler.Stop(ctx); err != nil {
			w.logger.Error("Failed to stop scheduler", "error", err)
		}
	}

	return nil
}

func (w *Worker) refreshSchedules(ctx context.Context) {
	ticker := time.NewTicker(w.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.scheduler.Refresh(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Failed to refresh schedules", "error", err)
			}
		}
	}
}

func (w *Worker) handleRunRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.RunRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RunRequested")

		return nil
	}

	logger := w.logger.With("workflow_id", request.WorkflowID, "event_id", request.ID)
	logger.InfoContext(ctx, "Processing run request")

	submission, err := w.runner.Submit(ctx, request.WorkflowID, execution.SubmitOptions{
		InputData: request.InputData,
		Variables: request.Variables,
		Mode:      request.Mode,
		OwnerID:   request.OwnerID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to submit run", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Run accepted",
		"job_id", submission.JobID,
		"execution_id", submission.ExecutionID,
	)

	return nil
}

// submitByID adapts the runner for intake and scheduler submissions.
func (w *Worker) submitByID(ctx context.Context, workflowID string) error {
	_, err := w.runner.Submit(ctx, workflowID, execution.SubmitOptions{})

	return err
}

// submitRunRequest adapts the runner for Redis intake submissions.
func (w *Worker) submitRunRequest(ctx context.Context, request intake.RunRequest) error {
	_, err := w.runner.Submit(ctx, request.WorkflowID, execution.SubmitOptions{
		InputData: request.InputData,
		Variables: request.Variables,
		Mode:      request.Mode,
		OwnerID:   request.OwnerID,
	})

	return err
}
