// Package execution provides durable run tracking and the run submission
// service that ties the validator, orchestrator, job processor and stores
// together.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadflow/flowd/pkg/eventbus"
	"github.com/leadflow/flowd/pkg/events"
	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
)

// ExecutionPatch is a partial update applied to a tracking record. Nil fields
// are left unchanged.
type ExecutionPatch struct {
	Status             *models.ExecutionStatus
	OutputData         map[string]any
	ErrorMessage       *string
	ErrorStack         *string
	ProgressPercentage *float64
	Metadata           map[string]any
}

// Tracker is the durable counterpart of the in-memory job processor. Writes
// are append or patch only; a terminal status and completed_at are set exactly
// once, after which the record is immutable.
type Tracker struct {
	mu         sync.Mutex
	executions persistence.ExecutionRepository
	timeline   persistence.TimelineRepository
	processor  *jobs.Processor
	publisher  eventbus.EventPublisher
	logger     *slog.Logger
	jobIDs     map[string]string // execution ID -> job ID
}

// NewTracker creates an execution tracker. The job processor and event
// publisher are optional; without them cancellation only touches the store and
// no lifecycle events are published.
func NewTracker(store persistence.Persistence, processor *jobs.Processor, publisher eventbus.EventPublisher, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		executions: store.ExecutionRepository(),
		timeline:   store.TimelineRepository(),
		processor:  processor,
		publisher:  publisher,
		logger:     logger.With("module", "execution"),
		jobIDs:     make(map[string]string),
	}
}

// CreateExecution persists a new running record and emits the started event.
func (t *Tracker) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	if execution.ID == "" {
		execution.ID = fmt.Sprintf("exec-%s", uuid.New().String()[:8])
	}

	if execution.Status == "" {
		execution.Status = models.ExecutionStatusRunning
	}

	if execution.StartedAt.IsZero() {
		execution.StartedAt = time.Now().UTC()
	}

	if execution.Mode == "" {
		execution.Mode = models.ExecutionModeProduction
	}

	if err := t.executions.SaveExecution(ctx, execution); err != nil {
		return err
	}

	t.appendEvent(ctx, &models.TimelineEvent{
		ExecutionID: execution.ID,
		Event:       string(events.ExecutionStartedEvent),
		EventType:   models.TimelineEventTypeExecution,
	})

	t.publish(ctx, execution.ID, &events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, execution.WorkflowID),
		ExecutionID: execution.ID,
		InputData:   execution.InputData,
	})

	return nil
}

// RegisterJob associates an execution with its in-memory job so cancellation
// can reach the running goroutine.
func (t *Tracker) RegisterJob(executionID, jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.jobIDs[executionID] = jobID
}

// JobID returns the job associated with an execution, if any.
func (t *Tracker) JobID(executionID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobID, ok := t.jobIDs[executionID]

	return jobID, ok
}

// UpdateProgress patches the progress percentage and publishes the progress
// event. Progress is clamped monotonic: a report lower than the stored value
// is ignored. Terminal records are never touched.
func (t *Tracker) UpdateProgress(ctx context.Context, executionID string, percentage float64, event models.ProgressEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	execution, err := t.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.IsTerminal() || percentage <= execution.ProgressPercentage {
		return nil
	}

	execution.ProgressPercentage = percentage

	if err := t.executions.SaveExecution(ctx, execution); err != nil {
		return err
	}

	t.publish(ctx, executionID, &events.ExecutionProgress{
		BaseEvent:   events.NewBaseEvent(events.ExecutionProgressEvent, execution.WorkflowID),
		ExecutionID: executionID,
		Percentage:  percentage,
		NodeID:      event.NodeID,
		Event:       event.Event,
	})

	return nil
}

// UpdateExecution applies a patch to the tracking record. Patching a terminal
// record returns ErrExecutionTerminal; a patch that sets a terminal status
// also stamps completed_at and publishes the matching lifecycle event.
func (t *Tracker) UpdateExecution(ctx context.Context, executionID string, patch ExecutionPatch) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	execution, err := t.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		return err
	}

	if execution.Status.IsTerminal() {
		return persistence.NewStoreError("UpdateExecution", executionID, persistence.ErrExecutionTerminal)
	}

	if patch.OutputData != nil {
		execution.OutputData = patch.OutputData
	}

	if patch.ErrorMessage != nil {
		execution.ErrorMessage = *patch.ErrorMessage
	}

	if patch.ErrorStack != nil {
		execution.ErrorStack = *patch.ErrorStack
	}

	if patch.ProgressPercentage != nil && *patch.ProgressPercentage > execution.ProgressPercentage {
		execution.ProgressPercentage = *patch.ProgressPercentage
	}

	if patch.Metadata != nil {
		execution.Metadata = patch.Metadata
	}

	if patch.Status != nil {
		execution.Status = *patch.Status

		if execution.Status.IsTerminal() {
			now := time.Now().UTC()
			execution.CompletedAt = &now
		}
	}

	if err := t.executions.SaveExecution(ctx, execution); err != nil {
		return err
	}

	if patch.Status != nil && execution.Status.IsTerminal() {
		t.recordTerminal(ctx, execution)
	}

	return nil
}

func (t *Tracker) recordTerminal(ctx context.Context, execution *models.WorkflowExecution) {
	durationMs := int64(0)
	if execution.CompletedAt != nil {
		durationMs = execution.CompletedAt.Sub(execution.StartedAt).Milliseconds()
	}

	t.appendEvent(ctx, &models.TimelineEvent{
		ExecutionID:  execution.ID,
		Event:        "workflow.execution." + string(execution.Status),
		EventType:    models.TimelineEventTypeExecution,
		ErrorMessage: execution.ErrorMessage,
	})

	switch execution.Status {
	case models.ExecutionStatusCompleted:
		t.publish(ctx, execution.ID, &events.ExecutionCompleted{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			DurationMs:  durationMs,
			Output:      execution.OutputData,
		})
	case models.ExecutionStatusFailed:
		t.publish(ctx, execution.ID, &events.ExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			DurationMs:  durationMs,
			Error: events.ExecutionError{
				Message: execution.ErrorMessage,
			},
			PartialResults: execution.OutputData,
		})
	case models.ExecutionStatusCancelled:
		t.publish(ctx, execution.ID, &events.ExecutionCancelled{
			BaseEvent:   events.NewBaseEvent(events.ExecutionCancelledEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			DurationMs:  durationMs,
		})
	}
}

// SaveBlockExecution appends one node result to the durable record and
// publishes the matching node event.
func (t *Tracker) SaveBlockExecution(ctx context.Context, executionID string, result *models.NodeExecutionResult) error {
	if err := t.executions.SaveBlockExecution(ctx, executionID, result); err != nil {
		return err
	}

	if t.publisher == nil {
		return nil
	}

	workflowID := ""
	if execution, err := t.executions.ExecutionByID(ctx, executionID); err == nil {
		workflowID = execution.WorkflowID
	}

	if result.Status == models.NodeStatusFailed {
		message := ""
		if result.Error != nil {
			message = result.Error.Message
		}

		t.publish(ctx, executionID, &events.NodeFailed{
			BaseEvent:   events.NewBaseEvent(events.NodeFailedEvent, workflowID),
			ExecutionID: executionID,
			NodeID:      result.NodeID,
			BlockType:   result.BlockType,
			Error:       message,
			DurationMs:  result.ExecutionTimeMs,
		})

		return nil
	}

	t.publish(ctx, executionID, &events.NodeCompleted{
		BaseEvent:   events.NewBaseEvent(events.NodeCompletedEvent, workflowID),
		ExecutionID: executionID,
		NodeID:      result.NodeID,
		BlockType:   result.BlockType,
		Status:      result.Status,
		Output:      result.Output,
		DurationMs:  result.ExecutionTimeMs,
	})

	return nil
}

// AppendTimelineEvent records an audit event, stamping ID and timestamp.
func (t *Tracker) AppendTimelineEvent(ctx context.Context, event *models.TimelineEvent) error {
	if event.ID == "" {
		event.ID = fmt.Sprintf("evt-%s", uuid.New().String()[:8])
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	return t.timeline.AppendEvent(ctx, event)
}

// GetExecutionByID returns the tracking record.
func (t *Tracker) GetExecutionByID(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return t.executions.ExecutionByID(ctx, executionID)
}

// GetExecutionTimeline returns the execution's audit trail in order.
func (t *Tracker) GetExecutionTimeline(ctx context.Context, executionID string) ([]*models.TimelineEvent, error) {
	return t.timeline.EventsByExecution(ctx, executionID)
}

// GetBlockExecutions returns the stored per-node results in order.
func (t *Tracker) GetBlockExecutions(ctx context.Context, executionID string) ([]*models.NodeExecutionResult, error) {
	return t.executions.BlockExecutions(ctx, executionID)
}

// CancelExecution requests cooperative cancellation. The store is consulted
// first; when the execution maps to an in-memory job the job is signalled too,
// so the run stops at the next node boundary. Returns false when the
// execution is unknown or already terminal.
func (t *Tracker) CancelExecution(ctx context.Context, executionID string) bool {
	execution, err := t.executions.ExecutionByID(ctx, executionID)
	if err != nil {
		// Not yet persisted; the job processor may still know it.
		if jobID, ok := t.JobID(executionID); ok && t.processor != nil {
			return t.processor.CancelJob(jobID) != nil
		}

		return false
	}

	if execution.Status.IsTerminal() {
		return false
	}

	if jobID, ok := t.JobID(executionID); ok && t.processor != nil {
		t.processor.CancelJob(jobID)
	}

	status := models.ExecutionStatusCancelled
	if err := t.UpdateExecution(ctx, executionID, ExecutionPatch{Status: &status}); err != nil {
		t.logger.WarnContext(ctx, "Failed to persist cancellation", "execution_id", executionID, "error", err)
	}

	return true
}

func (t *Tracker) appendEvent(ctx context.Context, event *models.TimelineEvent) {
	if err := t.AppendTimelineEvent(ctx, event); err != nil {
		t.logger.WarnContext(ctx, "Failed to append timeline event",
			"execution_id", event.ExecutionID,
			"event", event.Event,
			"error", err,
		)
	}
}

func (t *Tracker) publish(ctx context.Context, key string, event eventbus.Event) {
	if t.publisher == nil {
		return
	}

	if err := t.publisher.Publish(ctx, key, event); err != nil {
		t.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
