package execution

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/eventbus"
	"github.com/leadflow/flowd/pkg/events"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
	"github.com/leadflow/flowd/pkg/persistence/file"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewTracker(store, nil, nil, nil)
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturePublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event{}, p.events...)
}

func (p *capturePublisher) byType(eventType events.EventType) []eventbus.Event {
	matched := []eventbus.Event{}

	for _, event := range p.published() {
		if event.GetType() == eventType {
			matched = append(matched, event)
		}
	}

	return matched
}

func TestCreateExecution_Defaults(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	assert.False(t, execution.StartedAt.IsZero())

	got, err := tracker.GetExecutionByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.WorkflowID)

	timeline, err := tracker.GetExecutionTimeline(ctx, execution.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, "workflow.execution.started", timeline[0].Event)
}

func TestUpdateProgress_MonotonicClamp(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	require.NoError(t, tracker.UpdateProgress(ctx, "exec-1", 60, models.ProgressEvent{}))
	require.NoError(t, tracker.UpdateProgress(ctx, "exec-1", 40, models.ProgressEvent{}))

	got, err := tracker.GetExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.InDelta(t, 60, got.ProgressPercentage, 0.001)
}

func TestUpdateExecution_TerminalOnce(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	completed := models.ExecutionStatusCompleted
	require.NoError(t, tracker.UpdateExecution(ctx, "exec-1", ExecutionPatch{
		Status:     &completed,
		OutputData: map[string]any{"count": 3},
	}))

	got, err := tracker.GetExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	failed := models.ExecutionStatusFailed
	err = tracker.UpdateExecution(ctx, "exec-1", ExecutionPatch{Status: &failed})
	assert.ErrorIs(t, err, persistence.ErrExecutionTerminal)

	// Progress updates on terminal records are silently ignored.
	require.NoError(t, tracker.UpdateProgress(ctx, "exec-1", 99, models.ProgressEvent{}))

	got, err = tracker.GetExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
}

func TestCancelExecution(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	assert.True(t, tracker.CancelExecution(ctx, "exec-1"))

	got, err := tracker.GetExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, got.Status)

	// Terminal and unknown executions are not cancellable.
	assert.False(t, tracker.CancelExecution(ctx, "exec-1"))
	assert.False(t, tracker.CancelExecution(ctx, "exec-missing"))
}

func TestSaveBlockExecution(t *testing.T) {
	tracker := newTestTracker(t)
	ctx := context.Background()

	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	require.NoError(t, tracker.SaveBlockExecution(ctx, "exec-1", &models.NodeExecutionResult{
		NodeID:    "n1",
		BlockType: "input.static",
		Status:    models.NodeStatusCompleted,
	}))

	results, err := tracker.GetBlockExecutions(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "n1", results[0].NodeID)
}

func TestUpdateProgress_PublishesProgressEvent(t *testing.T) {
	publisher := &capturePublisher{}
	store := file.NewPersistence(t.TempDir())
	tracker := NewTracker(store, nil, publisher, nil)
	ctx := context.Background()

	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	require.NoError(t, tracker.UpdateProgress(ctx, "exec-1", 50, models.ProgressEvent{
		Event:  "node.completed",
		NodeID: "n1",
	}))

	progressed := publisher.byType(events.ExecutionProgressEvent)
	require.Len(t, progressed, 1)

	progress, ok := progressed[0].(*events.ExecutionProgress)
	require.True(t, ok)
	assert.Equal(t, "exec-1", progress.ExecutionID)
	assert.Equal(t, "wf-1", progress.WorkflowID)
	assert.InDelta(t, 50, progress.Percentage, 0.001)
	assert.Equal(t, "n1", progress.NodeID)
	assert.Equal(t, "node.completed", progress.Event)

	// A clamped report publishes nothing.
	require.NoError(t, tracker.UpdateProgress(ctx, "exec-1", 30, models.ProgressEvent{}))
	assert.Len(t, publisher.byType(events.ExecutionProgressEvent), 1)
}

func TestSaveBlockExecution_PublishesNodeEvents(t *testing.T) {
	publisher := &capturePublisher{}
	store := file.NewPersistence(t.TempDir())
	tracker := NewTracker(store, nil, publisher, nil)
	ctx := context.Background()

	execution := &models.WorkflowExecution{ID: "exec-1", WorkflowID: "wf-1"}
	require.NoError(t, tracker.CreateExecution(ctx, execution))

	require.NoError(t, tracker.SaveBlockExecution(ctx, "exec-1", &models.NodeExecutionResult{
		NodeID:          "ok",
		BlockType:       "input.static",
		Status:          models.NodeStatusCompleted,
		Output:          map[string]any{"lead": "acme"},
		ExecutionTimeMs: 12,
	}))

	completed := publisher.byType(events.NodeCompletedEvent)
	require.Len(t, completed, 1)

	nodeCompleted, ok := completed[0].(*events.NodeCompleted)
	require.True(t, ok)
	assert.Equal(t, "ok", nodeCompleted.NodeID)
	assert.Equal(t, "wf-1", nodeCompleted.WorkflowID)
	assert.Equal(t, "acme", nodeCompleted.Output["lead"])

	require.NoError(t, tracker.SaveBlockExecution(ctx, "exec-1", &models.NodeExecutionResult{
		NodeID:    "bad",
		BlockType: "input.http",
		Status:    models.NodeStatusFailed,
		Error: &models.EngineError{
			Kind:    models.ErrorKindNodeExecutionFailed,
			Message: "connection refused",
		},
	}))

	failed := publisher.byType(events.NodeFailedEvent)
	require.Len(t, failed, 1)

	nodeFailed, ok := failed[0].(*events.NodeFailed)
	require.True(t, ok)
	assert.Equal(t, "bad", nodeFailed.NodeID)
	assert.Equal(t, "connection refused", nodeFailed.Error)
}
