package execution

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
	"github.com/leadflow/flowd/pkg/persistence/file"
	"github.com/leadflow/flowd/pkg/protocol"
	"github.com/leadflow/flowd/pkg/registry"
	"github.com/leadflow/flowd/pkg/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type runnerFixture struct {
	store     persistence.Persistence
	registry  *registry.Registry
	processor *jobs.Processor
	tracker   *Tracker
	runner    *Runner
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry()
	require.NoError(t, reg.RegisterDefaultBlocks())

	processor := jobs.NewProcessor(nil)
	tracker := NewTracker(store, processor, nil, nil)
	orchestrator := workflow.NewOrchestrator(reg, testLogger())

	return &runnerFixture{
		store:     store,
		registry:  reg,
		processor: processor,
		tracker:   tracker,
		runner:    NewRunner(store, reg, orchestrator, processor, tracker, testLogger()),
	}
}

func activeWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:     "wf-1",
		Name:   "Lead enrichment",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{ID: "fetch", Type: "input.static", Config: map[string]any{
				"data": map[string]any{"lead": "acme"},
			}},
			{ID: "tag", Type: "transform.template", Config: map[string]any{
				"expression": "enriched",
				"target":     "stage",
			}},
		},
		Edges: []*models.Edge{
			{ID: "e1", Source: "fetch", Target: "tag"},
		},
	}
}

func TestRunSync_CompletesAndTracks(t *testing.T) {
	fixture := newRunnerFixture(t)
	ctx := context.Background()

	require.NoError(t, fixture.store.WorkflowRepository().SaveWorkflow(ctx, activeWorkflow()))

	result, executionID, err := fixture.runner.RunSync(ctx, "wf-1", SubmitOptions{
		InputData: map[string]any{"source": "crm"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "enriched", result.Output["stage"])
	assert.Equal(t, "acme", result.Output["lead"])

	execution, err := fixture.tracker.GetExecutionByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.InDelta(t, 100, execution.ProgressPercentage, 0.001)
	assert.NotNil(t, execution.CompletedAt)

	nodeResults, err := fixture.tracker.GetBlockExecutions(ctx, executionID)
	require.NoError(t, err)
	assert.Len(t, nodeResults, 2)

	timeline, err := fixture.tracker.GetExecutionTimeline(ctx, executionID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(timeline), 3) // started + node events + finished
}

func TestRunSync_PreservesTimeoutErrorKind(t *testing.T) {
	fixture := newRunnerFixture(t)
	ctx := context.Background()

	fixture.registry.RegisterOverride(&stallingFactory{started: make(chan struct{})})

	def := activeWorkflow()
	def.Nodes = append(def.Nodes, &models.WorkflowNode{
		ID:        "stall",
		Type:      "custom.stall",
		TimeoutMs: 20,
		Critical:  true,
	})
	def.Edges = append(def.Edges, &models.Edge{ID: "e2", Source: "tag", Target: "stall"})
	require.NoError(t, fixture.store.WorkflowRepository().SaveWorkflow(ctx, def))

	result, executionID, err := fixture.runner.RunSync(ctx, "wf-1", SubmitOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, models.ErrorKindTimeout, result.Error.Kind)
	assert.Equal(t, "stall", result.Error.NodeID)

	execution, err := fixture.tracker.GetExecutionByID(ctx, executionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.ErrorKindTimeout), execution.Metadata[metadataKeyErrorKind])
	assert.Equal(t, "stall", execution.Metadata[metadataKeyErrorNode])
}

func TestSubmit_UnknownWorkflow(t *testing.T) {
	fixture := newRunnerFixture(t)

	_, err := fixture.runner.Submit(context.Background(), "missing", SubmitOptions{})
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestSubmit_InactiveWorkflow(t *testing.T) {
	fixture := newRunnerFixture(t)
	ctx := context.Background()

	def := activeWorkflow()
	def.Status = models.WorkflowStatusDraft
	require.NoError(t, fixture.store.WorkflowRepository().SaveWorkflow(ctx, def))

	_, err := fixture.runner.Submit(ctx, "wf-1", SubmitOptions{})
	assert.ErrorIs(t, err, ErrWorkflowNotActive)
}

func TestSubmit_InvalidWorkflowRejected(t *testing.T) {
	fixture := newRunnerFixture(t)
	ctx := context.Background()

	def := activeWorkflow()
	def.Nodes[1].Type = "custom.unregistered"
	require.NoError(t, fixture.store.WorkflowRepository().SaveWorkflow(ctx, def))

	_, err := fixture.runner.Submit(ctx, "wf-1", SubmitOptions{})
	require.Error(t, err)

	var engineErr *models.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, models.ErrorKindValidation, engineErr.Kind)
}

func TestCancel_MidRun(t *testing.T) {
	fixture := newRunnerFixture(t)
	ctx := context.Background()

	started := make(chan struct{})
	fixture.registry.RegisterOverride(&stallingFactory{started: started})

	def := activeWorkflow()
	def.Nodes = append(def.Nodes, &models.WorkflowNode{ID: "stall", Type: "custom.stall"})
	def.Edges = append(def.Edges, &models.Edge{ID: "e2", Source: "tag", Target: "stall"})
	require.NoError(t, fixture.store.WorkflowRepository().SaveWorkflow(ctx, def))

	submission, err := fixture.runner.Submit(ctx, "wf-1", SubmitOptions{})
	require.NoError(t, err)

	<-started

	assert.True(t, fixture.runner.Cancel(ctx, submission.ExecutionID))
	require.NoError(t, fixture.processor.Wait(ctx, submission.JobID))

	execution, err := fixture.tracker.GetExecutionByID(ctx, submission.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, execution.Status)

	job := fixture.processor.GetJob(submission.JobID)
	assert.Equal(t, models.JobStatusCancelled, job.Status)
}

func TestTestBlock(t *testing.T) {
	fixture := newRunnerFixture(t)
	ctx := context.Background()

	result, err := fixture.runner.TestBlock(ctx, "input.static",
		map[string]any{"data": map[string]any{"x": 1}},
		map[string]any{"y": 2},
		nil, nil, time.Second)
	require.NoError(t, err)

	assert.Equal(t, models.NodeStatusCompleted, result.Status)
	assert.Equal(t, 1, result.Output["x"])
	assert.Equal(t, 2, result.Output["y"])
	assert.Equal(t, "input.static", result.BlockType)

	_, err = fixture.runner.TestBlock(ctx, "custom.unknown", nil, nil, nil, nil, 0)
	require.Error(t, err)

	var engineErr *models.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, models.ErrorKindUnknownBlockType, engineErr.Kind)
}

// stallingFactory registers a block that signals when it starts and then
// blocks until its context is cancelled.
type stallingFactory struct {
	started chan struct{}
}

func (f *stallingFactory) Create() protocol.Block { return &stallingBlock{started: f.started} }
func (f *stallingFactory) Type() string           { return "custom.stall" }
func (f *stallingFactory) Name() string           { return "Stall" }
func (f *stallingFactory) Description() string    { return "Blocks until cancelled" }
func (f *stallingFactory) Category() string       { return models.BlockCategoryCustom }
func (f *stallingFactory) Version() string        { return "1.0.0" }
func (f *stallingFactory) Schema() map[string]any { return map[string]any{"type": "object"} }

type stallingBlock struct {
	started chan struct{}
}

func (b *stallingBlock) Type() string { return "custom.stall" }

func (b *stallingBlock) Execute(ctx context.Context, _, input map[string]any, _ *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	close(b.started)

	<-ctx.Done()

	return &models.NodeExecutionResult{
		Status: models.NodeStatusCompleted,
		Output: input,
	}, nil
}
