package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflow/flowd/pkg/jobs"
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
	"github.com/leadflow/flowd/pkg/registry"
	"github.com/leadflow/flowd/pkg/validation"
	"github.com/leadflow/flowd/pkg/workflow"
)

// ErrWorkflowNotActive is returned when a run is submitted for a workflow
// that is not in the active status.
var ErrWorkflowNotActive = errors.New("workflow is not active")

// Execution metadata keys under which a failed run records its error
// classification. The job boundary only carries a flat message, so the kind
// and failing node travel through the execution record instead.
const (
	metadataKeyErrorKind = "error_kind"
	metadataKeyErrorNode = "error_node_id"
)

// SubmitOptions configure one run submission.
type SubmitOptions struct {
	InputData map[string]any
	Variables map[string]any
	Secrets   map[string]any
	Mode      models.ExecutionMode
	OwnerID   string
}

// Submission identifies an accepted asynchronous run.
type Submission struct {
	JobID       string `json:"job_id"`
	ExecutionID string `json:"execution_id"`
}

// Runner submits workflow runs: it loads and validates the definition,
// creates the tracking record, and executes through the job processor so
// every run is cancellable and progress-reporting.
type Runner struct {
	workflows    persistence.WorkflowRepository
	registry     *registry.Registry
	orchestrator *workflow.Orchestrator
	processor    *jobs.Processor
	tracker      *Tracker
	logger       *slog.Logger
}

// NewRunner wires the run submission service.
func NewRunner(store persistence.Persistence, reg *registry.Registry, orchestrator *workflow.Orchestrator, processor *jobs.Processor, tracker *Tracker, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		workflows:    store.WorkflowRepository(),
		registry:     reg,
		orchestrator: orchestrator,
		processor:    processor,
		tracker:      tracker,
		logger:       logger.With("module", "runner"),
	}
}

// Submit starts an asynchronous run of a stored workflow and returns once the
// job is accepted. The run itself proceeds in the background.
func (r *Runner) Submit(ctx context.Context, workflowID string, opts SubmitOptions) (*Submission, error) {
	def, err := r.loadRunnable(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	executionID := workflow.GenerateExecutionID()

	execution := &models.WorkflowExecution{
		ID:         executionID,
		WorkflowID: def.ID,
		Status:     models.ExecutionStatusRunning,
		InputData:  opts.InputData,
		Mode:       opts.Mode,
	}

	if err := r.tracker.CreateExecution(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	job := r.processor.CreateJob(opts.OwnerID, models.JobTypeWorkflow, map[string]any{
		"workflow_id":  def.ID,
		"execution_id": executionID,
	})
	r.tracker.RegisterJob(executionID, job.ID)

	body := r.workBody(def, executionID, opts)

	// The job outlives the submission request; detach from its context.
	err = r.processor.StartJob(context.WithoutCancel(ctx), job.ID, body, jobs.Hooks{
		OnProgress: func(_ string, percentage float64, event models.ProgressEvent) {
			r.recordProgress(executionID, percentage, event)
		},
		OnComplete: func(_ string, result *models.JobResult) {
			r.recordCompleted(executionID, result)
		},
		OnError: func(_ string, jobErr error) {
			r.recordFailed(executionID, jobErr)
		},
	})
	if err != nil {
		return nil, err
	}

	return &Submission{JobID: job.ID, ExecutionID: executionID}, nil
}

// RunSync executes a stored workflow in the caller's goroutine and returns
// the terminal result. The run is still tracked and cancellable by execution
// ID.
func (r *Runner) RunSync(ctx context.Context, workflowID string, opts SubmitOptions) (*workflow.RunResult, string, error) {
	submission, err := r.Submit(ctx, workflowID, opts)
	if err != nil {
		return nil, "", err
	}

	if err := r.processor.Wait(ctx, submission.JobID); err != nil {
		return nil, submission.ExecutionID, err
	}

	execution, err := r.tracker.GetExecutionByID(ctx, submission.ExecutionID)
	if err != nil {
		return nil, submission.ExecutionID, err
	}

	result := &workflow.RunResult{
		Status:   execution.Status,
		Output:   execution.OutputData,
		Metadata: execution.Metadata,
	}

	if execution.ErrorMessage != "" {
		result.Error = restoreEngineError(execution)
	}

	return result, submission.ExecutionID, nil
}

// Cancel requests cooperative cancellation of a run.
func (r *Runner) Cancel(ctx context.Context, executionID string) bool {
	return r.tracker.CancelExecution(ctx, executionID)
}

// TestBlock runs a single block in test mode against the given config and
// input, outside any workflow graph.
func (r *Runner) TestBlock(ctx context.Context, blockType string, config, input, vars, secrets map[string]any, timeout time.Duration) (*models.NodeExecutionResult, error) {
	block := r.registry.Create(blockType)
	if block == nil {
		return nil, models.NewEngineError(
			models.ErrorKindUnknownBlockType,
			"",
			fmt.Sprintf("block type %q is not registered", blockType),
		)
	}

	execCtx := workflow.NewContext(workflow.ContextOptions{
		WorkflowID: "block-test",
		Mode:       models.ExecutionModeTest,
		Variables:  vars,
		Secrets:    secrets,
		Logger:     r.logger,
	})

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now().UTC()

	result, err := block.Execute(ctx, config, input, execCtx)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = &models.NodeExecutionResult{Status: models.NodeStatusCompleted}
	}

	result.BlockType = blockType
	result.StartTime = started
	result.EndTime = time.Now().UTC()
	result.ExecutionTimeMs = result.EndTime.Sub(started).Milliseconds()

	return result, nil
}

func (r *Runner) loadRunnable(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	def, err := r.workflows.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if def.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotActive, def.ID, def.Status)
	}

	validated := validation.Validate(def, validation.Options{
		Registry:    r.registry,
		CheckBlocks: true,
	})
	if !validated.Valid {
		return nil, &models.EngineError{
			Kind:    models.ErrorKindValidation,
			Message: fmt.Sprintf("workflow %s failed validation: %s", def.ID, validated.Errors[0].Message),
		}
	}

	return def, nil
}

func (r *Runner) workBody(def *models.WorkflowDefinition, executionID string, opts SubmitOptions) jobs.WorkBody {
	return func(ctx context.Context, report models.ProgressFunc) (*models.JobResult, error) {
		execCtx := workflow.NewContext(workflow.ContextOptions{
			WorkflowID:  def.ID,
			ExecutionID: executionID,
			Mode:        opts.Mode,
			Variables:   mergeVariables(def.Variables, opts.Variables),
			Secrets:     opts.Secrets,
			Logger:      r.logger,
			Progress:    report,
		})

		result, err := r.orchestrator.Execute(ctx, def, execCtx, opts.InputData)
		if err != nil {
			return nil, err
		}

		r.persistNodeResults(ctx, executionID, result)
		r.persistRunMetadata(ctx, executionID, result)

		switch result.Status {
		case models.ExecutionStatusCompleted:
			return &models.JobResult{Success: true, Data: result.Output}, nil
		case models.ExecutionStatusCancelled:
			return &models.JobResult{Success: false, Error: "execution cancelled"}, nil
		default:
			message := "workflow execution failed"
			if result.Error != nil {
				message = result.Error.Message
			}

			return &models.JobResult{Success: false, Data: result.Output, Error: message}, nil
		}
	}
}

func (r *Runner) persistNodeResults(ctx context.Context, executionID string, result *workflow.RunResult) {
	for _, nodeResult := range result.NodeResults {
		if err := r.tracker.SaveBlockExecution(ctx, executionID, nodeResult); err != nil {
			r.logger.WarnContext(ctx, "Failed to persist node result",
				"execution_id", executionID,
				"node_id", nodeResult.NodeID,
				"error", err,
			)
		}
	}
}

// persistRunMetadata stores the run summary on the execution record before
// the job hooks mark it terminal. A failed run also records its error kind
// and failing node so RunSync can hand back the original classification.
func (r *Runner) persistRunMetadata(ctx context.Context, executionID string, result *workflow.RunResult) {
	metadata := make(map[string]any, len(result.Metadata)+2)
	for key, value := range result.Metadata {
		metadata[key] = value
	}

	if result.Error != nil {
		metadata[metadataKeyErrorKind] = string(result.Error.Kind)

		if result.Error.NodeID != "" {
			metadata[metadataKeyErrorNode] = result.Error.NodeID
		}
	}

	if len(metadata) == 0 {
		return
	}

	err := r.tracker.UpdateExecution(ctx, executionID, ExecutionPatch{Metadata: metadata})
	if err != nil && !errors.Is(err, persistence.ErrExecutionTerminal) {
		r.logger.WarnContext(ctx, "Failed to persist run metadata",
			"execution_id", executionID,
			"error", err,
		)
	}
}

// restoreEngineError rebuilds the engine error a failed run recorded in its
// metadata. Records without a stored kind fall back to the generic node
// execution failure.
func restoreEngineError(execution *models.WorkflowExecution) *models.EngineError {
	engineErr := &models.EngineError{
		Kind:    models.ErrorKindNodeExecutionFailed,
		Message: execution.ErrorMessage,
	}

	if kind, ok := execution.Metadata[metadataKeyErrorKind].(string); ok && kind != "" {
		engineErr.Kind = models.ErrorKind(kind)
	}

	if nodeID, ok := execution.Metadata[metadataKeyErrorNode].(string); ok {
		engineErr.NodeID = nodeID
	}

	return engineErr
}

func (r *Runner) recordProgress(executionID string, percentage float64, event models.ProgressEvent) {
	ctx := context.Background()

	if err := r.tracker.UpdateProgress(ctx, executionID, percentage, event); err != nil {
		r.logger.Warn("Failed to update progress", "execution_id", executionID, "error", err)
	}

	eventType := models.TimelineEventTypeNode
	if event.NodeID == "" {
		eventType = models.TimelineEventTypeExecution
	}

	if err := r.tracker.AppendTimelineEvent(ctx, &models.TimelineEvent{
		ExecutionID: executionID,
		Event:       event.Event,
		EventType:   eventType,
		NodeID:      event.NodeID,
		BlockType:   event.BlockType,
		Details:     event.Details,
	}); err != nil {
		r.logger.Warn("Failed to append timeline event", "execution_id", executionID, "error", err)
	}
}

func (r *Runner) recordCompleted(executionID string, result *models.JobResult) {
	status := models.ExecutionStatusCompleted
	progress := 100.0

	var output map[string]any
	if result != nil {
		output = result.Data
	}

	err := r.tracker.UpdateExecution(context.Background(), executionID, ExecutionPatch{
		Status:             &status,
		OutputData:         output,
		ProgressPercentage: &progress,
	})
	if err != nil && !errors.Is(err, persistence.ErrExecutionTerminal) {
		r.logger.Warn("Failed to record completion", "execution_id", executionID, "error", err)
	}
}

func (r *Runner) recordFailed(executionID string, jobErr error) {
	status := models.ExecutionStatusFailed
	message := jobErr.Error()

	err := r.tracker.UpdateExecution(context.Background(), executionID, ExecutionPatch{
		Status:       &status,
		ErrorMessage: &message,
	})
	if err != nil {
		// Cancellation marks the record first; the late patch losing the
		// race is expected.
		if !errors.Is(err, persistence.ErrExecutionTerminal) {
			r.logger.Warn("Failed to record failure", "execution_id", executionID, "error", err)
		}
	}
}

func mergeVariables(base, overlay map[string]any) map[string]any {
	if len(overlay) == 0 {
		return base
	}

	merged := make(map[string]any, len(base)+len(overlay))
	for key, value := range base {
		merged[key] = value
	}

	for key, value := range overlay {
		merged[key] = value
	}

	return merged
}
