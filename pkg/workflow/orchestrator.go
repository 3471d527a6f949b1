// Package workflow contains the orchestrator that schedules and executes
// node-graph workflow definitions.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/otelhelper"
	"github.com/leadflow/flowd/pkg/registry"
)

// Progress event names emitted through the execution context.
const (
	EventNodeCompleted    = "node.completed"
	EventNodeFailed       = "node.failed"
	EventNodeSkipped      = "node.skipped"
	EventWorkflowFinished = "workflow.finished"
)

// RunResult is the terminal outcome of one orchestrator run.
type RunResult struct {
	Status      models.ExecutionStatus                 `json:"status"`
	Output      map[string]any                         `json:"output,omitempty"`
	Error       *models.EngineError                    `json:"error,omitempty"`
	NodeResults map[string]*models.NodeExecutionResult `json:"node_results,omitempty"`
	Metadata    map[string]any                         `json:"metadata,omitempty"`
}

// Orchestrator executes workflow definitions: it topologically schedules
// nodes, resolves inputs from upstream outputs, invokes block executors,
// merges outputs and applies the per-node failure policy.
type Orchestrator struct {
	registry           *registry.Registry
	logger             *slog.Logger
	tracer             trace.Tracer
	defaultNodeTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNodeTimeout sets the default per-node execution budget applied when a
// node does not configure its own timeout_ms. Zero disables the default.
func WithNodeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.defaultNodeTimeout = d
	}
}

// WithTracer enables span creation for runs and node executions.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func NewOrchestrator(reg *registry.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		logger:   logger.With("module", "orchestrator"),
		tracer:   noop.NewTracerProvider().Tracer("orchestrator"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Execute runs the definition to completion. Every modeled failure is encoded
// in the returned RunResult; the error return is reserved for unexpected
// internal conditions, which the caller must treat as a failed run.
func (o *Orchestrator) Execute(ctx context.Context, def *models.WorkflowDefinition, execCtx *models.ExecutionContext, input map[string]any) (*RunResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, def.ID),
		attribute.String(otelhelper.ExecutionIDKey, execCtx.ExecutionID),
	)
	defer span.End()

	logger := execCtx.Log().With("workflow_id", def.ID, "execution_id", execCtx.ExecutionID)
	logger.InfoContext(ctx, "Starting workflow execution", "nodes", len(def.Nodes))

	run := newRunState(def, execCtx)

	// Structural re-validation: the caller may have validated a stale copy.
	if engineErr := o.preflight(def); engineErr != nil {
		logger.WarnContext(ctx, "Workflow rejected before execution", "error", engineErr.Message)

		return run.failFast(engineErr), nil
	}

	order, err := buildGraph(def).topologicalOrder()
	if err != nil {
		return run.failFast(&models.EngineError{
			Kind:    models.ErrorKindCycleDetected,
			Message: err.Error(),
		}), nil
	}

	for _, nodeID := range order {
		if ctx.Err() != nil {
			logger.InfoContext(ctx, "Cancellation requested, stopping at node boundary", "node_id", nodeID)

			return run.cancel(), nil
		}

		node := def.NodeByID(nodeID)

		if run.upstreamBlocked(nodeID) {
			run.skip(node)

			continue
		}

		nodeInput := run.resolveInput(nodeID, input)

		result := o.runNode(ctx, node, nodeInput, execCtx)
		run.record(node, result)

		if result.Status == models.NodeStatusFailed {
			logger.WarnContext(ctx, "Node failed",
				"node_id", node.ID,
				"block_type", node.Type,
				"error", result.Error.Message,
				"critical", node.Critical,
			)

			if node.Critical {
				otelhelper.SetError(span, result.Error)

				return run.failCritical(node, result), nil
			}

			continue
		}

		logger.DebugContext(ctx, "Node completed",
			"node_id", node.ID,
			"block_type", node.Type,
			"elapsed_ms", result.ExecutionTimeMs,
		)
	}

	return run.finish(), nil
}

// preflight rejects definitions that must never start executing: empty node
// sets, dangling edges and unregistered block types. Unknown types are a
// static defect of the definition, so no block runs at all.
func (o *Orchestrator) preflight(def *models.WorkflowDefinition) *models.EngineError {
	if len(def.Nodes) == 0 {
		return &models.EngineError{
			Kind:    models.ErrorKindValidation,
			Message: "workflow has no nodes",
		}
	}

	ids := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		ids[node.ID] = true
	}

	for _, edge := range def.Edges {
		if !ids[edge.Source] || !ids[edge.Target] {
			return &models.EngineError{
				Kind:    models.ErrorKindValidation,
				Message: fmt.Sprintf("edge %s -> %s references a non-existent node", edge.Source, edge.Target),
			}
		}
	}

	for _, node := range def.Nodes {
		if !o.registry.Has(node.Type) {
			return models.NewEngineError(
				models.ErrorKindUnknownBlockType,
				node.ID,
				fmt.Sprintf("block type %q is not registered", node.Type),
			)
		}
	}

	return nil
}

// runNode executes one node with retry and timeout handling and always
// returns a finalized NodeExecutionResult.
func (o *Orchestrator) runNode(ctx context.Context, node *models.WorkflowNode, input map[string]any, execCtx *models.ExecutionContext) *models.NodeExecutionResult {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "node.execute",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.BlockTypeKey, node.Type),
	)
	defer span.End()

	timeout := o.defaultNodeTimeout
	if node.TimeoutMs > 0 {
		timeout = time.Duration(node.TimeoutMs) * time.Millisecond
	}

	started := time.Now().UTC()

	var result *models.NodeExecutionResult

	for attempt := 0; attempt <= node.Retries; attempt++ {
		result = o.invokeBlock(ctx, node, input, execCtx, timeout)
		result.RetryCount = attempt

		if result.Status != models.NodeStatusFailed {
			break
		}

		// Timeouts are not retried: the previous attempt may still be
		// running and a retry would double the abandoned work.
		if result.Error != nil && result.Error.Kind == models.ErrorKindTimeout {
			break
		}
	}

	result.NodeID = node.ID
	result.BlockType = node.Type
	result.Input = input
	result.StartTime = started
	result.EndTime = time.Now().UTC()
	result.ExecutionTimeMs = result.EndTime.Sub(started).Milliseconds()

	if result.Status == models.NodeStatusFailed {
		otelhelper.SetError(span, result.Error)
	}

	return result
}

type blockOutcome struct {
	result *models.NodeExecutionResult
	err    error
}

// invokeBlock races a single block execution against the node's timeout. On
// timeout the underlying call is abandoned, not forcibly killed; blocks
// performing external I/O should honor ctx cancellation.
func (o *Orchestrator) invokeBlock(ctx context.Context, node *models.WorkflowNode, input map[string]any, execCtx *models.ExecutionContext, timeout time.Duration) *models.NodeExecutionResult {
	block := o.registry.Create(node.Type)
	if block == nil {
		// Preflight already checked registration; a race with concurrent
		// re-registration can still surface here.
		return failedResult(models.NewEngineError(
			models.ErrorKindUnknownBlockType,
			node.ID,
			fmt.Sprintf("block type %q is not registered", node.Type),
		))
	}

	blockCtx := ctx

	var cancel context.CancelFunc

	if timeout > 0 {
		blockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcomeCh := make(chan blockOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcomeCh <- blockOutcome{err: fmt.Errorf("block panicked: %v", r)}
			}
		}()

		result, err := block.Execute(blockCtx, node.Config, input, execCtx)
		outcomeCh <- blockOutcome{result: result, err: err}
	}()

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case outcome := <-outcomeCh:
			return normalizeOutcome(node, outcome)
		case <-timer.C:
			return failedResult(models.NewEngineError(
				models.ErrorKindTimeout,
				node.ID,
				fmt.Sprintf("node exceeded its %s execution budget", timeout),
			))
		}
	}

	return normalizeOutcome(node, <-outcomeCh)
}

// normalizeOutcome converts whatever the block produced into a well-formed
// result. Escaped errors are equivalent to a failed result.
func normalizeOutcome(node *models.WorkflowNode, outcome blockOutcome) *models.NodeExecutionResult {
	if outcome.err != nil {
		return failedResult(models.NewEngineError(
			models.ErrorKindNodeExecutionFailed,
			node.ID,
			outcome.err.Error(),
		))
	}

	if outcome.result == nil {
		return &models.NodeExecutionResult{
			Status: models.NodeStatusCompleted,
			Output: map[string]any{},
		}
	}

	if outcome.result.Status == "" {
		outcome.result.Status = models.NodeStatusCompleted
	}

	if outcome.result.Status == models.NodeStatusFailed && outcome.result.Error == nil {
		outcome.result.Error = models.NewEngineError(
			models.ErrorKindNodeExecutionFailed,
			node.ID,
			"block reported failure without details",
		)
	}

	return outcome.result
}

func failedResult(engineErr *models.EngineError) *models.NodeExecutionResult {
	return &models.NodeExecutionResult{
		Status: models.NodeStatusFailed,
		Error:  engineErr,
	}
}
