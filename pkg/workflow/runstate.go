package workflow

import (
	"time"

	"github.com/leadflow/flowd/pkg/merge"
	"github.com/leadflow/flowd/pkg/models"
)

// runState carries the per-run bookkeeping: node results, blocked subgraphs
// and progress accounting. All mutation happens from the orchestrator's
// sequential node-processing loop.
type runState struct {
	def        *models.WorkflowDefinition
	execCtx    *models.ExecutionContext
	graph      *graph
	results    map[string]*models.NodeExecutionResult
	processed  int
	total      int
	reached100 bool
}

func newRunState(def *models.WorkflowDefinition, execCtx *models.ExecutionContext) *runState {
	return &runState{
		def:     def,
		execCtx: execCtx,
		graph:   buildGraph(def),
		results: make(map[string]*models.NodeExecutionResult, len(def.Nodes)),
		total:   len(def.Nodes),
	}
}

// upstreamBlocked reports whether any predecessor failed or was skipped.
// Skip state propagates transitively through recorded results, so one check
// per direct predecessor covers the whole upstream subgraph.
func (r *runState) upstreamBlocked(nodeID string) bool {
	for _, pred := range r.graph.predecessors[nodeID] {
		result, done := r.results[pred]
		if !done {
			continue
		}

		if result.Status == models.NodeStatusFailed || result.Status == models.NodeStatusSkipped {
			return true
		}
	}

	return false
}

// resolveInput merges the outputs of all predecessors in fixed upstream-edge
// order. Entry nodes receive the run's input payload.
func (r *runState) resolveInput(nodeID string, runInput map[string]any) map[string]any {
	preds := r.graph.predecessors[nodeID]
	if len(preds) == 0 {
		return merge.Merge(nil, runInput)
	}

	resolved := map[string]any{}

	for _, pred := range preds {
		if result, done := r.results[pred]; done && result.Status == models.NodeStatusCompleted {
			resolved = merge.Merge(resolved, result.Output)
		}
	}

	return resolved
}

func (r *runState) record(node *models.WorkflowNode, result *models.NodeExecutionResult) {
	r.results[node.ID] = result
	r.processed++

	event := EventNodeCompleted
	if result.Status == models.NodeStatusFailed {
		event = EventNodeFailed
	}

	r.reportProgress(models.ProgressEvent{
		Event:     event,
		NodeID:    node.ID,
		BlockType: node.Type,
		Details: map[string]any{
			"status":            string(result.Status),
			"execution_time_ms": result.ExecutionTimeMs,
		},
	})
}

func (r *runState) skip(node *models.WorkflowNode) {
	now := time.Now().UTC()
	r.results[node.ID] = &models.NodeExecutionResult{
		NodeID:    node.ID,
		BlockType: node.Type,
		Status:    models.NodeStatusSkipped,
		StartTime: now,
		EndTime:   now,
	}
	r.processed++

	r.reportProgress(models.ProgressEvent{
		Event:     EventNodeSkipped,
		NodeID:    node.ID,
		BlockType: node.Type,
		Details:   map[string]any{"status": string(models.NodeStatusSkipped)},
	})
}

// reportProgress emits percentage = processed/total*100. 100 is reserved for
// the single final emission.
func (r *runState) reportProgress(event models.ProgressEvent) {
	percentage := float64(r.processed) / float64(r.total) * 100

	if percentage >= 100 {
		if r.reached100 {
			return
		}

		r.reached100 = true
	}

	r.execCtx.ReportProgress(percentage, event)
}

// finish computes the terminal result after all reachable nodes processed.
func (r *runState) finish() *RunResult {
	result := &RunResult{
		Status:      models.ExecutionStatusCompleted,
		Output:      r.terminalOutput(),
		NodeResults: r.results,
		Metadata:    r.summaryMetadata(),
	}

	// Branch-local failures are surfaced without flipping the run status.
	if failed, ok := result.Metadata["failed_nodes"].([]string); ok && len(failed) > 0 {
		result.Error = models.NewEngineError(
			models.ErrorKindNodeExecutionFailed,
			failed[0],
			"one or more branches failed; partial results available",
		)
	}

	r.emitFinished(result.Status)

	return result
}

// failCritical aborts the run after a hard-stop node failure. Remaining nodes
// are marked skipped so every node carries a final state.
func (r *runState) failCritical(node *models.WorkflowNode, result *models.NodeExecutionResult) *RunResult {
	r.skipRemaining()

	runResult := &RunResult{
		Status:      models.ExecutionStatusFailed,
		Output:      r.terminalOutput(),
		Error:       result.Error,
		NodeResults: r.results,
		Metadata:    r.summaryMetadata(),
	}

	r.emitFinished(runResult.Status)

	return runResult
}

// failFast rejects a run before any node executes (cycle, unknown type,
// dangling edge).
func (r *runState) failFast(engineErr *models.EngineError) *RunResult {
	r.skipRemaining()

	runResult := &RunResult{
		Status:      models.ExecutionStatusFailed,
		Error:       engineErr,
		NodeResults: r.results,
		Metadata:    r.summaryMetadata(),
	}

	r.emitFinished(runResult.Status)

	return runResult
}

// cancel stops the run at a node boundary, preserving completed results.
func (r *runState) cancel() *RunResult {
	r.skipRemaining()

	runResult := &RunResult{
		Status:      models.ExecutionStatusCancelled,
		Output:      r.terminalOutput(),
		Error:       &models.EngineError{Kind: models.ErrorKindCancelled, Message: "execution cancelled"},
		NodeResults: r.results,
		Metadata:    r.summaryMetadata(),
	}

	r.emitFinished(runResult.Status)

	return runResult
}

func (r *runState) skipRemaining() {
	for _, node := range r.def.Nodes {
		if _, done := r.results[node.ID]; !done {
			now := time.Now().UTC()
			r.results[node.ID] = &models.NodeExecutionResult{
				NodeID:    node.ID,
				BlockType: node.Type,
				Status:    models.NodeStatusSkipped,
				StartTime: now,
				EndTime:   now,
			}
			r.processed++
		}
	}
}

// terminalOutput merges the outputs of all completed terminal nodes in
// definition order.
func (r *runState) terminalOutput() map[string]any {
	output := map[string]any{}

	for _, node := range r.def.TerminalNodes() {
		if result, done := r.results[node.ID]; done && result.Status == models.NodeStatusCompleted {
			output = merge.Merge(output, result.Output)
		}
	}

	return output
}

func (r *runState) summaryMetadata() map[string]any {
	completed := 0
	failed := []string{}
	skipped := []string{}

	for _, node := range r.def.Nodes {
		result, done := r.results[node.ID]
		if !done {
			continue
		}

		switch result.Status {
		case models.NodeStatusCompleted:
			completed++
		case models.NodeStatusFailed:
			failed = append(failed, node.ID)
		case models.NodeStatusSkipped:
			skipped = append(skipped, node.ID)
		}
	}

	return map[string]any{
		"total_nodes":     r.total,
		"completed_nodes": completed,
		"failed_nodes":    failed,
		"skipped_nodes":   skipped,
	}
}

// emitFinished guarantees the single 100% progress emission for every
// termination path.
func (r *runState) emitFinished(status models.ExecutionStatus) {
	if r.reached100 {
		return
	}

	r.reached100 = true
	r.execCtx.ReportProgress(100, models.ProgressEvent{
		Event:   EventWorkflowFinished,
		Details: map[string]any{"status": string(status)},
	})
}
