package models

import "log/slog"

// ExecutionMode selects which side effects blocks are allowed to perform.
type ExecutionMode string

const (
	ExecutionModeProduction ExecutionMode = "production"
	ExecutionModeTest       ExecutionMode = "test"
	ExecutionModeDemo       ExecutionMode = "demo"
)

// ProgressEvent describes what just happened when progress is reported.
type ProgressEvent struct {
	Event     string         `json:"event"`
	NodeID    string         `json:"node_id,omitempty"`
	BlockType string         `json:"block_type,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ProgressFunc receives (percentage, event) after each node boundary.
// Percentage is monotonically non-decreasing and reaches 100 exactly once.
type ProgressFunc func(percentage float64, event ProgressEvent)

// ExecutionContext is created fresh for each run and passed to every block.
// It is self-contained and safe for concurrent use by blocks: the maps are
// read-only by convention and the progress callback is invoked only from the
// orchestrator's sequential loop.
type ExecutionContext struct {
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Mode        ExecutionMode  `json:"mode"`
	Variables   map[string]any `json:"variables,omitempty"`
	Secrets     map[string]any `json:"-"` // never serialized, never logged verbatim
	Logger      *slog.Logger   `json:"-"`
	Progress    ProgressFunc   `json:"-"`
}

// ReportProgress invokes the progress callback when one is set.
func (c *ExecutionContext) ReportProgress(percentage float64, event ProgressEvent) {
	if c.Progress != nil {
		c.Progress(percentage, event)
	}
}

// Log returns the context logger, falling back to slog.Default.
func (c *ExecutionContext) Log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return slog.Default()
}
