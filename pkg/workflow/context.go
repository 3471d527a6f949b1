package workflow

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leadflow/flowd/pkg/models"
)

// ContextOptions configure a per-run execution context. Zero values get safe
// defaults: production mode, empty variable and secret bags, the default
// slog logger and a no-op progress callback.
type ContextOptions struct {
	WorkflowID  string
	ExecutionID string
	Mode        models.ExecutionMode
	Variables   map[string]any
	Secrets     map[string]any
	Logger      *slog.Logger
	Progress    models.ProgressFunc
}

// NewContext builds a self-contained execution context for one run. The
// returned context has no hidden dependency on ambient state and is safe to
// pass to arbitrarily many concurrent block executions within the same run.
func NewContext(opts ContextOptions) *models.ExecutionContext {
	if opts.ExecutionID == "" {
		opts.ExecutionID = GenerateExecutionID()
	}

	if opts.Mode == "" {
		opts.Mode = models.ExecutionModeProduction
	}

	if opts.Variables == nil {
		opts.Variables = map[string]any{}
	}

	if opts.Secrets == nil {
		opts.Secrets = map[string]any{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &models.ExecutionContext{
		WorkflowID:  opts.WorkflowID,
		ExecutionID: opts.ExecutionID,
		Mode:        opts.Mode,
		Variables:   opts.Variables,
		Secrets:     opts.Secrets,
		Logger: logger.With(
			"workflow_id", opts.WorkflowID,
			"execution_id", opts.ExecutionID,
		),
		Progress: opts.Progress,
	}
}

// GenerateExecutionID generates a unique execution ID.
func GenerateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}

// GenerateNodeExecutionID creates a unique identifier for a node execution
// instance.
func GenerateNodeExecutionID() string {
	return fmt.Sprintf("node-exec-%s", uuid.New().String()[:8])
}
