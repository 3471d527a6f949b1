// Package persistence provides the data storage abstraction layer for
// workflow definitions, execution records and timelines.
package persistence

import (
	"context"

	"github.com/leadflow/flowd/pkg/models"
)

// Persistence is the top-level store handle. Implementations bundle the
// individual repositories over a shared backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	TimelineRepository() TimelineRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListWorkflowsOptions controls filtering, sorting and pagination for
// workflow listings.
type ListWorkflowsOptions struct {
	OwnerID   string
	Status    *models.WorkflowStatus
	Limit     int
	Offset    int
	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// WorkflowListResult is one page of workflow definitions.
type WorkflowListResult struct {
	Workflows   []*models.WorkflowDefinition
	TotalCount  int64
	HasNextPage bool
}

// WorkflowRepository stores workflow definitions. Delete is a soft delete:
// the record is retained with DeletedAt set and excluded from reads.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, workflow *models.WorkflowDefinition) error
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores run tracking records and per-node results.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, execution *models.WorkflowExecution) error
	ExecutionByID(ctx context.Context, id string) (*models.WorkflowExecution, error)
	SaveBlockExecution(ctx context.Context, executionID string, result *models.NodeExecutionResult) error
	BlockExecutions(ctx context.Context, executionID string) ([]*models.NodeExecutionResult, error)
}

// TimelineRepository stores the append-only event timeline of executions.
type TimelineRepository interface {
	AppendEvent(ctx context.Context, event *models.TimelineEvent) error
	EventsByExecution(ctx context.Context, executionID string) ([]*models.TimelineEvent, error)
}
