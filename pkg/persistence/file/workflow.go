package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// ListWorkflows returns paginated and filtered workflows with in-memory operations.
// Soft-deleted workflows are excluded.
func (wr *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("invalid sort field: %s", opts.SortBy)
	}

	root := os.DirFS(path.Join(wr.root, "workflows"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	filtered := make([]*models.WorkflowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := file[:len(file)-5] // Remove .json extension

		workflow, err := wr.load(workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
		}

		if workflow == nil || workflow.DeletedAt != nil {
			continue
		}

		if opts.OwnerID != "" && workflow.Owner != opts.OwnerID {
			continue
		}

		if opts.Status != nil && workflow.Status != *opts.Status {
			continue
		}

		filtered = append(filtered, workflow)
	}

	wr.sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	startIdx := opts.Offset
	if startIdx >= len(filtered) {
		return &persistence.WorkflowListResult{
			Workflows:   make([]*models.WorkflowDefinition, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := min(opts.Offset+opts.Limit, len(filtered))

	_ = ctx

	return &persistence.WorkflowListResult{
		Workflows:   filtered[startIdx:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

// sortWorkflows sorts workflows in-place based on the specified field and order.
func (wr *WorkflowRepository) sortWorkflows(workflows []*models.WorkflowDefinition, sortBy, sortOrder string) {
	sort.Slice(workflows, func(i, j int) bool {
		var less bool

		switch sortBy {
		case "updated_at":
			less = workflows[i].UpdatedAt.Before(workflows[j].UpdatedAt)
		case "name":
			less = workflows[i].Name < workflows[j].Name
		default:
			less = workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
		}

		if sortOrder == "desc" {
			return !less
		}

		return less
	})
}

// WorkflowByID retrieves a workflow by its ID. Returns ErrWorkflowNotFound for
// unknown and soft-deleted workflows.
func (wr *WorkflowRepository) WorkflowByID(_ context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	if err := validateID(workflowID); err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", workflowID, err)
	}

	workflow, err := wr.load(workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil || workflow.DeletedAt != nil {
		return nil, persistence.NewStoreError("WorkflowByID", workflowID, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

func (wr *WorkflowRepository) load(workflowID string) (*models.WorkflowDefinition, error) {
	filePath := filepath.Clean(path.Join(wr.root, "workflows", workflowID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var workflow models.WorkflowDefinition

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

// SaveWorkflow writes a workflow to the file system, stamping timestamps.
func (wr *WorkflowRepository) SaveWorkflow(_ context.Context, workflow *models.WorkflowDefinition) error {
	if err := validateID(workflow.ID); err != nil {
		return persistence.NewStoreError("SaveWorkflow", workflow.ID, err)
	}

	err := os.MkdirAll(path.Join(wr.root, "workflows"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	filePath := path.Join(wr.root, "workflows", workflow.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// DeleteWorkflow soft deletes a workflow: the record is retained with
// DeletedAt set and excluded from subsequent reads.
func (wr *WorkflowRepository) DeleteWorkflow(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewStoreError("DeleteWorkflow", id, err)
	}

	workflow, err := wr.load(id)
	if err != nil {
		return err
	}

	if workflow == nil || workflow.DeletedAt != nil {
		return persistence.NewStoreError("DeleteWorkflow", id, persistence.ErrWorkflowNotFound)
	}

	now := time.Now().UTC()
	workflow.DeletedAt = &now

	return wr.SaveWorkflow(ctx, workflow)
}
