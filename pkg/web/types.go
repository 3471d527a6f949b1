// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/leadflow/flowd/pkg/models"

// CreateWorkflowRequest is the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string                 `json:"name"                  validate:"required,min=3"`
	Description string                 `json:"description"`
	Status      *models.WorkflowStatus `json:"status,omitempty"      validate:"omitempty,oneof=draft active archived"`
	Nodes       []*models.WorkflowNode `json:"nodes,omitempty"`
	Edges       []*models.Edge         `json:"edges,omitempty"`
	Variables   map[string]any         `json:"variables,omitempty"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	Owner       string                 `json:"owner"                 validate:"required"`
}

// UpdateWorkflowRequest is the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string                `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                `json:"description,omitempty"`
	Status      *models.WorkflowStatus `json:"status,omitempty"      validate:"omitempty,oneof=draft active archived"`
	Nodes       []*models.WorkflowNode `json:"nodes,omitempty"`
	Edges       []*models.Edge         `json:"edges,omitempty"`
	Variables   map[string]any         `json:"variables,omitempty"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// ExecuteWorkflowRequest is the request body for starting a run.
type ExecuteWorkflowRequest struct {
	InputData map[string]any       `json:"input_data,omitempty"`
	Variables map[string]any       `json:"variables,omitempty"`
	Secrets   map[string]any       `json:"secrets,omitempty"`
	Mode      models.ExecutionMode `json:"mode,omitempty" validate:"omitempty,oneof=production test demo"`
	OwnerID   string               `json:"owner_id,omitempty"`
}

// TestBlockRequest is the request body for a one-off block invocation.
type TestBlockRequest struct {
	Config    map[string]any `json:"config,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Secrets   map[string]any `json:"secrets,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty" validate:"omitempty,min=0,max=300000"`
}
