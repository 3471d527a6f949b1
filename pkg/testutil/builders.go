// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/google/uuid"

	"github.com/leadflow/flowd/pkg/models"
)

// CreateTestNode creates a test WorkflowNode with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:     uuid.New().String(),
		Type:   "input.static",
		Name:   "Test Node",
		Config: map[string]any{"data": map[string]any{"key": "value"}},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node ID.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithType sets the node's block type.
func WithType(blockType string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Type = blockType
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithCritical marks the node as critical.
func WithCritical() func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Critical = true
	}
}

// WithTimeout sets the node's execution budget in milliseconds.
func WithTimeout(ms int) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.TimeoutMs = ms
	}
}

// CreateTestEdge creates an edge between two nodes.
func CreateTestEdge(source, target string) *models.Edge {
	return &models.Edge{
		ID:     uuid.New().String(),
		Source: source,
		Target: target,
	}
}

// CreateTestWorkflow creates a test workflow definition with default values
// that can be overridden.
func CreateTestWorkflow(overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{
		ID:          uuid.New().String(),
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Version:     1,
		Status:      models.WorkflowStatusActive,
		Owner:       "test-user",
		Variables:   map[string]any{"env": "test"},
		Nodes:       []*models.WorkflowNode{},
		Edges:       []*models.Edge{},
	}

	for _, override := range overrides {
		override(def)
	}

	return def
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Status = status
	}
}

// WithNodes sets the workflow's nodes.
func WithNodes(nodes ...*models.WorkflowNode) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Nodes = nodes
	}
}

// WithEdges sets the workflow's edges.
func WithEdges(edges ...*models.Edge) func(*models.WorkflowDefinition) {
	return func(w *models.WorkflowDefinition) {
		w.Edges = edges
	}
}

// LinearWorkflow builds a workflow whose nodes run one after another in the
// given order.
func LinearWorkflow(nodes ...*models.WorkflowNode) *models.WorkflowDefinition {
	edges := make([]*models.Edge, 0, len(nodes))

	for i := 1; i < len(nodes); i++ {
		edges = append(edges, CreateTestEdge(nodes[i-1].ID, nodes[i].ID))
	}

	return CreateTestWorkflow(WithNodes(nodes...), WithEdges(edges...))
}
