// Package models defines the core domain models for node-based workflow execution.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// WorkflowDefinition is a node-graph pipeline definition. Once a run starts the
// orchestrator treats the definition as immutable.
type WorkflowDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Version     int             `json:"version"`
	Status      WorkflowStatus  `json:"status"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*Edge         `json:"edges"`
	Variables   map[string]any  `json:"variables,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Owner       string          `json:"owner"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// WorkflowNode is a single block instance in a workflow graph.
type WorkflowNode struct {
	ID           string         `json:"id"   validate:"required"`
	Type         string         `json:"type" validate:"required"` // dotted namespace, e.g. "input.static"
	Name         string         `json:"name"`
	Config       map[string]any `json:"config,omitempty"`
	InputSchema  map[string]any `json:"input_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	Critical     bool           `json:"critical,omitempty"` // a failure here fails the whole run
	Optional     bool           `json:"optional,omitempty"` // may be disconnected from the graph
	TimeoutMs    int            `json:"timeout_ms,omitempty"`
	Retries      int            `json:"retries,omitempty"`
}

// Namespace returns the leading segment of the node's block type
// ("input" for "input.static"). Empty when the type has no dot.
func (n *WorkflowNode) Namespace() string {
	for i := range len(n.Type) {
		if n.Type[i] == '.' {
			return n.Type[:i]
		}
	}

	return ""
}

// Edge connects two nodes, optionally tagging source/target ports.
// The default single unnamed port is the empty string.
type Edge struct {
	ID         string `json:"id"`
	Source     string `json:"source" validate:"required"` // node ID
	Target     string `json:"target" validate:"required"` // node ID
	SourcePort string `json:"source_port,omitempty"`
	TargetPort string `json:"target_port,omitempty"`
}

// NodeByID returns the node with the given ID, or nil.
func (w *WorkflowDefinition) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// EntryNodes returns the nodes with no incoming edges, in definition order.
func (w *WorkflowDefinition) EntryNodes() []*WorkflowNode {
	hasIncoming := make(map[string]bool, len(w.Nodes))
	for _, edge := range w.Edges {
		hasIncoming[edge.Target] = true
	}

	entries := make([]*WorkflowNode, 0, len(w.Nodes))

	for _, node := range w.Nodes {
		if !hasIncoming[node.ID] {
			entries = append(entries, node)
		}
	}

	return entries
}

// TerminalNodes returns the nodes with no outgoing edges, in definition order.
func (w *WorkflowDefinition) TerminalNodes() []*WorkflowNode {
	hasOutgoing := make(map[string]bool, len(w.Nodes))
	for _, edge := range w.Edges {
		hasOutgoing[edge.Source] = true
	}

	terminals := make([]*WorkflowNode, 0, len(w.Nodes))

	for _, node := range w.Nodes {
		if !hasOutgoing[node.ID] {
			terminals = append(terminals, node)
		}
	}

	return terminals
}
