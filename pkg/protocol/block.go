// Package protocol defines the interfaces and contracts for pluggable blocks.
package protocol

import (
	"context"

	"github.com/leadflow/flowd/pkg/models"
)

// Block is the executable unit of a workflow node.
//
// Execute reports expected failures through a completed NodeExecutionResult
// with StatusFailed and a structured error; only unexpected fatal conditions
// may return a non-nil error. The orchestrator treats an escaped error as
// equivalent to a failed result.
type Block interface {
	// Type returns the dotted block type identifier, e.g. "input.static".
	Type() string

	// Execute runs the block against the merged upstream input.
	Execute(ctx context.Context, config map[string]any, input map[string]any, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error)
}

// BlockFactory creates block instances and provides metadata about the type.
type BlockFactory interface {
	// Create creates a new block instance.
	Create() Block

	// Type returns the unique dotted identifier for this block type.
	Type() string

	// Name returns the human-readable name for this block type.
	Name() string

	// Description returns a description of what this block does.
	Description() string

	// Category returns the block category ("input", "transform", "output").
	Category() string

	// Version returns the block implementation version.
	Version() string

	// Schema returns the JSON schema for configuring this block.
	Schema() map[string]any
}
