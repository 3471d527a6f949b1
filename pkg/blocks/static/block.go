// Package static provides the static-data input block.
package static

import (
	"context"

	"github.com/leadflow/flowd/pkg/merge"
	"github.com/leadflow/flowd/pkg/models"
)

const blockType = "input.static"

// Block emits its configured data payload, deep-merged over the run input so
// callers can override individual fields per run.
type Block struct{}

func (b *Block) Type() string {
	return blockType
}

func (b *Block) Execute(_ context.Context, config map[string]any, input map[string]any, _ *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	data, _ := config["data"].(map[string]any)

	return &models.NodeExecutionResult{
		Status: models.NodeStatusCompleted,
		Output: merge.Merge(input, data),
	}, nil
}
