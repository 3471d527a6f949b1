// Package transform provides the template-based data transformation block.
package transform

import (
	"context"
	"fmt"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/template"
)

const blockType = "transform.template"

// Block renders a Go template expression against the block input and writes
// the result to a configurable output field.
type Block struct{}

func (b *Block) Type() string {
	return blockType
}

func (b *Block) Execute(_ context.Context, config map[string]any, input map[string]any, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return failed("missing required field 'expression'"), nil
	}

	target, _ := config["target"].(string)
	if target == "" {
		target = "result"
	}

	rendered, err := template.RenderWithContext(expression, input, execCtx)
	if err != nil {
		return failed(fmt.Sprintf("transformation failed: %v", err)), nil
	}

	output := make(map[string]any, len(input)+1)
	for key, value := range input {
		output[key] = value
	}

	output[target] = rendered

	return &models.NodeExecutionResult{
		Status: models.NodeStatusCompleted,
		Output: output,
	}, nil
}

func failed(message string) *models.NodeExecutionResult {
	return &models.NodeExecutionResult{
		Status: models.NodeStatusFailed,
		Error: &models.EngineError{
			Kind:    models.ErrorKindNodeExecutionFailed,
			Message: message,
		},
	}
}
