// Package filter provides the expression-based record filter block.
package filter

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/leadflow/flowd/pkg/models"
)

const blockType = "transform.filter"

// Block keeps the items of a record collection for which the configured
// boolean expression holds. Each item is evaluated with `item` and `vars`
// bound in the expression environment.
type Block struct{}

func (b *Block) Type() string {
	return blockType
}

func (b *Block) Execute(_ context.Context, config map[string]any, input map[string]any, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	collection, ok := config["collection"].(string)
	if !ok || collection == "" {
		return failed("missing required field 'collection'"), nil
	}

	expression, ok := config["expression"].(string)
	if !ok || expression == "" {
		return failed("missing required field 'expression'"), nil
	}

	items, ok := input[collection].([]any)
	if !ok {
		return failed(fmt.Sprintf("input field %q is not a collection", collection)), nil
	}

	program, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return failed(fmt.Sprintf("invalid filter expression: %v", err)), nil
	}

	kept := make([]any, 0, len(items))

	for i, item := range items {
		env := map[string]any{
			"item": item,
			"vars": execCtx.Variables,
		}

		matched, err := expr.Run(program, env)
		if err != nil {
			return failed(fmt.Sprintf("filter expression failed on item %d: %v", i, err)), nil
		}

		if keep, ok := matched.(bool); ok && keep {
			kept = append(kept, item)
		}
	}

	output := make(map[string]any, len(input)+2)
	for key, value := range input {
		output[key] = value
	}

	output[collection] = kept
	output["matched_count"] = len(kept)
	output["filtered_count"] = len(items) - len(kept)

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
