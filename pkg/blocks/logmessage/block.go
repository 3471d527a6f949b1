// Package logmessage provides the logger output block.
package logmessage

import (
	"context"
	"fmt"
	"strings"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/template"
)

const blockType = "output.logger"

// Block writes a message to the execution log and passes its input through
// unchanged, so it can be dropped anywhere in a pipeline for inspection.
type Block struct{}

func (b *Block) Type() string {
	return blockType
}

func (b *Block) Execute(_ context.Context, config map[string]any, input map[string]any, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	message, _ := config["message"].(string)
	if message == "" {
		message = fmt.Sprintf("%v", input)
	} else if strings.Contains(message, "{{") {
		rendered, err := template.RenderWithContext(message, input, execCtx)
		if err != nil {
			return &models.NodeExecutionResult{
				Status: models.NodeStatusFailed,
				Error: &models.EngineError{
					Kind:    models.ErrorKindNodeExecutionFailed,
					Message: fmt.Sprintf("failed to render message: %v", err),
				},
			}, nil
		}

		message = fmt.Sprintf("%v", rendered)
	}

	level, _ := config["level"].(string)

	logger := execCtx.Log()
	switch strings.ToLower(level) {
	case "debug":
		logger.Debug(message)
	case "warn", "warning":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}

	return &models.NodeExecutionResult{
		Status: models.NodeStatusCompleted,
		Output: input,
		Logs:   []string{message},
	}, nil
}
