// Package filewrite provides the file output block.
package filewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/template"
)

const blockType = "output.file"

// Block writes its input as a JSON document to a local path.
type Block struct{}

func (b *Block) Type() string {
	return blockType
}

func (b *Block) Execute(_ context.Context, config map[string]any, input map[string]any, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	rawPath, ok := config["path"].(string)
	if !ok || rawPath == "" {
		return failed("missing required field 'path'"), nil
	}

	path := rawPath
	if strings.Contains(rawPath, "{{") {
		rendered, err := template.RenderWithContext(rawPath, input, execCtx)
		if err != nil {
			return failed(fmt.Sprintf("failed to render path: %v", err)), nil
		}

		path = fmt.Sprintf("%v", rendered)
	}

	pretty, _ := config["pretty"].(bool)

	var (
		payload []byte
		err     error
	)

	if pretty {
		payload, err = json.MarshalIndent(input, "", "  ")
	} else {
		payload, err = json.Marshal(input)
	}

	if err != nil {
		return failed(fmt.Sprintf("failed to encode payload: %v", err)), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failed(fmt.Sprintf("failed to create directory: %v", err)), nil
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return failed(fmt.Sprintf("failed to write file: %v", err)), nil
	}

	return &models.NodeExecutionResult{
		Status: models.NodeStatusCompleted,
		Output: map[string]any{
			"path":          path,
			"bytes_written": len(payload),
		},
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
