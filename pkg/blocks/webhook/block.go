// Package webhook provides the HTTP output block for delivering workflow
// results to an external endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/template"
)

const blockType = "output.http"

// Block POSTs its input as a JSON document. In test mode the delivery is
// skipped so dry runs never touch external systems.
type Block struct {
	client *http.Client
}

func (b *Block) Type() string {
	return blockType
}

func (b *Block) Execute(ctx context.Context, config map[string]any, input map[string]any, execCtx *models.ExecutionContext) (*models.NodeExecutionResult, error) {
	rawURL, ok := config["url"].(string)
	if !ok || rawURL == "" {
		return failed("missing required field 'url'"), nil
	}

	url, err := renderString(rawURL, input, execCtx)
	if err != nil {
		return failed(fmt.Sprintf("failed to render url: %v", err)), nil
	}

	if execCtx != nil && execCtx.Mode == models.ExecutionModeTest {
		return &models.NodeExecutionResult{
			Status: models.NodeStatusCompleted,
			Output: map[string]any{"delivered": false, "skipped": true, "url": url},
			Logs:   []string{fmt.Sprintf("test mode, skipped delivery to %s", url)},
		}, nil
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return failed(fmt.Sprintf("failed to encode payload: %v", err)), nil
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bytes.NewReader(payload))
	if err != nil {
		return failed(fmt.Sprintf("invalid request: %v", err)), nil
	}

	req.Header.Set("Content-Type", "application/json")

	if headers, ok := config["headers"].(map[string]any); ok {
		for name, value := range headers {
			rendered, err := renderString(fmt.Sprintf("%v", value), input, execCtx)
			if err != nil {
				return failed(fmt.Sprintf("failed to render header %q: %v", name, err)), nil
			}

			req.Header.Set(name, rendered)
		}
	}

	client := b.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		return failed(fmt.Sprintf("delivery failed: %v", err)), nil
	}
	defer func() { _ = resp.Body.Close() }()

	output := map[string]any{
		"delivered":   resp.StatusCode < http.StatusBadRequest,
		"status_code": resp.StatusCode,
		"url":         url,
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &models.NodeExecutionResult{
			Status: models.NodeStatusFailed,
			Output: output,
			Error: &models.EngineError{
				Kind:    models.ErrorKindNodeExecutionFailed,
				Message: fmt.Sprintf("endpoint returned status %d", resp.StatusCode),
			},
		}, nil
	}

	return &models.NodeExecutionResult{
		Status: models.NodeStatusCompleted,
		Output: output,
	}, nil
}

func renderString(raw string, input map[string]any, execCtx *models.ExecutionContext) (string, error) {
	if !strings.Contains(raw, "{{") {
		return raw, nil
	}

	rendered, err := template.RenderWithContext(raw, input, execCtx)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%v", rendered), nil
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
