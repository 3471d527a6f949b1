// Package httpfetch provides the HTTP input block for pulling external data
// into a workflow.
package httpfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/template"
)

const blockType = "input.http"

// Block fetches a URL and exposes the decoded response body as its output.
// The URL and header values support templating against the block input and
// run variables.
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

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	url, err := renderString(rawURL, input, execCtx)
	if err != nil {
		return failed(fmt.Sprintf("failed to render url: %v", err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, nil)
	if err != nil {
		return failed(fmt.Sprintf("invalid request: %v", err)), nil
	}

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

		return failed(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failed(fmt.Sprintf("failed to read response: %v", err)), nil
	}

	output := map[string]any{"status_code": resp.StatusCode}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		for key, value := range decoded {
			output[key] = value
		}
	} else {
		output["body"] = string(body)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &models.NodeExecutionResult{
			Status: models.NodeStatusFailed,
			Output: output,
			Error: &models.EngineError{
				Kind:    models.ErrorKindNodeExecutionFailed,
				Message: fmt.Sprintf("upstream returned status %d", resp.StatusCode),
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
