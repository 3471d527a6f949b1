package httpfetch

import (
	"net/http"
	"time"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

const defaultClientTimeout = 30 * time.Second

// Factory creates HTTP fetch block instances.
type Factory struct{}

func NewFactory() protocol.BlockFactory {
	return &Factory{}
}

func (f *Factory) Create() protocol.Block {
	return &Block{client: &http.Client{Timeout: defaultClientTimeout}}
}

func (f *Factory) Type() string {
	return blockType
}

func (f *Factory) Name() string {
	return "HTTP Fetch"
}

func (f *Factory) Description() string {
	return "Fetches a URL and exposes the decoded JSON response as block output"
}

func (f *Factory) Category() string {
	return models.BlockCategoryInput
}

func (f *Factory) Version() string {
	return "1.0.0"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to fetch; supports templating against input and vars",
			},
			"method": map[string]any{
				"type":    "string",
				"enum":    []string{"GET", "POST", "PUT", "DELETE", "HEAD"},
				"default": "GET",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers; values support templating",
			},
		},
		"required": []string{"url"},
	}
}
