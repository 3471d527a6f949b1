package webhook

import (
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// Factory creates webhook block instances.
type Factory struct{}

func NewFactory() protocol.BlockFactory {
	return &Factory{}
}

func (f *Factory) Create() protocol.Block {
	return &Block{}
}

func (f *Factory) Type() string {
	return blockType
}

func (f *Factory) Name() string {
	return "HTTP Delivery"
}

func (f *Factory) Description() string {
	return "Delivers the block input as a JSON payload to an HTTP endpoint"
}

func (f *Factory) Category() string {
	return models.BlockCategoryOutput
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
				"description": "Endpoint URL, supports templating against the block input",
				"examples":    []string{"https://hooks.example.com/ingest"},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "POST",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Additional request headers",
			},
		},
		"required": []string{"url"},
	}
}
