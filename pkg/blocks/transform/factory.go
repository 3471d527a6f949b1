package transform

import (
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// Factory creates template transform block instances.
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
	return "Template Transform"
}

func (f *Factory) Description() string {
	return "Renders a Go template against the block input and stores the result"
}

func (f *Factory) Category() string {
	return models.BlockCategoryTransform
}

func (f *Factory) Version() string {
	return "1.0.0"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Go template rendered against {input, vars, execution}",
			},
			"target": map[string]any{
				"type":        "string",
				"description": "Output field receiving the rendered value",
				"default":     "result",
			},
		},
		"required": []string{"expression"},
	}
}
