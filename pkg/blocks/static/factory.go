package static

import (
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// Factory creates static input block instances.
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
	return "Static Data"
}

func (f *Factory) Description() string {
	return "Emits a configured data payload, merged over the run input"
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
			"data": map[string]any{
				"type":        "object",
				"description": "Payload emitted by this block",
			},
		},
	}
}
