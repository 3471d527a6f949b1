package logmessage

import (
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// Factory creates logger block instances.
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
	return "Log Message"
}

func (f *Factory) Description() string {
	return "Logs a message and passes its input through unchanged"
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
			"message": map[string]any{
				"type":        "string",
				"description": "Message to log, supports templating against the block input",
				"examples":    []string{"enriched {{.input.count}} records"},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level",
				"enum":        []string{"debug", "info", "warn", "error"},
				"default":     "info",
			},
		},
	}
}
