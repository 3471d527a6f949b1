package filewrite

import (
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// Factory creates file output block instances.
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
	return "File Writer"
}

func (f *Factory) Description() string {
	return "Writes the block input as a JSON document to a local file"
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
			"path": map[string]any{
				"type":        "string",
				"description": "Target file path, supports templating against the block input",
				"examples":    []string{"/var/flowd/out/{{.execution.id}}.json"},
			},
			"pretty": map[string]any{
				"type":        "boolean",
				"description": "Indent the JSON output",
				"default":     false,
			},
		},
		"required": []string{"path"},
	}
}
