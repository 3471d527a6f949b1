package filter

import (
	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// Factory creates filter block instances.
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
	return "Record Filter"
}

func (f *Factory) Description() string {
	return "Keeps the items of a record collection matching a boolean expression"
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
			"collection": map[string]any{
				"type":        "string",
				"description": "Input field holding the record collection",
				"examples":    []string{"contacts", "leads"},
			},
			"expression": map[string]any{
				"type":        "string",
				"description": "Boolean expression evaluated per item with 'item' and 'vars' bound",
				"examples":    []string{`item.score > 50`, `item.status == "active"`},
			},
		},
		"required": []string{"collection", "expression"},
	}
}
