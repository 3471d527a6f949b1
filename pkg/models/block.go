package models

// Block categories used by the registry for grouped listings.
const (
	BlockCategoryInput     = "input"
	BlockCategoryTransform = "transform"
	BlockCategoryOutput    = "output"
	BlockCategoryCustom    = "custom"
)

// BlockMetadata describes a registered block type for UI and tooling
// consumption. Owned by the registry; looked up by type string.
type BlockMetadata struct {
	Type        string         `json:"type"`
	Category    string         `json:"category"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Schema      map[string]any `json:"schema,omitempty"`
}
