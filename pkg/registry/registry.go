// Package registry provides the process-wide catalog of executable block types.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/leadflow/flowd/pkg/models"
	"github.com/leadflow/flowd/pkg/protocol"
)

// ErrDuplicateRegistration is returned when a block type is registered twice
// without an explicit override.
var ErrDuplicateRegistration = errors.New("block type already registered")

// Registry maps block type identifiers to executor factories and metadata.
// Registration is expected to complete during startup, before any run begins;
// lookups during execution are read-only.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]protocol.BlockFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]protocol.BlockFactory),
	}
}

// Register adds a block factory. It fails when the type is already registered;
// use RegisterOverride to replace an existing registration.
func (r *Registry) Register(factory protocol.BlockFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[factory.Type()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRegistration, factory.Type())
	}

	r.factories[factory.Type()] = factory

	return nil
}

// RegisterOverride adds a block factory, replacing any prior registration.
// Subsequent runs use the new behavior for the type.
func (r *Registry) RegisterOverride(factory protocol.BlockFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[factory.Type()] = factory
}

// Has reports whether the block type is registered.
func (r *Registry) Has(blockType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.factories[blockType]

	return exists
}

// Create returns a new executor instance for the type, or nil when the type is
// unknown, so callers can branch without exception-style handling.
func (r *Registry) Create(blockType string) protocol.Block {
	r.mu.RLock()
	factory, exists := r.factories[blockType]
	r.mu.RUnlock()

	if !exists {
		return nil
	}

	return factory.Create()
}

// Metadata returns the metadata for a registered block type.
func (r *Registry) Metadata(blockType string) (*models.BlockMetadata, bool) {
	r.mu.RLock()
	factory, exists := r.factories[blockType]
	r.mu.RUnlock()

	if !exists {
		return nil, false
	}

	return metadataFor(factory), true
}

// AllMetadata returns metadata for every registered block type, sorted by type
// for reproducible listings.
func (r *Registry) AllMetadata() []*models.BlockMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.BlockMetadata, 0, len(r.factories))
	for _, factory := range r.factories {
		all = append(all, metadataFor(factory))
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Type < all[j].Type })

	return all
}

// ByCategory returns metadata for the registered block types in a category,
// sorted by type.
func (r *Registry) ByCategory(category string) []*models.BlockMetadata {
	all := r.AllMetadata()

	filtered := make([]*models.BlockMetadata, 0, len(all))

	for _, meta := range all {
		if meta.Category == category {
			filtered = append(filtered, meta)
		}
	}

	return filtered
}

// List returns the registered block type identifiers, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for blockType := range r.factories {
		types = append(types, blockType)
	}

	sort.Strings(types)

	return types
}

func metadataFor(factory protocol.BlockFactory) *models.BlockMetadata {
	return &models.BlockMetadata{
		Type:        factory.Type(),
		Category:    factory.Category(),
		Name:        factory.Name(),
		Description: factory.Description(),
		Version:     factory.Version(),
		Schema:      factory.Schema(),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry instance. Mutation through
// Register is expected only during initialization; treat the default registry
// as configuration-at-startup, not runtime-mutable state.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})

	return defaultRegistry
}
