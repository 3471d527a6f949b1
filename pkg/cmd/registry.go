// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"

	"github.com/leadflow/flowd/pkg/registry"
)

// NewRegistry creates a block registry with all built-in blocks registered.
func NewRegistry() (*registry.Registry, error) {
	reg := registry.NewRegistry()

	if err := reg.RegisterDefaultBlocks(); err != nil {
		return nil, fmt.Errorf("failed to register built-in blocks: %w", err)
	}

	return reg, nil
}
