package registry

import (
	"github.com/leadflow/flowd/pkg/blocks/filewrite"
	"github.com/leadflow/flowd/pkg/blocks/filter"
	"github.com/leadflow/flowd/pkg/blocks/httpfetch"
	"github.com/leadflow/flowd/pkg/blocks/logmessage"
	"github.com/leadflow/flowd/pkg/blocks/static"
	"github.com/leadflow/flowd/pkg/blocks/transform"
	"github.com/leadflow/flowd/pkg/blocks/webhook"
	"github.com/leadflow/flowd/pkg/protocol"
)

// RegisterDefaultBlocks registers all built-in block factories with the
// registry.
func (r *Registry) RegisterDefaultBlocks() error {
	factories := []protocol.BlockFactory{
		static.NewFactory(),
		httpfetch.NewFactory(),
		transform.NewFactory(),
		filter.NewFactory(),
		logmessage.NewFactory(),
		webhook.NewFactory(),
		filewrite.NewFactory(),
	}

	for _, factory := range factories {
		if err := r.Register(factory); err != nil {
			return err
		}
	}

	return nil
}
