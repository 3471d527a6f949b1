// Package gochannel provides the in-process event transport. Publisher and
// subscriber share one GoChannel instance, so events never leave the process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Config tunes the in-process channel. The zero value selects the defaults
// used by the single-process deployment.
type Config struct {
	// Buffer is the output channel capacity per subscriber. Zero means
	// defaultBuffer.
	Buffer int64

	// Persistent keeps published messages for later subscribers. Useful in
	// tests that subscribe after publishing.
	Persistent bool
}

const defaultBuffer = 1000

// CreateChannel returns a publisher/subscriber pair backed by the same
// GoChannel. Closing either closes both.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return CreateChannelWithConfig(Config{}, logger)
}

// CreateChannelWithConfig is CreateChannel with explicit tuning.
func CreateChannelWithConfig(config Config, logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	buffer := config.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: buffer,
			Persistent:          config.Persistent,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
