package intake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumer_RequiresQueue(t *testing.T) {
	t.Parallel()

	_, err := NewConsumer(Config{}, nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue name is required")
}

func TestNewConsumer_DefaultsAddr(t *testing.T) {
	t.Parallel()

	submit := func(context.Context, RunRequest) error { return nil }

	consumer, err := NewConsumer(Config{Queue: "flowd:run-requests"}, submit, nil)

	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", consumer.config.Addr)
	assert.NotNil(t, consumer.logger)
}
