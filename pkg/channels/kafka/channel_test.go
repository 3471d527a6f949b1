package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/channels/kafka"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, _, err := kafka.CreateChannel(kafka.Config{
		ConsumerGroup: "cg-test",
	}, watermill.NopLogger{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers are required")
}
