package gochannel_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/flowd/pkg/channels/gochannel"
)

func TestCreateChannel_SharesOneInstance(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})

	require.NoError(t, err)
	assert.Same(t, pub, sub)
}

func TestCreateChannel_DeliversInProcess(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = pub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := sub.Subscribe(ctx, "test.topic")
	require.NoError(t, err)

	payload := []byte(`{"workflow_id":"wf-1"}`)
	require.NoError(t, pub.Publish("test.topic", message.NewMessage(watermill.NewUUID(), payload)))

	select {
	case msg := <-messages:
		assert.Equal(t, payload, []byte(msg.Payload))
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("message was not delivered")
	}
}
