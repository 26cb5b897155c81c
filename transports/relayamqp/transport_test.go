package relayamqp

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaslink/canvaslink-go/contracts"
)

func TestNewTransport(t *testing.T) {
	t.Run("requires a broker URL", func(t *testing.T) {
		_, err := NewTransport("", "c1")
		assert.Error(t, err)
	})

	t.Run("requires a channel", func(t *testing.T) {
		_, err := NewTransport("amqp://localhost:5672/", "")
		assert.Error(t, err)
	})

	t.Run("generates an endpoint identity", func(t *testing.T) {
		a, err := NewTransport("amqp://localhost:5672/", "c1")
		require.NoError(t, err)
		b, err := NewTransport("amqp://localhost:5672/", "c1")
		require.NoError(t, err)

		assert.NotEmpty(t, a.EndpointID())
		assert.NotEqual(t, a.EndpointID(), b.EndpointID())
	})

	t.Run("accepts a fixed endpoint identity", func(t *testing.T) {
		transport, err := NewTransport("amqp://localhost:5672/", "c1", WithEndpointID("agent-7"))
		require.NoError(t, err)

		assert.Equal(t, "agent-7", transport.EndpointID())
	})
}

func TestExchangeName(t *testing.T) {
	transport, err := NewTransport("amqp://localhost:5672/", "design-main")
	require.NoError(t, err)

	assert.Equal(t, "canvaslink.ch.design-main", transport.ExchangeName())
	assert.Equal(t, "design-main", transport.Channel())
}

func TestSenderFor(t *testing.T) {
	t.Run("own publishes are tagged You", func(t *testing.T) {
		headers := amqp.Table{endpointHeader: "endpoint-1"}
		assert.Equal(t, contracts.SenderYou, senderFor(headers, "endpoint-1"))
	})

	t.Run("other endpoints are tagged Remote", func(t *testing.T) {
		headers := amqp.Table{endpointHeader: "endpoint-2"}
		assert.Equal(t, contracts.SenderRemote, senderFor(headers, "endpoint-1"))
	})

	t.Run("missing header counts as remote", func(t *testing.T) {
		assert.Equal(t, contracts.SenderRemote, senderFor(amqp.Table{}, "endpoint-1"))
	})

	t.Run("non-string header counts as remote", func(t *testing.T) {
		headers := amqp.Table{endpointHeader: int32(7)}
		assert.Equal(t, contracts.SenderRemote, senderFor(headers, "endpoint-1"))
	})
}

func TestPublishNotConnected(t *testing.T) {
	transport, err := NewTransport("amqp://localhost:5672/", "c1")
	require.NoError(t, err)

	err = transport.Publish(context.Background(), json.RawMessage(`{}`))

	assert.ErrorIs(t, err, contracts.ErrNotConnected)
}

func TestCloseBeforeConnect(t *testing.T) {
	transport, err := NewTransport("amqp://localhost:5672/", "c1")
	require.NoError(t, err)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	assert.ErrorIs(t, transport.Connect(context.Background()), contracts.ErrTransportClosed)
}

func TestSubscribeNilHandler(t *testing.T) {
	transport, err := NewTransport("amqp://localhost:5672/", "c1")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		transport.Subscribe(nil)
		transport.SubscribeClose(nil)
	})
}
