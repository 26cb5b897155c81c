package relay

import (
	"context"
	"encoding/json"
)

// Transport is a connection to exactly one relay channel. Connect performs
// the dial and the channel-join handshake; it is idempotent and safe to call
// before every publish. Implementations do not reconnect on their own: after
// a close, the next Connect dials fresh.
type Transport interface {
	// Connect establishes the connection and completes the channel join.
	// Returns nil immediately when already connected.
	Connect(ctx context.Context) error

	// Publish relays an opaque payload into the joined channel.
	Publish(ctx context.Context, message json.RawMessage) error

	// Subscribe registers a handler for relayed deliveries. Handlers are
	// invoked sequentially per connection, in arrival order.
	Subscribe(handler DeliveryHandler)

	// SubscribeClose registers a handler invoked exactly once per
	// established connection when it terminates, with the terminal error.
	SubscribeClose(handler CloseHandler)

	// IsConnected reports whether the transport currently holds a live
	// connection.
	IsConnected() bool

	// Close tears down the connection. Close handlers still fire.
	Close() error
}

// Delivery is one relayed payload handed to a subscriber. Sender carries the
// hub's identity marker relative to this endpoint: contracts.SenderYou for
// the endpoint's own echoed messages, contracts.SenderRemote for everyone
// else's.
type Delivery struct {
	Message json.RawMessage
	Sender  string
	Channel string
}

// DeliveryHandler consumes relayed deliveries.
type DeliveryHandler func(delivery Delivery)

// CloseHandler is notified when an established connection terminates.
type CloseHandler func(err error)
