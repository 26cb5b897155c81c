package contracts

import (
	"encoding/json"
)

// Envelope kinds exchanged with the relay hub.
const (
	KindJoin      = "join"
	KindMessage   = "message"
	KindBroadcast = "broadcast"
	KindSystem    = "system"
	KindError     = "error"
)

// Sender markers attached to broadcast deliveries, relative to the recipient.
const (
	SenderYou    = "You"
	SenderRemote = "Remote"
)

// Envelope is the wire-level unit exchanged through a relay channel. It is a
// transient serialization of an outbound request, a relayed delivery, or a
// hub notice; which fields are set depends on Type:
//
//	join      - Channel, ID (handshake id echoed in the acknowledgment)
//	message   - Channel, Message (opaque payload to relay)
//	broadcast - Channel, Message, Sender ("You" or "Remote")
//	system    - Message (string or object), optionally Channel
//	error     - Message (string), optionally Channel
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	ID      string          `json:"id,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
	Sender  string          `json:"sender,omitempty"`
}

// NewJoinEnvelope builds the channel-join handshake envelope.
func NewJoinEnvelope(channel, id string) Envelope {
	return Envelope{Type: KindJoin, Channel: channel, ID: id}
}

// NewMessageEnvelope wraps an opaque payload for relaying into a channel.
func NewMessageEnvelope(channel string, message json.RawMessage) Envelope {
	return Envelope{Type: KindMessage, Channel: channel, Message: message}
}

// NewBroadcastEnvelope wraps a relayed payload for delivery to one channel
// member, tagged with the sender marker relative to that member.
func NewBroadcastEnvelope(channel string, message json.RawMessage, sender string) Envelope {
	return Envelope{Type: KindBroadcast, Channel: channel, Message: message, Sender: sender}
}
