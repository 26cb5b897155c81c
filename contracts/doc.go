// Package contracts provides the wire-level types shared by every side of
// the canvaslink relay.
//
// The package defines the envelope exchanged with the relay hub and the
// payloads carried inside it:
//   - Envelope: the framed unit (join, message, broadcast, system, error)
//   - Request: a command invocation tagged with a correlation id
//   - Reply: the executor's response for exactly one correlation id
//
// It also defines the error taxonomy surfaced by the command bridge:
// TransportError, TimeoutError, RemoteError, and ProtocolError, plus the
// sentinel errors for static failure modes. All shapes serialize to the
// plain JSON the hub relays, so issuers and executors written in other
// languages interoperate without a schema registry.
package contracts
