// Package relay defines the transport abstraction between the command
// bridge, the command agent, and a relay channel.
//
// A Transport models one endpoint of one named channel: connect-and-join,
// publish opaque payloads, receive deliveries tagged with a sender marker,
// and observe connection loss. Concrete implementations live under
// transports/ (WebSocket against the relay hub, AMQP fanout against a
// broker); both present identical semantics so the bridge and agent never
// know which rendezvous they ride on.
package relay
