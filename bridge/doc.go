// Package bridge provides synchronous command invocation over an
// asynchronous relay channel.
//
// The bridge turns invoke(command, params) calls into correlation-tagged
// requests, publishes them into the channel, and suspends the caller until
// the matching reply arrives, the deadline passes, or the transport closes.
// It is the only component that knows about requests and replies; the relay
// itself is a content-agnostic broadcaster.
//
// Key features:
//   - Call-and-await over a fire-and-forget transport
//   - 128-bit random correlation ids, any number of concurrent invokes
//   - Exactly-once settlement per request (reply, timeout, or transport loss)
//   - Transparent connect-and-join before every send
//   - Optional circuit breaker around the publish path
//
// Basic usage:
//
//	b, err := bridge.NewCommandBridge(transport, transport, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	result, err := b.Invoke(ctx, "create_rectangle", params)
//
// Failed invocations are not retried: the caller decides. Timeouts release
// the registry entry, so a late reply for a timed-out request is dropped.
package bridge
