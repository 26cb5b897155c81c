// Package agent implements the executor side of the relay: it joins a
// channel, filters relayed traffic down to command requests, runs each one
// against a live canvas document, and publishes exactly one reply per
// request id.
//
// Key features:
//   - Name-keyed handler table, extensible without touching the relay core
//   - Exactly one reply per request: unknown commands, handler errors, and
//     handler panics all become error replies
//   - Per-request goroutines so slow handlers never block the read loop
//   - Reconnect with exponential backoff after connection loss
//
// Basic usage:
//
//	doc := canvas.NewDocument("Design")
//	executor := agent.NewExecutor()
//	if err := agent.RegisterCanvasHandlers(executor, doc); err != nil {
//	    log.Fatal(err)
//	}
//	transport, _ := relayws.NewTransport("ws://localhost:3055/ws", "design-main")
//	a, _ := agent.New(transport, executor)
//	if err := a.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package agent
