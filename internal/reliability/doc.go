// Package reliability provides the retry and circuit-breaking primitives
// used around transport connections.
//
// The agent uses a retry policy to back off between reconnect attempts; the
// command bridge can wrap its publish path in a circuit breaker so a dead
// hub fails invocations fast instead of queueing timeouts.
//
// Example usage:
//
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithSuccessThreshold(3),
//	    WithOpenTimeout(30 * time.Second),
//	)
//
//	err := cb.Execute(ctx, func() error {
//	    return transport.Publish(ctx, payload)
//	})
package reliability
