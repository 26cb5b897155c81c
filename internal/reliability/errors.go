package reliability

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownState indicates a circuit breaker in an impossible state.
	ErrUnknownState = errors.New("circuit breaker: unknown state")

	// ErrNonRetryable marks an error that must never be retried.
	ErrNonRetryable = errors.New("retry: error is not retryable")
)

// CircuitBreakerError reports a call rejected by an open or saturated
// circuit, with enough context to log a useful line.
type CircuitBreakerError struct {
	State            State
	Op               string
	Failures         int
	FailureThreshold int
	LastFailure      time.Time
	NextRetry        time.Time
}

func (e *CircuitBreakerError) Error() string {
	switch e.State {
	case StateOpen:
		retryIn := time.Until(e.NextRetry).Round(time.Second)
		return fmt.Sprintf("circuit breaker open: %s blocked (failures=%d/%d, retry in %v)",
			e.Op, e.Failures, e.FailureThreshold, retryIn)
	case StateHalfOpen:
		return fmt.Sprintf("circuit breaker half-open: %s limited", e.Op)
	default:
		return fmt.Sprintf("circuit breaker error: %s in state %v", e.Op, e.State)
	}
}

// IsRetryable defers open-circuit calls until the cooldown has elapsed.
func (e *CircuitBreakerError) IsRetryable() bool {
	return e.State != StateOpen || time.Now().After(e.NextRetry)
}
