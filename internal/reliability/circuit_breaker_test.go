package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker(t *testing.T) {
	failing := func() error { return errors.New("publish failed") }
	succeeding := func() error { return nil }

	t.Run("starts closed and passes calls through", func(t *testing.T) {
		cb := NewCircuitBreaker()

		assert.Equal(t, StateClosed, cb.GetState())
		assert.NoError(t, cb.Execute(context.Background(), succeeding))
	})

	t.Run("opens after the failure threshold", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(3))

		for i := 0; i < 3; i++ {
			assert.Error(t, cb.Execute(context.Background(), failing))
		}
		assert.Equal(t, StateOpen, cb.GetState())

		err := cb.Execute(context.Background(), succeeding)
		var cbErr *CircuitBreakerError
		assert.ErrorAs(t, err, &cbErr)
		assert.Equal(t, StateOpen, cbErr.State)
		assert.Contains(t, err.Error(), "circuit breaker open")
	})

	t.Run("probes half-open after the cooldown and closes on success", func(t *testing.T) {
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithSuccessThreshold(2),
			WithOpenTimeout(10*time.Millisecond),
			WithHalfOpenRequests(5),
		)

		assert.Error(t, cb.Execute(context.Background(), failing))
		assert.Equal(t, StateOpen, cb.GetState())

		time.Sleep(20 * time.Millisecond)

		assert.NoError(t, cb.Execute(context.Background(), succeeding))
		assert.Equal(t, StateHalfOpen, cb.GetState())

		assert.NoError(t, cb.Execute(context.Background(), succeeding))
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("failure in half-open reopens", func(t *testing.T) {
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithOpenTimeout(10*time.Millisecond),
		)

		assert.Error(t, cb.Execute(context.Background(), failing))
		time.Sleep(20 * time.Millisecond)

		assert.Error(t, cb.Execute(context.Background(), failing))
		assert.Equal(t, StateOpen, cb.GetState())
	})

	t.Run("half-open request cap rejects extra probes", func(t *testing.T) {
		cb := NewCircuitBreaker(
			WithFailureThreshold(1),
			WithSuccessThreshold(10),
			WithOpenTimeout(time.Millisecond),
			WithHalfOpenRequests(1),
		)

		assert.Error(t, cb.Execute(context.Background(), failing))
		time.Sleep(5 * time.Millisecond)

		// The call that flips the breaker to half-open does not consume
		// a probe slot, so two calls pass before the cap kicks in.
		assert.NoError(t, cb.Execute(context.Background(), succeeding))
		assert.NoError(t, cb.Execute(context.Background(), succeeding))

		err := cb.Execute(context.Background(), succeeding)
		var cbErr *CircuitBreakerError
		assert.ErrorAs(t, err, &cbErr)
		assert.Equal(t, StateHalfOpen, cbErr.State)
	})

	t.Run("success in closed state clears the failure counter", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(3))

		assert.Error(t, cb.Execute(context.Background(), failing))
		assert.Error(t, cb.Execute(context.Background(), failing))
		assert.NoError(t, cb.Execute(context.Background(), succeeding))

		failures, _, _ := cb.GetStats()
		assert.Equal(t, 0, failures)
		assert.Equal(t, StateClosed, cb.GetState())
	})

	t.Run("Reset closes the circuit", func(t *testing.T) {
		cb := NewCircuitBreaker(WithFailureThreshold(1))

		assert.Error(t, cb.Execute(context.Background(), failing))
		assert.Equal(t, StateOpen, cb.GetState())

		cb.Reset()
		assert.Equal(t, StateClosed, cb.GetState())
		assert.NoError(t, cb.Execute(context.Background(), succeeding))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		cb := NewCircuitBreaker()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := cb.Execute(ctx, succeeding)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("rejection is retryable once the cooldown passes", func(t *testing.T) {
		err := &CircuitBreakerError{
			State:     StateOpen,
			NextRetry: time.Now().Add(-time.Second),
		}
		assert.True(t, err.IsRetryable())

		err.NextRetry = time.Now().Add(time.Hour)
		assert.False(t, err.IsRetryable())
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
