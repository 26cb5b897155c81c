package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canvaslink/canvaslink-go/contracts"
	"github.com/canvaslink/canvaslink-go/internal/reliability"
	"github.com/canvaslink/canvaslink-go/relay"
)

// Agent joins a relay channel and serves commands against local state until
// its context ends. It reconnects with backoff whenever the connection drops.
type Agent struct {
	transport relay.Transport
	executor  *Executor
	logger    *slog.Logger
	reconnect reliability.RetryPolicy

	running atomic.Bool
	wg      sync.WaitGroup
}

// AgentOption configures the Agent.
type AgentOption func(*Agent)

// WithAgentLogger sets the logger.
func WithAgentLogger(logger *slog.Logger) AgentOption {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithReconnectPolicy overrides the backoff applied between reconnect
// attempts after a dropped connection.
func WithReconnectPolicy(policy reliability.RetryPolicy) AgentOption {
	return func(a *Agent) {
		a.reconnect = policy
	}
}

// New creates an agent serving the executor's commands over the transport.
func New(transport relay.Transport, executor *Executor, options ...AgentOption) (*Agent, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}

	a := &Agent{
		transport: transport,
		executor:  executor,
		logger:    slog.Default(),
		reconnect: reliability.NewExponentialBackoff(time.Second, 30*time.Second, 2.0, 10),
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Run serves until ctx is cancelled, reconnecting with backoff on connection
// loss. It returns nil on a clean shutdown and the terminal error when the
// reconnect policy gives up. Run may be called once per Agent.
func (a *Agent) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return fmt.Errorf("agent is already running")
	}

	disconnected := make(chan error, 1)
	a.transport.Subscribe(func(d relay.Delivery) { a.handleDelivery(ctx, d) })
	a.transport.SubscribeClose(func(err error) {
		select {
		case disconnected <- err:
		default:
		}
	})

	for {
		if err := a.connect(ctx); err != nil {
			a.wg.Wait()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		a.logger.Info("agent serving commands", "commands", a.executor.Commands())

		select {
		case <-ctx.Done():
			_ = a.transport.Close()
			a.wg.Wait()
			return nil
		case err := <-disconnected:
			if ctx.Err() != nil {
				a.wg.Wait()
				return nil
			}
			a.logger.Warn("relay connection lost, reconnecting", "cause", err)
		}
	}
}

func (a *Agent) connect(ctx context.Context) error {
	err := reliability.Retry(ctx, a.reconnect, func() error {
		if err := a.transport.Connect(ctx); err != nil {
			if errors.Is(err, contracts.ErrTransportClosed) {
				// The transport was shut down locally; retrying cannot help.
				return reliability.RetryableError{Err: err, Retryable: false}
			}
			a.logger.Warn("relay connect failed", "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	return nil
}

// handleDelivery filters relayed traffic down to executable requests: the
// agent's own echoed replies and payloads without a command name (peer
// replies, notices) are skipped. Each request executes on its own goroutine
// so a slow handler never delays the next request.
func (a *Agent) handleDelivery(ctx context.Context, d relay.Delivery) {
	if d.Sender == contracts.SenderYou {
		return
	}

	var request contracts.Request
	if err := json.Unmarshal(d.Message, &request); err != nil {
		a.logger.Debug("skipping unparseable delivery", "error", err)
		return
	}
	if request.ID == "" || request.Command == "" {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		reply := a.executor.Execute(ctx, request)
		data, err := json.Marshal(reply)
		if err != nil {
			a.logger.Error("failed to encode reply",
				"command", request.Command,
				"requestId", request.ID,
				"error", err)
			return
		}
		if err := a.transport.Publish(ctx, data); err != nil {
			a.logger.Warn("failed to publish reply",
				"command", request.Command,
				"requestId", request.ID,
				"error", err)
		}
	}()
}
