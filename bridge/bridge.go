package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/canvaslink/canvaslink-go/contracts"
	"github.com/canvaslink/canvaslink-go/internal/reliability"
	"github.com/canvaslink/canvaslink-go/relay"
)

// Publisher defines the transport surface the bridge sends through. Connect
// must be idempotent; the bridge calls it before every publish so a dropped
// connection is re-established transparently on the next invoke.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, message json.RawMessage) error
}

// Subscriber defines the transport surface the bridge receives from.
type Subscriber interface {
	Subscribe(handler relay.DeliveryHandler)
	SubscribeClose(handler relay.CloseHandler)
}

// PendingRequest represents one in-flight command awaiting a reply. Both
// channels are buffered so settlement never blocks the delivering goroutine;
// whichever fires first wins and the registry entry is deleted exactly once.
type PendingRequest struct {
	ID        string
	Command   string
	CreatedAt time.Time
	Deadline  time.Time
	ReplyCh   chan *contracts.Reply
	ErrCh     chan error
}

// CommandBridge turns named command invocations into correlation-tagged
// requests over a relay channel and resolves them from asynchronous replies.
// Any number of invokes may be outstanding; replies route by correlation id
// only, so reversed or interleaved arrival orders are fine.
type CommandBridge struct {
	publisher       Publisher
	pendingRequests map[string]*PendingRequest
	mu              sync.RWMutex
	maxPending      int
	defaultTimeout  time.Duration
	circuitBreaker  *reliability.CircuitBreaker
	cleanupTicker   *time.Ticker
	done            chan struct{}
	closeOnce       sync.Once
	logger          *slog.Logger
}

// BridgeOption configures the command bridge
type BridgeOption func(*BridgeConfig)

// BridgeConfig holds configuration for the bridge
type BridgeConfig struct {
	DefaultTimeout     time.Duration
	CleanupInterval    time.Duration
	MaxPendingRequests int
	CircuitBreaker     *reliability.CircuitBreaker
}

// WithDefaultTimeout sets the reply deadline used by Invoke.
func WithDefaultTimeout(timeout time.Duration) BridgeOption {
	return func(c *BridgeConfig) {
		c.DefaultTimeout = timeout
	}
}

// WithCleanupInterval sets the sweep interval for expired registry entries.
func WithCleanupInterval(interval time.Duration) BridgeOption {
	return func(c *BridgeConfig) {
		c.CleanupInterval = interval
	}
}

// WithMaxPendingRequests caps the number of concurrently outstanding invokes.
func WithMaxPendingRequests(max int) BridgeOption {
	return func(c *BridgeConfig) {
		c.MaxPendingRequests = max
	}
}

// WithBridgeCircuitBreaker wraps the publish step so a dead hub fails fast
// instead of queueing a timeout per call.
func WithBridgeCircuitBreaker(cb *reliability.CircuitBreaker) BridgeOption {
	return func(c *BridgeConfig) {
		c.CircuitBreaker = cb
	}
}

// NewCommandBridge creates a bridge reading replies from subscriber and
// sending requests through publisher.
func NewCommandBridge(publisher Publisher, subscriber Subscriber, logger *slog.Logger, opts ...BridgeOption) (*CommandBridge, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if subscriber == nil {
		return nil, fmt.Errorf("subscriber cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	config := &BridgeConfig{
		DefaultTimeout:     30 * time.Second,
		CleanupInterval:    30 * time.Second,
		MaxPendingRequests: 1000,
	}

	for _, opt := range opts {
		opt(config)
	}

	bridge := &CommandBridge{
		publisher:       publisher,
		pendingRequests: make(map[string]*PendingRequest),
		maxPending:      config.MaxPendingRequests,
		defaultTimeout:  config.DefaultTimeout,
		circuitBreaker:  config.CircuitBreaker,
		cleanupTicker:   time.NewTicker(config.CleanupInterval),
		done:            make(chan struct{}),
		logger:          logger,
	}

	subscriber.Subscribe(bridge.handleDelivery)
	subscriber.SubscribeClose(bridge.handleTransportClose)

	go bridge.cleanupRoutine()

	return bridge, nil
}

// Invoke sends a named command and waits for the matching reply, the default
// deadline, transport loss, or ctx cancellation, whichever comes first.
func (b *CommandBridge) Invoke(ctx context.Context, command string, params any) (json.RawMessage, error) {
	return b.InvokeWithTimeout(ctx, command, params, b.defaultTimeout)
}

// InvokeWithTimeout is Invoke with an explicit reply deadline.
func (b *CommandBridge) InvokeWithTimeout(ctx context.Context, command string, params any, timeout time.Duration) (json.RawMessage, error) {
	if command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	select {
	case <-b.done:
		return nil, contracts.ErrBridgeClosed
	default:
	}

	req, err := contracts.NewRequest(command, params)
	if err != nil {
		return nil, err
	}

	// Connection establishment completes before the request is registered,
	// so a close event from a previous connection cannot settle this entry.
	if err := b.publisher.Connect(ctx); err != nil {
		return nil, &contracts.TransportError{Op: "connect", Err: err}
	}

	b.mu.Lock()
	if len(b.pendingRequests) >= b.maxPending {
		b.mu.Unlock()
		return nil, contracts.ErrTooManyPendingRequests
	}
	pending := &PendingRequest{
		ID:        req.ID,
		Command:   command,
		CreatedAt: time.Now(),
		Deadline:  time.Now().Add(timeout),
		ReplyCh:   make(chan *contracts.Reply, 1),
		ErrCh:     make(chan error, 1),
	}
	b.pendingRequests[req.ID] = pending
	b.mu.Unlock()

	// Removed exactly once regardless of which resolution path wins.
	defer func() {
		b.mu.Lock()
		delete(b.pendingRequests, req.ID)
		b.mu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request %s: %w", req.ID, err)
	}

	if err := b.publish(ctx, payload); err != nil {
		return nil, err
	}

	b.logger.Debug("request sent",
		"command", command,
		"correlationId", req.ID,
		"timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-pending.ReplyCh:
		if reply.IsError() {
			return nil, &contracts.RemoteError{
				Command:       command,
				CorrelationID: req.ID,
				Message:       reply.Error,
			}
		}
		return reply.Result, nil

	case err := <-pending.ErrCh:
		return nil, err

	case <-timer.C:
		b.logger.Warn("request timed out",
			"command", command,
			"correlationId", req.ID,
			"timeout", timeout)
		return nil, &contracts.TimeoutError{
			Command:       command,
			CorrelationID: req.ID,
			Timeout:       timeout,
		}

	case <-ctx.Done():
		return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
	}
}

// publish sends the payload, through the circuit breaker when configured.
func (b *CommandBridge) publish(ctx context.Context, payload json.RawMessage) error {
	publishFunc := func() error {
		return b.publisher.Publish(ctx, payload)
	}

	var err error
	if b.circuitBreaker != nil {
		err = b.circuitBreaker.Execute(ctx, publishFunc)
	} else {
		err = publishFunc()
	}
	if err != nil {
		var cbErr *reliability.CircuitBreakerError
		if errors.As(err, &cbErr) {
			return err
		}
		return &contracts.TransportError{Op: "publish", Err: err}
	}
	return nil
}

// handleDelivery routes relayed payloads to waiting invokes. The hub echoes
// the bridge's own requests back tagged as self; those and anything
// request-shaped are ignored so an echo can never settle its own entry.
func (b *CommandBridge) handleDelivery(delivery relay.Delivery) {
	if delivery.Sender == contracts.SenderYou {
		return
	}

	var probe struct {
		ID      string          `json:"id"`
		Command string          `json:"command"`
		Result  json.RawMessage `json:"result"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(delivery.Message, &probe); err != nil {
		b.logger.Debug("dropping undecodable delivery", "error", err)
		return
	}
	if probe.Command != "" {
		// A request from another endpoint on the channel, not a reply.
		return
	}
	if probe.ID == "" {
		b.logger.Debug("dropping delivery without correlation id")
		return
	}

	b.mu.RLock()
	pending, exists := b.pendingRequests[probe.ID]
	b.mu.RUnlock()

	if !exists {
		// Timed out, settled, or never ours.
		b.logger.Debug("dropping reply with no pending request", "correlationId", probe.ID)
		return
	}

	reply := &contracts.Reply{ID: probe.ID, Result: probe.Result, Error: probe.Error}
	select {
	case pending.ReplyCh <- reply:
		b.logger.Debug("reply delivered", "correlationId", probe.ID)
	default:
		// Already settled by another path.
	}
}

// handleTransportClose fails every outstanding request exactly once. The map
// is swapped under the lock so a late reply or a second close event finds an
// empty registry.
func (b *CommandBridge) handleTransportClose(cause error) {
	b.mu.Lock()
	pending := b.pendingRequests
	b.pendingRequests = make(map[string]*PendingRequest)
	b.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	b.logger.Warn("transport closed with requests outstanding",
		"pending", len(pending),
		"error", cause)

	for _, req := range pending {
		err := &contracts.TransportError{Op: "await reply", Err: cause}
		select {
		case req.ErrCh <- err:
		default:
		}
	}
}

// cleanupRoutine periodically removes expired requests
func (b *CommandBridge) cleanupRoutine() {
	for {
		select {
		case <-b.cleanupTicker.C:
			b.cleanupExpiredRequests()
		case <-b.done:
			return
		}
	}
}

// cleanupExpiredRequests sweeps entries past their deadline. Invokes settle
// their own timeouts; the sweep only reaps entries whose waiter is gone.
func (b *CommandBridge) cleanupExpiredRequests() {
	now := time.Now()
	var expiredIDs []string

	b.mu.RLock()
	for id, req := range b.pendingRequests {
		if now.After(req.Deadline) {
			expiredIDs = append(expiredIDs, id)
		}
	}
	b.mu.RUnlock()

	if len(expiredIDs) == 0 {
		return
	}

	b.mu.Lock()
	for _, id := range expiredIDs {
		if req, exists := b.pendingRequests[id]; exists {
			select {
			case req.ErrCh <- &contracts.TimeoutError{
				Command:       req.Command,
				CorrelationID: req.ID,
				Timeout:       req.Deadline.Sub(req.CreatedAt),
			}:
			default:
			}
			delete(b.pendingRequests, id)
		}
	}
	b.mu.Unlock()

	b.logger.Debug("swept expired requests", "count", len(expiredIDs))
}

// GetPendingRequestCount returns the number of pending requests
func (b *CommandBridge) GetPendingRequestCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pendingRequests)
}

// Close shuts down the bridge and fails all outstanding requests.
func (b *CommandBridge) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.cleanupTicker.Stop()

		b.mu.Lock()
		pending := b.pendingRequests
		b.pendingRequests = make(map[string]*PendingRequest)
		b.mu.Unlock()

		for _, req := range pending {
			select {
			case req.ErrCh <- contracts.ErrBridgeClosed:
			default:
			}
		}
	})
	return nil
}

// InvokeTyped sends a command and unmarshals the result into T, eliminating
// ad hoc decoding at call sites.
func InvokeTyped[T any](b *CommandBridge, ctx context.Context, command string, params any) (T, error) {
	var zero T

	result, err := b.Invoke(ctx, command, params)
	if err != nil {
		return zero, err
	}

	var typed T
	if result != nil {
		if err := json.Unmarshal(result, &typed); err != nil {
			return zero, fmt.Errorf("failed to decode %s result: %w", command, err)
		}
	}
	return typed, nil
}
