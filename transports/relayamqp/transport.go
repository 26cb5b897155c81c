// Package relayamqp relays channel traffic over a RabbitMQ broker instead of
// the WebSocket hub. Each relay channel maps to one fanout exchange; every
// endpoint consumes from its own exclusive queue, so a publish reaches all
// channel members, the publisher included. Sender markers are derived from an
// endpoint-id header rather than assigned by a hub.
package relayamqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/canvaslink/canvaslink-go/contracts"
	"github.com/canvaslink/canvaslink-go/relay"
)

const (
	// exchangePrefix namespaces relay channels among other exchanges on a
	// shared broker.
	exchangePrefix = "canvaslink.ch."

	// endpointHeader carries the publisher's endpoint id so consumers can
	// tag deliveries as their own or remote.
	endpointHeader = "x-canvaslink-endpoint"

	// DefaultDialTimeout bounds the broker dial.
	DefaultDialTimeout = 30 * time.Second
)

type transportConfig struct {
	logger      *slog.Logger
	endpointID  string
	dialTimeout time.Duration
}

// TransportOption configures a Transport.
type TransportOption func(*transportConfig)

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *transportConfig) {
		cfg.logger = logger
	}
}

// WithDialTimeout bounds the broker dial.
func WithDialTimeout(timeout time.Duration) TransportOption {
	return func(cfg *transportConfig) {
		cfg.dialTimeout = timeout
	}
}

// WithEndpointID overrides the generated endpoint identity. Two transports
// sharing an id will both see each other's traffic as their own.
func WithEndpointID(id string) TransportOption {
	return func(cfg *transportConfig) {
		cfg.endpointID = id
	}
}

// Transport is an AMQP connection to one relay channel. Like its WebSocket
// counterpart it does not reconnect on its own: after the connection
// terminates, the next Connect dials fresh and re-declares the topology.
type Transport struct {
	brokerURL  string
	channel    string
	endpointID string
	cfg        transportConfig
	logger     *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	once   *sync.Once
	closed bool

	handlerMu     sync.RWMutex
	handlers      []relay.DeliveryHandler
	closeHandlers []relay.CloseHandler
}

var _ relay.Transport = (*Transport)(nil)

// NewTransport creates a transport bound to one relay channel on the broker
// at brokerURL (an amqp:// or amqps:// URL).
func NewTransport(brokerURL, channelName string, opts ...TransportOption) (*Transport, error) {
	if brokerURL == "" {
		return nil, fmt.Errorf("broker URL cannot be empty")
	}
	if channelName == "" {
		return nil, fmt.Errorf("channel name cannot be empty")
	}

	cfg := transportConfig{
		dialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.endpointID == "" {
		cfg.endpointID = uuid.New().String()
	}

	return &Transport{
		brokerURL:  brokerURL,
		channel:    channelName,
		endpointID: cfg.endpointID,
		cfg:        cfg,
		logger:     cfg.logger.With("transport", "relayamqp", "channel", channelName),
	}, nil
}

// Channel returns the relay channel this transport joins.
func (t *Transport) Channel() string { return t.channel }

// EndpointID returns the identity stamped on this transport's publishes.
func (t *Transport) EndpointID() string { return t.endpointID }

// ExchangeName returns the fanout exchange backing the channel.
func (t *Transport) ExchangeName() string { return exchangePrefix + t.channel }

// Connect dials the broker and declares the channel topology: the fanout
// exchange, an exclusive auto-deleted queue, and a consumer on it. Returns
// nil immediately when a connection is already live.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return contracts.ErrTransportClosed
	}
	if t.conn != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	conn, err := t.dial(ctx)
	if err != nil {
		return &contracts.TransportError{Op: "dial", Err: err}
	}

	ch, deliveries, err := t.declareTopology(conn)
	if err != nil {
		_ = conn.Close()
		return &contracts.TransportError{Op: "join", Err: err}
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return contracts.ErrTransportClosed
	}
	if t.conn != nil {
		// Lost a Connect race; the winner's connection stays.
		t.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	once := &sync.Once{}
	t.conn = conn
	t.ch = ch
	t.once = once
	t.mu.Unlock()

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	t.logger.Info("joined relay exchange", "exchange", t.ExchangeName())
	go t.consumeLoop(conn, deliveries, notifyClose, once)
	return nil
}

func (t *Transport) dial(ctx context.Context) (*amqp.Connection, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.dialTimeout)
	defer cancel()

	type dialResult struct {
		conn *amqp.Connection
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := amqp.Dial(t.brokerURL)
		resultCh <- dialResult{conn: conn, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.conn, r.err
	case <-dialCtx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, dialCtx.Err()
	}
}

func (t *Transport) declareTopology(conn *amqp.Connection) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	exchange := t.ExchangeName()
	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		false, // durable
		true,  // auto-delete once the last member leaves
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	queue, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		return nil, nil, fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}

	// Relay broadcasts are fire-and-forget, so consume with auto-ack.
	deliveries, err := ch.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("consume from %s: %w", queue.Name, err)
	}

	return ch, deliveries, nil
}

// Publish fans the payload out to every channel member. The broker delivers
// a copy back to this endpoint's own queue, tagged as its own via the
// endpoint-id header.
func (t *Transport) Publish(ctx context.Context, message json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	ch := t.ch
	t.mu.Unlock()
	if ch == nil {
		return contracts.ErrNotConnected
	}

	publishing := amqp.Publishing{
		Headers:      amqp.Table{endpointHeader: t.endpointID},
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         message,
	}
	if err := ch.PublishWithContext(ctx, t.ExchangeName(), "", false, false, publishing); err != nil {
		return fmt.Errorf("publish to %s: %w", t.ExchangeName(), err)
	}
	return nil
}

// Subscribe registers a handler for relayed deliveries.
func (t *Transport) Subscribe(handler relay.DeliveryHandler) {
	if handler == nil {
		return
	}
	t.handlerMu.Lock()
	t.handlers = append(t.handlers, handler)
	t.handlerMu.Unlock()
}

// SubscribeClose registers a handler invoked once per established connection
// when it terminates.
func (t *Transport) SubscribeClose(handler relay.CloseHandler) {
	if handler == nil {
		return
	}
	t.handlerMu.Lock()
	t.closeHandlers = append(t.closeHandlers, handler)
	t.handlerMu.Unlock()
}

// IsConnected reports whether the transport holds a live connection.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Close tears the connection down and marks the transport terminal. Close
// handlers fire with ErrTransportClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	once := t.once
	t.mu.Unlock()

	if conn != nil {
		t.teardown(conn, once, contracts.ErrTransportClosed)
	}
	return nil
}

func (t *Transport) consumeLoop(conn *amqp.Connection, deliveries <-chan amqp.Delivery, notifyClose <-chan *amqp.Error, once *sync.Once) {
	for d := range deliveries {
		t.dispatch(d)
	}

	// The delivery channel closed. A broker-side failure queues its reason
	// on notifyClose first; a local Close just closes it.
	cause := error(contracts.ErrTransportClosed)
	if amqpErr, ok := <-notifyClose; ok && amqpErr != nil {
		cause = amqpErr
	}
	t.teardown(conn, once, cause)
}

func (t *Transport) dispatch(d amqp.Delivery) {
	t.handlerMu.RLock()
	handlers := make([]relay.DeliveryHandler, len(t.handlers))
	copy(handlers, t.handlers)
	t.handlerMu.RUnlock()

	delivery := relay.Delivery{
		Message: json.RawMessage(d.Body),
		Sender:  senderFor(d.Headers, t.endpointID),
		Channel: t.channel,
	}
	for _, handler := range handlers {
		handler(delivery)
	}
}

// senderFor derives the delivery's sender marker from the endpoint-id header
// stamped by the publisher. Deliveries without the header count as remote.
func senderFor(headers amqp.Table, endpointID string) string {
	if id, ok := headers[endpointHeader].(string); ok && id == endpointID {
		return contracts.SenderYou
	}
	return contracts.SenderRemote
}

func (t *Transport) teardown(conn *amqp.Connection, once *sync.Once, cause error) {
	once.Do(func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
			t.ch = nil
			t.once = nil
		}
		t.mu.Unlock()
		_ = conn.Close()

		t.logger.Info("relay connection closed", "cause", cause)

		t.handlerMu.RLock()
		closeHandlers := make([]relay.CloseHandler, len(t.closeHandlers))
		copy(closeHandlers, t.closeHandlers)
		t.handlerMu.RUnlock()
		for _, handler := range closeHandlers {
			handler(cause)
		}
	})
}
