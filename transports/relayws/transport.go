// Package relayws connects an endpoint to the relay hub over WebSocket and
// adapts the connection to the relay.Transport contract.
package relayws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/canvaslink/canvaslink-go/contracts"
	"github.com/canvaslink/canvaslink-go/relay"
)

const (
	// DefaultDialTimeout bounds the WebSocket dial.
	DefaultDialTimeout = 10 * time.Second

	// DefaultHandshakeTimeout bounds the channel-join round trip.
	DefaultHandshakeTimeout = 10 * time.Second

	defaultWriteTimeout = 10 * time.Second

	// maxDecodeErrors is how many unparsable frames the read loop tolerates
	// before it gives the connection up.
	maxDecodeErrors = 3
)

type transportConfig struct {
	logger           *slog.Logger
	origin           string
	dialTimeout      time.Duration
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

// TransportOption configures a Transport.
type TransportOption func(*transportConfig)

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(cfg *transportConfig) {
		cfg.logger = logger
	}
}

// WithOrigin overrides the Origin header sent during the dial. By default it
// is derived from the hub URL.
func WithOrigin(origin string) TransportOption {
	return func(cfg *transportConfig) {
		cfg.origin = origin
	}
}

// WithDialTimeout bounds the WebSocket dial.
func WithDialTimeout(timeout time.Duration) TransportOption {
	return func(cfg *transportConfig) {
		cfg.dialTimeout = timeout
	}
}

// WithHandshakeTimeout bounds the channel-join round trip.
func WithHandshakeTimeout(timeout time.Duration) TransportOption {
	return func(cfg *transportConfig) {
		cfg.handshakeTimeout = timeout
	}
}

// WithWriteTimeout bounds each outbound frame write.
func WithWriteTimeout(timeout time.Duration) TransportOption {
	return func(cfg *transportConfig) {
		cfg.writeTimeout = timeout
	}
}

// Transport is a WebSocket connection to one relay channel. It does not
// reconnect on its own: after the connection terminates, the next Connect
// dials fresh and re-joins the channel.
type Transport struct {
	hubURL  string
	channel string
	cfg     transportConfig
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	once   *sync.Once // teardown guard for the current connection
	closed bool

	sendMu sync.Mutex // serializes frame writes

	handlerMu     sync.RWMutex
	handlers      []relay.DeliveryHandler
	closeHandlers []relay.CloseHandler
}

var _ relay.Transport = (*Transport)(nil)

// NewTransport creates a transport bound to one channel on the hub at hubURL
// (a ws:// or wss:// URL ending in the hub's WebSocket endpoint).
func NewTransport(hubURL, channelName string, opts ...TransportOption) (*Transport, error) {
	if hubURL == "" {
		return nil, fmt.Errorf("hub URL cannot be empty")
	}
	if channelName == "" {
		return nil, fmt.Errorf("channel name cannot be empty")
	}

	cfg := transportConfig{
		dialTimeout:      DefaultDialTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.origin == "" {
		cfg.origin = originFor(hubURL)
	}

	return &Transport{
		hubURL:  hubURL,
		channel: channelName,
		cfg:     cfg,
		logger:  cfg.logger.With("transport", "relayws", "channel", channelName),
	}, nil
}

// originFor derives an http(s) origin from a ws(s) hub URL.
func originFor(hubURL string) string {
	if strings.HasPrefix(hubURL, "ws") {
		return "http" + strings.TrimPrefix(hubURL, "ws")
	}
	return hubURL
}

// Channel returns the channel this transport joins.
func (t *Transport) Channel() string { return t.channel }

// Connect dials the hub and joins the channel. It returns nil immediately
// when a connection is already live, and ErrTransportClosed after Close.
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
	if err := t.joinChannel(conn); err != nil {
		_ = conn.Close()
		return err
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
	t.once = once
	t.mu.Unlock()

	t.logger.Info("joined relay channel", "hub", t.hubURL)
	go t.readLoop(conn, once)
	return nil
}

func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	wsConfig, err := websocket.NewConfig(t.hubURL, t.cfg.origin)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.dialTimeout)
	defer cancel()

	type dialResult struct {
		conn *websocket.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := websocket.DialConfig(wsConfig)
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

// joinChannel sends the join envelope and waits for the hub's acknowledgment
// correlated to the handshake id. Unrelated notices arriving first are
// skipped.
func (t *Transport) joinChannel(conn *websocket.Conn) error {
	joinID := uuid.New().String()

	if err := conn.SetDeadline(time.Now().Add(t.cfg.handshakeTimeout)); err != nil {
		return &contracts.TransportError{Op: "join", Err: err}
	}
	if err := websocket.JSON.Send(conn, contracts.NewJoinEnvelope(t.channel, joinID)); err != nil {
		return &contracts.TransportError{Op: "join", Err: err}
	}

	for {
		var env contracts.Envelope
		if err := websocket.JSON.Receive(conn, &env); err != nil {
			return &contracts.TransportError{Op: "join", Err: err}
		}
		switch env.Type {
		case contracts.KindSystem:
			var ack contracts.JoinAck
			if err := json.Unmarshal(env.Message, &ack); err != nil || ack.ID != joinID {
				continue
			}
			if err := conn.SetDeadline(time.Time{}); err != nil {
				return &contracts.TransportError{Op: "join", Err: err}
			}
			t.logger.Debug("join acknowledged", "result", ack.Result)
			return nil
		case contracts.KindError:
			reason := noticeText(env.Message)
			return &contracts.ProtocolError{Reason: "join rejected: " + reason}
		default:
			continue
		}
	}
}

// Publish relays an opaque payload into the joined channel. The hub echoes
// it back tagged as the endpoint's own, so subscribers must expect their own
// traffic.
func (t *Transport) Publish(ctx context.Context, message json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return contracts.ErrNotConnected
	}

	deadline := time.Now().Add(t.cfg.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := websocket.JSON.Send(conn, contracts.NewMessageEnvelope(t.channel, message)); err != nil {
		return fmt.Errorf("send message envelope: %w", err)
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

func (t *Transport) readLoop(conn *websocket.Conn, once *sync.Once) {
	decodeErrors := 0
	for {
		var env contracts.Envelope
		if err := websocket.JSON.Receive(conn, &env); err != nil {
			if isDecodeError(err) {
				decodeErrors++
				t.logger.Warn("dropping malformed relay frame", "error", err, "attempt", decodeErrors)
				if decodeErrors >= maxDecodeErrors {
					t.teardown(conn, once, &contracts.ProtocolError{Reason: "repeated malformed frames", Err: err})
					return
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				err = contracts.ErrTransportClosed
			}
			t.teardown(conn, once, err)
			return
		}
		t.dispatch(env)
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// dispatch routes one inbound envelope. Broadcast deliveries go to the
// subscribers; hub notices are logged and dropped.
func (t *Transport) dispatch(env contracts.Envelope) {
	switch env.Type {
	case contracts.KindBroadcast:
		t.handlerMu.RLock()
		handlers := make([]relay.DeliveryHandler, len(t.handlers))
		copy(handlers, t.handlers)
		t.handlerMu.RUnlock()

		delivery := relay.Delivery{
			Message: env.Message,
			Sender:  env.Sender,
			Channel: env.Channel,
		}
		for _, handler := range handlers {
			handler(delivery)
		}
	case contracts.KindSystem:
		t.logger.Debug("relay system notice", "message", noticeText(env.Message))
	case contracts.KindError:
		t.logger.Warn("relay error notice", "message", noticeText(env.Message))
	default:
		t.logger.Warn("unsupported relay envelope", "type", env.Type)
	}
}

// teardown closes the connection and fires the close handlers, exactly once
// per established connection.
func (t *Transport) teardown(conn *websocket.Conn, once *sync.Once, cause error) {
	once.Do(func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
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

// noticeText renders a hub notice payload, which arrives either as a JSON
// string or as a structured object.
func noticeText(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
