// Copyright 2025 CanvasLink Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package canvaslink is the one-stop entry point for driving a design
// document over a relay channel: a Client bundles a channel-scoped transport
// with a command bridge so callers just Invoke named commands.
package canvaslink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/canvaslink/canvaslink-go/bridge"
	"github.com/canvaslink/canvaslink-go/relay"
	"github.com/canvaslink/canvaslink-go/transports/relayws"
)

// Client joins one relay channel and turns command invocations into
// correlated request/reply round trips over it.
type Client struct {
	transport relay.Transport
	bridge    *bridge.CommandBridge
	channel   string
}

// clientConfig holds client configuration
type clientConfig struct {
	logger         *slog.Logger
	defaultTimeout time.Duration
	transport      relay.Transport
	bridgeOptions  []bridge.BridgeOption
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// WithDefaultTimeout sets the reply deadline used by Invoke.
func WithDefaultTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.defaultTimeout = timeout
	}
}

// WithTransport replaces the default WebSocket transport, e.g. with the
// AMQP one. The hub URL and channel arguments are ignored when set.
func WithTransport(transport relay.Transport) ClientOption {
	return func(cfg *clientConfig) {
		cfg.transport = transport
	}
}

// WithBridgeOptions passes extra options through to the command bridge,
// such as the pending-request cap or a circuit breaker.
func WithBridgeOptions(opts ...bridge.BridgeOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.bridgeOptions = append(cfg.bridgeOptions, opts...)
	}
}

// NewClient creates a client for the given hub URL and channel. Nothing is
// dialed yet; the first Invoke (or an explicit Connect) joins the channel.
func NewClient(hubURL, channel string, options ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	transport := cfg.transport
	if transport == nil {
		var err error
		transport, err = relayws.NewTransport(hubURL, channel, relayws.WithLogger(cfg.logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
	}

	bridgeOpts := cfg.bridgeOptions
	if cfg.defaultTimeout > 0 {
		bridgeOpts = append(bridgeOpts, bridge.WithDefaultTimeout(cfg.defaultTimeout))
	}

	commandBridge, err := bridge.NewCommandBridge(transport, transport, cfg.logger, bridgeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	return &Client{
		transport: transport,
		bridge:    commandBridge,
		channel:   channel,
	}, nil
}

// Connect dials the hub and joins the channel. Invoke connects on demand;
// Connect exists so startup can fail fast on an unreachable hub.
func (c *Client) Connect(ctx context.Context) error {
	return c.transport.Connect(ctx)
}

// Invoke sends a named command over the channel and waits for the matching
// reply, the default deadline, or ctx cancellation.
func (c *Client) Invoke(ctx context.Context, command string, params any) (json.RawMessage, error) {
	return c.bridge.Invoke(ctx, command, params)
}

// InvokeWithTimeout is Invoke with an explicit reply deadline.
func (c *Client) InvokeWithTimeout(ctx context.Context, command string, params any, timeout time.Duration) (json.RawMessage, error) {
	return c.bridge.InvokeWithTimeout(ctx, command, params, timeout)
}

// Channel returns the relay channel this client publishes to.
func (c *Client) Channel() string {
	return c.channel
}

// Bridge returns the command bridge for request-response patterns.
func (c *Client) Bridge() *bridge.CommandBridge {
	return c.bridge
}

// Transport returns the underlying relay transport.
func (c *Client) Transport() relay.Transport {
	return c.transport
}

// Close shuts down the bridge, failing outstanding invokes, then closes the
// transport.
func (c *Client) Close() error {
	if c.bridge != nil {
		c.bridge.Close()
	}
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}
