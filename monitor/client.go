// Package monitor provides operational visibility into a running relay hub:
// an HTTP client for the hub's admin API and a polling channel watcher.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRequestTimeout bounds each admin API call when no custom HTTP
// client is supplied.
const DefaultRequestTimeout = 10 * time.Second

// ChannelInfo describes one active relay channel as reported by the hub.
type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Client queries the relay hub's admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures the admin client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, for custom timeouts
// or transports.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates an admin client for the hub reachable at baseURL,
// e.g. "http://localhost:3055".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got %q", parsed.Scheme)
	}

	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Health checks the hub's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ListChannels returns the hub's active channels, sorted by name.
func (c *Client) ListChannels(ctx context.Context) ([]ChannelInfo, error) {
	resp, err := c.get(ctx, "/channels")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Channels []ChannelInfo `json:"channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode channel list: %w", err)
	}
	return payload.Channels, nil
}

// get makes a request to the admin API and rejects non-2xx responses.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hub admin request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("hub admin API error: %s", resp.Status)
	}
	return resp, nil
}
