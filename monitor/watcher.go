package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultWatchInterval is the poll cadence when none is configured.
const DefaultWatchInterval = 2 * time.Second

// Snapshot is one polled view of the hub's channel registry.
type Snapshot struct {
	Taken    time.Time
	Channels []ChannelInfo
}

// TotalMembers sums the member counts across all channels.
func (s Snapshot) TotalMembers() int {
	total := 0
	for _, ch := range s.Channels {
		total += ch.Members
	}
	return total
}

// ChannelWatcher polls the hub admin API at a fixed interval and hands each
// snapshot to a callback. Poll failures are logged and skipped so a hub
// restart does not end the watch.
type ChannelWatcher struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger
}

// NewChannelWatcher creates a watcher polling through client.
func NewChannelWatcher(client *Client, interval time.Duration, logger *slog.Logger) (*ChannelWatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelWatcher{
		client:   client,
		interval: interval,
		logger:   logger,
	}, nil
}

// Watch polls until ctx is cancelled, invoking fn once immediately and then
// once per interval. Returns the context's error on cancellation.
func (w *ChannelWatcher) Watch(ctx context.Context, fn func(Snapshot)) error {
	if fn == nil {
		return fmt.Errorf("callback cannot be nil")
	}

	w.poll(ctx, fn)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx, fn)
		}
	}
}

func (w *ChannelWatcher) poll(ctx context.Context, fn func(Snapshot)) {
	channels, err := w.client.ListChannels(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("channel poll failed", "error", err)
		return
	}
	fn(Snapshot{Taken: time.Now(), Channels: channels})
}
