package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingAdmin serves a channel list that grows with every poll.
func countingAdmin(t *testing.T) (*httptest.Server, func() int) {
	t.Helper()

	var mu sync.Mutex
	polls := 0

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		polls++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"channels":[{"name":"design-main","members":2}]}`))
	}))
	t.Cleanup(ts.Close)

	return ts, func() int {
		mu.Lock()
		defer mu.Unlock()
		return polls
	}
}

func TestNewChannelWatcher(t *testing.T) {
	t.Run("requires a client", func(t *testing.T) {
		_, err := NewChannelWatcher(nil, time.Second, quietLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client cannot be nil")
	})

	t.Run("defaults the interval", func(t *testing.T) {
		client, err := NewClient("http://localhost:3055")
		require.NoError(t, err)

		watcher, err := NewChannelWatcher(client, 0, quietLogger())
		require.NoError(t, err)
		assert.Equal(t, DefaultWatchInterval, watcher.interval)
	})
}

func TestChannelWatcherWatch(t *testing.T) {
	t.Run("polls immediately and then per interval", func(t *testing.T) {
		ts, polls := countingAdmin(t)
		client, err := NewClient(ts.URL)
		require.NoError(t, err)

		watcher, err := NewChannelWatcher(client, 10*time.Millisecond, quietLogger())
		require.NoError(t, err)

		var mu sync.Mutex
		var seen []Snapshot

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- watcher.Watch(ctx, func(s Snapshot) {
				mu.Lock()
				seen = append(seen, s)
				mu.Unlock()
			})
		}()

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seen) >= 3
		}, 2*time.Second, 5*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop after cancel")
		}

		assert.GreaterOrEqual(t, polls(), 3)

		mu.Lock()
		defer mu.Unlock()
		first := seen[0]
		assert.Equal(t, []ChannelInfo{{Name: "design-main", Members: 2}}, first.Channels)
		assert.Equal(t, 2, first.TotalMembers())
		assert.False(t, first.Taken.IsZero())
	})

	t.Run("rejects a nil callback", func(t *testing.T) {
		client, err := NewClient("http://localhost:3055")
		require.NoError(t, err)

		watcher, err := NewChannelWatcher(client, time.Second, quietLogger())
		require.NoError(t, err)

		err = watcher.Watch(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "callback cannot be nil")
	})

	t.Run("keeps polling through failures", func(t *testing.T) {
		var mu sync.Mutex
		fail := true

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			failing := fail
			mu.Unlock()
			if failing {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"channels":[]}`))
		}))
		defer ts.Close()

		client, err := NewClient(ts.URL)
		require.NoError(t, err)

		watcher, err := NewChannelWatcher(client, 10*time.Millisecond, quietLogger())
		require.NoError(t, err)

		snapshots := make(chan Snapshot, 1)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- watcher.Watch(ctx, func(s Snapshot) {
				select {
				case snapshots <- s:
				default:
				}
			})
		}()

		// Let a few failing polls pass, then recover.
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		fail = false
		mu.Unlock()

		select {
		case s := <-snapshots:
			assert.Empty(t, s.Channels)
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not recover after failures")
		}

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("watch did not stop after cancel")
		}
	})

	t.Run("totals sum across channels", func(t *testing.T) {
		s := Snapshot{Channels: []ChannelInfo{
			{Name: "a", Members: 2},
			{Name: "b", Members: 3},
		}}
		assert.Equal(t, 5, s.TotalMembers())
		assert.Equal(t, 0, Snapshot{}.TotalMembers())
	})
}
