package relayws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaslink/canvaslink-go/contracts"
	"github.com/canvaslink/canvaslink-go/hub"
	"github.com/canvaslink/canvaslink-go/relay"
)

func newHub(t *testing.T) (*hub.Server, *httptest.Server, string) {
	t.Helper()
	s := hub.NewServer(hub.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return s, ts, wsURL
}

// newHubWithDrop is newHub plus a function that severs every accepted
// connection from the server side. httptest's CloseClientConnections cannot
// do that here: the WebSocket handler hijacks each connection, and the
// httptest server stops tracking hijacked connections, so the tests capture
// the raw conns themselves via the ConnState hook.
func newHubWithDrop(t *testing.T) (*hub.Server, string, func()) {
	t.Helper()
	s := hub.NewServer(hub.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ts := httptest.NewUnstartedServer(s.Handler())

	var mu sync.Mutex
	var conns []net.Conn
	ts.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateNew {
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}

	ts.Start()
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	drop := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
		conns = nil
	}
	return s, wsURL, drop
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func connectTransport(t *testing.T, wsURL, channelName string) *Transport {
	t.Helper()
	transport, err := NewTransport(wsURL, channelName, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, transport.Connect(context.Background()))
	t.Cleanup(func() { _ = transport.Close() })
	return transport
}

func waitDelivery(t *testing.T, ch <-chan relay.Delivery) relay.Delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return relay.Delivery{}
	}
}

func waitClose(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close notification")
		return nil
	}
}

func TestNewTransport(t *testing.T) {
	t.Run("requires a hub URL", func(t *testing.T) {
		_, err := NewTransport("", "c1")
		assert.Error(t, err)
	})

	t.Run("requires a channel", func(t *testing.T) {
		_, err := NewTransport("ws://localhost:3055/ws", "")
		assert.Error(t, err)
	})

	t.Run("derives the origin from the hub URL", func(t *testing.T) {
		assert.Equal(t, "http://localhost:3055/ws", originFor("ws://localhost:3055/ws"))
		assert.Equal(t, "https://relay.example.com/ws", originFor("wss://relay.example.com/ws"))
	})
}

func TestTransportConnect(t *testing.T) {
	t.Run("dials and joins the channel", func(t *testing.T) {
		server, _, wsURL := newHub(t)

		transport := connectTransport(t, wsURL, "c1")

		assert.True(t, transport.IsConnected())
		assert.Equal(t, "c1", transport.Channel())
		assert.Equal(t, []hub.ChannelInfo{{Name: "c1", Members: 1}}, server.Hub().Snapshot())
	})

	t.Run("is idempotent while connected", func(t *testing.T) {
		server, _, wsURL := newHub(t)
		transport := connectTransport(t, wsURL, "c1")

		require.NoError(t, transport.Connect(context.Background()))

		assert.Equal(t, []hub.ChannelInfo{{Name: "c1", Members: 1}}, server.Hub().Snapshot())
	})

	t.Run("honors a custom origin and handshake bounds", func(t *testing.T) {
		server, _, wsURL := newHub(t)
		transport, err := NewTransport(wsURL, "c1",
			WithLogger(quietLogger()),
			WithOrigin("http://operator.local"),
			WithHandshakeTimeout(2*time.Second),
			WithWriteTimeout(time.Second))
		require.NoError(t, err)

		require.NoError(t, transport.Connect(context.Background()))
		t.Cleanup(func() { _ = transport.Close() })

		assert.True(t, transport.IsConnected())
		assert.Equal(t, []hub.ChannelInfo{{Name: "c1", Members: 1}}, server.Hub().Snapshot())
	})

	t.Run("fails when nothing listens", func(t *testing.T) {
		transport, err := NewTransport("ws://127.0.0.1:1/ws", "c1",
			WithLogger(quietLogger()),
			WithDialTimeout(500*time.Millisecond))
		require.NoError(t, err)

		err = transport.Connect(context.Background())

		require.Error(t, err)
		assert.True(t, contracts.IsTransportFailure(err))
	})

	t.Run("is terminal after Close", func(t *testing.T) {
		_, _, wsURL := newHub(t)
		transport := connectTransport(t, wsURL, "c1")

		require.NoError(t, transport.Close())
		err := transport.Connect(context.Background())

		assert.ErrorIs(t, err, contracts.ErrTransportClosed)
	})
}

func TestTransportPublish(t *testing.T) {
	t.Run("delivers to remote members and echoes back", func(t *testing.T) {
		_, _, wsURL := newHub(t)
		sender := connectTransport(t, wsURL, "c1")
		receiver := connectTransport(t, wsURL, "c1")

		senderCh := make(chan relay.Delivery, 4)
		receiverCh := make(chan relay.Delivery, 4)
		sender.Subscribe(func(d relay.Delivery) { senderCh <- d })
		receiver.Subscribe(func(d relay.Delivery) { receiverCh <- d })

		require.NoError(t, sender.Publish(context.Background(), json.RawMessage(`{"foo":1}`)))

		remote := waitDelivery(t, receiverCh)
		assert.Equal(t, contracts.SenderRemote, remote.Sender)
		assert.Equal(t, "c1", remote.Channel)
		assert.JSONEq(t, `{"foo":1}`, string(remote.Message))

		echo := waitDelivery(t, senderCh)
		assert.Equal(t, contracts.SenderYou, echo.Sender)
		assert.JSONEq(t, `{"foo":1}`, string(echo.Message))
	})

	t.Run("fails when not connected", func(t *testing.T) {
		transport, err := NewTransport("ws://localhost:3055/ws", "c1", WithLogger(quietLogger()))
		require.NoError(t, err)

		err = transport.Publish(context.Background(), json.RawMessage(`{}`))

		assert.ErrorIs(t, err, contracts.ErrNotConnected)
	})

	t.Run("respects an already-cancelled context", func(t *testing.T) {
		_, _, wsURL := newHub(t)
		transport := connectTransport(t, wsURL, "c1")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := transport.Publish(ctx, json.RawMessage(`{}`))

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTransportClose(t *testing.T) {
	t.Run("fires close handlers once", func(t *testing.T) {
		_, _, wsURL := newHub(t)
		transport := connectTransport(t, wsURL, "c1")

		closeCh := make(chan error, 4)
		transport.SubscribeClose(func(err error) { closeCh <- err })

		require.NoError(t, transport.Close())

		err := waitClose(t, closeCh)
		assert.ErrorIs(t, err, contracts.ErrTransportClosed)
		assert.False(t, transport.IsConnected())

		// A second Close must not re-notify.
		require.NoError(t, transport.Close())
		select {
		case err := <-closeCh:
			t.Fatalf("unexpected second close notification: %v", err)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("notifies when the hub drops the connection", func(t *testing.T) {
		_, wsURL, dropConns := newHubWithDrop(t)
		transport := connectTransport(t, wsURL, "c1")

		closeCh := make(chan error, 4)
		transport.SubscribeClose(func(err error) { closeCh <- err })

		dropConns()

		assert.Error(t, waitClose(t, closeCh))
		assert.False(t, transport.IsConnected())
	})

	t.Run("reconnects after a remote drop", func(t *testing.T) {
		server, wsURL, dropConns := newHubWithDrop(t)
		transport := connectTransport(t, wsURL, "c1")

		closeCh := make(chan error, 4)
		transport.SubscribeClose(func(err error) { closeCh <- err })

		dropConns()
		waitClose(t, closeCh)

		require.NoError(t, transport.Connect(context.Background()))

		assert.True(t, transport.IsConnected())
		// The hub's cleanup of the dropped peer races with the re-join, so
		// poll for the settled membership.
		assert.Eventually(t, func() bool {
			snapshot := server.Hub().Snapshot()
			return len(snapshot) == 1 && snapshot[0] == (hub.ChannelInfo{Name: "c1", Members: 1})
		}, 2*time.Second, 10*time.Millisecond)
	})
}
