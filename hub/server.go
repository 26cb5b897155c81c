package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/canvaslink/canvaslink-go/contracts"
)

const (
	// DefaultAddr is the listen address used when Config.Addr is empty.
	DefaultAddr = ":3055"

	// maxDecodeErrors is how many unparsable frames a connection may send
	// before the hub drops it.
	maxDecodeErrors = 3

	defaultShutdownTimeout = 5 * time.Second
)

// Config holds the hub server settings.
type Config struct {
	// Addr is the TCP listen address, defaulting to DefaultAddr.
	Addr string

	// Logger receives hub lifecycle and per-connection events. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// ShutdownTimeout bounds graceful shutdown once the run context ends.
	ShutdownTimeout time.Duration
}

// Server terminates WebSocket endpoints on /ws and serves the read-only
// admin API on /healthz and /channels.
type Server struct {
	hub             *Hub
	logger          *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// NewServer builds a hub server from cfg.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		hub:             New(logger),
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Handler(s.handleConn))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/channels", s.handleChannels)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub exposes the channel registry, mainly for admin inspection.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler so callers can mount the hub on their own
// listener or an httptest server.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	s.logger.Info("relay hub listening", "addr", s.httpServer.Addr)

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		s.logger.Info("relay hub shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// handleConn owns one WebSocket connection for its whole lifetime. The
// handler returns only when the endpoint disconnects or is dropped, at which
// point the endpoint leaves every channel it joined.
func (s *Server) handleConn(conn *websocket.Conn) {
	p := newPeer(uuid.New().String(), json.NewEncoder(conn))
	logger := s.logger.With("peer", p.id)
	logger.Debug("endpoint connected", "remote", conn.Request().RemoteAddr)

	defer func() {
		departed := s.hub.leaveAll(p)
		for name, remaining := range departed {
			s.notifyPeers(logger, remaining, name, "A peer left the channel")
		}
		_ = conn.Close()
		logger.Debug("endpoint disconnected", "channels", len(departed))
	}()

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var env contracts.Envelope
		if err := decoder.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			decodeErrors++
			logger.Warn("failed to parse envelope", "error", err, "attempt", decodeErrors)
			s.writeErrorNotice(logger, p, "", "invalid envelope: payload must be a JSON object")
			if decodeErrors >= maxDecodeErrors {
				logger.Warn("dropping connection after repeated parse failures")
				return
			}
			continue
		}

		switch env.Type {
		case contracts.KindJoin:
			s.handleJoin(logger, p, env)
		case contracts.KindMessage:
			s.handleSend(logger, p, env)
		default:
			logger.Warn("unsupported envelope type", "type", env.Type)
			s.writeErrorNotice(logger, p, env.Channel, fmt.Sprintf("unsupported envelope type: %q", env.Type))
		}
	}
}

// handleJoin adds the peer to the requested channel, acknowledges with a
// system notice correlated to the join id, and tells the channel's other
// members someone arrived. Re-joining only re-sends the acknowledgment.
func (s *Server) handleJoin(logger *slog.Logger, p *peer, env contracts.Envelope) {
	if env.Channel == "" {
		s.writeErrorNotice(logger, p, "", "channel name is required to join")
		return
	}

	others, rejoined := s.hub.join(env.Channel, p)
	logger.Info("endpoint joined channel", "channel", env.Channel, "rejoined", rejoined)

	ack, err := json.Marshal(contracts.JoinAck{
		ID:     env.ID,
		Result: "Connected to channel: " + env.Channel,
	})
	if err != nil {
		logger.Error("failed to encode join acknowledgment", "error", err)
		return
	}
	if err := p.send(contracts.Envelope{
		Type:    contracts.KindSystem,
		Channel: env.Channel,
		Message: ack,
	}); err != nil {
		logger.Warn("failed to send join acknowledgment", "error", err)
	}

	if !rejoined {
		s.notifyPeers(logger, others, env.Channel, "A peer joined the channel")
	}
}

// handleSend fans the payload out to every member of the channel, the sender
// included. The sender's copy is tagged You, everyone else's Remote. A peer
// that has not joined gets an error notice and nothing is delivered.
func (s *Server) handleSend(logger *slog.Logger, p *peer, env contracts.Envelope) {
	if env.Channel == "" {
		s.writeErrorNotice(logger, p, "", "channel name is required to send")
		return
	}

	members, isMember := s.hub.members(env.Channel, p)
	if !isMember {
		logger.Warn("send rejected: endpoint has not joined", "channel", env.Channel)
		s.writeErrorNotice(logger, p, env.Channel, "you must join the channel before sending to it")
		return
	}

	for _, member := range members {
		sender := contracts.SenderRemote
		if member == p {
			sender = contracts.SenderYou
		}
		if err := member.send(contracts.NewBroadcastEnvelope(env.Channel, env.Message, sender)); err != nil {
			logger.Warn("failed to deliver broadcast",
				"channel", env.Channel,
				"recipient", member.id,
				"error", err)
		}
	}
}

// notifyPeers sends a plain-text system notice to each peer. Delivery
// failures are logged per recipient and never abort the rest of the fan-out.
func (s *Server) notifyPeers(logger *slog.Logger, peers []*peer, channelName, message string) {
	if len(peers) == 0 {
		return
	}
	raw, err := json.Marshal(message)
	if err != nil {
		logger.Error("failed to encode system notice", "error", err)
		return
	}
	env := contracts.Envelope{Type: contracts.KindSystem, Channel: channelName, Message: raw}
	for _, member := range peers {
		if err := member.send(env); err != nil {
			logger.Warn("failed to send system notice", "recipient", member.id, "error", err)
		}
	}
}

func (s *Server) writeErrorNotice(logger *slog.Logger, p *peer, channelName, message string) {
	raw, err := json.Marshal(message)
	if err != nil {
		logger.Error("failed to encode error notice", "error", err)
		return
	}
	if err := p.send(contracts.Envelope{
		Type:    contracts.KindError,
		Channel: channelName,
		Message: raw,
	}); err != nil {
		logger.Warn("failed to send error notice", "error", err)
	}
}

// --- admin API ---

// channelList is the /channels response body.
type channelList struct {
	Channels []ChannelInfo `json:"channels"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(channelList{Channels: s.hub.Snapshot()}); err != nil {
		s.logger.Warn("failed to encode channel list", "error", err)
	}
}
