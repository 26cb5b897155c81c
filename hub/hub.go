// Package hub implements the relay rendezvous: named channels of connected
// endpoints with store-and-forward broadcast and no knowledge of payload
// contents.
package hub

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/canvaslink/canvaslink-go/contracts"
)

// peer is one connected endpoint. Writes are serialized so concurrent
// broadcasts interleave at frame boundaries, never inside one.
type peer struct {
	id      string
	mu      sync.Mutex
	encoder *json.Encoder
}

func newPeer(id string, encoder *json.Encoder) *peer {
	return &peer{id: id, encoder: encoder}
}

func (p *peer) send(env contracts.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(env)
}

// channel is a named set of member endpoints. Membership is endpoint
// identity, never content.
type channel struct {
	name    string
	members map[*peer]struct{}
}

// ChannelInfo is the admin-API view of one channel.
type ChannelInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

// Hub is the channel registry. It is the only shared mutable state on the
// relay side; every access takes the lock and writes happen outside it on
// snapshots.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
	logger   *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		channels: make(map[string]*channel),
		logger:   logger,
	}
}

// join adds p to the named channel, creating the channel on first join.
// It returns the other current members to notify, and whether p was already
// a member (re-joining re-acks but does not re-notify).
func (h *Hub) join(name string, p *peer) (others []*peer, rejoined bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[name]
	if !ok {
		ch = &channel{name: name, members: make(map[*peer]struct{})}
		h.channels[name] = ch
	}
	if _, exists := ch.members[p]; exists {
		return nil, true
	}
	ch.members[p] = struct{}{}

	others = make([]*peer, 0, len(ch.members)-1)
	for member := range ch.members {
		if member != p {
			others = append(others, member)
		}
	}
	return others, false
}

// members snapshots the named channel and reports whether p belongs to it.
func (h *Hub) members(name string, p *peer) (all []*peer, isMember bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[name]
	if !ok {
		return nil, false
	}
	if _, exists := ch.members[p]; !exists {
		return nil, false
	}
	all = make([]*peer, 0, len(ch.members))
	for member := range ch.members {
		all = append(all, member)
	}
	return all, true
}

// leaveAll removes p from every channel it belongs to, garbage-collecting
// channels left empty. It returns the remaining members per channel so the
// caller can notify them outside the lock.
func (h *Hub) leaveAll(p *peer) map[string][]*peer {
	h.mu.Lock()
	defer h.mu.Unlock()

	notify := make(map[string][]*peer)
	for name, ch := range h.channels {
		if _, exists := ch.members[p]; !exists {
			continue
		}
		delete(ch.members, p)
		if len(ch.members) == 0 {
			delete(h.channels, name)
			continue
		}
		remaining := make([]*peer, 0, len(ch.members))
		for member := range ch.members {
			remaining = append(remaining, member)
		}
		notify[name] = remaining
	}
	return notify
}

// Snapshot lists every channel with its member count, sorted by name.
func (h *Hub) Snapshot() []ChannelInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	infos := make([]ChannelInfo, 0, len(h.channels))
	for name, ch := range h.channels {
		infos = append(infos, ChannelInfo{Name: name, Members: len(ch.members)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
