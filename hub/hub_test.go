package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPeer(id string) *peer {
	return newPeer(id, json.NewEncoder(io.Discard))
}

func TestHubJoin(t *testing.T) {
	t.Run("first join creates the channel", func(t *testing.T) {
		h := New(slog.Default())
		p := newTestPeer("a")

		others, rejoined := h.join("design", p)

		assert.False(t, rejoined)
		assert.Empty(t, others)
		assert.Equal(t, []ChannelInfo{{Name: "design", Members: 1}}, h.Snapshot())
	})

	t.Run("later joins see existing members", func(t *testing.T) {
		h := New(slog.Default())
		first := newTestPeer("a")
		second := newTestPeer("b")

		h.join("design", first)
		others, rejoined := h.join("design", second)

		assert.False(t, rejoined)
		require.Len(t, others, 1)
		assert.Same(t, first, others[0])
	})

	t.Run("rejoin is idempotent", func(t *testing.T) {
		h := New(slog.Default())
		p := newTestPeer("a")
		h.join("design", p)
		h.join("design", newTestPeer("b"))

		others, rejoined := h.join("design", p)

		assert.True(t, rejoined)
		assert.Nil(t, others)
		assert.Equal(t, []ChannelInfo{{Name: "design", Members: 2}}, h.Snapshot())
	})
}

func TestHubMembers(t *testing.T) {
	h := New(slog.Default())
	a := newTestPeer("a")
	b := newTestPeer("b")
	outsider := newTestPeer("c")
	h.join("design", a)
	h.join("design", b)

	t.Run("member snapshot includes everyone", func(t *testing.T) {
		all, isMember := h.members("design", a)

		assert.True(t, isMember)
		assert.ElementsMatch(t, []*peer{a, b}, all)
	})

	t.Run("non-member is rejected", func(t *testing.T) {
		all, isMember := h.members("design", outsider)

		assert.False(t, isMember)
		assert.Nil(t, all)
	})

	t.Run("unknown channel is rejected", func(t *testing.T) {
		_, isMember := h.members("nowhere", a)

		assert.False(t, isMember)
	})
}

func TestHubLeaveAll(t *testing.T) {
	t.Run("removes the peer from every channel", func(t *testing.T) {
		h := New(slog.Default())
		leaver := newTestPeer("leaver")
		stayer := newTestPeer("stayer")
		h.join("design", leaver)
		h.join("design", stayer)
		h.join("review", leaver)

		notify := h.leaveAll(leaver)

		require.Contains(t, notify, "design")
		require.Len(t, notify["design"], 1)
		assert.Same(t, stayer, notify["design"][0])
		// review became empty, so nobody is left to notify there.
		assert.NotContains(t, notify, "review")
		assert.Equal(t, []ChannelInfo{{Name: "design", Members: 1}}, h.Snapshot())
	})

	t.Run("empty channels are deleted", func(t *testing.T) {
		h := New(slog.Default())
		p := newTestPeer("a")
		h.join("design", p)

		h.leaveAll(p)

		assert.Empty(t, h.Snapshot())
		_, isMember := h.members("design", p)
		assert.False(t, isMember)
	})

	t.Run("peer with no memberships is a no-op", func(t *testing.T) {
		h := New(slog.Default())
		h.join("design", newTestPeer("a"))

		notify := h.leaveAll(newTestPeer("stranger"))

		assert.Empty(t, notify)
		assert.Equal(t, []ChannelInfo{{Name: "design", Members: 1}}, h.Snapshot())
	})
}

func TestHubSnapshotSorted(t *testing.T) {
	h := New(slog.Default())
	h.join("zeta", newTestPeer("a"))
	h.join("alpha", newTestPeer("b"))
	h.join("alpha", newTestPeer("c"))

	snapshot := h.Snapshot()

	require.Len(t, snapshot, 2)
	assert.Equal(t, ChannelInfo{Name: "alpha", Members: 2}, snapshot[0])
	assert.Equal(t, ChannelInfo{Name: "zeta", Members: 1}, snapshot[1])
}
