package network

import (
	"errors"
	"sync"
	"testing"

	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/shared/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mu   sync.Mutex
	msgs []any
}

func (c *captured) write(msg any) error {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	return nil
}

func newTestSocket(t *testing.T, address string) (*Socket, *captured) {
	t.Helper()
	logger.Silence()
	s, err := NewSocket(address)
	require.NoError(t, err)
	c := &captured{}
	s.write = c.write
	return s, c
}

func TestNewSocketRejectsBadAddress(t *testing.T) {
	_, err := NewSocket("http://example.com/room")
	assert.Error(t, err)
}

func TestSocketPlayersSortedBySeat(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=3")

	assert.Nil(t, s.Players(), "no players before welcome")

	s.onWelcome(messages.Welcome{Self: "me", Room: "arena", Seat: 1, Next: 3})
	s.onPeerJoined(messages.PeerJoined{Peer: "zed", Seat: 2})
	s.onPeerJoined(messages.PeerJoined{Peer: "amy", Seat: 0})

	assert.Equal(t, StateJoined, s.State())

	// pending until applied
	assert.Len(t, s.Players(), 1)

	events := s.UpdatePeers()
	assert.Len(t, events, 2)
	assert.Empty(t, s.UpdatePeers())

	players := s.Players()
	require.Len(t, players, 3)
	assert.Equal(t, Player{Seat: 0, Peer: "amy"}, players[0])
	assert.Equal(t, Player{Seat: 1, Peer: "me", Local: true}, players[1])
	assert.Equal(t, Player{Seat: 2, Peer: "zed"}, players[2])
}

func TestSocketPeerLeftRemovesPeer(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	s.onWelcome(messages.Welcome{Self: "me", Seat: 0})
	s.onPeerJoined(messages.PeerJoined{Peer: "you", Seat: 1})
	s.UpdatePeers()
	require.Len(t, s.Players(), 2)

	s.onPeerLeft(messages.PeerLeft{Peer: "you"})
	events := s.UpdatePeers()
	require.Len(t, events, 1)
	assert.False(t, events[0].Joined)
	assert.Len(t, s.Players(), 1)
}

func TestTakeChannelRequiresFullRoom(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	s.onWelcome(messages.Welcome{Self: "me", Seat: 0})
	s.UpdatePeers()

	_, err := s.TakeChannel(0)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.NoError(t, s.GetChannel(0), "still available")
}

func TestTakeChannelOnce(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	s.onWelcome(messages.Welcome{Self: "me", Seat: 0})
	s.onPeerJoined(messages.PeerJoined{Peer: "you", Seat: 1})
	s.UpdatePeers()

	_, err := s.TakeChannel(1)
	assert.ErrorIs(t, err, ErrChannelIndex)

	ch, err := s.TakeChannel(0)
	require.NoError(t, err)
	require.NotNil(t, ch)

	_, err = s.TakeChannel(0)
	assert.ErrorIs(t, err, ErrChannelTaken)
	assert.ErrorIs(t, s.GetChannel(0), ErrChannelTaken)
}

func TestChannelRelaysThroughOutbox(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	s.onWelcome(messages.Welcome{Self: "me", Seat: 0})
	s.onPeerJoined(messages.PeerJoined{Peer: "you", Seat: 1})
	s.UpdatePeers()
	ch, err := s.TakeChannel(0)
	require.NoError(t, err)

	require.NoError(t, ch.Send("you", []byte{7}))
	out := drainChan(s.outbox)
	require.Len(t, out, 1)
	assert.Equal(t, messages.Relay{To: "you", Payload: []byte{7}}, out[0])

	s.onRelay(messages.Relay{From: "you", Payload: []byte{8}})
	pkts, err := ch.Receive()
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	assert.Equal(t, Packet{From: "you", Payload: []byte{8}}, pkts[0])
}

func TestChannelDropsWhenInboxFull(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	for i := 0; i < inboxSize+10; i++ {
		s.onRelay(messages.Relay{From: "you", Payload: []byte{byte(i)}})
	}
	assert.Len(t, drainChan(s.inbox), inboxSize)
}

func TestChannelReportsPeerLeft(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	s.onWelcome(messages.Welcome{Self: "me", Seat: 0})
	s.onPeerJoined(messages.PeerJoined{Peer: "you", Seat: 1})
	s.UpdatePeers()
	ch, err := s.TakeChannel(0)
	require.NoError(t, err)

	s.onRelay(messages.Relay{From: "you", Payload: []byte{1}})
	s.onPeerLeft(messages.PeerLeft{Peer: "you"})

	pkts, err := ch.Receive()
	assert.Len(t, pkts, 1, "packets received before the loss are still delivered")
	var lost *PeerLostError
	require.True(t, errors.As(err, &lost))
	assert.Equal(t, PeerID("you"), lost.Peer)

	assert.ErrorIs(t, ch.Send("you", []byte{2}), ErrPeerLost)
}

func TestChannelReportsServerGone(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	s.onWelcome(messages.Welcome{Self: "me", Seat: 0})
	s.onPeerJoined(messages.PeerJoined{Peer: "you", Seat: 1})
	s.UpdatePeers()
	ch, err := s.TakeChannel(0)
	require.NoError(t, err)

	s.onServerGone()

	_, err = ch.Receive()
	assert.ErrorIs(t, err, ErrPeerLost)
	assert.ErrorIs(t, err, ErrServerClosed)
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSocketStateString(t *testing.T) {
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "unknown", SocketState(42).String())
}

func TestJoinRejectedIsFinal(t *testing.T) {
	s, _ := newTestSocket(t, "ws://localhost:3536/arena?next=2")
	stopped := false
	s.cancel = func() { stopped = true }

	s.onJoinRejected(messages.JoinRejected{Reason: "version mismatch"})

	assert.True(t, stopped, "writer of the rejected connection must stop")
	assert.Nil(t, s.cancel)
	assert.Equal(t, StateError, s.State())
	assert.ErrorIs(t, s.LastError(), ErrRejected)

	// the dial returning afterwards keeps the rejection visible
	s.setError(ErrUnreachable)
	assert.ErrorIs(t, s.LastError(), ErrRejected)
}

func TestConnectDropsPreviousConnection(t *testing.T) {
	s, _ := newTestSocket(t, "ws://127.0.0.1:1/arena?next=2")
	defer s.Close()

	stopped := false
	s.mu.Lock()
	s.state = StateError
	s.lastError = ErrUnreachable
	s.cancel = func() { stopped = true }
	s.mu.Unlock()

	s.Connect()

	assert.True(t, stopped)
	s.mu.RLock()
	assert.Nil(t, s.cancel)
	s.mu.RUnlock()
}
