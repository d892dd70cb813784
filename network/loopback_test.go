package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackDeliversImmediatelyWithoutLatency(t *testing.T) {
	hub := NewLoopback(0)
	a := hub.Endpoint("a")
	b := hub.Endpoint("b")

	require.NoError(t, a.Send("b", []byte("hello")))

	pkts, err := b.Receive()
	require.NoError(t, err)
	require.Len(t, pkts, 1)
	assert.Equal(t, PeerID("a"), pkts[0].From)
	assert.Equal(t, []byte("hello"), pkts[0].Payload)

	pkts, err = b.Receive()
	require.NoError(t, err)
	assert.Empty(t, pkts)
}

func TestLoopbackLatencyCountsReceives(t *testing.T) {
	hub := NewLoopback(2)
	a := hub.Endpoint("a")
	b := hub.Endpoint("b")

	require.NoError(t, a.Send("b", []byte{1}))

	for i := 0; i < 2; i++ {
		pkts, err := b.Receive()
		require.NoError(t, err)
		assert.Empty(t, pkts, "receive %d", i)
	}
	pkts, err := b.Receive()
	require.NoError(t, err)
	assert.Len(t, pkts, 1)
}

func TestLoopbackCopiesPayload(t *testing.T) {
	hub := NewLoopback(0)
	a := hub.Endpoint("a")
	b := hub.Endpoint("b")

	buf := []byte{1, 2, 3}
	require.NoError(t, a.Send("b", buf))
	buf[0] = 9

	pkts, _ := b.Receive()
	require.Len(t, pkts, 1)
	assert.Equal(t, []byte{1, 2, 3}, pkts[0].Payload)
}

func TestLoopbackBlockDropsSilently(t *testing.T) {
	hub := NewLoopback(0)
	a := hub.Endpoint("a")
	b := hub.Endpoint("b")

	hub.Block("a", "b")
	require.NoError(t, a.Send("b", []byte{1}))
	pkts, _ := b.Receive()
	assert.Empty(t, pkts)

	hub.Unblock("a", "b")
	require.NoError(t, a.Send("b", []byte{2}))
	pkts, _ = b.Receive()
	require.Len(t, pkts, 1)
	assert.Equal(t, []byte{2}, pkts[0].Payload)
}

func TestLoopbackDisconnectReportsPeerLost(t *testing.T) {
	hub := NewLoopback(0)
	a := hub.Endpoint("a")
	hub.Endpoint("b")

	hub.Disconnect("b")

	_, err := a.Receive()
	var lost *PeerLostError
	require.ErrorAs(t, err, &lost)
	assert.Equal(t, PeerID("b"), lost.Peer)
	assert.ErrorIs(t, err, ErrPeerLost)

	// persistent
	_, err = a.Receive()
	assert.ErrorIs(t, err, ErrPeerLost)

	err = a.Send("b", []byte{1})
	assert.ErrorIs(t, err, ErrPeerLost)
}

func TestLoopbackUnknownPeer(t *testing.T) {
	hub := NewLoopback(0)
	a := hub.Endpoint("a")
	assert.ErrorIs(t, a.Send("nobody", nil), ErrPeerLost)
}
