package network

import (
	"fmt"
	"sync"

	"github.com/automoto/blockshot/shared/netconfig"
)

// Hotseat is a transport for players sharing one machine. Every seat is
// local, so the session never sends a packet; the channel it hands out is
// a Loopback endpoint with no one else on it.
type Hotseat struct {
	mu      sync.Mutex
	players int
	state   SocketState
	hub     *Loopback
	taken   bool
}

func NewHotseat(players int) *Hotseat {
	return &Hotseat{
		players: players,
		state:   StateDisconnected,
		hub:     NewLoopback(0),
	}
}

// Connect seats every player at once.
func (h *Hotseat) Connect() {
	h.mu.Lock()
	if h.state != StateDisconnected {
		h.mu.Unlock()
		return
	}
	h.state = StateJoined
	h.mu.Unlock()
}

func (h *Hotseat) Close() {
	h.mu.Lock()
	h.state = StateDisconnected
	h.mu.Unlock()
	h.hub.Disconnect("local")
}

func (h *Hotseat) State() SocketState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Hotseat) LastError() error {
	return nil
}

func (h *Hotseat) UpdatePeers() []PeerEvent {
	return nil
}

// Players returns one local seat per player once connected.
func (h *Hotseat) Players() []Player {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateJoined {
		return nil
	}
	out := make([]Player, h.players)
	for i := range out {
		out[i] = Player{Seat: i, Peer: "local", Local: true}
	}
	return out
}

func (h *Hotseat) GetChannel(i int) error {
	if i != netconfig.Channel {
		return fmt.Errorf("%w: %d", ErrChannelIndex, i)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.taken {
		return ErrChannelTaken
	}
	return nil
}

func (h *Hotseat) TakeChannel(i int) (Channel, error) {
	if err := h.GetChannel(i); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateJoined {
		return nil, fmt.Errorf("%w: 0 of %d", ErrNotReady, h.players)
	}
	if h.taken {
		return nil, ErrChannelTaken
	}
	h.taken = true
	return h.hub.Endpoint("local"), nil
}
