package network

import (
	"errors"
	"fmt"
)

// PeerID identifies a remote process as seen by the signaling server. It is
// unique per connected process and stable for the session's lifetime.
type PeerID string

// Player is one seat of a room. Seats are assigned by the server in join
// order, so every member of a room agrees on them.
type Player struct {
	Seat  int
	Peer  PeerID
	Local bool
}

// Packet is a payload received from a peer.
type Packet struct {
	From    PeerID
	Payload []byte
}

// Channel is a best-effort, peer-to-peer message channel. Neither call
// blocks: Receive drains whatever arrived since the previous call.
//
// Receive may return packets together with an error; the packets are valid
// and should be processed before the error.
type Channel interface {
	Send(to PeerID, payload []byte) error
	Receive() ([]Packet, error)
}

var (
	// ErrUnreachable wraps failures to reach the discovery endpoint. The caller
	// may retry on a later tick.
	ErrUnreachable = errors.New("discovery endpoint unreachable")

	// ErrRejected means the server refused to seat this client. Retrying
	// the same request cannot succeed.
	ErrRejected = errors.New("join rejected")

	// ErrChannelTaken is returned when a channel is requested twice.
	ErrChannelTaken = errors.New("channel already taken")

	// ErrChannelIndex is returned for any channel other than 0.
	ErrChannelIndex = errors.New("unknown channel index")

	// ErrNotReady means fewer peers than required are present. It is a
	// condition to wait on, not a failure.
	ErrNotReady = errors.New("not enough peers")

	// ErrPeerLost matches every *PeerLostError.
	ErrPeerLost = errors.New("peer lost")

	// ErrServerClosed is the reason attached to peers lost because the
	// signaling connection itself went away.
	ErrServerClosed = errors.New("signaling connection closed")
)

// PeerLostError reports a peer that left or stopped responding.
type PeerLostError struct {
	Peer   PeerID
	Reason error
}

func (e *PeerLostError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("peer %s lost: %v", e.Peer, e.Reason)
	}
	return fmt.Sprintf("peer %s lost", e.Peer)
}

func (e *PeerLostError) Is(target error) bool { return target == ErrPeerLost }

func (e *PeerLostError) Unwrap() error { return e.Reason }
