package rollback

import "github.com/automoto/blockshot/network"

// Event is a notification drained with Session.Events.
type Event interface {
	isEvent()
}

// EventDesync is raised when a peer reports a different checksum for a
// confirmed frame. The simulations have diverged.
type EventDesync struct {
	Frame  Frame
	Peer   network.PeerID
	Local  uint64
	Remote uint64
}

// EventDisconnected is raised when the session ends because of a peer.
type EventDisconnected struct {
	Peer network.PeerID
	Err  error
}

func (EventDesync) isEvent()       {}
func (EventDisconnected) isEvent() {}

// PeerStats describes the exchange with one remote peer.
type PeerStats struct {
	// Acked is the first local frame the peer has not confirmed yet.
	Acked Frame
	// Received is the first frame of the peer not received yet.
	Received Frame
	// Rollbacks counts the rollbacks caused by this peer's inputs.
	Rollbacks int

	PacketsSent     int
	PacketsReceived int
	// Silent is the number of ticks since the last packet of the peer.
	Silent int
}
