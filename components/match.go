package components

import (
	"github.com/yohamta/donburi"
)

// PeerStatus is the HUD line of one remote peer.
type PeerStatus struct {
	Peer      string
	Acked     uint32
	Rollbacks int
	Silent    int // ticks since the last packet
}

// MatchData stores what the HUD shows about the running session.
// This is a singleton component - only one match exists at a time.
type MatchData struct {
	Frame     uint32
	Confirmed uint32
	Stalls    int // ticks skipped on the prediction threshold
	Desyncs   int
	Peers     []PeerStatus
	Message   string // last notable event
	Ended     bool
}

var Match = donburi.NewComponentType[MatchData]()
