package rollback

import (
	"fmt"

	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/network"
)

// Frame is a simulation tick index. Frame 0 is the first simulated frame.
type Frame uint32

// PlayerHandle is a seat of the match. Handles index fixed-size arenas, so a
// handle at or beyond the configured player count is a programming error.
type PlayerHandle uint8

type InputStatus uint8

const (
	Predicted InputStatus = iota
	Confirmed
)

func (s InputStatus) String() string {
	if s == Confirmed {
		return "confirmed"
	}
	return "predicted"
}

// PlayerInput is the symbol used for one player on one frame.
type PlayerInput struct {
	Symbol input.Symbol
	Status InputStatus
}

// Inputs holds one PlayerInput per handle, indexed by handle.
type Inputs []PlayerInput

// Get panics when h is not a handle of the session.
func (in Inputs) Get(h PlayerHandle) PlayerInput {
	if int(h) >= len(in) {
		panic(fmt.Sprintf("rollback: player handle %d out of range [0,%d)", h, len(in)))
	}
	return in[h]
}

// Symbol is shorthand for Get(h).Symbol.
func (in Inputs) Symbol(h PlayerHandle) input.Symbol {
	return in.Get(h).Symbol
}

type playerKind uint8

const (
	kindLocal playerKind = iota + 1
	kindRemote
)

// Player describes who drives a handle.
type Player struct {
	kind playerKind
	Peer network.PeerID
}

// Local is a player whose input is sampled on this machine.
func Local() Player { return Player{kind: kindLocal} }

// Remote is a player whose input arrives from peer.
func Remote(peer network.PeerID) Player { return Player{kind: kindRemote, Peer: peer} }

func (p Player) IsLocal() bool { return p.kind == kindLocal }

func (p Player) IsRemote() bool { return p.kind == kindRemote }

// Simulation is the deterministic game step driven by a Session.
//
// Step must depend only on the current state and the inputs: no wall clock,
// no randomness, no I/O. Save returns a copy sharing no memory with the live
// state and Load must not keep references into the state it is given: the
// session loads the same snapshot more than once. Load followed by Step must
// reproduce the original successor.
type Simulation[S any] interface {
	Step(inputs Inputs)
	Save() S
	Load(state S)
}

// Checksummer is implemented by simulations that take part in desync
// detection.
type Checksummer interface {
	Checksum() uint64
}
