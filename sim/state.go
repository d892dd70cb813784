package sim

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/automoto/blockshot/input"
)

// Player is the rollback-tracked state of one seat.
type Player struct {
	Pos   input.Vec2
	Dir   input.Vec2 // facing, the last non-zero movement direction
	Ready bool       // weapon reloaded, set while fire is released
	Alive bool
	Shots uint32
}

type Bullet struct {
	Owner uint8
	Pos   input.Vec2
	Dir   input.Vec2
}

// State is everything Step mutates. Players are indexed by player handle.
type State struct {
	Frame   uint32
	Players []Player
	Bullets []Bullet
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{Frame: s.Frame}
	if s.Players != nil {
		out.Players = make([]Player, len(s.Players))
		copy(out.Players, s.Players)
	}
	if s.Bullets != nil {
		out.Bullets = make([]Bullet, len(s.Bullets))
		copy(out.Bullets, s.Bullets)
	}
	return out
}

// Checksum hashes every field of the state. Equal states always hash equal.
func (s State) Checksum() uint64 {
	h := fnv.New64a()
	var buf [8]byte

	u32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:4], v)
		h.Write(buf[:4])
	}
	f64 := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	flag := func(b bool) {
		if b {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
		h.Write(buf[:1])
	}

	u32(s.Frame)
	u32(uint32(len(s.Players)))
	for _, p := range s.Players {
		f64(p.Pos.X)
		f64(p.Pos.Y)
		f64(p.Dir.X)
		f64(p.Dir.Y)
		flag(p.Ready)
		flag(p.Alive)
		u32(p.Shots)
	}
	u32(uint32(len(s.Bullets)))
	for _, b := range s.Bullets {
		u32(uint32(b.Owner))
		f64(b.Pos.X)
		f64(b.Pos.Y)
		f64(b.Dir.X)
		f64(b.Dir.Y)
	}
	return h.Sum64()
}

// TotalShots is the number of bullets fired by every player since frame 0.
func (s State) TotalShots() uint32 {
	var n uint32
	for _, p := range s.Players {
		n += p.Shots
	}
	return n
}
