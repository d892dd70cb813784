// Package input maps sampled control state to the one-byte input symbol
// exchanged between peers, and back to movement and fire intents.
//
// Everything here is pure: the simulation decodes the same symbol during
// normal play and during rollback replay and must get identical results.
package input

import "math"

// Symbol is one player's input for exactly one frame.
type Symbol uint8

// Bit layout on the wire. Bits 5..7 are unused and must be zero.
const (
	Up Symbol = 1 << iota
	Down
	Left
	Right
	Fire

	// Neutral is the symbol of a player pressing nothing.
	Neutral Symbol = 0

	meaningful = Up | Down | Left | Right | Fire
)

// Buttons is a snapshot of the raw control state for one player.
type Buttons struct {
	Up, Down, Left, Right, Fire bool
}

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X, Y float64
}

// Encode packs buttons into a symbol. Conflicting directions are kept as-is;
// decoding is responsible for cancelling them.
func Encode(b Buttons) Symbol {
	var s Symbol
	if b.Up {
		s |= Up
	}
	if b.Down {
		s |= Down
	}
	if b.Left {
		s |= Left
	}
	if b.Right {
		s |= Right
	}
	if b.Fire {
		s |= Fire
	}
	return s
}

// Buttons unpacks a symbol.
func (s Symbol) Buttons() Buttons {
	return Buttons{
		Up:    s&Up != 0,
		Down:  s&Down != 0,
		Left:  s&Left != 0,
		Right: s&Right != 0,
		Fire:  s&Fire != 0,
	}
}

// Valid reports whether only the five meaningful bits are set.
func (s Symbol) Valid() bool {
	return s&^meaningful == 0
}

// Direction returns the normalized movement direction encoded in s, or the
// zero vector when the pressed directions cancel out.
func Direction(s Symbol) Vec2 {
	var dir Vec2
	if s&Up != 0 {
		dir.Y++
	}
	if s&Down != 0 {
		dir.Y--
	}
	if s&Left != 0 {
		dir.X--
	}
	if s&Right != 0 {
		dir.X++
	}
	if dir.X == 0 && dir.Y == 0 {
		return Vec2{}
	}
	l := math.Sqrt(dir.X*dir.X + dir.Y*dir.Y)
	return Vec2{X: dir.X / l, Y: dir.Y / l}
}

// IsFire reports whether the fire bit is set.
func IsFire(s Symbol) bool {
	return s&Fire != 0
}
