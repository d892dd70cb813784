package sim

import (
	"math"

	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/rollback"
	"github.com/solarlune/resolv"
)

const (
	TickRate = 60

	MapSize      = 41
	PlayerSpeed  = 7.0
	BulletSpeed  = 20.0
	PlayerRadius = 0.5
	BulletRadius = 0.025

	// resolv works in integer cells; one map unit is spread over cellScale
	// space units and the space origin sits in the map corner.
	cellScale = 16

	// Broad-phase boxes. A player box covers every bullet centre within the
	// hit distance, with one unit of slack for resolv's inclusive cell bounds.
	playerBox = 2*(PlayerRadius+BulletRadius)*cellScale + 2
	bulletBox = 2

	tagPlayer = "player"
	tagBullet = "bullet"
)

const dt = 1.0 / TickRate

// World runs the blockshot rules. It implements rollback.Simulation and
// rollback.Checksummer.
type World struct {
	state State

	space   *resolv.Space
	players []*resolv.Object
}

var (
	_ rollback.Simulation[State] = (*World)(nil)
	_ rollback.Checksummer       = (*World)(nil)
)

// NewWorld spawns n players. Even handles start on the left facing left, odd
// handles on the right facing right.
func NewWorld(n int) *World {
	w := &World{
		space: resolv.NewSpace(MapSize*cellScale, MapSize*cellScale, cellScale, cellScale),
	}
	w.state.Players = make([]Player, n)
	for i := range w.state.Players {
		p := Player{Ready: true, Alive: true}
		row := float64(i / 2)
		if i%2 == 0 {
			p.Pos = input.Vec2{X: -2, Y: row * 2}
			p.Dir = input.Vec2{X: -1}
		} else {
			p.Pos = input.Vec2{X: 2, Y: row * 2}
			p.Dir = input.Vec2{X: 1}
		}
		w.state.Players[i] = p

		obj := resolv.NewObject(0, 0, playerBox, playerBox, tagPlayer)
		obj.SetShape(resolv.NewRectangle(0, 0, playerBox, playerBox))
		w.space.Add(obj)
		w.players = append(w.players, obj)
	}
	w.syncPlayers()
	return w
}

// State returns the live state. Callers must not modify it.
func (w *World) State() *State {
	return &w.state
}

func (w *World) Save() State {
	return w.state.Clone()
}

func (w *World) Load(s State) {
	w.state = s.Clone()
	w.syncPlayers()
}

func (w *World) Checksum() uint64 {
	return w.state.Checksum()
}

// Step advances the world by one fixed tick.
func (w *World) Step(inputs rollback.Inputs) {
	w.movement(inputs)
	w.reload(inputs)
	w.attack(inputs)
	w.moveBullets()
	w.kill()
	w.despawn()
	w.state.Frame++
}

func (w *World) movement(inputs rollback.Inputs) {
	limit := float64(MapSize)/2 - 0.5
	for i := range w.state.Players {
		p := &w.state.Players[i]
		if !p.Alive {
			continue
		}
		dir := input.Direction(inputs.Symbol(rollback.PlayerHandle(i)))
		if dir == (input.Vec2{}) {
			continue
		}
		p.Dir = dir
		// The conversions round each product so no architecture fuses it
		// with the add into an FMA; peers must agree bit for bit.
		p.Pos.X = clamp(p.Pos.X+float64(dir.X*PlayerSpeed*dt), -limit, limit)
		p.Pos.Y = clamp(p.Pos.Y+float64(dir.Y*PlayerSpeed*dt), -limit, limit)
	}
}

func (w *World) reload(inputs rollback.Inputs) {
	for i := range w.state.Players {
		p := &w.state.Players[i]
		if p.Alive && !input.IsFire(inputs.Symbol(rollback.PlayerHandle(i))) {
			p.Ready = true
		}
	}
}

func (w *World) attack(inputs rollback.Inputs) {
	for i := range w.state.Players {
		p := &w.state.Players[i]
		if !p.Alive || !p.Ready || !input.IsFire(inputs.Symbol(rollback.PlayerHandle(i))) {
			continue
		}
		offset := float64(PlayerRadius + BulletRadius)
		w.state.Bullets = append(w.state.Bullets, Bullet{
			Owner: uint8(i),
			// rounded before the add, see movement
			Pos: input.Vec2{
				X: p.Pos.X + float64(p.Dir.X*offset),
				Y: p.Pos.Y + float64(p.Dir.Y*offset),
			},
			Dir: p.Dir,
		})
		p.Ready = false
		p.Shots++
	}
}

func (w *World) moveBullets() {
	for i := range w.state.Bullets {
		b := &w.state.Bullets[i]
		// rounded before the add, see movement
		b.Pos.X = b.Pos.X + float64(b.Dir.X*BulletSpeed*dt)
		b.Pos.Y = b.Pos.Y + float64(b.Dir.Y*BulletSpeed*dt)
	}
}

// kill removes every player touched by a bullet. resolv narrows the
// candidates, the exact distance decides.
func (w *World) kill() {
	w.syncPlayers()

	hit := make([]bool, len(w.state.Players))
	for _, b := range w.state.Bullets {
		x, y := toSpace(b.Pos)
		obj := resolv.NewObject(x-bulletBox/2, y-bulletBox/2, bulletBox, bulletBox, tagBullet)
		w.space.Add(obj)

		if check := obj.Check(0, 0, tagPlayer); check != nil {
			for _, candidate := range check.ObjectsByTags(tagPlayer) {
				i := w.playerIndex(candidate)
				if i < 0 || !w.state.Players[i].Alive {
					continue
				}
				if distance(w.state.Players[i].Pos, b.Pos) < PlayerRadius+BulletRadius {
					hit[i] = true
				}
			}
		}
		w.space.Remove(obj)
	}

	for i, dead := range hit {
		if dead {
			w.state.Players[i].Alive = false
		}
	}
}

// despawn drops the bullets that left the map.
func (w *World) despawn() {
	edge := float64(MapSize) / 2
	kept := w.state.Bullets[:0]
	for _, b := range w.state.Bullets {
		if math.Abs(b.Pos.X) > edge || math.Abs(b.Pos.Y) > edge {
			continue
		}
		kept = append(kept, b)
	}
	w.state.Bullets = kept
}

func (w *World) syncPlayers() {
	half := float64(playerBox) / 2
	for i, obj := range w.players {
		x, y := toSpace(w.state.Players[i].Pos)
		obj.X = x - half
		obj.Y = y - half
		obj.Update()
	}
}

func (w *World) playerIndex(obj *resolv.Object) int {
	for i, o := range w.players {
		if o == obj {
			return i
		}
	}
	return -1
}

func toSpace(v input.Vec2) (float64, float64) {
	half := float64(MapSize) / 2
	return float64((v.X + half) * cellScale), float64((v.Y + half) * cellScale)
}

func distance(a, b input.Vec2) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	// no FMA, see movement
	return math.Sqrt(float64(dx*dx) + float64(dy*dy))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
