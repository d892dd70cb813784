package components

import (
	"github.com/automoto/blockshot/input"
	"github.com/yohamta/donburi"
)

// AvatarData mirrors one simulated player for drawing. It is rewritten from
// the simulation state every tick and never read back by the simulation.
type AvatarData struct {
	Handle int
	Local  bool
	Pos    input.Vec2
	Dir    input.Vec2
	Alive  bool
	Ready  bool
	Shots  uint32
}

var Avatar = donburi.NewComponentType[AvatarData]()

// ProjectileData mirrors one simulated bullet.
type ProjectileData struct {
	Owner int
	Pos   input.Vec2
}

var Projectile = donburi.NewComponentType[ProjectileData]()
