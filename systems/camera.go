package systems

import (
	"math"

	"github.com/automoto/blockshot/components"
	cfg "github.com/automoto/blockshot/config"
	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/sim"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// EnsureCamera returns the singleton camera entry, creating it on first use.
func EnsureCamera(world donburi.World) *donburi.Entry {
	if entry, ok := components.Camera.First(world); ok {
		return entry
	}
	return world.Entry(world.Create(components.Camera))
}

// UpdateCamera follows the first local avatar. It runs after the mirror so
// the target is the current simulation state.
func UpdateCamera(e *ecs.ECS) {
	camera := components.Camera.Get(EnsureCamera(e.World))

	var target *components.AvatarData
	avatarQuery.Each(e.World, func(entry *donburi.Entry) {
		a := components.Avatar.Get(entry)
		if a.Local && (target == nil || a.Handle < target.Handle) {
			target = a
		}
	})
	if target == nil {
		return
	}

	goal := clampToArena(target.Pos)
	if !camera.Placed {
		camera.Position = goal
		camera.Placed = true
		return
	}
	camera.Position.X += (goal.X - camera.Position.X) * cfg.Camera.FollowSmoothing
	camera.Position.Y += (goal.Y - camera.Position.Y) * cfg.Camera.FollowSmoothing
}

// clampToArena keeps the view inside the arena. An axis on which the whole
// arena fits the screen stays centered.
func clampToArena(p input.Vec2) input.Vec2 {
	half := float64(sim.MapSize) / 2
	clamp := func(v float64, screen int) float64 {
		reach := half - float64(screen)/2/cfg.C.Scale
		if reach <= 0 {
			return 0
		}
		return math.Max(-reach, math.Min(reach, v))
	}
	return input.Vec2{X: clamp(p.X, cfg.C.Width), Y: clamp(p.Y, cfg.C.Height)}
}

func cameraPosition(world donburi.World) input.Vec2 {
	if entry, ok := components.Camera.First(world); ok {
		return components.Camera.Get(entry).Position
	}
	return input.Vec2{}
}
