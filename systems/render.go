package systems

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/automoto/blockshot/components"
	cfg "github.com/automoto/blockshot/config"
	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/sim"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// toScreen maps world units to pixels with cam at the center of the
// screen. World Y grows upwards.
func toScreen(cam, p input.Vec2) (float32, float32) {
	x := float64(cfg.C.Width)/2 + (p.X-cam.X)*cfg.C.Scale
	y := float64(cfg.C.Height)/2 - (p.Y-cam.Y)*cfg.C.Scale
	return float32(x), float32(y)
}

func playerColor(handle int) color.RGBA {
	return cfg.PlayerColors.Colors[handle%len(cfg.PlayerColors.Colors)]
}

func DrawArena(e *ecs.ECS, screen *ebiten.Image) {
	screen.Fill(cfg.Arena.Outside)
	cam := cameraPosition(e.World)

	half := float64(sim.MapSize) / 2
	left, top := toScreen(cam, input.Vec2{X: -half, Y: half})
	right, bottom := toScreen(cam, input.Vec2{X: half, Y: -half})
	vector.DrawFilledRect(screen, left, top, right-left, bottom-top, cfg.Arena.Background, false)

	step := float64(cfg.Arena.GridStep)
	for w := -half + step; w < half; w += step {
		x, y := toScreen(cam, input.Vec2{X: w, Y: w})
		vector.StrokeLine(screen, x, top, x, bottom, 1, cfg.Arena.Grid, false)
		vector.StrokeLine(screen, left, y, right, y, 1, cfg.Arena.Grid, false)
	}
	vector.StrokeRect(screen, left, top, right-left, bottom-top, 2, cfg.Arena.Border, false)
}

func DrawAvatars(e *ecs.ECS, screen *ebiten.Image) {
	radius := float32(sim.PlayerRadius * cfg.C.Scale)
	cam := cameraPosition(e.World)

	avatarQuery.Each(e.World, func(entry *donburi.Entry) {
		a := components.Avatar.Get(entry)
		x, y := toScreen(cam, a.Pos)

		if !a.Alive {
			vector.StrokeCircle(screen, x, y, radius, 1, cfg.PlayerColors.Dead, true)
			return
		}

		vector.DrawFilledCircle(screen, x, y, radius, playerColor(a.Handle), true)
		if a.Local {
			vector.StrokeCircle(screen, x, y, radius+2, 2, cfg.PlayerColors.Local, true)
		}

		// facing, dimmed while the weapon reloads
		tip := input.Vec2{X: a.Pos.X + a.Dir.X*sim.PlayerRadius, Y: a.Pos.Y + a.Dir.Y*sim.PlayerRadius}
		tx, ty := toScreen(cam, tip)
		clr := cfg.White
		if !a.Ready {
			clr = cfg.PlayerColors.Dead
		}
		vector.StrokeLine(screen, x, y, tx, ty, 2, clr, true)
	})
}

func DrawProjectiles(e *ecs.ECS, screen *ebiten.Image) {
	// bullets are too small to see at true scale
	radius := float32(max(sim.BulletRadius*cfg.C.Scale, 2))
	cam := cameraPosition(e.World)

	projectileQuery.Each(e.World, func(entry *donburi.Entry) {
		p := components.Projectile.Get(entry)
		x, y := toScreen(cam, p.Pos)
		vector.DrawFilledCircle(screen, x, y, radius, playerColor(p.Owner), true)
	})
}

func DrawHUD(e *ecs.ECS, screen *ebiten.Image) {
	entry, ok := components.Match.First(e.World)
	if !ok {
		return
	}
	m := components.Match.Get(entry)

	var b strings.Builder
	fmt.Fprintf(&b, "frame %d  confirmed %d  stalls %d  desyncs %d  fps %.0f\n",
		m.Frame, m.Confirmed, m.Stalls, m.Desyncs, ebiten.ActualFPS())
	for _, p := range m.Peers {
		fmt.Fprintf(&b, "%.8s  acked %d  rollbacks %d  silent %d\n", p.Peer, p.Acked, p.Rollbacks, p.Silent)
	}
	if m.Message != "" {
		b.WriteString(m.Message)
	}
	ebitenutil.DebugPrintAt(screen, b.String(), 4, 4)
}
