package scenes

import (
	"errors"
	"fmt"
	"sync"

	"github.com/automoto/blockshot/components"
	cfg "github.com/automoto/blockshot/config"
	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/matchmaking"
	"github.com/automoto/blockshot/rollback"
	"github.com/automoto/blockshot/sim"
	"github.com/automoto/blockshot/systems"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// GameScene advances the rollback session once per tick and draws the
// current simulation state.
type GameScene struct {
	ecs          *ecs.ECS
	sceneChanger SceneChanger
	machine      *Machine
	world        *sim.World
	collector    *input.Collector[rollback.PlayerHandle]
	once         sync.Once
	log          *logrus.Entry
}

func NewGameScene(sc SceneChanger, machine *Machine) *GameScene {
	return &GameScene{
		sceneChanger: sc,
		machine:      machine,
		log:          logger.Component("game"),
	}
}

func (gs *GameScene) Update() {
	gs.once.Do(gs.configure)

	if gs.machine.State() == matchmaking.Ended {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		gs.machine.End(nil)
		gs.setMessage("left the match")
		return
	}

	session := gs.machine.Session()
	local := gs.collector.Collect(session.LocalHandles())

	_, err := session.AdvanceFrame(local)
	m := components.Match.Get(systems.EnsureMatch(gs.ecs.World))
	switch {
	case err == nil:
	case errors.Is(err, rollback.ErrPredictionThreshold):
		m.Stalls++
	case errors.Is(err, rollback.ErrSessionEnded):
		gs.machine.End(err)
		gs.setMessage(fmt.Sprintf("match over: %v", err))
	default:
		gs.log.WithError(err).Error("advance frame failed")
		gs.machine.End(err)
		gs.setMessage(err.Error())
	}

	for _, ev := range session.Events() {
		switch ev := ev.(type) {
		case rollback.EventDesync:
			m.Desyncs++
			m.Message = fmt.Sprintf("desync at frame %d with %.8s", ev.Frame, ev.Peer)
		case rollback.EventDisconnected:
			m.Message = fmt.Sprintf("%.8s disconnected", ev.Peer)
		}
	}

	gs.ecs.Update()
}

func (gs *GameScene) Draw(screen *ebiten.Image) {
	if gs.ecs == nil {
		return
	}
	gs.ecs.Draw(screen)
}

func (gs *GameScene) configure() {
	gs.ecs = ecs.NewECS(donburi.NewWorld())
	systems.EnsureMatch(gs.ecs.World)
	systems.EnsureCamera(gs.ecs.World)

	gs.world = gs.machine.Simulation().(*sim.World)
	session := gs.machine.Session()
	gs.collector = systems.NewInputCollector(session.LocalHandles())

	local := make(map[int]bool)
	for _, h := range session.LocalHandles() {
		local[int(h)] = true
	}

	gs.ecs.AddSystem(systems.NewMirrorSystem(gs.world.State, func(h int) bool { return local[h] }))
	gs.ecs.AddSystem(systems.UpdateCamera)
	gs.ecs.AddSystem(systems.NewMatchStatusSystem(gs.machine.Session))

	gs.ecs.AddRenderer(cfg.LayerDefault, systems.DrawArena)
	gs.ecs.AddRenderer(cfg.LayerDefault, systems.DrawProjectiles)
	gs.ecs.AddRenderer(cfg.LayerDefault, systems.DrawAvatars)
	gs.ecs.AddRenderer(cfg.LayerHUD, systems.DrawHUD)
}

func (gs *GameScene) setMessage(msg string) {
	m := components.Match.Get(systems.EnsureMatch(gs.ecs.World))
	m.Message = msg
	m.Ended = true
}
