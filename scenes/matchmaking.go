package scenes

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/automoto/blockshot/matchmaking"
	"github.com/automoto/blockshot/sim"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// SceneChanger allows scenes to trigger transitions
type SceneChanger interface {
	ChangeScene(scene interface{})
}

// Machine is the matchmaking state machine driving a blockshot match.
type Machine = matchmaking.Machine[sim.State]

// MatchmakingScene connects to the signaling server and waits until the
// room is full, then hands over to the game scene.
type MatchmakingScene struct {
	sceneChanger SceneChanger
	machine      *Machine
	address      string
	once         sync.Once
}

func NewMatchmakingScene(sc SceneChanger, machine *Machine, address string) *MatchmakingScene {
	return &MatchmakingScene{
		sceneChanger: sc,
		machine:      machine,
		address:      address,
	}
}

func (ms *MatchmakingScene) Update() {
	// nothing to load, the arena is drawn from primitives
	ms.once.Do(ms.machine.Loaded)

	ms.machine.Tick()
	if ms.machine.State() == matchmaking.InGame {
		ms.sceneChanger.ChangeScene(NewGameScene(ms.sceneChanger, ms.machine))
	}
}

func (ms *MatchmakingScene) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)

	msg := fmt.Sprintf("blockshot\n\n%s\n%s", ms.address, ms.machine.State())
	if err := ms.machine.Err(); err != nil {
		msg += "\n\n" + err.Error()
	}
	ebitenutil.DebugPrintAt(screen, msg, 16, 16)
}
