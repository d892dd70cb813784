package main

import (
	"flag"
	"image"

	"github.com/automoto/blockshot/config"
	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/matchmaking"
	"github.com/automoto/blockshot/network"
	"github.com/automoto/blockshot/rollback"
	"github.com/automoto/blockshot/scenes"
	"github.com/automoto/blockshot/shared/netconfig"
	"github.com/automoto/blockshot/sim"
	"github.com/automoto/blockshot/systems"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

type Scene interface {
	Update()
	Draw(screen *ebiten.Image)
}

type Game struct {
	bounds image.Rectangle
	scene  Scene
}

// ChangeScene switches to a new scene
func (g *Game) ChangeScene(scene interface{}) {
	g.scene = scene.(Scene)
}

func NewGame(machine *scenes.Machine, address string) *Game {
	g := &Game{}
	g.scene = scenes.NewMatchmakingScene(g, machine, address)
	return g
}

func (g *Game) Update() error {
	g.scene.Update()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)
}

func (g *Game) Layout(width, height int) (int, int) {
	g.bounds = image.Rect(0, 0, config.C.Width, config.C.Height)
	return config.C.Width, config.C.Height
}

func main() {
	logger.Init()
	log := logger.Component("main")

	// Initialize persistence and load saved settings
	_ = systems.InitPersistence()
	saved, _ := systems.LoadSettings()

	defaults := netconfig.DefaultSession()
	address := netconfig.DefaultAddress
	if saved != nil {
		if saved.Address != "" {
			address = saved.Address
		}
		if saved.InputDelay > 0 {
			defaults.InputDelay = saved.InputDelay
		}
	}

	room := flag.String("room", address, "Discovery address ws://host:port/<room>?next=N")
	players := flag.Int("players", 0, "Players in the match, overrides next in the address")
	delay := flag.Int("delay", defaults.InputDelay, "Input delay in frames")
	hotseat := flag.Bool("hotseat", false, "Play every seat on this machine, no server needed")
	flag.Parse()

	addr, err := netconfig.ParseAddress(*room)
	if err != nil {
		log.WithError(err).Fatal("bad discovery address")
	}
	if *players > 0 {
		addr.Next = *players
	}

	var transport matchmaking.Transport
	where := "hot-seat"
	if *hotseat {
		transport = network.NewHotseat(addr.Next)
	} else {
		socket, err := network.NewSocket(addr.String())
		if err != nil {
			log.WithError(err).Fatal("bad discovery address")
		}
		transport = socket
		where = socket.Address().String()
	}

	cfg := defaults
	cfg.InputDelay = *delay
	cfg.Players = addr.Next
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("bad session configuration")
	}

	if err := systems.SaveSettings(&systems.SavedSettings{Address: *room, InputDelay: *delay}); err != nil {
		log.WithError(err).Debug("settings not saved")
	}

	machine := matchmaking.New(transport, cfg, func(n int) rollback.Simulation[sim.State] {
		return sim.NewWorld(n)
	})

	ebiten.SetWindowSize(config.C.Width, config.C.Height)
	ebiten.SetWindowTitle(config.C.Title)
	ebiten.SetTPS(sim.TickRate)

	log.WithFields(logrus.Fields{
		"address":     where,
		"players":     cfg.Players,
		"input_delay": cfg.InputDelay,
	}).Info("starting blockshot")

	game := NewGame(machine, where)
	err = ebiten.RunGame(game)
	machine.End(nil)
	if err != nil {
		log.WithError(err).Fatal("game stopped")
	}
}
