// Package matchmaking waits for the room to fill up and starts the rollback
// session once every seat is taken.
package matchmaking

import (
	"errors"
	"fmt"

	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/network"
	"github.com/automoto/blockshot/rollback"
	"github.com/automoto/blockshot/shared/netconfig"
	"github.com/sirupsen/logrus"
)

type State int

const (
	Loading State = iota
	Discovering
	WaitingForPeers
	ReadyToStart
	InGame
	Ended
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Discovering:
		return "discovering"
	case WaitingForPeers:
		return "waiting for peers"
	case ReadyToStart:
		return "ready to start"
	case InGame:
		return "in game"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// Transport is the part of network.Socket the machine drives. Hotseat
// implements it for matches without a server.
type Transport interface {
	Connect()
	Close()
	State() network.SocketState
	LastError() error
	UpdatePeers() []network.PeerEvent
	Players() []network.Player
	GetChannel(i int) error
	TakeChannel(i int) (network.Channel, error)
}

var (
	_ Transport = (*network.Socket)(nil)
	_ Transport = (*network.Hotseat)(nil)
)

// Machine is polled once per tick by the client until the match starts.
type Machine[S any] struct {
	state     State
	transport Transport
	cfg       netconfig.Session
	newSim    func(players int) rollback.Simulation[S]

	session *rollback.Session[S]
	sim     rollback.Simulation[S]
	err     error

	// OnStart is called once, right after the session was created.
	OnStart func(session *rollback.Session[S], sim rollback.Simulation[S])

	lastTransportErr error
	log              *logrus.Entry
}

// New returns a machine in the Loading state. newSim builds a fresh
// simulation for the given player count when the match starts.
func New[S any](t Transport, cfg netconfig.Session, newSim func(players int) rollback.Simulation[S]) *Machine[S] {
	return &Machine[S]{
		state:     Loading,
		transport: t,
		cfg:       cfg,
		newSim:    newSim,
		log:       logger.Component("matchmaking"),
	}
}

func (m *Machine[S]) State() State {
	return m.state
}

// Session returns the running session, nil before InGame.
func (m *Machine[S]) Session() *rollback.Session[S] {
	return m.session
}

func (m *Machine[S]) Simulation() rollback.Simulation[S] {
	return m.sim
}

// Err returns why the match ended, if it ended abnormally.
func (m *Machine[S]) Err() error {
	return m.err
}

// Loaded signals that assets are ready.
func (m *Machine[S]) Loaded() {
	if m.state == Loading {
		m.setState(Discovering)
	}
}

// Tick advances the machine. It never blocks.
func (m *Machine[S]) Tick() {
	switch m.state {
	case Discovering:
		m.transport.Connect()
		m.setState(WaitingForPeers)
	case WaitingForPeers:
		m.waitForPlayers()
	}
}

// End tears the match down and closes the transport. err is the reason, nil
// when the player left on purpose.
func (m *Machine[S]) End(err error) {
	if m.state == Ended {
		return
	}
	if m.session != nil {
		m.session.Close()
	}
	m.transport.Close()
	m.err = err

	entry := m.log
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("match ended")
	m.setState(Ended)
}

func (m *Machine[S]) waitForPlayers() {
	if err := m.transport.GetChannel(netconfig.Channel); errors.Is(err, network.ErrChannelTaken) {
		// already running
		return
	}

	if m.transport.State() == network.StateError {
		if err := m.transport.LastError(); errors.Is(err, network.ErrRejected) {
			m.End(err)
			return
		}
		if err := m.transport.LastError(); err != m.lastTransportErr {
			m.lastTransportErr = err
			m.log.WithError(err).Warn("signaling server unavailable, retrying")
		}
		m.transport.Connect()
		return
	}

	for _, ev := range m.transport.UpdatePeers() {
		m.log.WithFields(logrus.Fields{
			"peer":   ev.Peer,
			"seat":   ev.Seat,
			"joined": ev.Joined,
		}).Info("peer update")
	}

	players := m.transport.Players()
	if len(players) < m.cfg.Players {
		return
	}

	m.setState(ReadyToStart)
	if err := m.start(players); err != nil {
		m.log.WithError(err).Warn("could not start session")
		m.setState(WaitingForPeers)
		return
	}
	m.setState(InGame)
	if m.OnStart != nil {
		m.OnStart(m.session, m.sim)
	}
}

var errNoSimulation = errors.New("no simulation to run")

// start builds the session. Nothing is kept on failure and the channel is
// only taken once every player is registered.
func (m *Machine[S]) start(players []network.Player) error {
	b := rollback.NewBuilder[S](m.cfg)
	for _, p := range players {
		player := rollback.Remote(p.Peer)
		if p.Local {
			player = rollback.Local()
		}
		if p.Seat < 0 || p.Seat >= netconfig.MaxPlayers {
			return &rollback.RegistrationError{Peer: p.Peer, Err: rollback.ErrHandleRange}
		}
		if _, err := b.AddPlayer(player, rollback.PlayerHandle(p.Seat)); err != nil {
			return fmt.Errorf("register players: %w", err)
		}
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("register players: %w", err)
	}

	sim := m.newSim(m.cfg.Players)
	if sim == nil {
		return errNoSimulation
	}

	// Nothing after this point may fail: the channel can be taken once.
	ch, err := m.transport.TakeChannel(netconfig.Channel)
	if err != nil {
		return fmt.Errorf("take channel: %w", err)
	}

	session, err := b.Start(ch, sim)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	m.session = session
	m.sim = sim
	return nil
}

func (m *Machine[S]) setState(s State) {
	if s == m.state {
		return
	}
	m.log.WithFields(logrus.Fields{
		"from": m.state.String(),
		"to":   s.String(),
	}).Debug("state change")
	m.state = s
}
