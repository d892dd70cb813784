package network

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/shared/messages"
	"github.com/automoto/blockshot/shared/netconfig"
	"github.com/automoto/blockshot/shared/protocol"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/sirupsen/logrus"
)

type SocketState int

const (
	StateDisconnected SocketState = iota
	StateConnecting
	StateConnected
	StateJoined
	StateError
)

func (s SocketState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateError:
		return "error"
	}
	return "unknown"
}

const (
	inboxSize    = 256
	outboxSize   = 256
	writeTimeout = 2 * time.Second
)

// PeerEvent is a change of room membership reported by UpdatePeers.
type PeerEvent struct {
	Peer   PeerID
	Seat   int
	Joined bool
}

// Socket is the client side of the signaling/relay server: it joins a room,
// tracks the peers seated in it and, once the room is full, hands out a
// single best-effort channel to the rollback session.
//
// Router callbacks run on necs goroutines; they only append to queues
// guarded by mu. Everything else is meant to be called from the tick loop and
// never blocks.
type Socket struct {
	mu sync.RWMutex

	addr      netconfig.Address
	state     SocketState
	lastError error
	conn      *websocket.Conn
	cancel    context.CancelFunc

	self  PeerID
	seat  int
	peers map[PeerID]int // applied by UpdatePeers

	pending []PeerEvent // filled by router callbacks
	inbox   chan Packet
	outbox  chan messages.Relay

	taken *socketChannel

	// write sends one message to the server. Replaced in tests.
	write func(msg any) error
}

// NewSocket parses the discovery address. Nothing is dialled until Connect.
func NewSocket(address string) (*Socket, error) {
	addr, err := netconfig.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	s := &Socket{
		addr:   addr,
		state:  StateDisconnected,
		seat:   -1,
		peers:  make(map[PeerID]int),
		inbox:  make(chan Packet, inboxSize),
		outbox: make(chan messages.Relay, outboxSize),
	}
	s.write = s.writeConn
	return s, nil
}

// Address returns the parsed discovery address.
func (s *Socket) Address() netconfig.Address {
	return s.addr
}

// Connect dials the signaling server in a background goroutine and joins the
// room once connected. A failed dial leaves the socket in StateError with an
// error wrapping ErrUnreachable; calling Connect again retries.
func (s *Socket) Connect() {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected || s.state == StateJoined {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.lastError = nil
	s.mu.Unlock()

	// a connection left over from a failed attempt
	s.dropConn()

	log := logger.Component("socket")
	log.WithField("address", s.addr.String()).Info("connecting to signaling server")

	router.ResetRouter()

	router.OnConnect(func(_ *router.NetworkClient) {
		s.mu.Lock()
		s.state = StateConnected
		s.mu.Unlock()

		err := s.write(messages.JoinRoom{
			Room:    s.addr.Room,
			Next:    s.addr.Next,
			Version: protocol.Version,
		})
		if err != nil {
			s.setError(fmt.Errorf("send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.Welcome) {
		s.onWelcome(msg)
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		s.onJoinRejected(msg)
	})

	router.On(func(_ *router.NetworkClient, msg messages.PeerJoined) {
		s.onPeerJoined(msg)
	})

	router.On(func(_ *router.NetworkClient, msg messages.PeerLeft) {
		s.onPeerLeft(msg)
	})

	router.On(func(_ *router.NetworkClient, msg messages.Relay) {
		s.onRelay(msg)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		log.WithError(err).Info("disconnected from signaling server")
		s.onServerGone()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		log.WithError(err).Warn("router error")
	})

	go func() {
		transport := transports.NewWsClientTransport(s.addr.Endpoint())
		err := transport.Start(func(conn *websocket.Conn) {
			ctx, cancel := context.WithCancel(context.Background())
			s.mu.Lock()
			s.conn = conn
			s.cancel = cancel
			s.mu.Unlock()
			go s.writeLoop(ctx, conn)
		})
		if err != nil {
			s.setError(fmt.Errorf("%w: %v", ErrUnreachable, err))
		}
	}()
}

// Close drops the connection. A taken channel reports every peer lost.
func (s *Socket) Close() {
	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.dropConn()
	s.onServerGone()
	router.ResetRouter()
}

// dropConn closes the current connection and stops its writer.
func (s *Socket) dropConn() {
	s.mu.Lock()
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.CloseNow()
	}
}

func (s *Socket) State() SocketState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Socket) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// UpdatePeers applies the membership changes received since the previous
// call and returns them. Non-blocking.
func (s *Socket) UpdatePeers() []PeerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.pending
	s.pending = nil
	for _, ev := range events {
		if ev.Joined {
			s.peers[ev.Peer] = ev.Seat
		} else {
			delete(s.peers, ev.Peer)
		}
	}
	return events
}

// Players returns every seat of the room, local included, in seat order.
// Empty until the server has welcomed this client.
func (s *Socket) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.seat < 0 {
		return nil
	}
	out := make([]Player, 0, len(s.peers)+1)
	out = append(out, Player{Seat: s.seat, Peer: s.self, Local: true})
	for id, st := range s.peers {
		out = append(out, Player{Seat: st, Peer: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

// GetChannel reports whether channel i can still be taken.
func (s *Socket) GetChannel(i int) error {
	if i != netconfig.Channel {
		return fmt.Errorf("%w: %d", ErrChannelIndex, i)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.taken != nil {
		return ErrChannelTaken
	}
	return nil
}

// TakeChannel hands channel i to the caller. It succeeds exactly once, and
// only after the room holds the required number of players.
func (s *Socket) TakeChannel(i int) (Channel, error) {
	if err := s.GetChannel(i); err != nil {
		return nil, err
	}
	if n := len(s.Players()); n < s.addr.Next {
		return nil, fmt.Errorf("%w: %d of %d", ErrNotReady, n, s.addr.Next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken != nil {
		return nil, ErrChannelTaken
	}
	s.taken = &socketChannel{socket: s}
	return s.taken, nil
}

func (s *Socket) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// the dial returning after a rejection must not hide it
	if s.state == StateError && errors.Is(s.lastError, ErrRejected) {
		return
	}
	s.state = StateError
	s.lastError = err
}

func (s *Socket) onWelcome(msg messages.Welcome) {
	logger.Component("socket").WithFields(logrus.Fields{
		"self": msg.Self,
		"room": msg.Room,
		"seat": msg.Seat,
	}).Info("joined room")

	s.mu.Lock()
	s.self = PeerID(msg.Self)
	s.seat = msg.Seat
	s.state = StateJoined
	s.mu.Unlock()
}

// onJoinRejected is final: the server will refuse the same request again,
// so the connection is dropped and the error wraps ErrRejected.
func (s *Socket) onJoinRejected(msg messages.JoinRejected) {
	logger.Component("socket").WithField("reason", msg.Reason).Warn("join rejected")
	s.setError(fmt.Errorf("%w: %s", ErrRejected, msg.Reason))
	s.dropConn()
}

func (s *Socket) onPeerJoined(msg messages.PeerJoined) {
	s.mu.Lock()
	s.pending = append(s.pending, PeerEvent{Peer: PeerID(msg.Peer), Seat: msg.Seat, Joined: true})
	s.mu.Unlock()
}

func (s *Socket) onPeerLeft(msg messages.PeerLeft) {
	id := PeerID(msg.Peer)
	s.mu.Lock()
	s.pending = append(s.pending, PeerEvent{Peer: id, Seat: -1})
	if s.taken != nil {
		s.taken.markLost(id, nil)
	}
	s.mu.Unlock()
}

func (s *Socket) onServerGone() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateError {
		s.state = StateDisconnected
	}
	if s.taken == nil {
		return
	}
	for id := range s.peers {
		s.taken.markLost(id, ErrServerClosed)
	}
}

// onRelay queues an inbound packet. The channel is unreliable: when the tick
// loop falls behind, packets are dropped rather than blocking the router.
func (s *Socket) onRelay(msg messages.Relay) {
	select {
	case s.inbox <- Packet{From: PeerID(msg.From), Payload: msg.Payload}:
	default:
		logger.Component("socket").WithField("from", msg.From).Debug("inbox full, dropping packet")
	}
}

func (s *Socket) writeConn(msg any) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, payload)
}

// writeLoop moves relayed packets off the tick loop.
func (s *Socket) writeLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.outbox:
			if err := s.write(msg); err != nil {
				logger.Component("socket").WithError(err).Debug("relay write failed")
			}
		}
	}
}

// socketChannel is the channel handed to the rollback session.
type socketChannel struct {
	socket *Socket
	lost   []*PeerLostError // guarded by socket.mu
}

func (c *socketChannel) markLost(id PeerID, reason error) {
	for _, l := range c.lost {
		if l.Peer == id {
			return
		}
	}
	c.lost = append(c.lost, &PeerLostError{Peer: id, Reason: reason})
}

func (c *socketChannel) Send(to PeerID, payload []byte) error {
	s := c.socket
	s.mu.RLock()
	for _, l := range c.lost {
		if l.Peer == to {
			s.mu.RUnlock()
			return l
		}
	}
	s.mu.RUnlock()

	select {
	case s.outbox <- messages.Relay{To: string(to), Payload: payload}:
	default:
		logger.Component("socket").WithField("to", to).Debug("outbox full, dropping packet")
	}
	return nil
}

func (c *socketChannel) Receive() ([]Packet, error) {
	s := c.socket
	out := drainChan(s.inbox)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(c.lost) > 0 {
		return out, c.lost[0]
	}
	return out, nil
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
