// Package netconfig defines lightweight types shared between the client, the
// rollback core and the signaling server. It must have zero dependencies on
// ebiten or any graphics library so the server binary stays headless.
package netconfig

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Session configuration defaults.
const (
	DefaultPlayers           = 2
	DefaultInputDelay        = 2
	DefaultMaxPrediction     = 8
	DefaultDisconnectTimeout = 300 // ticks, 5s at 60 Hz
	DefaultDesyncInterval    = 10
	DefaultAddress           = "ws://127.0.0.1:3536/blockshot?next=2"

	// MaxPlayers bounds the handle arena. Handles are a single byte on the wire.
	MaxPlayers = 8

	// Channel is the only logical channel a session may use.
	Channel = 0
)

// Session holds the match-wide constants agreed before play starts. It is
// fixed for the session's lifetime once the session starts.
type Session struct {
	Players    int // number of player handles, >= 2
	InputDelay int // ticks of artificial latency on local input

	// MaxPrediction is the rollback window: how many frames the session may
	// run ahead of the last frame confirmed by every peer.
	MaxPrediction int

	// DisconnectTimeout is how many ticks a peer may stay silent before it is
	// treated as lost. Zero disables the timeout.
	DisconnectTimeout int

	// DesyncInterval is how often, in confirmed frames, state checksums are
	// exchanged. Zero disables desync detection.
	DesyncInterval int
}

// DefaultSession returns the configuration used by the blockshot client.
func DefaultSession() Session {
	return Session{
		Players:           DefaultPlayers,
		InputDelay:        DefaultInputDelay,
		MaxPrediction:     DefaultMaxPrediction,
		DisconnectTimeout: DefaultDisconnectTimeout,
		DesyncInterval:    DefaultDesyncInterval,
	}
}

var ErrInvalidSession = errors.New("invalid session configuration")

// Validate reports the first constraint the configuration breaks.
func (s Session) Validate() error {
	switch {
	case s.Players < 2 || s.Players > MaxPlayers:
		return fmt.Errorf("%w: players must be in [2, %d], got %d", ErrInvalidSession, MaxPlayers, s.Players)
	case s.InputDelay < 0:
		return fmt.Errorf("%w: negative input delay %d", ErrInvalidSession, s.InputDelay)
	case s.MaxPrediction < 1:
		return fmt.Errorf("%w: max prediction must be positive, got %d", ErrInvalidSession, s.MaxPrediction)
	case s.DisconnectTimeout < 0:
		return fmt.Errorf("%w: negative disconnect timeout %d", ErrInvalidSession, s.DisconnectTimeout)
	case s.DesyncInterval < 0:
		return fmt.Errorf("%w: negative desync interval %d", ErrInvalidSession, s.DesyncInterval)
	}
	return nil
}

// Address is a parsed discovery address: ws://host:port/<room>?next=N.
type Address struct {
	Scheme string
	Host   string
	Room   string
	Next   int // peers required before the room is handed out
}

var ErrInvalidAddress = errors.New("invalid discovery address")

// ParseAddress parses a discovery address. The room defaults to "lobby" and
// next defaults to DefaultPlayers.
func ParseAddress(raw string) (Address, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return Address{}, fmt.Errorf("%w: scheme %q, want ws or wss", ErrInvalidAddress, u.Scheme)
	}
	if u.Host == "" {
		return Address{}, fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}

	addr := Address{
		Scheme: u.Scheme,
		Host:   u.Host,
		Room:   strings.Trim(u.Path, "/"),
		Next:   DefaultPlayers,
	}
	if addr.Room == "" {
		addr.Room = "lobby"
	}
	if strings.Contains(addr.Room, "/") {
		return Address{}, fmt.Errorf("%w: nested room path %q", ErrInvalidAddress, addr.Room)
	}

	if next := u.Query().Get("next"); next != "" {
		n, err := strconv.Atoi(next)
		if err != nil || n < 2 || n > MaxPlayers {
			return Address{}, fmt.Errorf("%w: next=%q", ErrInvalidAddress, next)
		}
		addr.Next = n
	}
	return addr, nil
}

// Endpoint is the websocket URL dialled by the transport.
func (a Address) Endpoint() string {
	return a.Scheme + "://" + a.Host
}

func (a Address) String() string {
	return fmt.Sprintf("%s://%s/%s?next=%d", a.Scheme, a.Host, a.Room, a.Next)
}
