package rollback

import (
	"errors"
	"fmt"

	"github.com/automoto/blockshot/network"
)

var (
	// ErrPredictionThreshold means the session is too far ahead of the slowest
	// remote player. Nothing was simulated; retry on the next tick.
	ErrPredictionThreshold = errors.New("prediction threshold reached")

	// ErrSessionEnded is returned once a peer is lost or the channel fails.
	// The session cannot advance anymore and should be torn down.
	ErrSessionEnded = errors.New("session ended")

	ErrMissingLocalInput = errors.New("missing input for local player")
	ErrNotLocalHandle    = errors.New("handle is not a local player")
	ErrInvalidSymbol     = errors.New("input symbol has reserved bits set")

	ErrHandleRange    = errors.New("player handle out of range")
	ErrHandleTaken    = errors.New("player handle already registered")
	ErrPeerTaken      = errors.New("peer already registered")
	ErrInvalidPlayer  = errors.New("player is neither local nor remote")
	ErrMissingPlayer  = errors.New("player handle not registered")
	ErrNoLocalPlayers = errors.New("session has no local player")
	ErrNoChannel      = errors.New("no channel")

	// ErrClosed is the reason attached to ErrSessionEnded after Close.
	ErrClosed = errors.New("session closed")

	// ErrPeerTimeout is the reason attached to peers that stayed silent for
	// longer than the disconnect timeout.
	ErrPeerTimeout = errors.New("peer timed out")

	// ErrPeerQuit is the reason attached to peers that announced they left.
	ErrPeerQuit = errors.New("peer quit")
)

// RegistrationError reports a player that could not be added to a Builder.
type RegistrationError struct {
	Peer   network.PeerID
	Handle PlayerHandle
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Peer == "" {
		return fmt.Sprintf("register handle %d: %v", e.Handle, e.Err)
	}
	return fmt.Sprintf("register peer %s as handle %d: %v", e.Peer, e.Handle, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

func sessionEnded(cause error) error {
	return fmt.Errorf("%w: %w", ErrSessionEnded, cause)
}
