package rollback

import (
	"fmt"

	"github.com/automoto/blockshot/network"
	"github.com/automoto/blockshot/shared/netconfig"
)

// Builder collects the players of a match before the session starts.
// Registration either fully succeeds or leaves the builder untouched.
type Builder[S any] struct {
	cfg        netconfig.Session
	players    []Player
	registered []bool
}

func NewBuilder[S any](cfg netconfig.Session) *Builder[S] {
	n := cfg.Players
	if n < 0 {
		n = 0
	}
	return &Builder[S]{
		cfg:        cfg,
		players:    make([]Player, n),
		registered: make([]bool, n),
	}
}

// AddPlayer registers p as handle h. On error the builder is returned
// unchanged together with a *RegistrationError.
func (b *Builder[S]) AddPlayer(p Player, h PlayerHandle) (*Builder[S], error) {
	fail := func(err error) (*Builder[S], error) {
		return b, &RegistrationError{Peer: p.Peer, Handle: h, Err: err}
	}

	if !p.IsLocal() && !p.IsRemote() {
		return fail(ErrInvalidPlayer)
	}
	if int(h) >= len(b.players) {
		return fail(fmt.Errorf("%w: %d players", ErrHandleRange, len(b.players)))
	}
	if b.registered[h] {
		return fail(ErrHandleTaken)
	}
	if p.IsRemote() {
		for i, other := range b.players {
			if b.registered[i] && other.IsRemote() && other.Peer == p.Peer {
				return fail(fmt.Errorf("%w: handle %d", ErrPeerTaken, i))
			}
		}
	}

	b.players[h] = p
	b.registered[h] = true
	return b, nil
}

// Validate reports whether Start would accept the registered players and the
// configuration. It lets callers check before giving up a channel.
func (b *Builder[S]) Validate() error {
	if err := b.cfg.Validate(); err != nil {
		return err
	}
	hasLocal := false
	for h, ok := range b.registered {
		if !ok {
			return &RegistrationError{Handle: PlayerHandle(h), Err: ErrMissingPlayer}
		}
		if b.players[h].IsLocal() {
			hasLocal = true
		}
	}
	if !hasLocal {
		return ErrNoLocalPlayers
	}
	return nil
}

// Start creates the session. The channel is owned by the session from then
// on.
func (b *Builder[S]) Start(ch network.Channel, sim Simulation[S]) (*Session[S], error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrNoChannel
	}
	if sim == nil {
		return nil, fmt.Errorf("start session: nil simulation")
	}
	return newSession(b.cfg, append([]Player(nil), b.players...), ch, sim), nil
}
