package systems

import (
	"github.com/automoto/blockshot/components"
	"github.com/automoto/blockshot/rollback"
	"github.com/automoto/blockshot/sim"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// EnsureMatch returns the singleton match status entry, creating it on
// first use.
func EnsureMatch(world donburi.World) *donburi.Entry {
	if entry, ok := components.Match.First(world); ok {
		return entry
	}
	return world.Entry(world.Create(components.Match))
}

// NewMatchStatusSystem refreshes the HUD numbers from the session.
func NewMatchStatusSystem(session func() *rollback.Session[sim.State]) func(*ecs.ECS) {
	return func(e *ecs.ECS) {
		s := session()
		if s == nil {
			return
		}
		m := components.Match.Get(EnsureMatch(e.World))
		m.Frame = uint32(s.Frame())
		m.Confirmed = uint32(s.ConfirmedFrame())

		m.Peers = m.Peers[:0]
		for _, p := range s.Players() {
			if !p.IsRemote() || containsPeer(m.Peers, string(p.Peer)) {
				continue
			}
			st, ok := s.NetworkStats(p.Peer)
			if !ok {
				continue
			}
			m.Peers = append(m.Peers, components.PeerStatus{
				Peer:      string(p.Peer),
				Acked:     uint32(st.Acked),
				Rollbacks: st.Rollbacks,
				Silent:    st.Silent,
			})
		}
	}
}

func containsPeer(peers []components.PeerStatus, id string) bool {
	for _, p := range peers {
		if p.Peer == id {
			return true
		}
	}
	return false
}
