package core

import (
	"fmt"
	"sync"

	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/shared/messages"
	"github.com/automoto/blockshot/shared/netconfig"
	"github.com/sirupsen/logrus"
)

// Conn is the server's handle on one connected client.
type Conn interface {
	Send(msg any) error
}

type member struct {
	id   string
	conn Conn
	seat int
}

type room struct {
	name    string
	gen     int
	next    int
	members []*member
	locked  bool
}

func (r *room) key() string {
	return fmt.Sprintf("%s#%d", r.name, r.gen)
}

func (r *room) info() RoomInfo {
	state := RoomWaiting
	if r.locked {
		state = RoomPlaying
	}
	return RoomInfo{
		Name:       r.name,
		Generation: r.gen,
		Players:    len(r.members),
		Next:       r.next,
		State:      state,
	}
}

// freeSeat returns the lowest seat nobody holds.
func (r *room) freeSeat() int {
	for seat := 0; ; seat++ {
		taken := false
		for _, m := range r.members {
			if m.seat == seat {
				taken = true
				break
			}
		}
		if !taken {
			return seat
		}
	}
}

type outgoing struct {
	conn Conn
	msg  any
}

// Hub seats clients into rooms and relays payloads between members of the
// same room. A room locks once it holds Next members; the next client asking
// for the same name gets a fresh generation of it.
//
// Messages are collected under the lock and written after it is released so a
// slow client never stalls the others.
type Hub struct {
	mu sync.Mutex

	version  string
	open     map[string]*room // joinable generation per room name
	gens     map[string]int
	rooms    map[string]*room // by peer id
	members  map[string]*member
	registry *Registry

	log *logrus.Entry
}

// NewHub returns an empty hub. An empty version accepts any client.
func NewHub(version string, registry *Registry) *Hub {
	return &Hub{
		version:  version,
		open:     make(map[string]*room),
		gens:     make(map[string]int),
		rooms:    make(map[string]*room),
		members:  make(map[string]*member),
		registry: registry,
		log:      logger.Component("hub"),
	}
}

// Join seats the client id in the requested room and introduces it to the
// members already there.
func (h *Hub) Join(id string, conn Conn, req messages.JoinRoom) {
	h.dispatch(h.join(id, conn, req))
}

func (h *Hub) join(id string, conn Conn, req messages.JoinRoom) []outgoing {
	h.mu.Lock()
	defer h.mu.Unlock()

	reject := func(format string, args ...any) []outgoing {
		reason := fmt.Sprintf(format, args...)
		h.log.WithFields(logrus.Fields{
			"peer":   id,
			"room":   req.Room,
			"reason": reason,
		}).Warn("join rejected")
		return []outgoing{{conn, messages.JoinRejected{Reason: reason}}}
	}

	switch {
	case h.version != "" && req.Version != h.version:
		return reject("version mismatch: server %s, client %s", h.version, req.Version)
	case req.Room == "":
		return reject("missing room name")
	case req.Next < 2 || req.Next > netconfig.MaxPlayers:
		return reject("room size %d out of range [2, %d]", req.Next, netconfig.MaxPlayers)
	}
	if _, ok := h.members[id]; ok {
		return reject("already seated")
	}

	r := h.open[req.Room]
	if r != nil && r.next != req.Next {
		return reject("room %q waits for %d players, not %d", req.Room, r.next, req.Next)
	}
	if r == nil {
		h.gens[req.Room]++
		r = &room{name: req.Room, gen: h.gens[req.Room], next: req.Next}
		h.open[req.Room] = r
	}

	m := &member{id: id, conn: conn, seat: r.freeSeat()}
	out := []outgoing{{conn, messages.Welcome{Self: id, Room: req.Room, Seat: m.seat, Next: r.next}}}
	for _, other := range r.members {
		out = append(out,
			outgoing{conn, messages.PeerJoined{Peer: other.id, Seat: other.seat}},
			outgoing{other.conn, messages.PeerJoined{Peer: id, Seat: m.seat}},
		)
	}
	r.members = append(r.members, m)
	h.rooms[id] = r
	h.members[id] = m

	if len(r.members) == r.next {
		r.locked = true
		delete(h.open, r.name)
	}

	h.log.WithFields(logrus.Fields{
		"peer":    id,
		"room":    r.key(),
		"seat":    m.seat,
		"players": len(r.members),
		"locked":  r.locked,
	}).Info("peer joined room")

	if h.registry != nil {
		h.registry.Update(r.key(), r.info())
	}
	return out
}

// Leave removes id from its room and tells the remaining members. Unknown
// ids are ignored.
func (h *Hub) Leave(id string) {
	h.dispatch(h.leave(id))
}

func (h *Hub) leave(id string) []outgoing {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[id]
	if !ok {
		return nil
	}
	delete(h.rooms, id)
	delete(h.members, id)

	var out []outgoing
	kept := r.members[:0]
	for _, m := range r.members {
		if m.id == id {
			continue
		}
		kept = append(kept, m)
		out = append(out, outgoing{m.conn, messages.PeerLeft{Peer: id}})
	}
	r.members = kept

	h.log.WithFields(logrus.Fields{
		"peer":    id,
		"room":    r.key(),
		"players": len(r.members),
	}).Info("peer left room")

	if len(r.members) == 0 {
		if h.open[r.name] == r {
			delete(h.open, r.name)
		}
		if h.registry != nil {
			h.registry.End(r.key())
		}
		return out
	}
	if h.registry != nil {
		h.registry.Update(r.key(), r.info())
	}
	return out
}

// Relay forwards a payload from id to a member of the same room. Packets for
// anyone else are dropped: the channel is best-effort.
func (h *Hub) Relay(id string, msg messages.Relay) {
	h.dispatch(h.relay(id, msg))
}

func (h *Hub) relay(id string, msg messages.Relay) []outgoing {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[id]
	if !ok {
		return nil
	}
	for _, m := range r.members {
		if m.id == msg.To && m.id != id {
			return []outgoing{{m.conn, messages.Relay{From: id, Payload: msg.Payload}}}
		}
	}
	h.log.WithFields(logrus.Fields{
		"from": id,
		"to":   msg.To,
	}).Debug("relay target not in room, dropping")
	return nil
}

// Peers returns the number of seated clients.
func (h *Hub) Peers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.members)
}

func (h *Hub) dispatch(out []outgoing) {
	for _, o := range out {
		if err := o.conn.Send(o.msg); err != nil {
			h.log.WithError(err).Debug("send failed")
		}
	}
}
