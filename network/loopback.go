package network

import (
	"errors"
	"sync"
)

var errLeft = errors.New("left the loopback hub")

type delayed struct {
	from      PeerID
	payload   []byte
	deliverAt int
}

// Loopback is an in-memory hub connecting channels inside one process. Tests
// use it to connect sessions; Hotseat hands out one of its endpoints.
//
// Latency is counted in Receive calls of the recipient: a packet sent with
// latency n is returned by the recipient's (n+1)th Receive after the send.
type Loopback struct {
	mu        sync.Mutex
	latency   int
	endpoints map[PeerID]*loopbackEndpoint
	blocked   map[[2]PeerID]bool
}

type loopbackEndpoint struct {
	hub   *Loopback
	id    PeerID
	ticks int
	queue []delayed
	lost  []PeerID
	gone  bool
}

func NewLoopback(latency int) *Loopback {
	return &Loopback{
		latency:   latency,
		endpoints: make(map[PeerID]*loopbackEndpoint),
		blocked:   make(map[[2]PeerID]bool),
	}
}

// Endpoint returns the channel of id, creating it on first use.
func (l *Loopback) Endpoint(id PeerID) Channel {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ep, ok := l.endpoints[id]; ok {
		return ep
	}
	ep := &loopbackEndpoint{hub: l, id: id}
	l.endpoints[id] = ep
	return ep
}

// SetLatency changes the latency applied to packets sent from now on.
func (l *Loopback) SetLatency(n int) {
	l.mu.Lock()
	l.latency = n
	l.mu.Unlock()
}

// Block drops every packet sent from a to b until Unblock is called.
func (l *Loopback) Block(from, to PeerID) {
	l.mu.Lock()
	l.blocked[[2]PeerID{from, to}] = true
	l.mu.Unlock()
}

func (l *Loopback) Unblock(from, to PeerID) {
	l.mu.Lock()
	delete(l.blocked, [2]PeerID{from, to})
	l.mu.Unlock()
}

// Disconnect removes id from the hub. Every other endpoint reports it lost.
func (l *Loopback) Disconnect(id PeerID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ep, ok := l.endpoints[id]
	if !ok || ep.gone {
		return
	}
	ep.gone = true
	ep.queue = nil
	for other, o := range l.endpoints {
		if other != id && !o.gone {
			o.lost = append(o.lost, id)
		}
	}
}

func (e *loopbackEndpoint) Send(to PeerID, payload []byte) error {
	l := e.hub
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.gone {
		return &PeerLostError{Peer: e.id, Reason: errLeft}
	}
	dst, ok := l.endpoints[to]
	if !ok || dst.gone {
		return &PeerLostError{Peer: to, Reason: errLeft}
	}
	if l.blocked[[2]PeerID{e.id, to}] {
		return nil
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	dst.queue = append(dst.queue, delayed{
		from:      e.id,
		payload:   cp,
		deliverAt: dst.ticks + l.latency,
	})
	return nil
}

func (e *loopbackEndpoint) Receive() ([]Packet, error) {
	l := e.hub
	l.mu.Lock()
	defer l.mu.Unlock()

	e.ticks++

	var out []Packet
	kept := e.queue[:0]
	for _, d := range e.queue {
		if d.deliverAt < e.ticks {
			out = append(out, Packet{From: d.from, Payload: d.payload})
			continue
		}
		kept = append(kept, d)
	}
	e.queue = kept

	if len(e.lost) > 0 {
		return out, &PeerLostError{Peer: e.lost[0], Reason: errLeft}
	}
	return out, nil
}
