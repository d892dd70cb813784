package rollback

import (
	"errors"
	"fmt"
	"sort"

	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/network"
	"github.com/automoto/blockshot/shared/netconfig"
	"github.com/sirupsen/logrus"
)

// checksumHistory is the number of desync intervals a checksum is kept while
// waiting for the peer's value.
const checksumHistory = 4

type peer struct {
	id      network.PeerID
	handles []PlayerHandle

	acked     Frame // first local frame the peer is missing
	lastHeard int   // tick of the last packet

	sums       map[Frame]uint64 // remote checksums awaiting ours
	checked    Frame
	hasChecked bool

	stats PeerStats
}

// Session is a running peer-to-peer match. It owns the channel, the input
// queues and the snapshot ring, and drives the simulation: every call to
// AdvanceFrame simulates exactly one new frame, replaying older frames first
// when a remote input turned out to differ from its prediction.
//
// A Session is not safe for concurrent use; it is meant to be driven from the
// tick loop.
type Session[S any] struct {
	cfg     netconfig.Session
	players []Player
	local   []PlayerHandle
	channel network.Channel
	sim     Simulation[S]

	queues    []*inputQueue
	snapshots *snapshotRing[S]

	peers     map[network.PeerID]*peer
	peerOrder []network.PeerID

	frame     Frame // next frame to simulate
	localNext Frame // next frame to receive local input
	tick      int

	incorrect    Frame
	hasIncorrect bool

	localSums map[Frame]uint64
	lastSum   Frame
	lastValue uint64
	hasSum    bool

	events []Event
	ended  error
	closed bool

	log *logrus.Entry
}

func newSession[S any](cfg netconfig.Session, players []Player, ch network.Channel, sim Simulation[S]) *Session[S] {
	queueSize := ringSize(2*cfg.MaxPrediction + 3*cfg.InputDelay + 4)

	s := &Session[S]{
		cfg:       cfg,
		players:   players,
		channel:   ch,
		sim:       sim,
		queues:    make([]*inputQueue, len(players)),
		snapshots: newSnapshotRing[S](cfg.MaxPrediction + 2),
		peers:     make(map[network.PeerID]*peer),
		localSums: make(map[Frame]uint64),
		log:       logger.Component("rollback"),
	}

	for h, p := range players {
		s.queues[h] = newInputQueue(queueSize)
		if p.IsLocal() {
			s.local = append(s.local, PlayerHandle(h))
			continue
		}
		pr, ok := s.peers[p.Peer]
		if !ok {
			pr = &peer{id: p.Peer, sums: make(map[Frame]uint64)}
			s.peers[p.Peer] = pr
			s.peerOrder = append(s.peerOrder, p.Peer)
		}
		pr.handles = append(pr.handles, PlayerHandle(h))
	}

	// Local input is scheduled InputDelay frames ahead, the first frames run
	// with neutral input.
	for f := 0; f < cfg.InputDelay; f++ {
		for _, h := range s.local {
			s.queues[h].confirm(input.Neutral)
		}
	}
	s.localNext = Frame(cfg.InputDelay)

	s.log.WithFields(logrus.Fields{
		"players":        len(players),
		"local":          len(s.local),
		"input_delay":    cfg.InputDelay,
		"max_prediction": cfg.MaxPrediction,
	}).Info("session started")
	return s
}

// AdvanceFrame submits the local inputs for this tick and simulates one
// frame. It returns the inputs the frame was simulated with.
//
// Local inputs must hold exactly one symbol per local handle. They are
// scheduled InputDelay frames ahead. ErrPredictionThreshold means nothing was
// simulated and the inputs were discarded; it clears once the remote players
// catch up. Any error wrapping ErrSessionEnded is final.
func (s *Session[S]) AdvanceFrame(local map[PlayerHandle]input.Symbol) (Inputs, error) {
	if s.ended != nil {
		return nil, s.ended
	}
	if err := s.checkLocal(local); err != nil {
		return nil, err
	}

	s.tick++
	s.poll()
	if s.ended != nil {
		return nil, s.ended
	}

	if s.frame >= s.minConfirmed()+Frame(s.cfg.MaxPrediction) {
		s.sendInputs()
		if s.ended != nil {
			return nil, s.ended
		}
		return nil, ErrPredictionThreshold
	}

	if err := s.rollback(); err != nil {
		s.end(err)
		return nil, s.ended
	}

	for _, h := range s.local {
		s.queues[h].confirm(local[h])
	}
	s.localNext++

	inputs := s.resolve(s.frame)
	s.saveSnapshot(s.frame)
	s.checkDesync()

	s.sendInputs()
	if s.ended != nil {
		return nil, s.ended
	}

	s.sim.Step(inputs)
	s.frame++
	return inputs, nil
}

// Frame returns the next frame to be simulated, which is also the number of
// frames simulated so far.
func (s *Session[S]) Frame() Frame {
	return s.frame
}

// ConfirmedFrame returns the first frame missing an input. Every earlier
// frame is final and will never be rolled back.
func (s *Session[S]) ConfirmedFrame() Frame {
	return s.minConfirmed()
}

func (s *Session[S]) LocalHandles() []PlayerHandle {
	return append([]PlayerHandle(nil), s.local...)
}

// Players returns the player of every handle.
func (s *Session[S]) Players() []Player {
	return append([]Player(nil), s.players...)
}

// Events drains the events raised since the previous call.
func (s *Session[S]) Events() []Event {
	ev := s.events
	s.events = nil
	return ev
}

func (s *Session[S]) NetworkStats(id network.PeerID) (PeerStats, bool) {
	pr, ok := s.peers[id]
	if !ok {
		return PeerStats{}, false
	}
	st := pr.stats
	st.Acked = pr.acked
	st.Received = s.received(pr)
	st.Silent = s.tick - pr.lastHeard
	return st, true
}

// Err returns the reason the session ended, nil while it runs.
func (s *Session[S]) Err() error {
	return s.ended
}

// Close tells the peers this player left and drops the saved states. It must
// not be called during AdvanceFrame.
func (s *Session[S]) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.ended == nil {
		for _, id := range s.peerOrder {
			payload, err := encodeQuit()
			if err != nil {
				break
			}
			_ = s.channel.Send(id, payload)
		}
		s.ended = sessionEnded(ErrClosed)
	}
	s.snapshots.reset()
	s.log.Info("session closed")
}

func (s *Session[S]) checkLocal(local map[PlayerHandle]input.Symbol) error {
	for h, sym := range local {
		if int(h) >= len(s.players) || !s.players[h].IsLocal() {
			return fmt.Errorf("%w: %d", ErrNotLocalHandle, h)
		}
		if !sym.Valid() {
			return fmt.Errorf("%w: handle %d: %#02x", ErrInvalidSymbol, h, uint8(sym))
		}
	}
	for _, h := range s.local {
		if _, ok := local[h]; !ok {
			return fmt.Errorf("%w: %d", ErrMissingLocalInput, h)
		}
	}
	return nil
}

func (s *Session[S]) minConfirmed() Frame {
	low := s.queues[0].next
	for _, q := range s.queues[1:] {
		if q.next < low {
			low = q.next
		}
	}
	return low
}

// received returns the first frame of pr not received yet.
func (s *Session[S]) received(pr *peer) Frame {
	low := s.queues[pr.handles[0]].next
	for _, h := range pr.handles[1:] {
		if n := s.queues[h].next; n < low {
			low = n
		}
	}
	return low
}

func (s *Session[S]) resolve(f Frame) Inputs {
	inputs := make(Inputs, len(s.queues))
	for h, q := range s.queues {
		inputs[h] = q.resolve(f)
	}
	return inputs
}

func (s *Session[S]) saveSnapshot(f Frame) {
	state := s.sim.Save()
	var sum uint64
	cs, ok := s.sim.(Checksummer)
	if ok {
		sum = cs.Checksum()
	}
	s.snapshots.save(f, state, sum, ok)
}

func (s *Session[S]) markIncorrect(f Frame) {
	if !s.hasIncorrect || f < s.incorrect {
		s.incorrect = f
		s.hasIncorrect = true
	}
}

// rollback restores the first mispredicted frame and replays up to the
// current frame with the corrected inputs.
func (s *Session[S]) rollback() error {
	if !s.hasIncorrect {
		return nil
	}
	from := s.incorrect
	s.hasIncorrect = false
	if from >= s.frame {
		return nil
	}

	snap, ok := s.snapshots.get(from)
	if !ok {
		return fmt.Errorf("no snapshot for frame %d (current %d)", from, s.frame)
	}
	s.sim.Load(snap.state)
	for f := from; f < s.frame; f++ {
		if f > from {
			s.saveSnapshot(f)
		}
		s.sim.Step(s.resolve(f))
	}

	s.log.WithFields(logrus.Fields{
		"from":   from,
		"frames": s.frame - from,
	}).Debug("rolled back")
	return nil
}

// checkDesync records the checksum of the newest confirmed frame on a desync
// interval and compares it with what the peers reported.
func (s *Session[S]) checkDesync() {
	if s.cfg.DesyncInterval <= 0 {
		return
	}
	interval := Frame(s.cfg.DesyncInterval)

	top := s.minConfirmed()
	if top > s.frame {
		top = s.frame
	}
	n := top / interval * interval
	if n == 0 || (s.hasSum && n <= s.lastSum) {
		return
	}
	snap, ok := s.snapshots.get(n)
	if !ok || !snap.hasChecksum {
		return
	}

	s.lastSum, s.lastValue, s.hasSum = n, snap.checksum, true
	s.localSums[n] = snap.checksum
	for _, id := range s.peerOrder {
		pr := s.peers[id]
		if remote, ok := pr.sums[n]; ok {
			delete(pr.sums, n)
			s.compare(pr, n, snap.checksum, remote)
		}
	}

	keep := interval * checksumHistory
	for f := range s.localSums {
		if f+keep < n {
			delete(s.localSums, f)
		}
	}
}

func (s *Session[S]) remoteChecksum(pr *peer, f Frame, sum uint64) {
	if pr.hasChecked && f <= pr.checked {
		return
	}
	if local, ok := s.localSums[f]; ok {
		s.compare(pr, f, local, sum)
		return
	}
	if s.hasSum && f <= s.lastSum {
		// ours is gone already
		return
	}
	pr.sums[f] = sum
	if len(pr.sums) > checksumHistory {
		frames := make([]Frame, 0, len(pr.sums))
		for k := range pr.sums {
			frames = append(frames, k)
		}
		sort.Slice(frames, func(i, j int) bool { return frames[i] < frames[j] })
		for _, k := range frames[:len(frames)-checksumHistory] {
			delete(pr.sums, k)
		}
	}
}

func (s *Session[S]) compare(pr *peer, f Frame, local, remote uint64) {
	pr.checked, pr.hasChecked = f, true
	if local == remote {
		return
	}
	s.log.WithFields(logrus.Fields{
		"peer":   pr.id,
		"frame":  f,
		"local":  fmt.Sprintf("%016x", local),
		"remote": fmt.Sprintf("%016x", remote),
	}).Warn("desync detected")
	s.events = append(s.events, EventDesync{Frame: f, Peer: pr.id, Local: local, Remote: remote})
}

// end stops the session. Only the first cause is kept.
func (s *Session[S]) end(cause error) {
	if s.ended != nil {
		return
	}
	var lost *network.PeerLostError
	if errors.As(cause, &lost) {
		s.events = append(s.events, EventDisconnected{Peer: lost.Peer, Err: cause})
	}
	s.ended = sessionEnded(cause)
	s.log.WithError(cause).Warn("session ended")
}
