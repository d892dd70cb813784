package rollback

import (
	"errors"
	"fmt"
	"testing"

	"github.com/automoto/blockshot/input"
	"github.com/automoto/blockshot/logger"
	"github.com/automoto/blockshot/network"
	"github.com/automoto/blockshot/shared/messages"
	"github.com/automoto/blockshot/shared/netconfig"
	"github.com/automoto/blockshot/shared/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	Frame uint32
	Sum   uint64
}

// counterSim folds every input into an order-sensitive sum, so any input
// difference on any frame changes the result.
type counterSim struct {
	state counterState
	salt  uint64
}

func (c *counterSim) Step(in Inputs) {
	for h, pi := range in {
		c.state.Sum = c.state.Sum*31 + uint64(pi.Symbol)*uint64(h+7) + c.salt
	}
	c.state.Frame++
}

func (c *counterSim) Save() counterState  { return c.state }
func (c *counterSim) Load(s counterState) { c.state = s }
func (c *counterSim) Checksum() uint64    { return c.state.Sum ^ uint64(c.state.Frame)<<48 }

func testConfig(players int) netconfig.Session {
	cfg := netconfig.DefaultSession()
	cfg.Players = players
	return cfg
}

type testPeer struct {
	id      network.PeerID
	handle  PlayerHandle
	session *Session[counterState]
	sim     *counterSim
	stream  []input.Symbol
	next    int
}

// newMesh starts one session per player over a shared loopback hub. Player i
// is local on peer i and remote everywhere else.
func newMesh(t *testing.T, hub *network.Loopback, cfg netconfig.Session, streams [][]input.Symbol) []*testPeer {
	t.Helper()
	logger.Silence()

	ids := make([]network.PeerID, cfg.Players)
	for i := range ids {
		ids[i] = network.PeerID(fmt.Sprintf("peer-%d", i))
	}

	peers := make([]*testPeer, cfg.Players)
	for i := range peers {
		b := NewBuilder[counterState](cfg)
		for h, id := range ids {
			p := Remote(id)
			if h == i {
				p = Local()
			}
			_, err := b.AddPlayer(p, PlayerHandle(h))
			require.NoError(t, err)
		}
		sim := &counterSim{}
		s, err := b.Start(hub.Endpoint(ids[i]), sim)
		require.NoError(t, err)
		peers[i] = &testPeer{id: ids[i], handle: PlayerHandle(i), session: s, sim: sim, stream: streams[i]}
	}
	return peers
}

// run advances every peer in turn until each consumed its stream up to n
// symbols. A stalled peer retries the same symbol on the next round.
func run(t *testing.T, peers []*testPeer, n int) {
	t.Helper()
	for rounds := 0; rounds < 10*n+100; rounds++ {
		done := true
		for _, p := range peers {
			if p.next >= n {
				continue
			}
			done = false
			_, err := p.session.AdvanceFrame(map[PlayerHandle]input.Symbol{p.handle: p.stream[p.next]})
			if errors.Is(err, ErrPredictionThreshold) {
				continue
			}
			require.NoError(t, err)
			p.next++
		}
		if done {
			return
		}
	}
	t.Fatal("peers never consumed their streams")
}

// reference simulates frames [0, frames) with the confirmed inputs implied by
// the streams.
func reference(streams [][]input.Symbol, delay int, frames Frame, salt uint64) counterState {
	sim := &counterSim{salt: salt}
	for f := 0; f < int(frames); f++ {
		in := make(Inputs, len(streams))
		for h, s := range streams {
			sym := input.Neutral
			if i := f - delay; i >= 0 && i < len(s) {
				sym = s[i]
			}
			in[h] = PlayerInput{Symbol: sym, Status: Confirmed}
		}
		sim.Step(in)
	}
	return sim.state
}

func toggling(n int, pattern ...input.Symbol) []input.Symbol {
	out := make([]input.Symbol, n)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

func withNeutralTail(s []input.Symbol, n int) []input.Symbol {
	return append(s, make([]input.Symbol, n)...)
}

func TestRollbackConvergesToConfirmedInputs(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(3)

	streams := [][]input.Symbol{
		withNeutralTail(toggling(30, input.Up, input.Up|input.Fire, input.Left), 10),
		withNeutralTail(toggling(30, input.Down, input.Right, input.Fire, input.Neutral), 10),
	}
	peers := newMesh(t, hub, cfg, streams)

	run(t, peers, 30)
	hub.SetLatency(0)
	run(t, peers, 40)

	rollbacks := 0
	for _, p := range peers {
		s := p.session
		require.GreaterOrEqual(t, s.ConfirmedFrame(), s.Frame(), "peer %s not fully confirmed", p.id)
		assert.Equal(t, reference(streams, cfg.InputDelay, s.Frame(), 0), p.sim.state, "peer %s", p.id)

		for _, other := range peers {
			if other == p {
				continue
			}
			st, ok := s.NetworkStats(other.id)
			require.True(t, ok)
			rollbacks += st.Rollbacks
			assert.Positive(t, st.PacketsSent)
			assert.Positive(t, st.PacketsReceived)
		}
		for _, ev := range s.Events() {
			_, desync := ev.(EventDesync)
			assert.False(t, desync, "unexpected desync on %s", p.id)
		}
	}
	assert.Positive(t, rollbacks, "latency should have caused mispredictions")
}

func TestThreePlayersConverge(t *testing.T) {
	cfg := testConfig(3)
	hub := network.NewLoopback(1)

	streams := [][]input.Symbol{
		withNeutralTail(toggling(20, input.Up, input.Fire), 8),
		withNeutralTail(toggling(20, input.Left, input.Left, input.Right), 8),
		withNeutralTail(toggling(20, input.Down|input.Fire, input.Neutral), 8),
	}
	peers := newMesh(t, hub, cfg, streams)

	run(t, peers, 20)
	hub.SetLatency(0)
	run(t, peers, 28)

	for _, p := range peers {
		require.GreaterOrEqual(t, p.session.ConfirmedFrame(), p.session.Frame())
		assert.Equal(t, reference(streams, cfg.InputDelay, p.session.Frame(), 0), p.sim.state, "peer %s", p.id)
	}
}

func TestInputDelayPadsFirstFrames(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a := peers[0].session

	var got []input.Symbol
	for _, sym := range []input.Symbol{input.Fire, input.Up, input.Down} {
		in, err := a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: sym})
		require.NoError(t, err)
		require.Len(t, in, 2)
		assert.Equal(t, Confirmed, in.Get(0).Status)
		got = append(got, in.Symbol(0))
	}
	assert.Equal(t, []input.Symbol{input.Neutral, input.Neutral, input.Fire}, got)
	assert.Equal(t, Frame(3), a.Frame())
}

func TestPredictionRepeatsLastKnownInput(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a, b := peers[0].session, peers[1].session

	// b confirms frames 0..2, frame 2 carrying Right
	_, err := b.AdvanceFrame(map[PlayerHandle]input.Symbol{1: input.Right})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		in, err := a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Neutral})
		require.NoError(t, err)
		if i < 3 {
			assert.Equal(t, Confirmed, in.Get(1).Status, "frame %d", i)
		} else {
			assert.Equal(t, PlayerInput{Symbol: input.Right, Status: Predicted}, in.Get(1), "frame %d", i)
		}
	}
}

func TestPredictionThresholdStalls(t *testing.T) {
	cfg := testConfig(2)
	cfg.DisconnectTimeout = 0
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a, b := peers[0].session, peers[1].session

	neutral := map[PlayerHandle]input.Symbol{0: input.Neutral}
	for i := 0; i < cfg.MaxPrediction; i++ {
		_, err := a.AdvanceFrame(neutral)
		require.NoError(t, err, "frame %d", i)
	}

	_, err := a.AdvanceFrame(neutral)
	assert.ErrorIs(t, err, ErrPredictionThreshold)
	assert.NotErrorIs(t, err, ErrSessionEnded)
	assert.Equal(t, Frame(cfg.MaxPrediction), a.Frame())

	// b confirms three frames, which lets a move on
	_, err = b.AdvanceFrame(map[PlayerHandle]input.Symbol{1: input.Neutral})
	require.NoError(t, err)

	_, err = a.AdvanceFrame(neutral)
	require.NoError(t, err)
	assert.Equal(t, Frame(cfg.MaxPrediction+1), a.Frame())
}

func TestLocalInputValidation(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a := peers[0].session

	_, err := a.AdvanceFrame(map[PlayerHandle]input.Symbol{})
	assert.ErrorIs(t, err, ErrMissingLocalInput)

	_, err = a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Up, 1: input.Up})
	assert.ErrorIs(t, err, ErrNotLocalHandle)

	_, err = a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Up, 5: input.Up})
	assert.ErrorIs(t, err, ErrNotLocalHandle)

	_, err = a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: 0x80})
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	assert.Equal(t, Frame(0), a.Frame())
	assert.NoError(t, a.Err())
}

func TestPeerLossEndsSession(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a := peers[0].session

	_, err := a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Up})
	require.NoError(t, err)

	hub.Disconnect(peers[1].id)

	_, err = a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Up})
	require.ErrorIs(t, err, ErrSessionEnded)
	var lost *network.PeerLostError
	require.ErrorAs(t, err, &lost)
	assert.Equal(t, peers[1].id, lost.Peer)
	assert.Equal(t, Frame(1), a.Frame())

	events := a.Events()
	require.Len(t, events, 1)
	assert.Equal(t, peers[1].id, events[0].(EventDisconnected).Peer)

	_, again := a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Up})
	assert.Equal(t, err, again)
}

func TestAckBeyondSentInputsIsIgnored(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a := peers[0].session

	payload, err := protocol.EncodeInput(messages.InputPacket{
		Handles: []uint8{1},
		Symbols: [][]byte{{0}},
		Ack:     1 << 30,
	})
	require.NoError(t, err)
	require.NoError(t, hub.Endpoint(peers[1].id).Send(peers[0].id, payload))

	for i := 0; i < 3; i++ {
		_, err = a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Fire})
		require.NoError(t, err)
	}

	st, ok := a.NetworkStats(peers[1].id)
	require.True(t, ok)
	assert.Equal(t, Frame(0), st.Acked)
	assert.Equal(t, Frame(1), st.Received)

	// the other side still gets every local frame
	b := peers[1].session
	_, err = b.AdvanceFrame(map[PlayerHandle]input.Symbol{1: input.Neutral})
	require.NoError(t, err)
	st, ok = b.NetworkStats(peers[0].id)
	require.True(t, ok)
	assert.Equal(t, Frame(cfg.InputDelay+3), st.Received)
}

func TestSilentPeerTimesOut(t *testing.T) {
	cfg := testConfig(2)
	cfg.DisconnectTimeout = 5
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a := peers[0].session

	neutral := map[PlayerHandle]input.Symbol{0: input.Neutral}
	for i := 0; i < 4; i++ {
		_, err := a.AdvanceFrame(neutral)
		require.NoError(t, err)
	}
	_, err := a.AdvanceFrame(neutral)
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.ErrorIs(t, err, ErrPeerTimeout)
}

func TestCloseNotifiesPeers(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	peers := newMesh(t, hub, cfg, [][]input.Symbol{nil, nil})
	a, b := peers[0].session, peers[1].session

	a.Close()
	a.Close()

	_, err := a.AdvanceFrame(map[PlayerHandle]input.Symbol{0: input.Neutral})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = b.AdvanceFrame(map[PlayerHandle]input.Symbol{1: input.Neutral})
	assert.ErrorIs(t, err, ErrSessionEnded)
	assert.ErrorIs(t, err, ErrPeerQuit)
}

func TestDesyncRaisesEvent(t *testing.T) {
	cfg := testConfig(2)
	hub := network.NewLoopback(0)
	streams := [][]input.Symbol{toggling(40, input.Up), toggling(40, input.Down)}
	peers := newMesh(t, hub, cfg, streams)
	peers[1].sim.salt = 1

	run(t, peers, 40)

	var desyncs []EventDesync
	for _, ev := range peers[0].session.Events() {
		if d, ok := ev.(EventDesync); ok {
			desyncs = append(desyncs, d)
		}
	}
	require.NotEmpty(t, desyncs)
	d := desyncs[0]
	assert.Equal(t, peers[1].id, d.Peer)
	assert.Zero(t, d.Frame%Frame(cfg.DesyncInterval))
	assert.NotEqual(t, d.Local, d.Remote)
}

func TestDesyncDisabled(t *testing.T) {
	cfg := testConfig(2)
	cfg.DesyncInterval = 0
	hub := network.NewLoopback(0)
	streams := [][]input.Symbol{toggling(30, input.Up), toggling(30, input.Down)}
	peers := newMesh(t, hub, cfg, streams)
	peers[1].sim.salt = 1

	run(t, peers, 30)
	assert.Empty(t, peers[0].session.Events())
}

func TestInputsGetPanicsOutOfRange(t *testing.T) {
	in := make(Inputs, 2)
	assert.NotPanics(t, func() { in.Get(1) })
	assert.Panics(t, func() { in.Get(2) })
}
