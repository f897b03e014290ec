package rollback

import (
	"testing"

	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/input"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type counter struct {
	Tick  uint32
	Moves float64
}

type call struct {
	tick      uint32
	controls  [input.MaxPlayers]input.PlayerControl
	replaying bool
}

// stubGame counts ticks and sums remote movement so mispredictions change
// its state.
type stubGame struct {
	w           *ecs.World
	calls       []call
	failRestore bool
}

func newStubGame() *stubGame {
	w := ecs.NewWorld()
	ecs.SetRollbackResource(w, counter{})
	return &stubGame{w: w}
}

func (g *stubGame) Advance(c [input.MaxPlayers]input.PlayerControl, replaying bool) error {
	st := ecs.Res[counter](g.w)
	g.calls = append(g.calls, call{tick: st.Tick, controls: c, replaying: replaying})
	st.Moves += c[1].MoveDirection.X
	st.Tick++
	return nil
}

func (g *stubGame) Snapshot() *ecs.Snapshot { return g.w.Snapshot() }

func (g *stubGame) Restore(s *ecs.Snapshot) error {
	if g.failRestore {
		return eris.Wrap(ecs.ErrSnapshotRestoreMismatch, "stub refuses")
	}
	return g.w.Restore(s)
}

type fakeTransport struct {
	inbox []Message
	sent  []Message
}

func (f *fakeTransport) Send(m Message) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeTransport) Receive() ([]Message, error) {
	out := f.inbox
	f.inbox = nil
	return out, nil
}

func twoPlayers() Config {
	return Config{
		LocalPlayer:   0,
		Active:        [input.MaxPlayers]bool{true, true},
		MaxPrediction: 8,
		Redundancy:    4,
	}
}

func newStubDriver(t *testing.T, cfg Config) (*Driver, *stubGame, *fakeTransport) {
	t.Helper()
	g := newStubGame()
	tr := &fakeTransport{}
	d, err := NewDriver(g, tr, cfg, zap.NewNop())
	require.NoError(t, err)
	return d, g, tr
}

var (
	right     = input.PlayerControl{MoveDirection: geom.V2(1, 0)}
	jumpRight = input.PlayerControl{MoveDirection: geom.V2(1, 0), Held: input.ButtonJump, Edge: input.ButtonJump}
)

func TestNewDriverValidatesConfig(t *testing.T) {
	cfg := twoPlayers()
	cfg.LocalPlayer = 2
	_, err := NewDriver(newStubGame(), &fakeTransport{}, cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = twoPlayers()
	cfg.MaxPrediction = 0
	_, err = NewDriver(newStubGame(), &fakeTransport{}, cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestPredictionRepeatsLastControlWithoutEdges(t *testing.T) {
	d, g, tr := newStubDriver(t, twoPlayers())
	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 0, Controls: []input.PlayerControl{jumpRight}}}

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	require.Len(t, g.calls, 3)
	assert.Equal(t, jumpRight, g.calls[0].controls[1])
	held := input.PlayerControl{MoveDirection: geom.V2(1, 0), Held: input.ButtonJump}
	assert.Equal(t, held, g.calls[1].controls[1])
	assert.Equal(t, held, g.calls[2].controls[1])
	assert.Equal(t, uint32(3), d.Tick())
	assert.Equal(t, uint32(1), d.ConfirmedTick())
}

func TestLateInputRollsBackAndResimulatesInOrder(t *testing.T) {
	d, g, tr := newStubDriver(t, twoPlayers())
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	require.Equal(t, 0.0, ecs.Res[counter](g.w).Moves)

	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 0, Controls: []input.PlayerControl{{}, {}, right, right}}}
	require.NoError(t, d.Update(input.PlayerControl{}))

	assert.Equal(t, 1, d.Rollbacks())
	assert.Equal(t, 3, d.ResimulatedTicks())
	replay := g.calls[5:]
	require.Len(t, replay, 4)
	for i, c := range replay {
		assert.Equal(t, uint32(2+i), c.tick, "ticks are resimulated in increasing order")
		assert.Equal(t, i < 3, c.replaying)
		assert.Equal(t, right, c.controls[1])
	}
	st := ecs.Res[counter](g.w)
	assert.Equal(t, uint32(6), st.Tick)
	assert.Equal(t, 4.0, st.Moves, "ticks 2 through 5 move right")
	assert.Equal(t, uint32(4), d.ConfirmedTick())
}

func TestMatchingLateInputDoesNotRollBack(t *testing.T) {
	d, _, tr := newStubDriver(t, twoPlayers())
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 0, Controls: make([]input.PlayerControl, 5)}}
	require.NoError(t, d.Update(input.PlayerControl{}))
	assert.Equal(t, 0, d.Rollbacks())
	assert.Equal(t, uint32(5), d.ConfirmedTick())
}

func TestGapInRemoteInputIsIgnored(t *testing.T) {
	d, _, tr := newStubDriver(t, twoPlayers())
	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 3, Controls: []input.PlayerControl{right}}}
	require.NoError(t, d.Update(input.PlayerControl{}))
	assert.Equal(t, uint32(0), d.queues[1].next())
}

func TestLocalInputIsDelayedAndSentRedundantly(t *testing.T) {
	cfg := twoPlayers()
	cfg.InputDelay = 2
	cfg.Redundancy = 3
	d, g, tr := newStubDriver(t, cfg)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Update(right))
	}
	assert.Equal(t, input.PlayerControl{}, g.calls[0].controls[0])
	assert.Equal(t, input.PlayerControl{}, g.calls[1].controls[0])
	assert.Equal(t, right, g.calls[2].controls[0])

	last, ok := tr.sent[len(tr.sent)-1].(InputMessage)
	require.True(t, ok)
	assert.Equal(t, uint8(0), last.Player)
	assert.Equal(t, uint32(4), last.StartTick)
	assert.Len(t, last.Controls, 3)
}

func TestStallThenTimeout(t *testing.T) {
	cfg := twoPlayers()
	cfg.MaxPrediction = 3
	cfg.InputTimeout = 2
	d, _, _ := newStubDriver(t, cfg)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	for i := 0; i < 2; i++ {
		err := d.Update(input.PlayerControl{})
		assert.True(t, eris.Is(err, ErrPredictionThreshold))
		assert.Equal(t, Running, d.State())
	}
	assert.Equal(t, uint32(3), d.Tick(), "a stalled driver does not advance")

	err := d.Update(input.PlayerControl{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNetworkInputTimeout))
	assert.Contains(t, err.Error(), "[1]")
	assert.Equal(t, Disconnected, d.State())

	err = d.Update(input.PlayerControl{})
	assert.True(t, eris.Is(err, ErrDriverStopped))
}

func TestDisconnectedPlayerCountsAsConfirmed(t *testing.T) {
	cfg := twoPlayers()
	cfg.MaxPrediction = 2
	d, g, tr := newStubDriver(t, cfg)
	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 0, Controls: []input.PlayerControl{jumpRight}}}
	require.NoError(t, d.Update(input.PlayerControl{}))

	require.Error(t, d.DisconnectPlayer(0))
	require.NoError(t, d.DisconnectPlayer(1))
	for i := 0; i < 20; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	assert.Equal(t, d.Tick(), d.ConfirmedTick())
	frozen := input.PlayerControl{MoveDirection: geom.V2(1, 0), Held: input.ButtonJump}
	for _, c := range g.calls[1:] {
		assert.Equal(t, frozen, c.controls[1])
	}

	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 1, Controls: make([]input.PlayerControl, 8)}}
	require.NoError(t, d.Update(input.PlayerControl{}))
	assert.Equal(t, 0, d.Rollbacks(), "late packets from a disconnected player are ignored")
}

func TestDisconnectMessageFreezesPlayer(t *testing.T) {
	cfg := twoPlayers()
	cfg.MaxPrediction = 1
	d, _, tr := newStubDriver(t, cfg)
	tr.inbox = []Message{DisconnectMessage{Player: 1}}
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	assert.Equal(t, uint32(5), d.ConfirmedTick())
}

func TestRestoreFailureAbortsRollback(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	g := newStubGame()
	g.failRestore = true
	tr := &fakeTransport{}
	d, err := NewDriver(g, tr, twoPlayers(), zap.New(core))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 0, Controls: []input.PlayerControl{right}}}
	require.NoError(t, d.Update(input.PlayerControl{}))

	assert.Equal(t, Running, d.State())
	assert.Equal(t, 0, d.Rollbacks())
	assert.Equal(t, uint32(4), d.Tick())
	entries := logs.FilterMessage("rollback aborted").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], ecs.ErrSnapshotRestoreMismatch.Error())
}

func TestConfirmedHookSeesEveryTickOnce(t *testing.T) {
	d, _, tr := newStubDriver(t, twoPlayers())
	var ticks []uint32
	d.SetConfirmedHook(func(tick uint32, controls [input.MaxPlayers]input.PlayerControl) {
		ticks = append(ticks, tick)
		assert.Equal(t, right, controls[1])
	})
	for i := 0; i < 10; i++ {
		tr.inbox = []Message{InputMessage{Player: 1, StartTick: d.Tick(), Controls: []input.PlayerControl{right}}}
		require.NoError(t, d.Update(input.PlayerControl{}))
	}
	require.Len(t, ticks, 10)
	for i, tick := range ticks {
		assert.Equal(t, uint32(i), tick)
	}
}

func TestChecksumMismatchIsDesync(t *testing.T) {
	cfg := twoPlayers()
	cfg.DesyncInterval = 1
	d, _, tr := newStubDriver(t, cfg)

	tr.inbox = []Message{InputMessage{Player: 1, StartTick: 0, Controls: []input.PlayerControl{{}}}}
	require.NoError(t, d.Update(input.PlayerControl{}))
	sum, ok := d.sums[0]
	require.True(t, ok)

	var sent *ChecksumMessage
	for _, m := range tr.sent {
		if c, ok := m.(ChecksumMessage); ok {
			sent = &c
		}
	}
	require.NotNil(t, sent)
	assert.Equal(t, sum, sent.Sum)

	tr.inbox = []Message{ChecksumMessage{Player: 1, Tick: 0, Sum: sum}}
	require.NoError(t, d.Update(input.PlayerControl{}))
	assert.Equal(t, Running, d.State())

	tr.inbox = []Message{
		InputMessage{Player: 1, StartTick: 1, Controls: []input.PlayerControl{{}}},
		ChecksumMessage{Player: 1, Tick: 1, Sum: 12345},
	}
	err := d.Update(input.PlayerControl{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDesyncDetected))
	assert.Equal(t, Desynced, d.State())
}

func TestCloseStopsDriver(t *testing.T) {
	d, _, _ := newStubDriver(t, twoPlayers())
	require.NoError(t, d.Update(input.PlayerControl{}))
	d.Close()
	assert.Equal(t, Closed, d.State())
	assert.True(t, eris.Is(d.Update(input.PlayerControl{}), ErrDriverStopped))
}
