package match

import (
	"testing"

	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tickRate = 60

func testContent(t *testing.T) *data.Content {
	t.Helper()
	game := data.DefaultGameMeta()
	game.RespawnTicks = 5
	maps, err := data.NewMapTable(data.MapMeta{
		Name: "arena",
		Solids: []data.SolidMeta{
			{Pos: geom.V2(0, 78), Size: geom.V2(800, 20)},
			{Pos: geom.V2(300, 160), Size: geom.V2(60, 4), Platform: true},
		},
		PlayerSpawns: []geom.Vec2{geom.V2(0, 100), geom.V2(100, 100)},
		Items:        []data.ItemSpawn{{Item: "crate", Pos: geom.V2(200, 96)}},
	})
	require.NoError(t, err)
	return &data.Content{
		Game: game,
		Players: data.NewPlayerTable(data.PlayerMeta{
			Name: "pescy",
			Stats: data.PlayerStats{
				WalkSpeed:     120,
				JumpSpeed:     300,
				SlowFallSpeed: 60,
				AirSpeed:      120,
				AccelAirSpeed: 10,
				Slowdown:      20,
			},
			BodySize:      geom.V2(14, 24),
			SlideBodySize: geom.V2(14, 12),
			Sounds: data.PlayerSounds{
				Jump: "jump.ogg", JumpVolume: 1,
				Land: "land.ogg", LandVolume: 1,
				Death: "death.ogg", DeathVolume: 1,
			},
		}),
		Items: data.NewItemTable(
			data.ItemMeta{Name: "crate", Kind: item.KindCrate, BodySize: geom.V2(16, 16), ThrowVelocity: geom.V2(100, 0),
				IncapacitateTicks: 3},
		),
		Maps: maps,
	}
}

func newSession(t *testing.T, players int, seed uint64) *Session {
	t.Helper()
	cfg := Config{Map: "arena", TickRate: tickRate, Seed: seed}
	for i := 0; i < players; i++ {
		cfg.Players[i] = input.PlayerInput{Active: true}
	}
	s, err := New(testContent(t), cfg, zap.NewNop())
	require.NoError(t, err)
	return s
}

func onlyPlayer(t *testing.T, s *Session) (ecs.EntityID, *component.Transform, *component.PlayerState) {
	t.Helper()
	ids := ecs.Comp[component.PlayerIdx](s.World()).Entities()
	require.Len(t, ids, 1)
	xf, ok := ecs.Get[component.Transform](s.World(), ids[0])
	require.True(t, ok)
	st, ok := ecs.Get[component.PlayerState](s.World(), ids[0])
	require.True(t, ok)
	return ids[0], xf, st
}

func controls(c input.PlayerControl) [input.MaxPlayers]input.PlayerControl {
	return [input.MaxPlayers]input.PlayerControl{c}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(testContent(t), Config{Map: "nowhere", TickRate: tickRate}, zap.NewNop())
	assert.True(t, eris.Is(err, ErrUnknownMap))

	_, err = New(testContent(t), Config{Map: "arena"}, zap.NewNop())
	assert.Error(t, err)

	content := testContent(t)
	content.Maps, err = data.NewMapTable(data.MapMeta{
		Name:         "broken",
		PlayerSpawns: []geom.Vec2{{}},
		Items:        []data.ItemSpawn{{Item: "anvil"}},
	})
	require.NoError(t, err)
	_, err = New(content, Config{Map: "broken", TickRate: tickRate}, zap.NewNop())
	assert.True(t, eris.Is(err, item.ErrUnknownItem))
}

func TestNewRejectsMapWithoutSpawns(t *testing.T) {
	_, err := data.NewMapTable(data.MapMeta{Name: "void"})
	require.True(t, eris.Is(err, data.ErrNoPlayerSpawns))

	content := testContent(t)
	arena, ok := content.Maps.Get("arena")
	require.True(t, ok)
	arena.PlayerSpawns = nil

	s, err := New(content, Config{Map: "arena", TickRate: tickRate}, zap.NewNop())
	assert.Nil(t, s)
	assert.True(t, eris.Is(err, data.ErrNoPlayerSpawns))
}

func TestMapLoads(t *testing.T) {
	s := newSession(t, 0, 1)
	assert.Equal(t, 2, ecs.Comp[component.Solid](s.World()).Len())
	assert.Equal(t, 1, ecs.Comp[component.Item](s.World()).Len())
	assert.Equal(t, 0, ecs.Comp[component.PlayerIdx](s.World()).Len(), "players spawn on the first tick")
}

func TestWalkScenario(t *testing.T) {
	s := newSession(t, 1, 1)
	right := input.PlayerControl{MoveDirection: geom.V2(1, 0), JustMoved: true}
	dt := 1.0 / tickRate

	require.NoError(t, s.Advance(controls(right), false))
	_, xf, st := onlyPlayer(t, s)
	assert.Equal(t, component.StateWalk, st.Current)
	assert.InDelta(t, 120*dt, xf.Translation.X, 1e-9)

	right.JustMoved = false
	for i := 2; i <= 30; i++ {
		require.NoError(t, s.Advance(controls(right), false))
		_, xf, st = onlyPlayer(t, s)
		assert.InDelta(t, float64(i)*120*dt, xf.Translation.X, 1e-9)
		assert.InDelta(t, 100.0, xf.Translation.Y, 1e-9, "walking never leaves the floor")
		assert.Equal(t, component.StateWalk, st.Current)
	}

	require.NoError(t, s.Advance(controls(input.PlayerControl{}), false))
	_, _, st = onlyPlayer(t, s)
	assert.Equal(t, component.StateIdle, st.Current)
	assert.Equal(t, component.StateWalk, st.Last)
	assert.Equal(t, uint64(31), s.Tick())
}

func TestJumpScenario(t *testing.T) {
	s := newSession(t, 1, 1)
	jump := input.PlayerControl{Held: input.ButtonJump, Edge: input.ButtonJump}

	require.NoError(t, s.Advance(controls(jump), false))
	id, xf, _ := onlyPlayer(t, s)
	assert.Greater(t, xf.Translation.Y, 100.0)
	body, ok := ecs.Get[component.KinematicBody](s.World(), id)
	require.True(t, ok)
	meta := testContent(t).Players.Get(0)
	require.NotNil(t, meta)
	require.Equal(t, meta.Stats.JumpSpeed, body.Velocity.Y)
	sounds := s.DrainSounds()
	require.Len(t, sounds, 1)
	assert.Equal(t, data.SoundHandle("jump.ogg"), sounds[0].Sound)

	require.NoError(t, s.Advance(controls(input.PlayerControl{}), false))
	_, _, st := onlyPlayer(t, s)
	assert.Equal(t, component.StateMidair, st.Current)

	landed := false
	for i := 0; i < 3*tickRate && !landed; i++ {
		require.NoError(t, s.Advance(controls(input.PlayerControl{}), false))
		_, _, st = onlyPlayer(t, s)
		landed = st.Current == component.StateIdle
	}
	require.True(t, landed, "player should land within three seconds")
	_, xf, st = onlyPlayer(t, s)
	assert.Equal(t, component.StateMidair, st.Last)
	assert.InDelta(t, 100.0, xf.Translation.Y, 1e-6)

	sounds = s.DrainSounds()
	require.NotEmpty(t, sounds)
	assert.Equal(t, data.SoundHandle("land.ogg"), sounds[len(sounds)-1].Sound)
}

func TestThrownCrateIncapacitatesPlayer(t *testing.T) {
	s := newSession(t, 1, 1)
	idle := controls(input.PlayerControl{})
	require.NoError(t, s.Advance(idle, false))
	w := s.World()
	p, xf, st := onlyPlayer(t, s)
	body, ok := ecs.Get[component.KinematicBody](w, p)
	require.True(t, ok)

	crates := ecs.Comp[component.Item](w).Entities()
	require.Len(t, crates, 1)
	crate := crates[0]
	ct, _ := ecs.Get[component.Transform](w, crate)
	ct.Translation = geom.Vec3{X: xf.Translation.X + 10, Y: xf.Translation.Y + 4}
	cb, _ := ecs.Get[component.KinematicBody](w, crate)
	cb.Velocity = geom.V2(-60, 0)
	cb.IsOnGround = false
	it, _ := ecs.Get[component.Item](w, crate)
	it.Thrown = true
	it.Thrower = w.Spawn()

	require.NoError(t, s.Advance(idle, false))
	inc, ok := ecs.Get[component.Incapacitated](w, p)
	require.True(t, ok)
	assert.Equal(t, 3, inc.Ticks)
	assert.Equal(t, component.StateIdle, st.Current)

	for i := 2; i >= 0; i-- {
		require.NoError(t, s.Advance(idle, false))
		assert.Equal(t, component.StateIncapacitated, st.Current)
		if i > 0 {
			assert.Equal(t, i, inc.Ticks)
		}
	}
	assert.False(t, ecs.Has[component.Incapacitated](w, p), "removed when the countdown ends")

	require.NoError(t, s.Advance(idle, false))
	assert.Equal(t, component.StateIdle, st.Current)
	assert.Equal(t, component.StateIncapacitated, st.Last)
	assert.Equal(t, s.env.Content.Game.RagdollPopSpeed, body.Velocity.Y)
	assert.InDelta(t, 103.0, xf.Translation.Y, 1e-9)

	require.NoError(t, s.Advance(idle, false))
	assert.Equal(t, component.StateMidair, st.Current)
}

func TestGrabReachesTheFacingSide(t *testing.T) {
	s := newSession(t, 1, 1)
	idle := controls(input.PlayerControl{})
	grab := controls(input.PlayerControl{Held: input.ButtonGrab, Edge: input.ButtonGrab})
	require.NoError(t, s.Advance(idle, false))
	w := s.World()
	p, xf, _ := onlyPlayer(t, s)
	inv, ok := ecs.Get[component.Inventory](w, p)
	require.True(t, ok)

	crates := ecs.Comp[component.Item](w).Entities()
	require.Len(t, crates, 1)
	crate := crates[0]
	ct, _ := ecs.Get[component.Transform](w, crate)

	// Ten units clear of the body, within the default reach of 24.
	ct.Translation = geom.Vec3{X: xf.Translation.X - 25, Y: 96}
	require.NoError(t, s.Advance(grab, false))
	assert.Equal(t, ecs.NoEntity, inv.Item, "the player faces right")

	ct.Translation = geom.Vec3{X: xf.Translation.X + 25, Y: 96}
	require.NoError(t, s.Advance(idle, false))
	require.NoError(t, s.Advance(grab, false))
	assert.Equal(t, crate, inv.Item)
	it, _ := ecs.Get[component.Item](w, crate)
	assert.Equal(t, p, it.Holder)
}

func TestReplayingMutesEvents(t *testing.T) {
	s := newSession(t, 1, 1)
	jump := input.PlayerControl{Held: input.ButtonJump, Edge: input.ButtonJump}
	require.NoError(t, s.Advance(controls(jump), true))
	assert.Empty(t, s.DrainSounds())
	assert.False(t, s.Events().Muted())
}

func runBots(t *testing.T, s *Session, bots []*input.Bot, ticks int) []uint64 {
	t.Helper()
	var sums []uint64
	for i := 0; i < ticks; i++ {
		var c [input.MaxPlayers]input.PlayerControl
		for j, b := range bots {
			c[j] = b.Control()
		}
		require.NoError(t, s.Advance(c, false))
		sum, err := s.Snapshot().Checksum()
		require.NoError(t, err)
		sums = append(sums, sum)
	}
	return sums
}

func TestSessionsAreDeterministic(t *testing.T) {
	a := newSession(t, 2, 99)
	b := newSession(t, 2, 99)
	sa := runBots(t, a, []*input.Bot{input.NewBot(1), input.NewBot(2)}, 300)
	sb := runBots(t, b, []*input.Bot{input.NewBot(1), input.NewBot(2)}, 300)
	assert.Equal(t, sa, sb)
}

func TestRestoreAndReplayReproducesState(t *testing.T) {
	s := newSession(t, 2, 7)
	bots := []*input.Bot{input.NewBot(3), input.NewBot(4)}
	runBots(t, s, bots, 40)

	snap := s.Snapshot()
	var recorded [][input.MaxPlayers]input.PlayerControl
	for i := 0; i < 40; i++ {
		var c [input.MaxPlayers]input.PlayerControl
		for j, b := range bots {
			c[j] = b.Control()
		}
		recorded = append(recorded, c)
		require.NoError(t, s.Advance(c, false))
	}
	want, err := s.Snapshot().Checksum()
	require.NoError(t, err)
	tick := s.Tick()

	require.NoError(t, s.Restore(snap))
	assert.Equal(t, tick-40, s.Tick())
	for _, c := range recorded {
		require.NoError(t, s.Advance(c, true))
	}
	got, err := s.Snapshot().Checksum()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, tick, s.Tick())
}

func TestLoneDeadPlayerRespawns(t *testing.T) {
	s := newSession(t, 1, 5)
	require.NoError(t, s.Advance(controls(input.PlayerControl{}), false))
	first, _, _ := onlyPlayer(t, s)
	require.NoError(t, ecs.Insert(s.World(), first, component.PlayerKilled{}))

	require.NoError(t, s.Advance(controls(input.PlayerControl{}), false))
	_, _, st := onlyPlayer(t, s)
	assert.Equal(t, component.StateDead, st.Current)
	died := event.Drain[event.PlayerDied](s.Events())
	require.Len(t, died, 1)
	assert.Equal(t, first, died[0].Entity)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Advance(controls(input.PlayerControl{}), false))
	}
	again, _, st := onlyPlayer(t, s)
	assert.NotEqual(t, first, again)
	assert.False(t, s.World().Alive(first))
	assert.Equal(t, component.StateIdle, st.Current)
}

func TestSessionsAreIndependent(t *testing.T) {
	a := newSession(t, 1, 1)
	b := newSession(t, 1, 1)
	right := input.PlayerControl{MoveDirection: geom.V2(1, 0)}
	for i := 0; i < 10; i++ {
		require.NoError(t, a.Advance(controls(right), false))
	}
	require.NoError(t, b.Advance(controls(input.PlayerControl{}), false))
	_, xa, _ := onlyPlayer(t, a)
	_, xb, _ := onlyPlayer(t, b)
	assert.Greater(t, xa.Translation.X, 0.0)
	assert.Equal(t, 0.0, xb.Translation.X)
	assert.NotEqual(t, a.ID(), b.ID())
}
