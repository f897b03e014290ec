package player

import (
	"fmt"
	"testing"

	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newStateWorld(t *testing.T, players int, start component.StateID) (*ecs.World, []ecs.EntityID) {
	t.Helper()
	w := ecs.NewWorld()
	ecs.Register[component.PlayerIdx](w)
	ecs.Register[component.PlayerState](w)
	var ids []ecs.EntityID
	for i := 0; i < players; i++ {
		e := w.Spawn()
		require.NoError(t, ecs.Insert(w, e, component.PlayerIdx(i)))
		require.NoError(t, ecs.Insert(w, e, component.PlayerState{Current: start, Last: start, Age: 7}))
		ids = append(ids, e)
	}
	return w, ids
}

// step moves every player in from to to.
func step(from, to component.StateID) system.System {
	return system.New(fmt.Sprintf("%s->%s", from, to), func(w *ecs.World) error {
		ecs.Comp[component.PlayerState](w).Each(func(_ ecs.EntityID, st *component.PlayerState) {
			if st.Current == from {
				st.Current = to
			}
		})
		return nil
	})
}

func chainStates(k int) []component.StateID {
	ids := make([]component.StateID, k)
	for i := range ids {
		ids[i] = component.StateID(fmt.Sprintf("test::s%d", i))
	}
	return ids
}

func TestConvergenceTerminatesWithinStateCount(t *testing.T) {
	for _, k := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("%d states", k), func(t *testing.T) {
			ids := chainStates(k)
			w, players := newStateWorld(t, 3, ids[0])
			stage := NewStateStage(k*input.MaxPlayers, zap.NewNop())
			// Reverse order forces one step per pass, the worst case.
			for i := k - 2; i >= 0; i-- {
				stage.AddSystem(step(ids[i], ids[i+1]))
			}

			require.NoError(t, stage.Run(w))
			assert.LessOrEqual(t, stage.Passes(), k)
			for _, p := range players {
				st, _ := ecs.Get[component.PlayerState](w, p)
				assert.Equal(t, ids[k-1], st.Current)
				if k > 1 {
					assert.Equal(t, ids[k-2], st.Last)
					assert.Zero(t, st.Age)
				} else {
					assert.Equal(t, uint64(7), st.Age, "no transition keeps the age")
				}
			}

			require.NoError(t, stage.Run(w))
			assert.Equal(t, 1, stage.Passes(), "a settled world takes one pass")
		})
	}
}

func TestTransitionsSeeOtherPlayersInSameTick(t *testing.T) {
	w, players := newStateWorld(t, 2, component.StateIdle)
	follower, leader := players[0], players[1]
	stage := NewStateStage(8, zap.NewNop())

	// The follower walks once the leader walks; it runs first, so the
	// leader's change is only visible on the next pass.
	stage.AddSystem(system.New("follow", func(w *ecs.World) error {
		lead, _ := ecs.Get[component.PlayerState](w, leader)
		st, _ := ecs.Get[component.PlayerState](w, follower)
		if lead.Current == component.StateWalk {
			st.Current = component.StateWalk
		}
		return nil
	}))
	stage.AddSystem(system.New("lead", func(w *ecs.World) error {
		st, _ := ecs.Get[component.PlayerState](w, leader)
		st.Current = component.StateWalk
		return nil
	}))

	require.NoError(t, stage.Run(w))
	assert.Equal(t, 3, stage.Passes())
	for _, p := range players {
		st, _ := ecs.Get[component.PlayerState](w, p)
		assert.Equal(t, component.StateWalk, st.Current)
		assert.Equal(t, component.StateIdle, st.Last)
	}
}

func TestCyclicStatesAreCappedAndLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	w, players := newStateWorld(t, 1, "test::a")
	stage := NewStateStage(5, zap.New(core))
	stage.AddSystem(system.New("flip", func(w *ecs.World) error {
		ecs.Comp[component.PlayerState](w).Each(func(_ ecs.EntityID, st *component.PlayerState) {
			if st.Current == "test::a" {
				st.Current = "test::b"
			} else {
				st.Current = "test::a"
			}
		})
		return nil
	}))

	require.NoError(t, stage.Run(w), "a cycle never fails the tick")
	assert.Equal(t, 5, stage.Passes())

	entries := logs.FilterMessage("player states did not converge").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], ErrStateConvergenceExceeded.Error())

	st, _ := ecs.Get[component.PlayerState](w, players[0])
	assert.Equal(t, component.StateID("test::b"), st.Current, "last computed state is kept")
	assert.Equal(t, component.StateID("test::a"), st.Last)
}

func TestStageSurfacesSystemErrors(t *testing.T) {
	w, _ := newStateWorld(t, 1, component.StateIdle)
	stage := NewStateStage(4, zap.NewNop())
	stage.AddSystem(system.New("broken", func(*ecs.World) error { return fmt.Errorf("bad content") }))
	err := stage.Run(w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestAgeSaturates(t *testing.T) {
	w, players := newStateWorld(t, 1, component.StateIdle)
	st, _ := ecs.Get[component.PlayerState](w, players[0])
	age := AgeSystem()

	require.NoError(t, age.Run(w))
	assert.Equal(t, uint64(8), st.Age)

	st.Age = ^uint64(0)
	require.NoError(t, age.Run(w))
	assert.Equal(t, ^uint64(0), st.Age)
}

func TestRegistryInstall(t *testing.T) {
	env := &item.Env{Content: &data.Content{Game: data.DefaultGameMeta()}, Effects: item.NewEffects()}
	r := NewRegistry()
	for _, s := range Builtins(env) {
		require.NoError(t, r.Register(s))
	}
	assert.Error(t, r.Register(Idle(env)), "duplicate ids are rejected")
	assert.Error(t, r.Register(State{}))
	require.NoError(t, r.Register(State{ID: "mod::stunned", Transition: step("mod::stunned", component.StateIdle)}))
	assert.Equal(t, 7, r.Len())
	assert.Equal(t, component.StateIdle, r.IDs()[0])

	p := system.NewPipeline()
	stage := NewStateStage(0, zap.NewNop())
	require.NoError(t, r.Install(p, stage, env))
	assert.Equal(t, 7*input.MaxPlayers, stage.MaxPasses())

	labels := p.Labels()
	require.Len(t, labels, 6)
	assert.Equal(t, StageLabel, labels[1])
	assert.Equal(t, system.PreUpdate, labels[2])
	assert.Len(t, stage.systems, 7)

	pre, ok := p.Stage(system.PreUpdate)
	require.True(t, ok)
	// Six handles plus item interaction for idle, walk, crouch and midair.
	assert.Len(t, pre.(*system.SimpleStage).Systems(), 10)
}

func writes(sys system.System, decl system.Decl) bool {
	_, conflict := sys.Access().Conflicts(system.NewAccess(decl))
	return conflict
}

func TestStateSystemsDeclareWhatTheyTouch(t *testing.T) {
	env := &item.Env{Content: &data.Content{Game: data.DefaultGameMeta()}, Effects: item.NewEffects()}
	for _, st := range Builtins(env) {
		t.Run(string(st.ID), func(t *testing.T) {
			for _, decl := range []system.Decl{
				system.Read[component.PlayerState](),
				system.Read[component.KinematicBody](),
				system.Read[component.Transform](),
				system.Read[event.Queue](),
			} {
				assert.True(t, writes(st.Transition, decl))
			}
			for _, decl := range []system.Decl{
				system.Read[component.KinematicBody](),
				system.Read[component.Transform](),
				system.Read[component.Sprite](),
				system.Read[component.Incapacitated](),
				system.Read[event.Queue](),
				system.Read[ecs.Commands](),
			} {
				assert.True(t, writes(st.Handle, decl))
			}
			assert.False(t, writes(st.Handle, system.Read[component.PlayerState]()))
		})
	}
}
