// Package player implements the per-player state machine. Transition
// systems run in the player state stage, which repeats them until no
// player's state changes; handle systems then run in PreUpdate against the
// settled states.
package player

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/oklog/ulid/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrStateConvergenceExceeded is logged when transitions keep changing
// states past the pass cap. It indicates cyclic content states and never
// fails the tick.
var ErrStateConvergenceExceeded = eris.New("player state convergence exceeded")

// StageLabel is the label of the player state stage, placed right before
// PreUpdate.
var StageLabel = system.Label{Name: "player_state", ID: ulid.MustParse("01J00000000000000000000006")}

type recorded struct {
	id      ecs.EntityID
	current component.StateID
}

// StateStage runs its transition systems to a fixed point each tick.
type StateStage struct {
	systems   []system.System
	maxPasses int
	passes    int
	before    []recorded
	log       *zap.Logger
}

// NewStateStage creates the stage. maxPasses caps the passes per tick; zero
// lets Registry.Install derive it from the number of states.
func NewStateStage(maxPasses int, log *zap.Logger) *StateStage {
	return &StateStage{maxPasses: maxPasses, log: log}
}

func (s *StateStage) AddSystem(sys system.System) {
	s.systems = append(s.systems, sys)
}

// MaxPasses returns the pass cap.
func (s *StateStage) MaxPasses() int { return s.maxPasses }

// Passes returns the passes used by the last Run, including the final pass
// that changed nothing.
func (s *StateStage) Passes() int { return s.passes }

// Run records every player's state, runs all transition systems, and
// compares. Changed players get Last set to the recorded state and Age
// reset, then the whole pass repeats. Past the cap the loop stops with the
// states of the last pass and logs ErrStateConvergenceExceeded.
func (s *StateStage) Run(w *ecs.World) error {
	idxs := ecs.Comp[component.PlayerIdx](w)
	states := ecs.Comp[component.PlayerState](w)
	limit := max(s.maxPasses, 1)

	for pass := 1; ; pass++ {
		s.before = s.before[:0]
		ecs.Each2(idxs, states, func(id ecs.EntityID, _ *component.PlayerIdx, st *component.PlayerState) {
			s.before = append(s.before, recorded{id: id, current: st.Current})
		})

		for _, sys := range s.systems {
			if err := sys.Run(w); err != nil {
				return eris.Wrapf(err, "system %s", sys.Name())
			}
		}

		changed := false
		for _, r := range s.before {
			st, ok := states.Get(r.id)
			if !ok || st.Current == r.current {
				continue
			}
			st.Last = r.current
			st.Age = 0
			changed = true
		}
		s.passes = pass
		if !changed {
			return nil
		}
		if pass >= limit {
			s.log.Warn("player states did not converge",
				zap.Error(eris.Wrapf(ErrStateConvergenceExceeded, "after %d passes", pass)),
				zap.Int("passes", pass),
				zap.Uint64("tick", tick(w)),
			)
			return nil
		}
	}
}

func tick(w *ecs.World) uint64 {
	if t, ok := ecs.TryRes[component.Time](w); ok {
		return t.Tick
	}
	return 0
}

// AgeSystem counts ticks spent in the current state. It runs in Last.
func AgeSystem() system.System {
	return system.New("player_state_age", func(w *ecs.World) error {
		ecs.Comp[component.PlayerState](w).Each(func(_ ecs.EntityID, st *component.PlayerState) {
			if st.Age < ^uint64(0) {
				st.Age++
			}
		})
		return nil
	}, system.Write[component.PlayerState]())
}
