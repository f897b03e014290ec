package player

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/rotisserie/eris"
)

// State is one entry of the state machine. Transition runs in the player
// state stage for every player and may change PlayerState.Current; Handle
// runs in PreUpdate. Items installs the shared item interaction for the
// state.
type State struct {
	ID         component.StateID
	Transition system.System
	Handle     system.System
	Items      bool
}

// Registry holds the states of a session in registration order. Built-in
// states and content states share it; the order is the order their
// systems run.
type Registry struct {
	states []State
	byID   map[component.StateID]int
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[component.StateID]int)}
}

// Builtins returns the engine's states in their install order.
func Builtins(env *item.Env) []State {
	return []State{
		Idle(env),
		Walk(env),
		Crouch(env),
		Midair(env),
		Incapacitated(env),
		Dead(env),
	}
}

// Register adds a state. Ids are unique.
func (r *Registry) Register(s State) error {
	if s.ID == "" {
		return eris.New("player state without id")
	}
	if _, ok := r.byID[s.ID]; ok {
		return eris.Errorf("player state %s already registered", s.ID)
	}
	r.byID[s.ID] = len(r.states)
	r.states = append(r.states, s)
	return nil
}

// Len returns the number of registered states.
func (r *Registry) Len() int { return len(r.states) }

// IDs returns the registered state ids in order.
func (r *Registry) IDs() []component.StateID {
	out := make([]component.StateID, len(r.states))
	for i, s := range r.states {
		out[i] = s.ID
	}
	return out
}

// Install inserts stage before PreUpdate and wires every state into the
// pipeline. A stage without a pass cap gets one pass per state per player
// slot.
func (r *Registry) Install(p *system.Pipeline, stage *StateStage, env *item.Env) error {
	if stage.maxPasses <= 0 {
		stage.maxPasses = max(r.Len()*input.MaxPlayers, 1)
	}
	if err := p.InsertStageBefore(system.PreUpdate, StageLabel, stage); err != nil {
		return eris.Wrap(err, "install player state stage")
	}
	for _, s := range r.states {
		if s.Transition != nil {
			stage.AddSystem(s.Transition)
		}
		if s.Handle != nil {
			if err := p.AddSystemToStage(system.PreUpdate, s.Handle); err != nil {
				return err
			}
		}
		if s.Items {
			if err := p.AddSystemToStage(system.PreUpdate, ItemInteraction(s.ID, env)); err != nil {
				return err
			}
		}
	}
	return p.AddSystemToStage(system.Last, AgeSystem())
}
