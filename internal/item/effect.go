package item

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/rotisserie/eris"
)

var ErrUnknownEffect = eris.New("unknown item effect")

// EffectFunc applies a custom item's use effect. It runs inside a command
// flush and may mutate the world directly.
type EffectFunc func(w *ecs.World, user, it ecs.EntityID) error

// Effects is the registry of custom item effects, keyed by the id named in
// item content. It is filled at setup and read-only afterwards.
type Effects struct {
	byID map[string]EffectFunc
}

func NewEffects() *Effects {
	return &Effects{byID: make(map[string]EffectFunc)}
}

// Register adds an effect. Registering the same id twice is an error.
func (e *Effects) Register(id string, fn EffectFunc) error {
	if _, ok := e.byID[id]; ok {
		return eris.Errorf("item effect %q already registered", id)
	}
	e.byID[id] = fn
	return nil
}

func (e *Effects) Get(id string) (EffectFunc, bool) {
	fn, ok := e.byID[id]
	return fn, ok
}

// Len returns the number of registered effects.
func (e *Effects) Len() int { return len(e.byID) }
