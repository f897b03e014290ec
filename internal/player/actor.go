package player

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/input"
)

// Actor bundles one player's components for state logic. The pointers
// refer to live store slots and are valid for the duration of the callback.
type Actor struct {
	ID      ecs.EntityID
	Index   component.PlayerIdx
	State   *component.PlayerState
	Body    *component.KinematicBody
	Xform   *component.Transform
	Sprite  *component.Sprite
	Control input.PlayerControl
	Meta    *data.PlayerMeta
}

// In reports whether the actor's current state is id.
func (a *Actor) In(id component.StateID) bool { return a.State.Current == id }

// Face points the sprite along dirX; zero keeps the current facing.
func (a *Actor) Face(dirX float64) {
	if dirX > 0 {
		a.Sprite.FlipX = false
	} else if dirX < 0 {
		a.Sprite.FlipX = true
	}
}

// ForEach calls fn for every player in dense store order.
func ForEach(w *ecs.World, content *data.Content, fn func(a *Actor)) {
	inputs := ecs.Res[input.MatchInputs](w)
	xforms := ecs.Comp[component.Transform](w)
	sprites := ecs.Comp[component.Sprite](w)
	handles := ecs.Comp[component.PlayerHandles](w)

	ecs.Each3(ecs.Comp[component.PlayerState](w), ecs.Comp[component.PlayerIdx](w), ecs.Comp[component.KinematicBody](w),
		func(id ecs.EntityID, st *component.PlayerState, idx *component.PlayerIdx, b *component.KinematicBody) {
			t, ok := xforms.Get(id)
			if !ok {
				return
			}
			s, ok := sprites.Get(id)
			if !ok {
				s = &component.Sprite{}
			}
			var h data.PlayerHandle
			if ph, ok := handles.Get(id); ok {
				h = ph.Player
			}
			a := &Actor{
				ID:     id,
				Index:  *idx,
				State:  st,
				Body:   b,
				Xform:  t,
				Sprite: s,
				Meta:   content.Players.Get(h),
			}
			if i := int(*idx); i >= 0 && i < input.MaxPlayers {
				a.Control = inputs.Players[i].Control
			}
			fn(a)
		})
}

func playSound(w *ecs.World, h data.SoundHandle, volume float64) {
	if h == "" {
		return
	}
	event.Emit(ecs.Res[event.Queue](w), event.PlaySound{Sound: h, Volume: volume})
}

// slowdown moves v toward zero by amount without crossing it.
func slowdown(v, amount float64) float64 {
	switch {
	case v > 0:
		return max(v-amount, 0)
	case v < 0:
		return min(v+amount, 0)
	}
	return 0
}
