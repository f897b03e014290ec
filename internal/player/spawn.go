package player

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/physics"
)

// Spawn creates the player for input slot idx at pos, in the idle state.
// Its body is settled so a player placed on the ground starts grounded.
func Spawn(w *ecs.World, content *data.Content, idx int, handles component.PlayerHandles, pos geom.Vec2) (ecs.EntityID, error) {
	meta := content.Players.Get(handles.Player)
	e := w.Spawn()
	comps := []func() error{
		func() error {
			return ecs.Insert(w, e, component.Transform{Translation: geom.Vec3{X: pos.X, Y: pos.Y}})
		},
		func() error {
			return ecs.Insert(w, e, component.KinematicBody{Shape: component.RectShape(meta.BodySize), HasMass: true})
		},
		func() error {
			return ecs.Insert(w, e, component.PlayerState{Current: component.StateIdle, Last: component.StateIdle})
		},
		func() error { return ecs.Insert(w, e, component.PlayerIdx(idx)) },
		func() error { return ecs.Insert(w, e, handles) },
		func() error { return ecs.Insert(w, e, component.Inventory{}) },
		func() error { return ecs.Insert(w, e, component.Sprite{Animation: "idle"}) },
	}
	for _, insert := range comps {
		if err := insert(); err != nil {
			return e, err
		}
	}
	physics.Settle(w, e)
	return e, nil
}
