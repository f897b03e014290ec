package player

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
	"github.com/jumpgo/server/internal/physics"
)

// ItemInteraction returns the grab, drop and use handling for players in
// state id. Grab takes the free item with the lowest entity id within the
// player's reach; grab while holding drops; shoot uses the held item.
// Inventory changes are queued.
func ItemInteraction(id component.StateID, env *item.Env) system.System {
	return system.New(string(id)+".items", func(w *ecs.World) error {
		cw := physics.NewCollisionWorld(w)
		held := item.HeldItems(w)
		items := ecs.Comp[component.Item](w)
		inventories := ecs.Comp[component.Inventory](w)

		ForEach(w, env.Content, func(a *Actor) {
			if !a.In(id) {
				return
			}
			inv, ok := inventories.Get(a.ID)
			if !ok {
				return
			}
			sounds := a.Meta.Sounds

			if a.Control.JustPressed(input.ButtonGrab) {
				if inv.Item == ecs.NoEntity {
					box, ok := cw.BodyBounds(a.ID)
					if !ok {
						return
					}
					for _, other := range cw.ActorsIn(reach(box, a.Sprite.FlipX, env.Content.Game.GrabRange)) {
						it, ok := items.Get(other)
						if !ok || held[other] || it.Holder != ecs.NoEntity || it.Thrown {
							continue
						}
						held[other] = true
						item.SetInventoryLater(w, a.ID, other)
						playSound(w, sounds.Grab, sounds.GrabVolume)
						break
					}
				} else {
					item.SetInventoryLater(w, a.ID, ecs.NoEntity)
					playSound(w, sounds.Drop, sounds.DropVolume)
				}
			}

			if a.Control.JustPressed(input.ButtonShoot) && inv.Item != ecs.NoEntity {
				env.UseLater(w, a.ID)
			}
		})
		return nil
	},
		system.Read[component.PlayerState](),
		system.Read[component.PlayerIdx](),
		system.Read[component.PlayerHandles](),
		system.Read[input.MatchInputs](),
		system.Read[component.Item](),
		system.Read[component.Inventory](),
		system.Read[component.KinematicBody](),
		system.Read[component.Transform](),
		system.Read[component.Sprite](),
		system.Write[ecs.Commands](),
		system.Write[event.Queue](),
	)
}

// reach extends box by grabRange on the side the player faces.
func reach(box geom.Rect, flipX bool, grabRange float64) geom.Rect {
	if flipX {
		box.Min.X -= grabRange
	} else {
		box.Max.X += grabRange
	}
	return box
}
