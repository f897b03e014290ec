// Package item implements grabbable items: holding, throwing, fuse timers
// and explosions. Multi-tick effects are Fuse components advanced once per
// tick, so they are captured by snapshots like any other state.
package item

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/physics"
	"github.com/rotisserie/eris"
)

// Item kinds understood by the engine.
const (
	KindGrenade = "grenade"
	KindMine    = "mine"
	KindCrate   = "crate"
	KindCustom  = "custom"
)

var ErrUnknownItem = eris.New("unknown item")

// groundFriction slows items sliding on the ground, in units per second².
const groundFriction = 600

// Spawn creates an item of kind h resting at pos.
func Spawn(w *ecs.World, content *data.Content, h data.ItemHandle, pos geom.Vec2) (ecs.EntityID, error) {
	meta := content.Items.Get(h)
	if meta == nil {
		return ecs.NoEntity, eris.Wrapf(ErrUnknownItem, "handle %d", h)
	}
	e := w.Spawn()
	if err := ecs.Insert(w, e, component.Transform{Translation: geom.Vec3{X: pos.X, Y: pos.Y}}); err != nil {
		return e, err
	}
	if err := ecs.Insert(w, e, component.KinematicBody{
		Shape:      component.RectShape(meta.BodySize),
		HasMass:    true,
		Bounciness: meta.Bounciness,
		Friction:   groundFriction,
	}); err != nil {
		return e, err
	}
	if err := ecs.Insert(w, e, component.Item{Handle: h}); err != nil {
		return e, err
	}
	physics.Settle(w, e)
	return e, nil
}

// SetInventory makes player hold it, or hold nothing for ecs.NoEntity. A
// previously held item is released with the player's velocity. It runs
// inside a command flush.
func SetInventory(w *ecs.World, player, it ecs.EntityID) error {
	inv, ok := ecs.Get[component.Inventory](w, player)
	if !ok {
		return eris.Wrapf(ecs.ErrNoSuchEntity, "inventory of %d", player.Index())
	}
	if inv.Item == it {
		return nil
	}
	if inv.Item != ecs.NoEntity {
		release(w, player, inv.Item)
	}
	inv.Item = ecs.NoEntity
	if it == ecs.NoEntity {
		return nil
	}
	held, ok := ecs.Get[component.Item](w, it)
	if !ok {
		return eris.Wrapf(ecs.ErrNoSuchEntity, "grab item %d", it.Index())
	}
	held.Holder = player
	if b, ok := ecs.Get[component.KinematicBody](w, it); ok {
		b.IsDeactivated = true
		b.Velocity = geom.Vec2{}
		b.IsOnGround = false
	}
	inv.Item = it
	return nil
}

func release(w *ecs.World, player, it ecs.EntityID) {
	held, ok := ecs.Get[component.Item](w, it)
	if !ok {
		return
	}
	held.Holder = ecs.NoEntity
	b, ok := ecs.Get[component.KinematicBody](w, it)
	if !ok {
		return
	}
	b.IsDeactivated = false
	if pb, ok := ecs.Get[component.KinematicBody](w, player); ok {
		b.Velocity = pb.Velocity
	}
}

// SetInventoryLater queues SetInventory.
func SetInventoryLater(w *ecs.World, player, it ecs.EntityID) {
	w.Commands().Add(func(w *ecs.World) error {
		return SetInventory(w, player, it)
	})
}

// HeldItems returns every item currently held by a player.
func HeldItems(w *ecs.World) map[ecs.EntityID]bool {
	held := make(map[ecs.EntityID]bool)
	ecs.Comp[component.Inventory](w).Each(func(_ ecs.EntityID, inv *component.Inventory) {
		if inv.Item != ecs.NoEntity {
			held[inv.Item] = true
		}
	})
	return held
}

func playSound(w *ecs.World, h data.SoundHandle, volume float64) {
	if h == "" {
		return
	}
	event.Emit(ecs.Res[event.Queue](w), event.PlaySound{Sound: h, Volume: volume})
}
