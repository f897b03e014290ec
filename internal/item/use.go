package item

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
	"github.com/rotisserie/eris"
)

// Env is what item logic reads besides the world.
type Env struct {
	Content *data.Content
	Effects *Effects
}

// Use fires the item held by player. Throwables leave the hand with the
// content's throw velocity, mirrored by facing and added to the player's
// own velocity; fused kinds start their fuse. Custom kinds call their
// registered effect.
func (env *Env) Use(w *ecs.World, player ecs.EntityID) error {
	inv, ok := ecs.Get[component.Inventory](w, player)
	if !ok || inv.Item == ecs.NoEntity {
		return nil
	}
	it := inv.Item
	held, ok := ecs.Get[component.Item](w, it)
	if !ok {
		return eris.Wrapf(ecs.ErrNoSuchEntity, "use item %d", it.Index())
	}
	meta := env.Content.Items.Get(held.Handle)
	if meta == nil {
		return eris.Wrapf(ErrUnknownItem, "handle %d", held.Handle)
	}

	switch meta.Kind {
	case KindGrenade:
		if err := ecs.Insert(w, it, component.Fuse{Phase: component.FuseCountdown, Ticks: meta.FuseTicks}); err != nil {
			return err
		}
	case KindMine:
		if err := ecs.Insert(w, it, component.Fuse{Phase: component.FuseCountdown, Ticks: meta.ArmTicks}); err != nil {
			return err
		}
	case KindCrate:
	case KindCustom:
		fn, ok := env.Effects.Get(meta.Effect)
		if !ok {
			return eris.Wrapf(ErrUnknownEffect, "%q on item %s", meta.Effect, meta.Name)
		}
		playSound(w, meta.UseSound, meta.Volume)
		return fn(w, player, it)
	default:
		return eris.Wrapf(ErrUnknownItem, "kind %q", meta.Kind)
	}

	playSound(w, meta.UseSound, meta.Volume)
	return env.throw(w, player, it, meta)
}

// UseLater queues Use.
func (env *Env) UseLater(w *ecs.World, player ecs.EntityID) {
	w.Commands().Add(func(w *ecs.World) error {
		return env.Use(w, player)
	})
}

func (env *Env) throw(w *ecs.World, player, it ecs.EntityID, meta *data.ItemMeta) error {
	if err := SetInventory(w, player, ecs.NoEntity); err != nil {
		return err
	}
	held, _ := ecs.Get[component.Item](w, it)
	held.Thrown = true
	held.Thrower = player

	b, ok := ecs.Get[component.KinematicBody](w, it)
	if !ok {
		return nil
	}
	dir := 1.0
	if s, ok := ecs.Get[component.Sprite](w, player); ok && s.FlipX {
		dir = -1
	}
	v := geom.V2(float64(meta.ThrowVelocity.X*dir), meta.ThrowVelocity.Y).Scale(env.Content.Game.ThrowSpeedScale)
	b.Velocity = b.Velocity.Add(v)
	return nil
}
