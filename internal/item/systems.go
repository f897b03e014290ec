package item

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/physics"
)

// FollowHolderSystem keeps held items at their holder's hand.
func FollowHolderSystem() system.System {
	return system.New("item_follow_holder", func(w *ecs.World) error {
		xforms := ecs.Comp[component.Transform](w)
		bodies := ecs.Comp[component.KinematicBody](w)
		ecs.Each2(ecs.Comp[component.Item](w), xforms, func(id ecs.EntityID, it *component.Item, t *component.Transform) {
			if it.Holder == ecs.NoEntity {
				return
			}
			ht, ok := xforms.Get(it.Holder)
			if !ok {
				it.Holder = ecs.NoEntity
				if b, ok := bodies.Get(id); ok {
					b.IsDeactivated = false
				}
				return
			}
			offset := 0.0
			if hb, ok := bodies.Get(it.Holder); ok {
				offset = float64(hb.Shape.Size.X * 0.5)
			}
			if s, ok := ecs.Get[component.Sprite](w, it.Holder); ok && s.FlipX {
				offset = -offset
			}
			t.Translation = ht.Translation.WithXY(geom.V2(ht.Translation.X+offset, ht.Translation.Y))
		})
		return nil
	},
		system.Read[component.Item](),
		system.Write[component.Transform](),
		system.Read[component.KinematicBody](),
		system.Read[component.Sprite](),
	)
}

// FuseSystem advances fuses: Countdown, then Armed for mines or Exploding
// for grenades; armed mines explode on contact with a player; spent items
// are despawned.
func (env *Env) FuseSystem() system.System {
	return system.New("item_fuses", func(w *ecs.World) error {
		cw := physics.NewCollisionWorld(w)
		ecs.Each2(ecs.Comp[component.Fuse](w), ecs.Comp[component.Item](w), func(id ecs.EntityID, f *component.Fuse, it *component.Item) {
			meta := env.Content.Items.Get(it.Handle)
			if meta == nil {
				return
			}
			switch f.Phase {
			case component.FuseCountdown:
				f.Ticks--
				if f.Ticks > 0 {
					return
				}
				if meta.Kind == KindMine {
					f.Phase = component.FuseArmed
					return
				}
				env.detonate(w, cw, id, f, it, meta)
			case component.FuseArmed:
				for _, other := range cw.ActorCollisions(id) {
					if ecs.Has[component.PlayerIdx](w, other) {
						env.detonate(w, cw, id, f, it, meta)
						return
					}
				}
			case component.FuseExploding:
				f.Ticks--
				if f.Ticks <= 0 {
					f.Phase = component.FuseSpent
					w.Commands().Despawn(id)
				}
			}
		})
		return nil
	},
		system.Write[component.Fuse](),
		system.Read[component.Item](),
		system.Read[component.KinematicBody](),
		system.Read[component.Transform](),
		system.Write[ecs.Commands](),
		system.Write[event.Queue](),
	)
}

// ImpactSystem knocks down the first player an airborne thrown item
// touches, when its content sets incapacitate_ticks. The thrower is never
// hit, and a throw ends on its first hit or when the item lands.
func (env *Env) ImpactSystem() system.System {
	return system.New("item_impacts", func(w *ecs.World) error {
		cw := physics.NewCollisionWorld(w)
		bodies := ecs.Comp[component.KinematicBody](w)
		ecs.Comp[component.Item](w).Each(func(id ecs.EntityID, it *component.Item) {
			if it.Thrower == ecs.NoEntity {
				return
			}
			b, ok := bodies.Get(id)
			if !ok || it.Holder != ecs.NoEntity || b.IsOnGround {
				it.Thrower = ecs.NoEntity
				return
			}
			meta := env.Content.Items.Get(it.Handle)
			if meta == nil || meta.IncapacitateTicks <= 0 {
				return
			}
			for _, other := range cw.ActorCollisions(id) {
				if other == it.Thrower || !ecs.Has[component.PlayerIdx](w, other) ||
					ecs.Has[component.Incapacitated](w, other) || ecs.Has[component.PlayerKilled](w, other) {
					continue
				}
				ecs.InsertLater(w.Commands(), other, component.Incapacitated{Ticks: meta.IncapacitateTicks})
				b.Velocity.X = 0
				it.Thrower = ecs.NoEntity
				playSound(w, meta.ImpactSound, meta.Volume)
				return
			}
		})
		return nil
	},
		system.Write[component.Item](),
		system.Write[component.KinematicBody](),
		system.Read[component.Transform](),
		system.Read[component.PlayerIdx](),
		system.Read[component.Incapacitated](),
		system.Read[component.PlayerKilled](),
		system.Write[ecs.Commands](),
		system.Write[event.Queue](),
	)
}

func (env *Env) detonate(w *ecs.World, cw *physics.CollisionWorld, id ecs.EntityID, f *component.Fuse, it *component.Item, meta *data.ItemMeta) {
	f.Phase = component.FuseExploding
	f.Ticks = max(meta.ExplosionTicks, 1)

	box, ok := cw.BodyBounds(id)
	if !ok {
		return
	}
	center := geom.V2(float64(box.Min.X+box.Max.X)*0.5, float64(box.Min.Y+box.Max.Y)*0.5)
	r2 := float64(meta.ExplosionRadius * meta.ExplosionRadius)
	ecs.Each2(ecs.Comp[component.PlayerIdx](w), ecs.Comp[component.Transform](w), func(p ecs.EntityID, _ *component.PlayerIdx, t *component.Transform) {
		if ecs.Has[component.PlayerKilled](w, p) {
			return
		}
		d := t.Translation.XY().Sub(center)
		if float64(d.X*d.X)+float64(d.Y*d.Y) <= r2 {
			ecs.InsertLater(w.Commands(), p, component.PlayerKilled{By: id})
		}
	})
	if it.Holder != ecs.NoEntity {
		SetInventoryLater(w, it.Holder, ecs.NoEntity)
	}
	playSound(w, meta.ExplosionSound, meta.Volume)
	event.Emit(ecs.Res[event.Queue](w), event.Explosion{Item: id, Center: center, Radius: meta.ExplosionRadius})
}
