package physics

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
)

// restingSpeed is the bounce speed below which a body stops instead.
const restingSpeed = 1.0

// Step advances every active body by dt seconds in dense store order.
func Step(w *ecs.World, game data.GameMeta, dt float64) {
	c := NewCollisionWorld(w)
	ecs.Each2(c.bodies, c.xforms, func(id ecs.EntityID, b *component.KinematicBody, t *component.Transform) {
		if b.IsDeactivated {
			b.FallThrough = false
			return
		}
		c.move(id, b, t, game, dt)
	})
}

func (c *CollisionWorld) move(id ecs.EntityID, b *component.KinematicBody, t *component.Transform, game data.GameMeta, dt float64) {
	b.WasOnGround = b.IsOnGround

	if b.HasMass && (!b.IsOnGround || b.FallThrough) {
		b.Velocity.Y -= float64(game.Gravity * dt)
		if game.TerminalVelocity > 0 && b.Velocity.Y < -game.TerminalVelocity {
			b.Velocity.Y = -game.TerminalVelocity
		}
	}
	if b.IsOnGround && b.Friction > 0 && b.Velocity.X != 0 {
		decay := float64(b.Friction * dt)
		if abs(b.Velocity.X) <= decay {
			b.Velocity.X = 0
		} else {
			b.Velocity.X -= float64(geom.Sign(b.Velocity.X) * decay)
		}
	}

	pos := t.Translation.XY()

	dx, hitX := c.sweepX(Bounds(pos, b.Shape), float64(b.Velocity.X*dt), id)
	pos.X += dx
	if hitX {
		b.Velocity.X = bounce(b.Velocity.X, b.Bounciness)
	}

	movingDown := b.Velocity.Y <= 0
	dy, hitY := c.sweepY(Bounds(pos, b.Shape), float64(b.Velocity.Y*dt), b.FallThrough, id)
	pos.Y += dy
	if hitY {
		b.Velocity.Y = bounce(b.Velocity.Y, b.Bounciness)
	}

	t.Translation = t.Translation.WithXY(pos)
	box := Bounds(pos, b.Shape)
	c.syncActor(id, box)
	b.IsOnGround = movingDown && b.Velocity.Y <= 0 && c.OnGround(box, b.FallThrough, id)
	b.FallThrough = false
}

func bounce(v, bounciness float64) float64 {
	r := float64(-v * bounciness)
	if abs(r) < restingSpeed {
		return 0
	}
	return r
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Settle sets IsOnGround from the current position, for bodies placed
// directly by spawn code.
func Settle(w *ecs.World, id ecs.EntityID) {
	c := NewCollisionWorld(w)
	b, ok := c.bodies.Get(id)
	if !ok {
		return
	}
	box, ok := c.BodyBounds(id)
	if !ok {
		return
	}
	b.IsOnGround = c.OnGround(box, b.FallThrough, id)
	b.WasOnGround = b.IsOnGround
}

// System runs Step once per tick with the Time resource's delta.
func System(game data.GameMeta) system.System {
	return system.New("physics", func(w *ecs.World) error {
		Step(w, game, ecs.Res[component.Time](w).Delta)
		return nil
	},
		system.Write[component.KinematicBody](),
		system.Write[component.Transform](),
		system.Read[component.Solid](),
		system.Read[component.Time](),
	)
}
