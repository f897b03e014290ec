package player

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/core/event"
	"github.com/jumpgo/server/internal/core/system"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
	"github.com/jumpgo/server/internal/input"
	"github.com/jumpgo/server/internal/item"
)

const crouchThreshold = -0.5

func transition(id component.StateID, content *data.Content, fn func(w *ecs.World, a *Actor)) system.System {
	return system.New(string(id)+".transition", func(w *ecs.World) error {
		ForEach(w, content, func(a *Actor) { fn(w, a) })
		return nil
	},
		system.Write[component.PlayerState](),
		system.Write[component.KinematicBody](),
		system.Write[component.Transform](),
		system.Read[component.PlayerIdx](),
		system.Read[component.PlayerHandles](),
		system.Read[component.PlayerKilled](),
		system.Read[component.Incapacitated](),
		system.Read[input.MatchInputs](),
		system.Write[event.Queue](),
	)
}

func handle(id component.StateID, content *data.Content, fn func(w *ecs.World, a *Actor)) system.System {
	return system.New(string(id)+".handle", func(w *ecs.World) error {
		ForEach(w, content, func(a *Actor) {
			if a.In(id) {
				fn(w, a)
			}
		})
		return nil
	},
		system.Read[component.PlayerState](),
		system.Write[component.KinematicBody](),
		system.Write[component.Transform](),
		system.Write[component.Sprite](),
		system.Write[component.Incapacitated](),
		system.Read[component.PlayerIdx](),
		system.Read[component.PlayerHandles](),
		system.Read[component.PlayerKilled](),
		system.Read[input.MatchInputs](),
		system.Write[event.Queue](),
		system.Write[ecs.Commands](),
	)
}

func jump(w *ecs.World, a *Actor) {
	if !a.Control.JustPressed(input.ButtonJump) {
		return
	}
	playSound(w, a.Meta.Sounds.Jump, a.Meta.Sounds.JumpVolume)
	a.Body.Velocity.Y = a.Meta.Stats.JumpSpeed
}

// Idle returns the idle state: standing on the ground.
func Idle(env *item.Env) State {
	return State{
		ID:    component.StateIdle,
		Items: true,
		Transition: transition(component.StateIdle, env.Content, func(_ *ecs.World, a *Actor) {
			if !a.In(component.StateIdle) {
				return
			}
			switch {
			case !a.Body.IsOnGround:
				a.State.Current = component.StateMidair
			case a.Control.MoveDirection.Y < crouchThreshold:
				a.State.Current = component.StateCrouch
			case a.Control.MoveDirection.X != 0:
				a.State.Current = component.StateWalk
			}
		}),
		Handle: handle(component.StateIdle, env.Content, func(w *ecs.World, a *Actor) {
			if a.State.Age == 0 {
				a.Sprite.Animation = "idle"
			}
			jump(w, a)
			a.Body.Velocity.X = slowdown(a.Body.Velocity.X, a.Meta.Stats.Slowdown)
		}),
	}
}

// Walk returns the walk state: moving along the ground.
func Walk(env *item.Env) State {
	return State{
		ID:    component.StateWalk,
		Items: true,
		Transition: transition(component.StateWalk, env.Content, func(_ *ecs.World, a *Actor) {
			if !a.In(component.StateWalk) {
				return
			}
			switch {
			case !a.Body.IsOnGround:
				a.State.Current = component.StateMidair
			case a.Control.MoveDirection.Y < crouchThreshold:
				a.State.Current = component.StateCrouch
			case a.Control.MoveDirection.X == 0:
				a.State.Current = component.StateIdle
			}
		}),
		Handle: handle(component.StateWalk, env.Content, func(w *ecs.World, a *Actor) {
			if a.State.Age == 0 {
				a.Sprite.Animation = "walk"
			}
			jump(w, a)
			a.Body.Velocity.X = a.Control.MoveDirection.X * a.Meta.Stats.WalkSpeed
			a.Face(a.Control.MoveDirection.X)
		}),
	}
}

// resize swaps the body's height, keeping the feet where they are.
func resize(a *Actor, size geom.Vec2) {
	if a.Body.Shape.Kind != component.ShapeRect || a.Body.Shape.Size == size {
		return
	}
	offset := (size.Y - a.Body.Shape.Size.Y) * 0.5
	a.Body.Shape.Size = size
	a.Xform.Translation.Y += offset
}

// Crouch returns the crouch state: ducking, or sliding while moving.
func Crouch(env *item.Env) State {
	return State{
		ID:    component.StateCrouch,
		Items: true,
		Transition: transition(component.StateCrouch, env.Content, func(_ *ecs.World, a *Actor) {
			if a.State.Last == component.StateCrouch && !a.In(component.StateCrouch) {
				resize(a, a.Meta.BodySize)
			}
			if !a.In(component.StateCrouch) {
				return
			}
			if !a.Body.IsOnGround || a.Control.MoveDirection.Y > crouchThreshold {
				a.State.Current = component.StateIdle
			}
		}),
		Handle: handle(component.StateCrouch, env.Content, func(_ *ecs.World, a *Actor) {
			if a.Body.Velocity.X == 0 {
				a.Sprite.Animation = "crouch"
				resize(a, a.Meta.BodySize)
			} else {
				a.Sprite.Animation = "slide"
				resize(a, a.Meta.SlideBodySize)
			}
			a.Body.Velocity.X = slowdown(a.Body.Velocity.X, a.Meta.Stats.Slowdown)
			if a.Control.JustPressed(input.ButtonJump) {
				a.Body.FallThrough = true
			}
		}),
	}
}

// Midair returns the midair state: jumping or falling.
func Midair(env *item.Env) State {
	return State{
		ID:    component.StateMidair,
		Items: true,
		Transition: transition(component.StateMidair, env.Content, func(w *ecs.World, a *Actor) {
			if !a.In(component.StateMidair) || !a.Body.IsOnGround {
				return
			}
			playSound(w, a.Meta.Sounds.Land, a.Meta.Sounds.LandVolume)
			a.State.Current = component.StateIdle
		}),
		Handle: handle(component.StateMidair, env.Content, func(_ *ecs.World, a *Actor) {
			stats := a.Meta.Stats
			ctrl := a.Control
			v := &a.Body.Velocity

			if v.Y > 0 {
				a.Sprite.Animation = "rise"
			} else {
				a.Sprite.Animation = "fall"
			}
			if ctrl.Pressed(input.ButtonJump) {
				v.Y = max(v.Y, -stats.SlowFallSpeed)
			}

			v.X += float64(stats.AccelAirSpeed * ctrl.MoveDirection.X)
			if ctrl.MoveDirection.X >= 0 {
				v.X = min(v.X, stats.AirSpeed)
			} else {
				v.X = max(v.X, -stats.AirSpeed)
			}
			if ctrl.MoveDirection.X == 0 {
				v.X = slowdown(v.X, stats.Slowdown)
			}

			a.Body.FallThrough = ctrl.MoveDirection.Y < crouchThreshold && ctrl.Pressed(input.ButtonJump)
			a.Face(ctrl.MoveDirection.X)
		}),
	}
}

// Incapacitated returns the ragdoll state entered while a player carries
// an Incapacitated component. Leaving it pops the player upward.
func Incapacitated(env *item.Env) State {
	return State{
		ID: component.StateIncapacitated,
		Transition: transition(component.StateIncapacitated, env.Content, func(w *ecs.World, a *Actor) {
			knocked := ecs.Has[component.Incapacitated](w, a.ID)
			switch {
			case a.In(component.StateIncapacitated) && !knocked:
				a.State.Current = component.StateIdle
				a.Body.Velocity = geom.V2(0, env.Content.Game.RagdollPopSpeed)
			case knocked && !a.In(component.StateIncapacitated) && !a.In(component.StateDead):
				a.State.Current = component.StateIncapacitated
			}
		}),
		Handle: handle(component.StateIncapacitated, env.Content, func(w *ecs.World, a *Actor) {
			if a.State.Age == 0 {
				a.Sprite.Animation = "ragdoll"
				item.SetInventoryLater(w, a.ID, ecs.NoEntity)
			}
			if a.Body.IsOnGround {
				a.Body.Velocity.X = slowdown(a.Body.Velocity.X, a.Meta.Stats.Slowdown)
			}
			inc, ok := ecs.Get[component.Incapacitated](w, a.ID)
			if !ok {
				return
			}
			inc.Ticks--
			if inc.Ticks <= 0 {
				ecs.RemoveLater[component.Incapacitated](w.Commands(), a.ID)
			}
		}),
	}
}

// Dead returns the dead state entered by any player with PlayerKilled. A
// lone player is despawned after the respawn delay so it can be respawned.
func Dead(env *item.Env) State {
	return State{
		ID: component.StateDead,
		Transition: transition(component.StateDead, env.Content, func(w *ecs.World, a *Actor) {
			if ecs.Has[component.PlayerKilled](w, a.ID) {
				a.State.Current = component.StateDead
			}
		}),
		Handle: handle(component.StateDead, env.Content, func(w *ecs.World, a *Actor) {
			if a.State.Age == 0 {
				a.Sprite.Animation = "death"
				item.SetInventoryLater(w, a.ID, ecs.NoEntity)
				a.Body.Velocity.Y = env.Content.Game.RagdollPopSpeed
				playSound(w, a.Meta.Sounds.Death, a.Meta.Sounds.DeathVolume)
				event.Emit(ecs.Res[event.Queue](w), event.PlayerDied{Entity: a.ID, Player: int(a.Index)})
			}
			if a.Body.IsOnGround {
				a.Body.Velocity.X = slowdown(a.Body.Velocity.X, a.Meta.Stats.Slowdown)
			}
			if a.State.Age >= env.Content.Game.RespawnTicks && ecs.Comp[component.PlayerIdx](w).Len() == 1 {
				w.Commands().Despawn(a.ID)
			}
		}),
	}
}
