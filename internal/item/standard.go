package item

import (
	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
)

const (
	jetpackLift  = 420 // units/s
	jetpackDrift = 60
)

// RegisterStandardEffects adds the custom effects shipped with the default
// content.
func RegisterStandardEffects(e *Effects) error {
	return e.Register("jetpack", jetpack)
}

// jetpack launches the user upward, drifting the way they face, and burns
// out.
func jetpack(w *ecs.World, user, it ecs.EntityID) error {
	if b, ok := ecs.Get[component.KinematicBody](w, user); ok {
		dir := 1.0
		if s, ok := ecs.Get[component.Sprite](w, user); ok && s.FlipX {
			dir = -1
		}
		b.Velocity.X += jetpackDrift * dir
		b.Velocity.Y = jetpackLift
		b.IsOnGround = false
	}
	if err := SetInventory(w, user, ecs.NoEntity); err != nil {
		return err
	}
	return w.Despawn(it)
}
