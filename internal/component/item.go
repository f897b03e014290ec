package component

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/data"
)

// Item is a grabbable entity. Holder is ecs.NoEntity while on the ground.
// Thrower is set while a thrown item is still in flight and has hit nobody.
type Item struct {
	Handle  data.ItemHandle
	Holder  ecs.EntityID
	Thrower ecs.EntityID
	Thrown  bool // set once used, items are not grabbed again afterwards
}

type FusePhase uint8

const (
	FuseCountdown FusePhase = iota
	FuseArmed
	FuseExploding
	FuseSpent
)

// Fuse drives a timed item effect. Ticks counts down in Countdown and
// Exploding; Armed waits for contact.
type Fuse struct {
	Phase FusePhase
	Ticks int
}
