package event

import (
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/data"
	"github.com/jumpgo/server/internal/geom"
)

// PlaySound asks the audio collaborator to play a sound once.
type PlaySound struct {
	Sound  data.SoundHandle
	Volume float64
}

// PlayerDied is emitted on the tick a player enters the dead state.
type PlayerDied struct {
	Entity ecs.EntityID
	Player int
}

// Explosion is emitted when an item detonates, for effects rendering.
type Explosion struct {
	Item   ecs.EntityID
	Center geom.Vec2
	Radius float64
}
