package component

import "github.com/jumpgo/server/internal/geom"

// Transform places an entity in the world. Z orders drawing only.
type Transform struct {
	Translation geom.Vec3
	Rotation    float64
}

// Time is the rollback resource holding the simulation clock.
type Time struct {
	Tick  uint64
	Delta float64 // seconds per tick
}
