package component

import "github.com/jumpgo/server/internal/geom"

type ShapeKind uint8

const (
	ShapeRect ShapeKind = iota
	ShapeCircle
)

// Shape is the collision outline of a body, centered on its Transform.
// Circles collide by their bounding square.
type Shape struct {
	Kind   ShapeKind
	Size   geom.Vec2
	Radius float64
}

func RectShape(size geom.Vec2) Shape {
	return Shape{Kind: ShapeRect, Size: size}
}

func CircleShape(radius float64) Shape {
	return Shape{Kind: ShapeCircle, Radius: radius}
}

// KinematicBody is a dynamic actor moved by the physics step.
// Pure data; all mutations happen in systems.
type KinematicBody struct {
	Velocity      geom.Vec2
	Shape         Shape
	HasMass       bool    // affected by gravity
	Bounciness    float64 // 0 stops on impact, 1 reflects fully
	Friction      float64 // horizontal decay per second while grounded
	IsOnGround    bool
	WasOnGround   bool
	FallThrough   bool // ignore platforms this tick
	IsDeactivated bool // held items ride their holder
}

// Solid is level geometry, sized around its Transform. A platform only
// blocks bodies landing on it from above.
type Solid struct {
	Size     geom.Vec2
	Platform bool
}
