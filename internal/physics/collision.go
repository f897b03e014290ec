// Package physics moves kinematic bodies against level geometry.
//
// Colliders are indexed in a resolv spatial grid, which narrows every query
// to the objects sharing its cells; the exact tests below then run on those
// candidates only. Bodies are swept along X then Y. Horizontal sweeps ignore
// solids the body only touches along Y (open interval), so a body resting
// on a floor can walk; vertical sweeps and overlap queries use closed
// intervals, so a body exactly on a platform edge is on the ground.
package physics

import (
	"math"
	"slices"

	"github.com/jumpgo/server/internal/component"
	"github.com/jumpgo/server/internal/core/ecs"
	"github.com/jumpgo/server/internal/geom"
	"github.com/solarlune/resolv"
)

// contactEpsilon absorbs rounding when a body rests exactly on a surface.
const contactEpsilon = 1e-6

// Object tags in the collision space.
const (
	tagSolid    = "solid"
	tagPlatform = "platform"
	tagActor    = "actor"
	tagQuery    = "query"
)

const (
	cellSize    = 32
	spaceMargin = 4 * cellSize
	// gridPad grows every indexed box and query by one unit per side.
	// resolv maps an object to cells up to X+W-1, so without it boxes that
	// only touch could land in disjoint cells.
	gridPad = 1
)

// Bounds returns the box of shape s centered on pos. Circles use their
// bounding square.
func Bounds(pos geom.Vec2, s component.Shape) geom.Rect {
	if s.Kind == component.ShapeCircle {
		d := float64(s.Radius * 2)
		return geom.RectAt(pos, geom.V2(d, d))
	}
	return geom.RectAt(pos, s.Size)
}

type solidBox struct {
	id       ecs.EntityID
	rect     geom.Rect
	platform bool
}

// CollisionWorld is a view of the world's colliders taken when it is built.
// Rebuild it after moving solids.
type CollisionWorld struct {
	w      *ecs.World
	bodies *ecs.Store[component.KinematicBody]
	xforms *ecs.Store[component.Transform]

	space  *resolv.Space
	origin geom.Vec2 // world position of the grid's min corner
	actors map[ecs.EntityID]*resolv.Object
	query  *resolv.Object
}

func NewCollisionWorld(w *ecs.World) *CollisionWorld {
	c := &CollisionWorld{
		w:      w,
		bodies: ecs.Comp[component.KinematicBody](w),
		xforms: ecs.Comp[component.Transform](w),
		actors: make(map[ecs.EntityID]*resolv.Object),
	}

	var solids []solidBox
	ecs.Each2(ecs.Comp[component.Solid](w), c.xforms, func(id ecs.EntityID, s *component.Solid, t *component.Transform) {
		solids = append(solids, solidBox{
			id:       id,
			rect:     geom.RectAt(t.Translation.XY(), s.Size),
			platform: s.Platform,
		})
	})
	type actorBox struct {
		id   ecs.EntityID
		rect geom.Rect
	}
	var actors []actorBox
	ecs.Each2(c.bodies, c.xforms, func(id ecs.EntityID, b *component.KinematicBody, t *component.Transform) {
		if !b.IsDeactivated {
			actors = append(actors, actorBox{id: id, rect: Bounds(t.Translation.XY(), b.Shape)})
		}
	})

	extent := geom.Rect{
		Min: geom.V2(math.Inf(1), math.Inf(1)),
		Max: geom.V2(math.Inf(-1), math.Inf(-1)),
	}
	for _, s := range solids {
		extent = union(extent, s.rect)
	}
	for _, a := range actors {
		extent = union(extent, a.rect)
	}
	if extent.Min.X > extent.Max.X {
		extent = geom.Rect{}
	}
	c.origin = extent.Min.Sub(geom.V2(spaceMargin, spaceMargin))
	width := int(math.Ceil(extent.Width())) + 2*spaceMargin
	height := int(math.Ceil(extent.Height())) + 2*spaceMargin
	c.space = resolv.NewSpace(width, height, cellSize, cellSize)

	for _, s := range solids {
		tags := []string{tagSolid}
		if s.platform {
			tags = append(tags, tagPlatform)
		}
		obj := c.object(s.rect, tags...)
		obj.Data = s
		c.space.Add(obj)
	}
	for _, a := range actors {
		obj := c.object(a.rect, tagActor)
		obj.Data = a.id
		c.space.Add(obj)
		c.actors[a.id] = obj
	}
	c.query = c.object(geom.Rect{}, tagQuery)
	c.space.Add(c.query)
	return c
}

// object creates a grid object covering r, padded by gridPad.
func (c *CollisionWorld) object(r geom.Rect, tags ...string) *resolv.Object {
	at := r.Min.Sub(c.origin)
	return resolv.NewObject(at.X-gridPad, at.Y-gridPad, r.Width()+2*gridPad, r.Height()+2*gridPad, tags...)
}

// place moves obj to cover r and refreshes its cells.
func (c *CollisionWorld) place(obj *resolv.Object, r geom.Rect) {
	at := r.Min.Sub(c.origin)
	obj.X, obj.Y = at.X-gridPad, at.Y-gridPad
	obj.W, obj.H = r.Width()+2*gridPad, r.Height()+2*gridPad
	obj.Update()
}

// candidates returns the objects tagged with any of tags in the cells r
// touches. Callers still test exact overlap.
func (c *CollisionWorld) candidates(r geom.Rect, tags ...string) []*resolv.Object {
	c.place(c.query, r)
	hit := c.query.Check(0, 0, tags...)
	if hit == nil {
		return nil
	}
	return hit.Objects
}

func (c *CollisionWorld) solidsNear(r geom.Rect) []solidBox {
	objs := c.candidates(r, tagSolid)
	out := make([]solidBox, 0, len(objs))
	for _, obj := range objs {
		out = append(out, obj.Data.(solidBox))
	}
	return out
}

// syncActor moves id's grid object to its current box.
func (c *CollisionWorld) syncActor(id ecs.EntityID, box geom.Rect) {
	if obj, ok := c.actors[id]; ok {
		c.place(obj, box)
	}
}

func union(a, b geom.Rect) geom.Rect {
	return geom.Rect{
		Min: geom.V2(min(a.Min.X, b.Min.X), min(a.Min.Y, b.Min.Y)),
		Max: geom.V2(max(a.Max.X, b.Max.X), max(a.Max.Y, b.Max.Y)),
	}
}

// BodyBounds returns the current box of a body.
func (c *CollisionWorld) BodyBounds(id ecs.EntityID) (geom.Rect, bool) {
	b, ok := c.bodies.Get(id)
	if !ok {
		return geom.Rect{}, false
	}
	t, ok := c.xforms.Get(id)
	if !ok {
		return geom.Rect{}, false
	}
	return Bounds(t.Translation.XY(), b.Shape), true
}

// ActorCollisions returns every other active body overlapping id, sorted by
// entity id. The result is a set; its order carries no priority.
func (c *CollisionWorld) ActorCollisions(id ecs.EntityID) []ecs.EntityID {
	box, ok := c.BodyBounds(id)
	if !ok {
		return nil
	}
	return c.overlapping(box, id)
}

// ActorsIn returns every active body overlapping r, sorted by entity id.
func (c *CollisionWorld) ActorsIn(r geom.Rect) []ecs.EntityID {
	return c.overlapping(r, ecs.NoEntity)
}

func (c *CollisionWorld) overlapping(box geom.Rect, skip ecs.EntityID) []ecs.EntityID {
	var out []ecs.EntityID
	for _, obj := range c.candidates(box, tagActor) {
		other := obj.Data.(ecs.EntityID)
		if other == skip {
			continue
		}
		b, ok := c.bodies.Get(other)
		if !ok || b.IsDeactivated {
			continue
		}
		if r, ok := c.BodyBounds(other); ok && box.Overlaps(r) {
			out = append(out, other)
		}
	}
	slices.Sort(out)
	return out
}

// OnGround reports whether box rests on a solid, or on a platform when not
// falling through.
func (c *CollisionWorld) OnGround(box geom.Rect, fallThrough bool, self ecs.EntityID) bool {
	for _, s := range c.solidsNear(box) {
		if s.id == self || (s.platform && fallThrough) {
			continue
		}
		if box.Min.X > s.rect.Max.X || box.Max.X < s.rect.Min.X {
			continue
		}
		gap := box.Min.Y - s.rect.Max.Y
		if gap >= -contactEpsilon && gap <= contactEpsilon {
			return true
		}
	}
	return false
}

// sweepX returns how far box can move along x by dx before hitting a
// non-platform solid, and whether it was blocked.
func (c *CollisionWorld) sweepX(box geom.Rect, dx float64, self ecs.EntityID) (float64, bool) {
	swept := box
	swept.Min.X, swept.Max.X = min(box.Min.X, box.Min.X+dx), max(box.Max.X, box.Max.X+dx)

	blocked := false
	for _, s := range c.solidsNear(swept) {
		if s.id == self || s.platform {
			continue
		}
		if box.Min.Y >= s.rect.Max.Y-contactEpsilon || box.Max.Y <= s.rect.Min.Y+contactEpsilon {
			continue
		}
		switch {
		case dx > 0 && box.Max.X <= s.rect.Min.X+contactEpsilon:
			if limit := s.rect.Min.X - box.Max.X; box.Max.X+dx > s.rect.Min.X {
				dx, blocked = max(limit, 0), true
			}
		case dx < 0 && box.Min.X >= s.rect.Max.X-contactEpsilon:
			if limit := s.rect.Max.X - box.Min.X; box.Min.X+dx < s.rect.Max.X {
				dx, blocked = min(limit, 0), true
			}
		}
	}
	return dx, blocked
}

// sweepY is sweepX for the vertical axis. Platforms block downward motion of
// bodies starting at or above their top unless fallThrough is set. A body
// within contactEpsilon of a surface snaps onto it.
func (c *CollisionWorld) sweepY(box geom.Rect, dy float64, fallThrough bool, self ecs.EntityID) (float64, bool) {
	swept := box
	swept.Min.Y, swept.Max.Y = min(box.Min.Y, box.Min.Y+dy), max(box.Max.Y, box.Max.Y+dy)

	blocked := false
	for _, s := range c.solidsNear(swept) {
		if s.id == self {
			continue
		}
		if box.Min.X > s.rect.Max.X || box.Max.X < s.rect.Min.X {
			continue
		}
		switch {
		case dy <= 0 && box.Min.Y >= s.rect.Max.Y-contactEpsilon:
			if s.platform && fallThrough {
				continue
			}
			if limit := s.rect.Max.Y - box.Min.Y; box.Min.Y+dy <= s.rect.Max.Y {
				dy, blocked = limit, true
			}
		case dy > 0 && !s.platform && box.Max.Y <= s.rect.Min.Y+contactEpsilon:
			if limit := s.rect.Min.Y - box.Max.Y; box.Max.Y+dy > s.rect.Min.Y {
				dy, blocked = max(min(limit, dy), 0), true
			}
		}
	}
	return dy, blocked
}
