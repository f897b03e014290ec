// Package geom holds the small vector and rectangle types shared by the
// simulation. Every operation is plain float64 arithmetic with no fused
// multiply-add opportunities left to the compiler, so results are identical
// across machines.
package geom

type Vec2 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func V2(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale multiplies each axis by s. The explicit conversions keep the
// products rounded before any later addition.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{float64(v.X * s), float64(v.Y * s)} }

func (v Vec2) IsZero() bool { return v.X == 0 && v.Y == 0 }

type Vec3 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v Vec3) XY() Vec2 { return Vec2{v.X, v.Y} }

// WithXY replaces the planar part and keeps the depth.
func (v Vec3) WithXY(p Vec2) Vec3 { return Vec3{p.X, p.Y, v.Z} }

// Rect is an axis-aligned box given by its min and max corners.
type Rect struct {
	Min Vec2
	Max Vec2
}

// RectAt builds the box of the given size centered on c.
func RectAt(c Vec2, size Vec2) Rect {
	h := size.Scale(0.5)
	return Rect{Min: c.Sub(h), Max: c.Add(h)}
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// Overlaps is a closed-interval test: boxes that only touch overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.Min.X <= o.Max.X && r.Max.X >= o.Min.X &&
		r.Min.Y <= o.Max.Y && r.Max.Y >= o.Min.Y
}

// Sign returns -1, 0 or 1.
func Sign(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

func Clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
