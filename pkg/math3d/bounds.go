package math3d

import "math"

// PlaneEpsilon is the thickness used when classifying points against a plane.
const PlaneEpsilon = 1e-6

// Side classifies a volume against a plane.
type Side int

const (
	SideFront Side = iota // entirely on the normal side
	SideBack              // entirely behind the plane
	SideCross             // straddles the plane
)

func (s Side) String() string {
	switch s {
	case SideFront:
		return "front"
	case SideBack:
		return "back"
	default:
		return "cross"
	}
}

// Plane is the set of points p with Normal·p + D = 0.
type Plane struct {
	Normal Vec3
	D      float64
}

// PlaneFromPointNormal returns the plane through p with normal n.
func PlaneFromPointNormal(p, n Vec3) Plane {
	return Plane{Normal: n, D: -n.Dot(p)}
}

// Normalize rescales the equation so the normal has unit length.
func (p *Plane) Normalize() {
	l := p.Normal.Len()
	if l == 0 {
		return
	}
	p.Normal = p.Normal.Scale(1.0 / l)
	p.D /= l
}

// Distance returns the signed distance to a point. Positive is in front.
func (p Plane) Distance(point Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Translate moves the plane by offset.
func (p Plane) Translate(offset Vec3) Plane {
	return Plane{Normal: p.Normal, D: p.D - p.Normal.Dot(offset)}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// NewAABB creates an AABB from min and max points.
func NewAABB(min, max Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// AABBFromCenterExtents builds a box from its center and half size.
func AABBFromCenterExtents(center, extents Vec3) AABB {
	return AABB{Min: center.Sub(extents), Max: center.Add(extents)}
}

// Center returns the center of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the dimensions of the box.
func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Extents returns the half size.
func (b AABB) Extents() Vec3 {
	return b.Size().Scale(0.5)
}

// Scaled returns the box with both corners multiplied component-wise by s.
func (b AABB) Scaled(s Vec3) AABB {
	p, q := b.Min.Mul(s), b.Max.Mul(s)
	return AABB{Min: p.Min(q), Max: p.Max(q)}
}

// Translated returns the box moved by offset.
func (b AABB) Translated(offset Vec3) AABB {
	return AABB{Min: b.Min.Add(offset), Max: b.Max.Add(offset)}
}

// Expanded grows the box by d on every side.
func (b AABB) Expanded(d float64) AABB {
	e := Splat3(d)
	return AABB{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Corners returns the 8 corners of the box.
func (b AABB) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// Transform returns the box bounding all 8 corners after m.
func (b AABB) Transform(m Mat4) AABB {
	corners := b.Corners()
	first := m.MulVec3(corners[0])
	out := AABB{Min: first, Max: first}
	for _, c := range corners[1:] {
		p := m.MulVec3(c)
		out.Min = out.Min.Min(p)
		out.Max = out.Max.Max(p)
	}
	return out
}

// TransformedAABB bounds a local box after rotating it by axis and moving it
// to origin.
func TransformedAABB(local AABB, origin Vec3, axis Mat3) AABB {
	center := axis.MulVec3(local.Center()).Add(origin)
	ext := local.Extents()
	var world Vec3
	for i := range 3 {
		// Sum of projected extents along each world axis.
		r := math.Abs(axis[i])*ext.X + math.Abs(axis[3+i])*ext.Y + math.Abs(axis[6+i])*ext.Z
		world = world.With(i, r)
	}
	return AABBFromCenterExtents(center, world)
}

// ContainsPoint reports whether p is inside the box (inclusive).
func (b AABB) ContainsPoint(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Intersects reports whether two boxes overlap.
func (b AABB) Intersects(o AABB) bool {
	return b.Min.X <= o.Max.X && b.Max.X >= o.Min.X &&
		b.Min.Y <= o.Max.Y && b.Max.Y >= o.Min.Y &&
		b.Min.Z <= o.Max.Z && b.Max.Z >= o.Min.Z
}

// PlaneSide classifies the box against p.
func (b AABB) PlaneSide(p Plane) Side {
	c := b.Center()
	e := b.Extents()
	d := p.Distance(c)
	r := math.Abs(p.Normal.X)*e.X + math.Abs(p.Normal.Y)*e.Y + math.Abs(p.Normal.Z)*e.Z
	switch {
	case d-r > PlaneEpsilon:
		return SideFront
	case d+r < -PlaneEpsilon:
		return SideBack
	default:
		return SideCross
	}
}

// OBB is an oriented box: a center, a basis and half sizes along the basis.
type OBB struct {
	Center  Vec3
	Extents Vec3
	Axis    Mat3
}

// ContainsPoint reports whether p lies inside the box.
func (o OBB) ContainsPoint(p Vec3) bool {
	local := o.Axis.TransposeMulVec3(p.Sub(o.Center))
	return math.Abs(local.X) <= o.Extents.X &&
		math.Abs(local.Y) <= o.Extents.Y &&
		math.Abs(local.Z) <= o.Extents.Z
}

// Corners returns the 8 corners in the same order as AABB.Corners.
func (o OBB) Corners() [8]Vec3 {
	local := AABB{Min: o.Extents.Negate(), Max: o.Extents}.Corners()
	var out [8]Vec3
	for i, c := range local {
		out[i] = o.Axis.MulVec3(c).Add(o.Center)
	}
	return out
}

// Sphere is a center and radius.
type Sphere struct {
	Center Vec3
	Radius float64
}

// ContainsPoint reports whether p is strictly inside the sphere.
func (s Sphere) ContainsPoint(p Vec3) bool {
	return s.Center.DistanceSq(p) < s.Radius*s.Radius
}

// AABB returns the bounding box of the sphere.
func (s Sphere) AABB() AABB {
	return AABBFromCenterExtents(s.Center, Splat3(s.Radius))
}
