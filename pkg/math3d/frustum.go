package math3d

// Frustum holds six planes with normals pointing inward.
// Planes are ordered: Left, Right, Bottom, Top, Near, Far.
type Frustum struct {
	Planes [6]Plane
}

// Frustum plane indices.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts the planes of a view-projection matrix
// (Gribb/Hartmann). For column-major m, row i element j is m[i+j*4].
func NewFrustumFromMatrix(m Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	plane := func(v Vec4) Plane {
		p := Plane{Normal: v.Vec3(), D: v.W}
		p.Normalize()
		return p
	}

	var f Frustum
	f.Planes[FrustumLeft] = plane(r3.Add(r0))
	f.Planes[FrustumRight] = plane(r3.Add(r0.Scale(-1)))
	f.Planes[FrustumBottom] = plane(r3.Add(r1))
	f.Planes[FrustumTop] = plane(r3.Add(r1.Scale(-1)))
	f.Planes[FrustumNear] = plane(r3.Add(r2))
	f.Planes[FrustumFar] = plane(r3.Add(r2.Scale(-1)))
	return f
}

// ContainsPoint reports whether p is on the inner side of every plane.
func (f Frustum) ContainsPoint(p Vec3) bool {
	for i := range f.Planes {
		if f.Planes[i].Distance(p) < 0 {
			return false
		}
	}
	return true
}

// IntersectAABB reports whether any part of box may be inside the frustum,
// using the positive vertex of each plane.
func (f Frustum) IntersectAABB(box AABB) bool {
	for i := range f.Planes {
		n := f.Planes[i].Normal
		pv := V3(
			pick(n.X >= 0, box.Max.X, box.Min.X),
			pick(n.Y >= 0, box.Max.Y, box.Min.Y),
			pick(n.Z >= 0, box.Max.Z, box.Min.Z),
		)
		if f.Planes[i].Distance(pv) < 0 {
			return false
		}
	}
	return true
}

// Corners returns the 8 frustum corners laid out like AABB.Corners for a
// frustum looking down -Z: far plane first, then near, each as
// (left,bottom) (right,bottom) (left,top) (right,top).
func (f Frustum) Corners() [8]Vec3 {
	var out [8]Vec3
	i := 0
	for _, z := range []int{FrustumFar, FrustumNear} {
		for _, y := range []int{FrustumBottom, FrustumTop} {
			for _, x := range []int{FrustumLeft, FrustumRight} {
				out[i] = intersect3(f.Planes[x], f.Planes[y], f.Planes[z])
				i++
			}
		}
	}
	return out
}

// intersect3 returns the common point of three planes.
func intersect3(a, b, c Plane) Vec3 {
	bc := b.Normal.Cross(c.Normal)
	den := a.Normal.Dot(bc)
	if den == 0 {
		return Vec3{}
	}
	p := bc.Scale(-a.D).
		Add(c.Normal.Cross(a.Normal).Scale(-b.D)).
		Add(a.Normal.Cross(b.Normal).Scale(-c.D))
	return p.Scale(1 / den)
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
