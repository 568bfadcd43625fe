package math3d

import (
	"math"
	"testing"
)

const eps = 1e-9

func vecNear(a, b Vec3, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol && math.Abs(a.Z-b.Z) <= tol
}

func TestPlaneDistance(t *testing.T) {
	plane := Plane{Normal: V3(0, 0, 1), D: 0}

	tests := []struct {
		name     string
		point    Vec3
		expected float64
	}{
		{"origin", V3(0, 0, 0), 0},
		{"in front", V3(0, 0, 5), 5},
		{"behind", V3(0, 0, -3), -3},
		{"offset XY", V3(10, -5, 2), 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if d := plane.Distance(tc.point); math.Abs(d-tc.expected) > eps {
				t.Errorf("got %v, want %v", d, tc.expected)
			}
		})
	}
}

func TestPlaneNormalize(t *testing.T) {
	plane := Plane{Normal: V3(0, 3, 4), D: 10}
	plane.Normalize()

	if l := plane.Normal.Len(); math.Abs(l-1) > eps {
		t.Errorf("normal length = %v, want 1", l)
	}
	if math.Abs(plane.D-2) > eps {
		t.Errorf("D = %v, want 2", plane.D)
	}
}

func TestPlaneTranslate(t *testing.T) {
	p := PlaneFromPointNormal(V3(0, 0, 0), V3(0, 0, -1)).Translate(V3(0, 0, -5))

	if d := p.Distance(V3(0, 0, -5)); math.Abs(d) > eps {
		t.Errorf("translated plane should pass through (0,0,-5), distance %v", d)
	}
	if d := p.Distance(V3(0, 0, -6)); d <= 0 {
		t.Errorf("point beyond the plane along its normal should be in front, got %v", d)
	}
}

func TestAABBBasics(t *testing.T) {
	box := NewAABB(V3(-1, -2, -3), V3(1, 2, 3))

	if c := box.Center(); c != (Vec3{}) {
		t.Errorf("center = %v, want zero", c)
	}
	if s := box.Size(); s != V3(2, 4, 6) {
		t.Errorf("size = %v, want (2, 4, 6)", s)
	}
	if e := box.Extents(); e != V3(1, 2, 3) {
		t.Errorf("extents = %v, want (1, 2, 3)", e)
	}
}

func TestAABBContainsPoint(t *testing.T) {
	box := NewAABB(V3(0, 0, 0), V3(10, 10, 10))

	tests := []struct {
		name     string
		point    Vec3
		expected bool
	}{
		{"center", V3(5, 5, 5), true},
		{"corner min", V3(0, 0, 0), true},
		{"corner max", V3(10, 10, 10), true},
		{"outside X", V3(11, 5, 5), false},
		{"outside Y", V3(5, -1, 5), false},
		{"outside Z", V3(5, 5, 15), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := box.ContainsPoint(tc.point); got != tc.expected {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tc.point, got, tc.expected)
			}
		})
	}
}

func TestAABBTransform(t *testing.T) {
	box := NewAABB(V3(-1, -1, -1), V3(1, 1, 1))

	t.Run("translation", func(t *testing.T) {
		got := box.Transform(Translate(V3(10, 20, 30)))
		if got.Min != V3(9, 19, 29) || got.Max != V3(11, 21, 31) {
			t.Errorf("translated = %v, want (9,19,29)-(11,21,31)", got)
		}
	})

	t.Run("scale", func(t *testing.T) {
		got := box.Transform(Scale(V3(2, 2, 2)))
		if got.Min != V3(-2, -2, -2) || got.Max != V3(2, 2, 2) {
			t.Errorf("scaled = %v, want (-2,-2,-2)-(2,2,2)", got)
		}
	})
}

func TestTransformedAABBMatchesCornerTransform(t *testing.T) {
	local := NewAABB(V3(-1, -2, 0), V3(3, 1, 2))
	origin := V3(4, -1, 7)
	axis := Mat3RotateY(0.7)

	got := TransformedAABB(local, origin, axis)
	want := local.Transform(axis.Mat4(origin))

	if !vecNear(got.Min, want.Min, 1e-9) || !vecNear(got.Max, want.Max, 1e-9) {
		t.Errorf("TransformedAABB = %v, want %v", got, want)
	}
}

func TestAABBScaled(t *testing.T) {
	got := NewAABB(V3(-1, 0, 2), V3(1, 1, 3)).Scaled(V3(2, -1, 1))
	if got.Min != V3(-2, -1, 2) || got.Max != V3(2, 0, 3) {
		t.Errorf("Scaled = %v", got)
	}
}

func TestAABBPlaneSide(t *testing.T) {
	p := PlaneFromPointNormal(V3(0, 0, 0), V3(0, 0, 1))

	tests := []struct {
		name string
		box  AABB
		want Side
	}{
		{"front", NewAABB(V3(-1, -1, 1), V3(1, 1, 2)), SideFront},
		{"back", NewAABB(V3(-1, -1, -3), V3(1, 1, -1)), SideBack},
		{"cross", NewAABB(V3(-1, -1, -1), V3(1, 1, 1)), SideCross},
		{"touching", NewAABB(V3(-1, -1, -2), V3(1, 1, 0)), SideCross},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.box.PlaneSide(p); got != tc.want {
				t.Errorf("PlaneSide = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOBBContainsPoint(t *testing.T) {
	o := OBB{Center: V3(10, 0, 0), Extents: V3(4, 1, 1), Axis: Mat3RotateY(math.Pi / 2)}

	// Rotated a quarter turn, the long local X axis lies along world Z.
	if !o.ContainsPoint(V3(10, 0, 3.5)) {
		t.Error("point along the rotated long axis should be inside")
	}
	if o.ContainsPoint(V3(13.5, 0, 0)) {
		t.Error("point along world X beyond the short extent should be outside")
	}
}

func TestSphereContainsPoint(t *testing.T) {
	s := Sphere{Center: V3(1, 1, 1), Radius: 2}
	if !s.ContainsPoint(V3(2, 1, 1)) {
		t.Error("inner point should be contained")
	}
	if s.ContainsPoint(V3(3, 1, 1)) {
		t.Error("point on the surface is not strictly inside")
	}
}

func TestFrustumContainsPoint(t *testing.T) {
	frustum := NewFrustumFromMatrix(Perspective(math.Pi/3, 16.0/9.0, 0.1, 100))

	tests := []struct {
		name     string
		point    Vec3
		expected bool
	}{
		{"center near", V3(0, 0, -1), true},
		{"center far", V3(0, 0, -99), true},
		{"behind camera", V3(0, 0, 1), false},
		{"too far", V3(0, 0, -200), false},
		{"too close", V3(0, 0, -0.01), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := frustum.ContainsPoint(tc.point); got != tc.expected {
				t.Errorf("ContainsPoint(%v) = %v, want %v", tc.point, got, tc.expected)
			}
		})
	}
}

func TestFrustumIntersectAABB(t *testing.T) {
	frustum := NewFrustumFromMatrix(Perspective(math.Pi/3, 16.0/9.0, 1, 100))

	tests := []struct {
		name     string
		box      AABB
		expected bool
	}{
		{"fully inside", NewAABB(V3(-1, -1, -10), V3(1, 1, -5)), true},
		{"crossing near", NewAABB(V3(-1, -1, -2), V3(1, 1, 2)), true},
		{"behind camera", NewAABB(V3(-1, -1, 5), V3(1, 1, 10)), false},
		{"beyond far", NewAABB(V3(-1, -1, -150), V3(1, 1, -120)), false},
		{"far to the right", NewAABB(V3(100, -1, -10), V3(110, 1, -5)), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := frustum.IntersectAABB(tc.box); got != tc.expected {
				t.Errorf("IntersectAABB(%v) = %v, want %v", tc.box, got, tc.expected)
			}
		})
	}
}

func TestFrustumCorners(t *testing.T) {
	near, far := 1.0, 10.0
	frustum := NewFrustumFromMatrix(Perspective(math.Pi/2, 1, near, far))
	corners := frustum.Corners()

	// With a 90 degree fov and square aspect the half width equals the depth.
	want := [8]Vec3{
		V3(-far, -far, -far), V3(far, -far, -far), V3(-far, far, -far), V3(far, far, -far),
		V3(-near, -near, -near), V3(near, -near, -near), V3(-near, near, -near), V3(near, near, -near),
	}
	for i := range corners {
		if !vecNear(corners[i], want[i], 1e-6) {
			t.Errorf("corner %d = %v, want %v", i, corners[i], want[i])
		}
	}
}

func TestMipHelpers(t *testing.T) {
	tests := []struct {
		n         int
		log2Floor int
	}{
		{1, 0}, {2, 1}, {3, 1}, {255, 7}, {256, 8}, {4096, 12},
	}
	for _, tc := range tests {
		if got := Log2Floor(tc.n); got != tc.log2Floor {
			t.Errorf("Log2Floor(%d) = %d, want %d", tc.n, got, tc.log2Floor)
		}
	}

	if got := Log2Ceil(5.0); got != 3 {
		t.Errorf("Log2Ceil(5) = %d, want 3", got)
	}
	if got := Log2Ceil(0.5); got != 0 {
		t.Errorf("Log2Ceil(0.5) = %d, want 0", got)
	}
	if got := MipDim(256, 7); got != 2 {
		t.Errorf("MipDim(256, 7) = %d, want 2", got)
	}
	if got := MipDim(5, 4); got != 1 {
		t.Errorf("MipDim(5, 4) = %d, want 1", got)
	}
}
