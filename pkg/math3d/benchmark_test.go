package math3d

import (
	"math"
	"testing"
)

func BenchmarkMat4Mul(b *testing.B) {
	m1 := Translate(V3(1, 2, 3))
	m2 := RotateY(0.5)

	for b.Loop() {
		_ = m1.Mul(m2)
	}
}

func BenchmarkMat4MulVec4(b *testing.B) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5))
	v := V4(1, 2, 3, 1)

	for b.Loop() {
		_ = m.MulVec4(v)
	}
}

func BenchmarkTransformedAABB(b *testing.B) {
	box := NewAABB(V3(-1, -1, -1), V3(1, 1, 1))
	axis := Mat3RotateY(0.5)

	for b.Loop() {
		_ = TransformedAABB(box, V3(10, 0, 0), axis)
	}
}

func BenchmarkAABBPlaneSide(b *testing.B) {
	box := NewAABB(V3(-1, -1, -10), V3(1, 1, -5))
	p := PlaneFromPointNormal(V3(0, 0, -1), V3(0, 0, 1))

	for b.Loop() {
		_ = box.PlaneSide(p)
	}
}

func BenchmarkFrustumIntersectAABB(b *testing.B) {
	frustum := NewFrustumFromMatrix(Perspective(math.Pi/3, 16.0/9.0, 0.1, 1000.0))
	box := NewAABB(V3(-1, -1, -10), V3(1, 1, -5))

	for b.Loop() {
		_ = frustum.IntersectAABB(box)
	}
}

func BenchmarkFrustumCorners(b *testing.B) {
	view := LookAt(V3(0, 10, 20), V3(0, 0, 0), V3(0, 1, 0))
	frustum := NewFrustumFromMatrix(Perspective(math.Pi/3, 16.0/9.0, 0.1, 1000.0).Mul(view))

	for b.Loop() {
		_ = frustum.Corners()
	}
}
