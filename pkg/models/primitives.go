package models

import (
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
)

// NewBox builds an axis aligned box centered at the origin with outward
// counter-clockwise faces. Each face has its own four vertices so normals
// and UVs stay flat.
func NewBox(name string, half math3d.Vec3) *Mesh {
	m := NewMesh(name)
	faces := [6]struct {
		n, u, v math3d.Vec3
	}{
		{math3d.V3(1, 0, 0), math3d.V3(0, 0, -1), math3d.V3(0, 1, 0)},
		{math3d.V3(-1, 0, 0), math3d.V3(0, 0, 1), math3d.V3(0, 1, 0)},
		{math3d.V3(0, 1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, -1)},
		{math3d.V3(0, -1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, 1)},
		{math3d.V3(0, 0, 1), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)},
		{math3d.V3(0, 0, -1), math3d.V3(-1, 0, 0), math3d.V3(0, 1, 0)},
	}
	for _, f := range faces {
		base := len(m.Vertices)
		for _, c := range [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := f.n.Add(f.u.Scale(c[0])).Add(f.v.Scale(c[1])).Mul(half)
			m.Vertices = append(m.Vertices, MeshVertex{
				Position: p,
				Normal:   f.n,
				UV:       math3d.V2((c[0]+1)/2, (c[1]+1)/2),
			})
		}
		m.Faces = append(m.Faces,
			Face{V: [3]int{base, base + 1, base + 2}, Material: -1},
			Face{V: [3]int{base, base + 2, base + 3}, Material: -1},
		)
	}
	m.CalculateBounds()
	return m
}

// NewSphere builds a UV sphere with the given number of latitude rings and
// longitude segments.
func NewSphere(name string, radius float64, rings, segments int) *Mesh {
	rings = max(rings, 2)
	segments = max(segments, 3)
	m := NewMesh(name)
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			n := math3d.V3(math.Sin(phi)*math.Cos(theta), math.Cos(phi), -math.Sin(phi)*math.Sin(theta))
			m.Vertices = append(m.Vertices, MeshVertex{
				Position: n.Scale(radius),
				Normal:   n,
				UV:       math3d.V2(float64(s)/float64(segments), float64(r)/float64(rings)),
			})
		}
	}
	stride := segments + 1
	for r := range rings {
		for s := range segments {
			a := r*stride + s
			b := a + stride
			// Skip the degenerate triangles at the poles.
			if r != 0 {
				m.Faces = append(m.Faces, Face{V: [3]int{a, b, a + 1}, Material: -1})
			}
			if r != rings-1 {
				m.Faces = append(m.Faces, Face{V: [3]int{a + 1, b, b + 1}, Material: -1})
			}
		}
	}
	m.CalculateBounds()
	return m
}
