// Package models loads and builds the meshes drawn by occlude.
package models

import (
	"image"

	"github.com/taigrr/occlude/pkg/math3d"
)

// Mesh is an indexed triangle mesh with per-face materials.
type Mesh struct {
	Name      string
	Vertices  []MeshVertex
	Faces     []Face
	Materials []Material

	// Set by CalculateBounds.
	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// MeshVertex holds all vertex attributes.
type MeshVertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Face is a triangle. Material indexes Mesh.Materials, -1 for none.
type Face struct {
	V        [3]int
	Material int
}

// Material is a metallic-roughness material as stored in GLTF.
type Material struct {
	Name       string
	BaseColor  [4]float64 // linear RGBA
	Metallic   float64
	Roughness  float64
	BaseMap    image.Image
	HasTexture bool

	DoubleSided bool
	// Blend is set for alpha blended materials.
	Blend bool
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

// CalculateBounds computes the axis-aligned bounding box.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		return
	}
	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// faceNormal returns the unnormalized normal of f, whose length is twice
// the triangle area.
func (m *Mesh) faceNormal(f Face) math3d.Vec3 {
	p0 := m.Vertices[f.V[0]].Position
	return m.Vertices[f.V[1]].Position.Sub(p0).Cross(m.Vertices[f.V[2]].Position.Sub(p0))
}

// CalculateNormals gives every vertex the normal of the last face using it.
// Meshes with shared vertices look faceted only where faces do not share
// them.
func (m *Mesh) CalculateNormals() {
	for _, f := range m.Faces {
		n := m.faceNormal(f).Normalize()
		for _, vi := range f.V {
			m.Vertices[vi].Normal = n
		}
	}
}

// CalculateSmoothNormals sets each vertex normal to the area weighted
// average of the faces around it.
func (m *Mesh) CalculateSmoothNormals() {
	sums := make([]math3d.Vec3, len(m.Vertices))
	for _, f := range m.Faces {
		n := m.faceNormal(f)
		for _, vi := range f.V {
			sums[vi] = sums[vi].Add(n)
		}
	}
	for i, n := range sums {
		m.Vertices[i].Normal = n.Normalize()
	}
}

// Transform applies mat to all vertices and recomputes the bounds. Normals
// go through the upper 3x3 of mat, which is exact for uniform scales.
func (m *Mesh) Transform(mat math3d.Mat4) {
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Position = mat.MulVec3(v.Position)
		v.Normal = mat.MulVec3Dir(v.Normal).Normalize()
	}
	m.CalculateBounds()
}

// GetVertex returns the position, normal and UV of vertex i.
func (m *Mesh) GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2) {
	v := m.Vertices[i]
	return v.Position, v.Normal, v.UV
}

func (m *Mesh) GetFace(i int) [3]int {
	return m.Faces[i].V
}

func (m *Mesh) GetFaceMaterial(i int) int {
	return m.Faces[i].Material
}

// GetMaterial returns material i, or nil when i is out of range.
func (m *Mesh) GetMaterial(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}
