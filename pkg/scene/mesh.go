package scene

import (
	"slices"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/models"
	"github.com/taigrr/occlude/pkg/rhi"
)

// MeshPart is a sub mesh and the model material index its faces use.
type MeshPart struct {
	Material int
	SubMesh  *SubMesh
}

// MeshSurfaces splits a mesh into one triangle list per material, in
// ascending material index order. Faces without a material come first.
func MeshSurfaces(m *models.Mesh) []MeshPart {
	byMaterial := make(map[int][]rhi.Vertex)
	for i := range m.TriangleCount() {
		mat := m.GetFaceMaterial(i)
		for _, vi := range m.GetFace(i) {
			pos, normal, uv := m.GetVertex(vi)
			byMaterial[mat] = append(byMaterial[mat], rhi.Vertex{
				Position: pos,
				Normal:   normal,
				UV:       uv,
				Color:    math3d.V4(1, 1, 1, 1),
			})
		}
	}

	keys := make([]int, 0, len(byMaterial))
	for k := range byMaterial {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]MeshPart, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, MeshPart{Material: k, SubMesh: NewSubMesh(byMaterial[k])})
	}
	return parts
}

// TriangleList flattens a whole mesh into one triangle list.
func TriangleList(m *models.Mesh) []rhi.Vertex {
	var verts []rhi.Vertex
	for _, p := range MeshSurfaces(m) {
		verts = append(verts, p.SubMesh.Verts...)
	}
	return verts
}

// MaterialFromModel converts a glTF material. The base colour map, if any,
// is supplied by the caller as a Sampler.
func MaterialFromModel(m *models.Material, tex Sampler) *Material {
	c := m.BaseColor
	mtl := NewMaterial(m.Name, math3d.V4(c[0], c[1], c[2], c[3]))
	mtl.Texture = tex
	mtl.TwoSided = m.DoubleSided
	if m.Blend || c[3] < 1 {
		mtl.Sort = SortUnlit
		mtl.Occluder = false
	}
	return mtl
}
