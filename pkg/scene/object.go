package scene

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// SubMesh is one drawable region of a mesh: a triangle list in object
// space and its bounds.
type SubMesh struct {
	Verts []rhi.Vertex
	AABB  math3d.AABB
}

// NewSubMesh wraps a triangle list and computes its bounds.
func NewSubMesh(verts []rhi.Vertex) *SubMesh {
	s := &SubMesh{Verts: verts}
	if len(verts) == 0 {
		return s
	}
	s.AABB = math3d.AABB{Min: verts[0].Position, Max: verts[0].Position}
	for _, v := range verts[1:] {
		s.AABB.Min = s.AABB.Min.Min(v.Position)
		s.AABB.Max = s.AABB.Max.Max(v.Position)
	}
	return s
}

// RenderObject is the definition of one entity in the render world.
type RenderObject struct {
	Name   string
	Origin math3d.Vec3
	Axis   math3d.Mat3
	Scale  math3d.Vec3

	// Skinned objects are culled as a single unit using LocalAABB. All of
	// their surfaces share one VisObject.
	Skinned   bool
	LocalAABB math3d.AABB

	// MaterialParms is the owner colour. Lights with UseOwnerColor take
	// their colour from it.
	MaterialParms  math3d.Vec4
	WireframeColor math3d.Vec4
	// SelectionID is written by the selection pass. Zero is no object.
	SelectionID uint32
}

// NewRenderObject returns an untransformed object at origin.
func NewRenderObject(name string, origin math3d.Vec3) *RenderObject {
	return &RenderObject{
		Name:           name,
		Origin:         origin,
		Axis:           math3d.Identity3(),
		Scale:          math3d.Splat3(1),
		MaterialParms:  math3d.V4(1, 1, 1, 1),
		WireframeColor: math3d.V4(1, 1, 1, 1),
	}
}

// ModelMatrix returns the object to world transform.
func (o *RenderObject) ModelMatrix() math3d.Mat4 {
	return math3d.Compose(o.Origin, o.Axis, o.Scale)
}

// WorldAABB bounds a local box after the object's scale, rotation and
// translation.
func (o *RenderObject) WorldAABB(local math3d.AABB) math3d.AABB {
	return math3d.TransformedAABB(local.Scaled(o.Scale), o.Origin, o.Axis)
}

// VisObject is a render object that survived front-end culling for one
// view. It is the transform space shared by the object's surfaces.
type VisObject struct {
	Def           *RenderObject
	ModelMatrix   math3d.Mat4
	ModelViewProj math3d.Mat4
}

// SurfFlags are per surface flags owned by the back end.
type SurfFlags uint8

const (
	// SurfVisible is cleared by occlusion culling.
	SurfVisible SurfFlags = 1 << iota
)

// DrawSurf is one renderable unit: a sub mesh drawn in a transform space
// with a material.
type DrawSurf struct {
	Space    *VisObject
	SubMesh  *SubMesh
	Material *Material
	Flags    SurfFlags
}

// Visible reports whether the surface is still visible.
func (s *DrawSurf) Visible() bool { return s.Flags&SurfVisible != 0 }

// WorldAABB returns the box tested for occlusion. Skinned objects use the
// object bounds so every surface of the entity gets the same box.
func (s *DrawSurf) WorldAABB() math3d.AABB {
	def := s.Space.Def
	if def.Skinned {
		return def.WorldAABB(def.LocalAABB)
	}
	return def.WorldAABB(s.SubMesh.AABB)
}
