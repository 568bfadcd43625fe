package backend

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// lightVolume is the closed world space mesh bounding a light together with
// an exact containment test for the eye.
type lightVolume struct {
	contains func(p math3d.Vec3) bool
	verts    []rhi.Vertex
}

// boxTriangleIndexes triangulates 8 corners laid out like
// math3d.AABB.Corners with outward counter-clockwise faces.
var boxTriangleIndexes = [36]int{
	0, 4, 6, 0, 6, 2, // -X
	1, 3, 7, 1, 7, 5, // +X
	0, 1, 5, 0, 5, 4, // -Y
	2, 6, 7, 2, 7, 3, // +Y
	0, 2, 3, 0, 3, 1, // -Z
	4, 5, 7, 4, 7, 6, // +Z
}

func boxTriangles(corners [8]math3d.Vec3) []rhi.Vertex {
	verts := make([]rhi.Vertex, len(boxTriangleIndexes))
	for i, c := range boxTriangleIndexes {
		verts[i] = rhi.Vertex{Position: corners[c], Color: math3d.V4(1, 1, 1, 1)}
	}
	return verts
}

// lightVolume builds the volume of def. Uniform point lights use the unit
// sphere; every other shape is drawn as its 8 corner hull, and the eye test
// matches the hull that is drawn.
func (b *Backend) lightVolume(def *scene.RenderLight) lightVolume {
	switch {
	case def.Type == scene.PointLight && def.IsRadiusUniform():
		return sphereVolume(math3d.Sphere{Center: def.Origin, Radius: def.Extents.X}, b.unitSphere)
	case def.Type == scene.SpotLight:
		f := def.Frustum()
		return lightVolume{contains: f.ContainsPoint, verts: boxTriangles(f.Corners())}
	default:
		obb := def.OBB()
		return lightVolume{contains: obb.ContainsPoint, verts: boxTriangles(obb.Corners())}
	}
}

// sphereVolume scales and moves the unit sphere onto s.
func sphereVolume(s math3d.Sphere, unit []rhi.Vertex) lightVolume {
	verts := make([]rhi.Vertex, len(unit))
	for i, v := range unit {
		v.Position = s.Center.Add(v.Position.Scale(s.Radius))
		verts[i] = v
	}
	return lightVolume{contains: s.ContainsPoint, verts: verts}
}
