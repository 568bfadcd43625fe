package scene

import (
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// LightType is the shape of a light's influence volume.
type LightType int

const (
	DirectionalLight LightType = iota
	PointLight
	SpotLight
)

func (t LightType) String() string {
	switch t {
	case DirectionalLight:
		return "directional"
	case PointLight:
		return "point"
	case SpotLight:
		return "spot"
	default:
		return "unknown"
	}
}

// RenderLight is a light definition in the render world. The light looks
// down the negated third column of Axis, like a camera.
type RenderLight struct {
	Name string
	// Index identifies the light across frames (occlusion query slot).
	Index  int
	Type   LightType
	Origin math3d.Vec3
	Axis   math3d.Mat3
	// Extents is the radius per axis of a point light or the half size of
	// a directional light box.
	Extents math3d.Vec3

	// Spot light frustum.
	FovX, FovY  float64
	ZNear, ZFar float64

	Material      *Material
	MaterialParms math3d.Vec4
	UseOwnerColor bool
}

// NewPointLight returns a uniform point light.
func NewPointLight(index int, origin math3d.Vec3, radius float64, mtl *Material) *RenderLight {
	return &RenderLight{
		Index:         index,
		Type:          PointLight,
		Origin:        origin,
		Axis:          math3d.Identity3(),
		Extents:       math3d.Splat3(radius),
		Material:      mtl,
		MaterialParms: math3d.V4(1, 1, 1, 1),
	}
}

// IsRadiusUniform reports whether a point light is a sphere.
func (l *RenderLight) IsRadiusUniform() bool {
	return l.Extents.X == l.Extents.Y && l.Extents.Y == l.Extents.Z
}

// OBB returns the oriented influence box of a point or directional light.
func (l *RenderLight) OBB() math3d.OBB {
	return math3d.OBB{Center: l.Origin, Extents: l.Extents, Axis: l.Axis}
}

// ViewMatrix maps world space into the light's local frame.
func (l *RenderLight) ViewMatrix() math3d.Mat4 {
	inv := l.Axis.Transpose()
	return inv.Mat4(math3d.Vec3{}).Mul(math3d.Translate(l.Origin.Negate()))
}

// ProjMatrix maps the light's local frame to clip space. Point and
// directional lights fit their box to the unit cube.
func (l *RenderLight) ProjMatrix() math3d.Mat4 {
	if l.Type == SpotLight {
		aspect := math.Tan(l.FovX/2) / math.Tan(l.FovY/2)
		return math3d.Perspective(l.FovY, aspect, l.ZNear, l.ZFar)
	}
	e := l.Extents
	return math3d.Scale(math3d.V3(1/e.X, 1/e.Y, 1/e.Z))
}

// ViewProjMatrix returns ProjMatrix * ViewMatrix.
func (l *RenderLight) ViewProjMatrix() math3d.Mat4 {
	return l.ProjMatrix().Mul(l.ViewMatrix())
}

// ViewProjScaleBias maps world space into [0,1] light texture space.
func (l *RenderLight) ViewProjScaleBias() math3d.Mat4 {
	bias := math3d.Translate(math3d.Splat3(0.5)).Mul(math3d.Scale(math3d.Splat3(0.5)))
	return bias.Mul(l.ViewProjMatrix())
}

// Frustum returns the world space frustum of a spot light.
func (l *RenderLight) Frustum() math3d.Frustum {
	return math3d.NewFrustumFromMatrix(l.ViewProjMatrix())
}

// VolumeCorners returns the 8 corners of the light volume in the order of
// math3d.AABB.Corners.
func (l *RenderLight) VolumeCorners() [8]math3d.Vec3 {
	if l.Type == SpotLight {
		return l.Frustum().Corners()
	}
	return l.OBB().Corners()
}

// WorldAABB bounds the light volume.
func (l *RenderLight) WorldAABB() math3d.AABB {
	c := l.VolumeCorners()
	box := math3d.AABB{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		box.Min = box.Min.Min(p)
		box.Max = box.Max.Max(p)
	}
	return box
}

// VisLight is a light that reached the back end for one view.
type VisLight struct {
	Def *RenderLight
	// MaterialColor is the resolved light colour, linear when the device
	// writes sRGB.
	MaterialColor math3d.Vec4
	// ViewProjTexMatrix maps world space to light texture coordinates.
	ViewProjTexMatrix math3d.Mat4
	// OcclusionVisible is the result of the light occlusion query.
	OcclusionVisible bool
	// ScissorRect bounds the light on the render rect. Empty means the
	// light is off screen.
	ScissorRect rhi.Rect
	// LitSurfs are the ambient surfaces inside the light volume.
	LitSurfs []*DrawSurf
}
