package scene

import (
	"math"
	"slices"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// View is everything the back end needs to draw one camera: the camera
// definition, the surfaces and lights that survived front-end culling and
// the debug geometry. It is only valid while the frame that owns it is
// being executed.
type View struct {
	Camera *Camera
	// Is2D views draw their surfaces in render rect pixel coordinates
	// with a single GUI pass.
	Is2D bool

	// DrawSurfs holds the ambient surfaces first, then unlit and final
	// ones. Finish sorts them.
	DrawSurfs       []*DrawSurf
	NumAmbientSurfs int
	VisObjects      []*VisObject
	VisLights       []*VisLight
	PrimaryLight    *VisLight
	AmbientColor    math3d.Vec4

	DebugLines []DebugLine
}

// NewView starts a 3D view for cam.
func NewView(cam *Camera) *View {
	return &View{
		Camera:       cam,
		AmbientColor: math3d.V4(0.2, 0.2, 0.2, 1),
	}
}

// New2DView starts a GUI view for cam.
func New2DView(cam *Camera) *View {
	return &View{Camera: cam, Is2D: true}
}

// AddObject adds a transform space for obj.
func (v *View) AddObject(obj *RenderObject) *VisObject {
	model := obj.ModelMatrix()
	vo := &VisObject{
		Def:           obj,
		ModelMatrix:   model,
		ModelViewProj: v.Camera.ViewProjectionMatrix().Mul(model),
	}
	v.VisObjects = append(v.VisObjects, vo)
	return vo
}

// AddSurface adds a visible surface drawn in space. Surfaces of one space
// must be added back to back.
func (v *View) AddSurface(space *VisObject, sub *SubMesh, mtl *Material) *DrawSurf {
	s := &DrawSurf{Space: space, SubMesh: sub, Material: mtl, Flags: SurfVisible}
	v.DrawSurfs = append(v.DrawSurfs, s)
	return s
}

// AddLight adds a non-primary light.
func (v *View) AddLight(l *RenderLight) *VisLight {
	vl := &VisLight{Def: l, OcclusionVisible: true, ScissorRect: v.scissorRect(l)}
	v.VisLights = append(v.VisLights, vl)
	return vl
}

// SetPrimaryLight sets the dominant light drawn in the base pass.
func (v *View) SetPrimaryLight(l *RenderLight) *VisLight {
	v.PrimaryLight = &VisLight{Def: l, OcclusionVisible: true}
	return v.PrimaryLight
}

// Finish sorts the surfaces by pass, counts the ambient ones and assigns
// lit surfaces to every light.
func (v *View) Finish() {
	slices.SortStableFunc(v.DrawSurfs, func(a, b *DrawSurf) int {
		return int(a.Material.Sort) - int(b.Material.Sort)
	})
	v.NumAmbientSurfs = 0
	for _, s := range v.DrawSurfs {
		if s.Material.Sort == SortOpaque {
			v.NumAmbientSurfs++
		}
	}

	ambient := v.DrawSurfs[:v.NumAmbientSurfs]
	for _, l := range v.VisLights {
		l.LitSurfs = l.LitSurfs[:0]
		bounds := l.Def.WorldAABB()
		for _, s := range ambient {
			if s.WorldAABB().Intersects(bounds) {
				l.LitSurfs = append(l.LitSurfs, s)
			}
		}
	}
	if v.PrimaryLight != nil {
		v.PrimaryLight.LitSurfs = append(v.PrimaryLight.LitSurfs[:0], ambient...)
	}
}

// scissorRect bounds the projected light volume in render rect pixels.
// Volumes reaching behind the camera get the whole rect.
func (v *View) scissorRect(l *RenderLight) rhi.Rect {
	vp := v.Camera.ViewProjectionMatrix()
	r := v.Camera.RenderRect
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range l.VolumeCorners() {
		clip := vp.MulVec4(math3d.V4FromV3(c, 1))
		if clip.W <= 0 {
			return r
		}
		ndc := clip.PerspectiveDivide()
		x := float64(r.X) + (ndc.X+1)*0.5*float64(r.W)
		y := float64(r.Y) + (1-ndc.Y)*0.5*float64(r.H)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	x0, y0 := int(math.Floor(minX)), int(math.Floor(minY))
	x1, y1 := int(math.Ceil(maxX)), int(math.Ceil(maxY))
	return rhi.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}.Intersect(r)
}
