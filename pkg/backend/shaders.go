package backend

import (
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// albedo is the unlit colour of a fragment: material, owner colour and
// vertex colour.
func albedo(mtl *scene.Material, space *scene.VisObject, f *rhi.Fragment) math3d.Vec4 {
	c := f.Color.Mul(space.Def.MaterialParms)
	if mtl != nil {
		c = c.Mul(mtl.Shade(f.UV))
	}
	return c
}

// worldSpace returns the fragment position and normal in world space.
func worldSpace(space *scene.VisObject, f *rhi.Fragment) (pos, normal math3d.Vec3) {
	pos = space.ModelMatrix.MulVec3(f.Position)
	normal = space.Def.Axis.MulVec3(f.Normal.DivVec(space.Def.Scale)).Normalize()
	return pos, normal
}

// baseShader lights the ambient surfaces with the ambient colour and the
// primary light.
func baseShader(vs *viewState, mtl *scene.Material, space *scene.VisObject) rhi.FragmentShader {
	ambient := vs.view.AmbientColor
	primary := vs.primaryLight
	return func(f *rhi.Fragment) bool {
		a := albedo(mtl, space, f)
		light := ambient
		if primary != nil {
			pos, n := worldSpace(space, f)
			light = light.Add(lightContribution(primary, pos, n))
		}
		c := a.Mul(light)
		c.W = a.W
		f.Color = c
		return true
	}
}

// litShader adds the contribution of one light. It runs with additive
// blending so the alpha it writes does not matter.
func litShader(vs *viewState, mtl *scene.Material, space *scene.VisObject, vl *scene.VisLight) rhi.FragmentShader {
	return func(f *rhi.Fragment) bool {
		pos, n := worldSpace(space, f)
		c := lightContribution(vl, pos, n)
		if c.X <= 0 && c.Y <= 0 && c.Z <= 0 {
			return false
		}
		f.Color = albedo(mtl, space, f).Mul(c)
		return true
	}
}

// lightContribution is the diffuse colour vl adds at a world point with
// normal n.
func lightContribution(vl *scene.VisLight, pos, n math3d.Vec3) math3d.Vec4 {
	def := vl.Def
	var l math3d.Vec3
	if def.Type == scene.DirectionalLight {
		l = def.Axis.Col(2)
	} else {
		l = def.Origin.Sub(pos).Normalize()
	}
	ndotl := n.Dot(l)
	if ndotl <= 0 {
		return math3d.Vec4{}
	}
	att := attenuation(vl, pos)
	c := vl.MaterialColor.Scale(ndotl * att)
	c.W = 0
	return c
}

// attenuation looks the point up in light texture space. Point lights fade
// linearly to the edge of their ellipsoid, spot lights fade radially and
// directional lights are constant.
func attenuation(vl *scene.VisLight, pos math3d.Vec3) float64 {
	def := vl.Def
	stq := vl.ViewProjTexMatrix.MulVec4(math3d.V4FromV3(pos, 1))
	var s, t, a float64
	switch def.Type {
	case scene.PointLight:
		s, t = stq.X, stq.Y
		d := math3d.V3(stq.X*2-1, stq.Y*2-1, stq.Z*2-1).Len()
		a = math3d.Clamp(1-d, 0, 1)
	case scene.SpotLight:
		if stq.W <= 0 {
			return 0
		}
		s, t = stq.X/stq.W, stq.Y/stq.W
		if z := stq.Z / stq.W; z < 0 || z > 1 {
			return 0
		}
		r := math.Hypot(s*2-1, t*2-1)
		a = math3d.Clamp(1-r, 0, 1)
	default:
		return 1
	}
	if a > 0 && def.Material != nil && def.Material.Texture != nil {
		a *= def.Material.Texture.Sample(s, t).X
	}
	return a
}

// unlitShader draws the material colour without lighting.
func unlitShader(mtl *scene.Material, space *scene.VisObject) rhi.FragmentShader {
	return func(f *rhi.Fragment) bool {
		f.Color = albedo(mtl, space, f)
		return f.Color.W > 0
	}
}

// velocityShader writes the screen space motion of the fragment since the
// previous frame, biased into [0, 1].
func velocityShader(vs *viewState, space *scene.VisObject) rhi.FragmentShader {
	cur, prev := vs.viewProjMatrix, vs.prevViewProj
	return func(f *rhi.Fragment) bool {
		world := math3d.V4FromV3(space.ModelMatrix.MulVec3(f.Position), 1)
		a := cur.MulVec4(world).PerspectiveDivide()
		b := prev.MulVec4(world).PerspectiveDivide()
		f.Color = math3d.V4((a.X-b.X)*0.5+0.5, (a.Y-b.Y)*0.5+0.5, 0, 1)
		return true
	}
}

func trisShader(c math3d.Vec4) rhi.FragmentShader {
	return func(f *rhi.Fragment) bool {
		f.Color = c
		return true
	}
}

// backgroundShader fills wireframe views with a dimmed flat colour.
func backgroundShader(mtl *scene.Material) rhi.FragmentShader {
	c := math3d.V4(0.25, 0.25, 0.25, 1)
	if mtl != nil {
		c = mtl.Color.Scale(0.25)
		c.W = 1
	}
	return func(f *rhi.Fragment) bool {
		f.Color = c
		return true
	}
}

func guiShader(mtl *scene.Material, space *scene.VisObject) rhi.FragmentShader {
	return func(f *rhi.Fragment) bool {
		f.Color = albedo(mtl, space, f)
		return f.Color.W > 0
	}
}

func selectionShader(id uint32) rhi.FragmentShader {
	c := encodeSelectionID(id)
	return func(f *rhi.Fragment) bool {
		f.Color = c
		return true
	}
}
