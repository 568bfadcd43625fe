package backend

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// visibleSampleThreshold is the number of query samples a light needs to
// count as visible.
const visibleSampleThreshold = 10

// lightQuery is the occlusion query slot of one light, kept across frames.
type lightQuery struct {
	handle  rhi.Query
	frame   int
	samples int
	pending bool
}

// setupLights resolves the colour and texture matrix of every light of the
// view.
func (b *Backend) setupLights(vs *viewState) {
	if vs.primaryLight != nil {
		b.setupLight(vs.primaryLight)
	}
	for _, vl := range vs.visLights {
		b.setupLight(vl)
	}
}

// setupLight computes the light colour, converted to linear when the
// device writes sRGB, and the world to light texture matrix with the
// material texture scale and offset applied.
func (b *Backend) setupLight(vl *scene.VisLight) {
	def := vl.Def
	mtl := def.Material

	c := def.MaterialParms
	if !def.UseOwnerColor && mtl != nil {
		c = mtl.Color
	}
	if b.dev.SRGBWriteEnabled() {
		c = c.SRGBToLinear()
	}
	vl.MaterialColor = c

	scale, offset := math3d.V2(1, 1), math3d.Vec2{}
	if mtl != nil && mtl.TextureScale != (math3d.Vec2{}) {
		scale, offset = mtl.TextureScale, mtl.TextureOffset
	}
	m := def.ViewProjScaleBias()
	q := m.Row(3)
	m.SetRow(0, m.Row(0).Scale(scale.X).Add(q.Scale(offset.X)))
	m.SetRow(1, m.Row(1).Scale(scale.Y).Add(q.Scale(offset.Y)))
	vl.ViewProjTexMatrix = m
}

// lightScissor narrows the scissor to the light when light scissors are
// on. It returns false when the light covers no pixel of the target.
func (b *Backend) lightScissor(vs *viewState, vl *scene.VisLight, prev rhi.Rect) bool {
	if !b.cfg.UseLightScissors {
		b.dev.SetScissor(prev)
		return true
	}
	r := vs.toTarget(vl.ScissorRect)
	if !prev.Empty() {
		r = r.Intersect(prev)
	}
	if r.Empty() {
		return false
	}
	b.dev.SetScissor(r)
	return true
}

// drawStencilLightVolume marks the pixels of the scene inside the volume
// with a stencil value of 1. The counting method depends on where the eye
// is: a volume around the eye only counts back faces behind the scene.
func (b *Backend) drawStencilLightVolume(vs *viewState, vol lightVolume, inside bool) {
	dev := b.dev
	state := b.stencilStates[stencilZPass]
	switch {
	case inside:
		state = b.stencilStates[stencilInsideZFail]
	case b.cfg.LightVolumeZFail:
		state = b.stencilStates[stencilZFail]
	}
	dev.SetStateBits(rhi.DFLEqual)
	dev.SetCullFace(rhi.NoCull)
	dev.SetStencilState(state, 0)
	dev.DrawTriangles(vol.verts, vs.viewProjMatrix, nil)
	dev.SetStencilState(rhi.NullStencilState, 0)
	b.counters.DrawCalls++
}

// markOcclusionVisibleLights decides which lights are visible this frame.
// Each light draws its stencil volume and then the volume again inside an
// occlusion query restricted to the marked pixels. The result is consumed
// on a later frame; until it is available, or for at most
// Config.QueryWaitFrames frames, the last known result is reused.
func (b *Backend) markOcclusionVisibleLights(vs *viewState) {
	dev := b.dev
	prevScissor := dev.Scissor()
	eye := vs.camera.Position
	visible := 0

	for _, vl := range vs.visLights {
		q := b.lightQueries[vl.Def.Index]
		if q == nil {
			q = &lightQuery{handle: dev.CreateQuery(), samples: visibleSampleThreshold}
			b.lightQueries[vl.Def.Index] = q
		}

		if q.pending && !dev.QueryResultAvailable(q.handle) && b.frameCount-q.frame < b.cfg.QueryWaitFrames {
			vl.OcclusionVisible = q.samples >= visibleSampleThreshold
			b.counters.QueryWaits++
			if vl.OcclusionVisible {
				visible++
			}
			continue
		}
		if q.pending {
			q.samples = dev.QueryResult(q.handle)
			q.pending = false
			b.counters.QueryResults++
		}
		vl.OcclusionVisible = q.samples >= visibleSampleThreshold
		if vl.OcclusionVisible {
			visible++
		}
		q.frame = b.frameCount

		if !b.lightScissor(vs, vl, prevScissor) {
			// Off target: nothing can pass, so the next result is zero.
			q.samples = 0
			continue
		}
		dev.Clear(rhi.StencilBit, math3d.Vec4{}, 1, 0)
		vol := b.lightVolume(vl.Def)
		inside := vol.contains(eye)
		b.drawStencilLightVolume(vs, vol, inside)

		// From outside the front faces of the volume are counted. From
		// inside there are none, so count the back faces behind the scene.
		if inside {
			dev.SetCullFace(rhi.FrontCull)
			dev.SetStateBits(rhi.DFGreater)
		} else {
			dev.SetCullFace(rhi.BackCull)
			dev.SetStateBits(rhi.DFLEqual)
		}
		dev.SetStencilState(b.stencilStates[stencilTest], 1)
		dev.BeginQuery(q.handle)
		dev.DrawTriangles(vol.verts, vs.viewProjMatrix, nil)
		dev.EndQuery()
		dev.SetStencilState(rhi.NullStencilState, 0)
		q.pending = true
		b.counters.DrawCalls++
	}
	dev.SetScissor(prevScissor)

	if b.cfg.ShowLights {
		Logger().Debug("light occlusion",
			"lights", len(vs.visLights),
			"visible", visible,
			"results", b.counters.QueryResults,
			"waits", b.counters.QueryWaits,
		)
	}
}

// additivePass adds every visible light to the surfaces it touches, inside
// the pixels marked by its stencil volume.
func (b *Backend) additivePass(vs *viewState) {
	if len(vs.visLights) == 0 {
		return
	}
	dev := b.dev
	prevScissor := dev.Scissor()
	eye := vs.camera.Position

	for _, vl := range vs.visLights {
		if !vl.OcclusionVisible || len(vl.LitSurfs) == 0 {
			continue
		}
		if !b.lightScissor(vs, vl, prevScissor) {
			continue
		}
		b.counters.VisibleLights++

		dev.Clear(rhi.StencilBit, math3d.Vec4{}, 1, 0)
		vol := b.lightVolume(vl.Def)
		b.drawStencilLightVolume(vs, vol, vol.contains(eye))

		dev.SetStencilState(b.stencilStates[stencilTest], 1)
		dev.SetStateBits(rhi.ColorWrite | rhi.BlendAdd | rhi.DFLEqual)
		b.surfacePass(vs, vl.LitSurfs, flushLit, nil, vl)
		dev.SetStencilState(rhi.NullStencilState, 0)
	}
	dev.SetScissor(prevScissor)
}
