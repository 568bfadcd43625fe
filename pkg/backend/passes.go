package backend

import (
	"fmt"
	"slices"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// Pass identifies a stage of the view renderer for Backend.TracePass.
type Pass int

const (
	PassSelection Pass = iota
	PassClear
	PassOcclusion
	PassDepth
	PassBase
	PassLights
	PassBlend
	PassVelocity
	PassFinal
	PassTris
	PassBackground
	PassDebug
	PassPostProcess
)

var passNames = [...]string{
	PassSelection:   "selection",
	PassClear:       "clear",
	PassOcclusion:   "occlusion",
	PassDepth:       "depth",
	PassBase:        "base",
	PassLights:      "lights",
	PassBlend:       "blend",
	PassVelocity:    "velocity",
	PassFinal:       "final",
	PassTris:        "tris",
	PassBackground:  "background",
	PassDebug:       "debug",
	PassPostProcess: "postprocess",
}

func (p Pass) String() string {
	if p >= 0 && int(p) < len(passNames) {
		return passNames[p]
	}
	return fmt.Sprintf("Pass(%d)", int(p))
}

func (b *Backend) tracePass(p Pass) {
	if b.TracePass != nil {
		b.TracePass(p)
	}
}

func isOccluder(s *scene.DrawSurf) bool { return s.Material.Occluder }

func sortIs(sort scene.Sort) func(*scene.DrawSurf) bool {
	return func(s *scene.DrawSurf) bool { return s.Material.Sort == sort }
}

// occluderPass fills the depth of the occlusion map.
func (b *Backend) occluderPass(vs *viewState) {
	b.dev.SetStateBits(rhi.DepthWrite | rhi.DFLEqual)
	b.surfacePass(vs, vs.ambientSurfs(), flushOccluder, isOccluder, nil)
}

// depthPrePass lays down the depth of the ambient surfaces so later passes
// shade each pixel once.
func (b *Backend) depthPrePass(vs *viewState) {
	b.dev.SetStateBits(rhi.DepthWrite | rhi.DFLEqual)
	b.surfacePass(vs, vs.ambientSurfs(), flushDepth, nil, nil)
}

// basePass shades the ambient surfaces with the ambient and primary light.
func (b *Backend) basePass(vs *viewState) {
	b.dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DepthWrite | rhi.DFLEqual)
	b.surfacePass(vs, vs.ambientSurfs(), flushBase, nil, nil)
}

// unlitPass alpha blends the unlit surfaces over the lit scene.
func (b *Backend) unlitPass(vs *viewState) {
	b.dev.SetStateBits(rhi.ColorWrite | rhi.BlendAlpha | rhi.DFLEqual)
	b.surfacePass(vs, vs.drawSurfs[vs.numAmbientSurfs:], flushUnlit, sortIs(scene.SortUnlit), nil)
}

// velocityPass writes per pixel motion into the velocity target, depth
// tested against the scene.
func (b *Backend) velocityPass(vs *viewState) {
	dev := b.dev
	prevViewport := dev.Viewport()
	prevRT, prevLevel := dev.RenderTarget()
	dev.BeginRenderTarget(vs.ctx.velocityRT, 0)
	dev.SetViewport(vs.renderRect)
	dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite)
	dev.Clear(rhi.ColorBit, math3d.V4(0.5, 0.5, 0, 1), 1, 0)
	dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DFLEqual)
	b.surfacePass(vs, vs.ambientSurfs(), flushVelocity, nil, nil)
	rebindTarget(dev, prevRT, prevLevel)
	dev.SetViewport(prevViewport)
}

// finalPass draws the surfaces without any lighting interaction last.
func (b *Backend) finalPass(vs *viewState) {
	b.dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.BlendAlpha | rhi.DFLEqual)
	b.surfacePass(vs, vs.drawSurfs[vs.numAmbientSurfs:], flushFinal, sortIs(scene.SortFinal), nil)
}

// drawTris outlines the ambient surfaces with the wireframe colour of their
// owner. Without force it only draws when Config.ShowTris is set.
func (b *Backend) drawTris(vs *viewState, force bool) {
	if !force && !b.cfg.ShowTris {
		return
	}
	b.tracePass(PassTris)
	b.dev.SetStateBits(rhi.ColorWrite | rhi.DFLEqual)
	b.surfacePass(vs, vs.ambientSurfs(), flushTris, nil, nil)
}

// backgroundPass fills the depth and a dim colour for wireframe only views.
func (b *Backend) backgroundPass(vs *viewState) {
	b.dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DepthWrite | rhi.DFLEqual)
	b.surfacePass(vs, vs.ambientSurfs(), flushBackground, nil, nil)
}

// guiPass draws the surfaces of a 2D view in order, alpha blended.
func (b *Backend) guiPass(vs *viewState) {
	b.dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.BlendAlpha | rhi.DFAlways)
	b.surfacePass(vs, vs.drawSurfs, flushGui, nil, nil)
}

// debugPass draws the debug lines queued on the view, plus the light
// volumes with Config.ShowLights. Lines without depth testing are drawn
// after the tested ones so they stay on top.
func (b *Backend) debugPass(vs *viewState) {
	lines := vs.view.DebugLines
	if b.cfg.ShowLights {
		lines = append(slices.Clip(lines), lightOutlines(vs)...)
	}
	if len(lines) == 0 {
		return
	}
	var tested, always []rhi.Vertex
	for _, l := range lines {
		a := rhi.Vertex{Position: l.A, Color: l.Color}
		c := rhi.Vertex{Position: l.B, Color: l.Color}
		if l.DepthTest {
			tested = append(tested, a, c)
		} else {
			always = append(always, a, c)
		}
	}
	dev := b.dev
	dev.SetCullFace(rhi.NoCull)
	if len(tested) > 0 {
		dev.SetStateBits(rhi.ColorWrite | rhi.DFLEqual)
		dev.DrawLines(tested, vs.viewProjMatrix, nil)
		b.counters.DrawCalls++
	}
	if len(always) > 0 {
		dev.SetStateBits(rhi.ColorWrite | rhi.DFAlways)
		dev.DrawLines(always, vs.viewProjMatrix, nil)
		b.counters.DrawCalls++
	}
}

// lightOutlines returns the volume edges of the lights of the view. Lights
// hidden by their occlusion query are dimmed.
func lightOutlines(vs *viewState) []scene.DebugLine {
	var out scene.View
	for _, vl := range vs.visLights {
		c := math3d.V4(1, 1, 0, 1)
		if !vl.OcclusionVisible {
			c = math3d.V4(0.4, 0.4, 0.4, 1)
		}
		out.AddDebugLightVolume(vl.Def, c)
	}
	return out.DebugLines
}
