package backend

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// viewState is the per view state shared by the passes of one draw camera
// command. It lives for a single command.
type viewState struct {
	ctx    *RenderContext
	view   *scene.View
	camera *scene.Camera
	time   float64

	drawSurfs       []*scene.DrawSurf
	numAmbientSurfs int
	visLights       []*scene.VisLight
	primaryLight    *scene.VisLight

	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	// prevViewProj is last frame's view-projection of this context.
	prevViewProj math3d.Mat4

	// renderRect is the camera rectangle in render pixels.
	renderRect rhi.Rect
	screenRect rhi.Rect
	// targetScale maps renderRect pixels to the bound target. It is the
	// upscale factor when drawing straight to the back buffer.
	targetScale math3d.Vec2
}

func (b *Backend) newViewState(ctx *RenderContext, v *scene.View) *viewState {
	cam := v.Camera
	vs := &viewState{
		ctx:             ctx,
		view:            v,
		camera:          cam,
		time:            cam.Time,
		drawSurfs:       v.DrawSurfs,
		numAmbientSurfs: v.NumAmbientSurfs,
		visLights:       v.VisLights,
		primaryLight:    v.PrimaryLight,
		viewMatrix:      cam.ViewMatrix(),
		projMatrix:      cam.ProjectionMatrix(),
		viewProjMatrix:  cam.ViewProjectionMatrix(),
		renderRect:      cam.RenderRect,
		screenRect:      rhi.Rect{W: ctx.deviceW, H: ctx.deviceH},
		targetScale:     math3d.V2(1, 1),
	}
	vs.prevViewProj = vs.viewProjMatrix
	if ctx.hasPrevView {
		vs.prevViewProj = vs.projMatrix.Mul(ctx.viewMatrixPrev)
	}
	if vs.renderRect.Empty() {
		vs.renderRect = rhi.Rect{W: ctx.renderW, H: ctx.renderH}
	}
	return vs
}

func (vs *viewState) ambientSurfs() []*scene.DrawSurf {
	return vs.drawSurfs[:vs.numAmbientSurfs]
}

// toTarget maps a render rect to pixels of the bound target.
func (vs *viewState) toTarget(r rhi.Rect) rhi.Rect {
	if vs.targetScale == math3d.V2(1, 1) {
		return r
	}
	return scaleRect(r, vs.targetScale)
}

func scaleRect(r rhi.Rect, s math3d.Vec2) rhi.Rect {
	x0 := math3d.Rint(float64(r.X) * s.X)
	y0 := math3d.Rint(float64(r.Y) * s.Y)
	x1 := math3d.Rint(float64(r.X2()) * s.X)
	y1 := math3d.Rint(float64(r.Y2()) * s.Y)
	return rhi.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// drawView renders a 3D camera: an optional selection pass, the scene
// into the screen target (or straight to the back buffer without post
// processing), post processing and the debug overlays.
func (b *Backend) drawView(vs *viewState) {
	dev := b.dev
	ctx := vs.ctx

	if ctx.Flags&UseSelectionBuffer != 0 {
		b.tracePass(PassSelection)
		b.selectionPass(vs)
	}

	upscaled := scaleRect(vs.renderRect, ctx.UpscaleFactor())

	if !vs.camera.Flags.Has(scene.SkipPostProcess) && b.cfg.UsePostProcessing {
		dev.BeginRenderTarget(ctx.screenRT, 0)
		dev.SetViewport(vs.renderRect)
		dev.SetScissor(rhi.Rect{})
		dev.SetDepthRange(0, 1)
		b.tracePass(PassClear)
		b.clearView(vs)
		b.renderView(vs)
		dev.EndRenderTarget()

		dev.SetViewport(upscaled)
		dev.SetScissor(upscaled)
		b.tracePass(PassPostProcess)
		b.postProcess(vs, upscaled)
	} else {
		vs.targetScale = ctx.UpscaleFactor()
		dev.SetViewport(upscaled)
		dev.SetScissor(rhi.Rect{})
		dev.SetDepthRange(0, 1)
		b.tracePass(PassClear)
		b.clearView(vs)
		b.renderView(vs)
		vs.targetScale = math3d.V2(1, 1)
	}

	ctx.viewMatrixPrev = vs.viewMatrix
	ctx.hasPrevView = true

	dev.SetViewport(vs.screenRect)
	dev.SetScissor(vs.screenRect)
	dev.SetDepthRange(0, 0)
	dev.SetCullFace(rhi.NoCull)
	b.drawOverlays(vs)
	dev.SetScissor(rhi.Rect{})
}

// draw2DView renders a GUI camera over the whole screen. A view without
// surfaces issues no device calls at all.
func (b *Backend) draw2DView(vs *viewState) {
	if len(vs.drawSurfs) == 0 {
		return
	}
	dev := b.dev
	dev.SetViewport(vs.screenRect)
	dev.SetScissor(vs.screenRect)
	dev.SetDepthRange(0, 0)
	b.guiPass(vs)
	dev.SetScissor(rhi.Rect{})
}

// clearView clears the bound target according to the camera clear method.
// The clear is limited to the viewport.
func (b *Backend) clearView(vs *viewState) {
	dev := b.dev
	prevScissor := dev.Scissor()
	dev.SetScissor(dev.Viewport())
	switch vs.camera.ClearMethod {
	case scene.ClearDepthOnly, scene.ClearSkybox:
		dev.SetStateBits(dev.StateBits() | rhi.DepthWrite)
		dev.Clear(rhi.DepthBit|rhi.StencilBit, math3d.V4(0, 0, 0, 0), 1, 0)
	case scene.ClearColor:
		dev.SetStateBits(dev.StateBits() | rhi.DepthWrite | rhi.ColorWrite | rhi.AlphaWrite)
		dev.Clear(rhi.ColorBit|rhi.DepthBit|rhi.StencilBit, vs.camera.ClearColor, 1, 0)
	}
	dev.SetScissor(prevScissor)
}

// renderView runs the scene passes in order. Each pass can be disabled
// through Config.
func (b *Backend) renderView(vs *viewState) {
	cam := vs.camera
	b.setupLights(vs)

	if cam.Flags.Has(scene.TexturedMode) {
		if b.cfg.HOM {
			b.tracePass(PassOcclusion)
			b.ensureHOM()
			b.renderOcclusionMap(vs)
			b.generateOcclusionMapHierarchy(vs)
			b.testOccludeeBounds(vs)
		}

		if b.cfg.UseDepthPrePass {
			b.tracePass(PassDepth)
			b.depthPrePass(vs)
		}
		if !b.cfg.SkipBasePass {
			b.tracePass(PassBase)
			b.basePass(vs)
		}
		if !b.cfg.SkipShadowAndLitPass {
			b.tracePass(PassLights)
			if b.cfg.LightOcclusionQueries {
				b.markOcclusionVisibleLights(vs)
			}
			b.additivePass(vs)
		}
		if !b.cfg.SkipBlendPass {
			b.tracePass(PassBlend)
			b.unlitPass(vs)
		}
		if !cam.Flags.Has(scene.SkipPostProcess) && b.cfg.UsePostProcessing && b.cfg.velocityPass() {
			b.tracePass(PassVelocity)
			b.velocityPass(vs)
		}
		if !b.cfg.SkipFinalPass {
			b.tracePass(PassFinal)
			b.finalPass(vs)
		}
		b.drawTris(vs, false)
	}

	if cam.Flags.Has(scene.WireFrameMode) {
		if !cam.Flags.Has(scene.TexturedMode) {
			b.tracePass(PassBackground)
			b.backgroundPass(vs)
		}
		b.drawTris(vs, true)
	}

	if !cam.Flags.Has(scene.SkipDebugDraw) {
		b.tracePass(PassDebug)
		b.debugPass(vs)
	}
}

// selectionPass writes the selection id of every visible ambient surface
// into the selection target.
func (b *Backend) selectionPass(vs *viewState) {
	dev := b.dev
	ctx := vs.ctx
	scale := math3d.V2(
		float64(ctx.selectionW)/float64(ctx.renderW),
		float64(ctx.selectionH)/float64(ctx.renderH),
	)
	prevRT, prevLevel := dev.RenderTarget()
	dev.BeginRenderTarget(ctx.selectionRT, 0)
	dev.SetViewport(scaleRect(vs.renderRect, scale))
	dev.SetScissor(rhi.Rect{})
	dev.SetDepthRange(0, 1)
	dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DepthWrite)
	dev.Clear(rhi.ColorBit|rhi.DepthBit|rhi.StencilBit, math3d.V4(0, 0, 0, 0), 1, 0)
	b.surfacePass(vs, vs.ambientSurfs(), flushSelection, nil, nil)
	rebindTarget(dev, prevRT, prevLevel)
}

// rebindTarget restores a binding saved with Device.RenderTarget.
func rebindTarget(dev rhi.Device, rt rhi.RenderTarget, level int) {
	if rt == rhi.NullRenderTarget {
		dev.EndRenderTarget()
		return
	}
	dev.BeginRenderTarget(rt, level)
}
