package backend

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// motionBlurTaps is the number of screen samples averaged along the
// velocity of a pixel.
const motionBlurTaps = 4

// postProcess resolves the screen target of the context into the back
// buffer at the upscaled rect, blurring along the velocities first when
// the velocity pass ran.
func (b *Backend) postProcess(vs *viewState, upscaled rhi.Rect) {
	dev := b.dev
	ctx := vs.ctx
	src := ctx.screenColor
	if b.cfg.velocityPass() {
		b.motionBlur(vs)
		src = ctx.postColor
	}
	dev.Blit(src, 0, vs.renderRect, upscaled, rhi.Linear)
	b.counters.DrawCalls++
}

// motionBlur averages the screen colour along each pixel's velocity into
// the post target.
func (b *Backend) motionBlur(vs *viewState) {
	dev := b.dev
	ctx := vs.ctx
	prevViewport := dev.Viewport()
	prevScissor := dev.Scissor()
	w, h := float64(ctx.renderW), float64(ctx.renderH)
	prevRT, prevLevel := dev.RenderTarget()

	dev.BeginRenderTarget(ctx.postRT, 0)
	dev.SetViewport(vs.renderRect)
	dev.SetScissor(rhi.Rect{})
	dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DFAlways)
	dev.SetCullFace(rhi.NoCull)
	dev.BindTexture(0, ctx.screenColor)
	dev.BindTexture(1, ctx.velocity)
	dev.DrawFullscreen(func(f *rhi.Fragment) bool {
		u := (float64(f.X) + 0.5) / w
		v := (float64(f.Y) + 0.5) / h
		vel := dev.Sample(1, u, v)
		// NDC to texture space: y grows downward.
		du := (vel.X - 0.5) * 2 * 0.5
		dv := -(vel.Y - 0.5) * 2 * 0.5
		var sum math3d.Vec4
		for i := range motionBlurTaps {
			t := float64(i) / motionBlurTaps
			su := math3d.Clamp(u-du*t, 0.5/w, 1-0.5/w)
			sv := math3d.Clamp(v-dv*t, 0.5/h, 1-0.5/h)
			sum = sum.Add(dev.Sample(0, su, sv))
		}
		f.Color = sum.Scale(1.0 / motionBlurTaps)
		return true
	})
	rebindTarget(dev, prevRT, prevLevel)
	dev.SetViewport(prevViewport)
	dev.SetScissor(prevScissor)
	b.counters.DrawCalls++
}
