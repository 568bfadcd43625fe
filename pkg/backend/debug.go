package backend

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

const (
	homThumbSize    = 100
	homThumbSpacing = 10
	overlayMargin   = 10
)

// drawOverlays draws the debug views over the finished screen: a render
// target, the occlusion map levels and the counters.
func (b *Backend) drawOverlays(vs *viewState) {
	if b.cfg.ShowRenderTarget > 0 {
		b.showRenderTarget(vs, b.cfg.ShowRenderTarget-1)
	}
	if b.cfg.HOM && b.cfg.HOMDebug {
		b.showHOM(vs)
	}
	if b.cfg.ShowCounters {
		b.showCounters()
	}
}

// showRenderTarget blits the colour of the i-th context target into the
// top-left corner, or over the whole screen.
func (b *Backend) showRenderTarget(vs *viewState, i int) {
	targets := vs.ctx.targets
	if i < 0 || i >= len(targets) {
		return
	}
	dst := rhi.Rect{X: overlayMargin, Y: overlayMargin, W: vs.screenRect.W / 4, H: vs.screenRect.H / 4}
	if b.cfg.ShowRenderTargetFullscreen {
		dst = vs.screenRect
	}
	b.dev.Blit(targets[i].tex, 0, rhi.Rect{}, dst, rhi.Nearest)
	b.counters.DrawCalls++
}

// showHOM draws one thumbnail per generated occlusion map level.
func (b *Backend) showHOM(vs *viewState) {
	ctx := vs.ctx
	if ctx.homTexture == rhi.NullTexture {
		return
	}
	x := overlayMargin
	for i := range ctx.homLevels {
		b.dev.Blit(ctx.homTexture, i, rhi.Rect{}, rhi.Rect{X: x, Y: overlayMargin, W: homThumbSize, H: homThumbSize}, rhi.Nearest)
		x += homThumbSize + homThumbSpacing
		b.counters.DrawCalls++
	}
}

// String formats the counters for the on-screen overlay.
func (c *RenderCounter) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "draws %d  surfs %d\n", c.DrawCalls, c.Surfaces)
	fmt.Fprintf(&sb, "occludees %d  occluded %d\n", c.Occludees, c.OccludedSurfs)
	fmt.Fprintf(&sb, "hom gen %.2f  query %.2f  cull %.2f ms\n", c.HomGenMsec, c.HomQueryMsec, c.HomCullMsec)
	fmt.Fprintf(&sb, "lights %d  results %d  waits %d", c.VisibleLights, c.QueryResults, c.QueryWaits)
	return sb.String()
}

// showCounters renders the counters to a texture and blits it in the
// bottom-left corner.
func (b *Backend) showCounters() {
	text := b.counters.String()
	w, h := textSize(text)
	w, h = w+4, h+4
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	drawText(img, 2, 2, text, color.White)

	texels := make([]math3d.Vec4, w*h)
	for y := range h {
		for x := range w {
			c := img.RGBAAt(x, y)
			texels[y*w+x] = math3d.V4(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, 1)
		}
	}
	dev := b.dev
	tex := dev.CreateTexture(rhi.TextureDesc{W: w, H: h, Levels: 1, Format: rhi.RGBA8})
	dev.WriteTexels(tex, 0, 0, texels)
	_, sh := dev.Size()
	dev.Blit(tex, 0, rhi.Rect{}, rhi.Rect{X: overlayMargin, Y: sh - h - overlayMargin, W: w, H: h}, rhi.Nearest)
	dev.DestroyTexture(tex)
	b.counters.DrawCalls++
}
