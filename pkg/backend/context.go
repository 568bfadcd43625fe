package backend

import (
	"encoding/binary"
	"slices"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// ContextFlags are creation flags of a render context.
type ContextFlags uint32

const (
	// UseSelectionBuffer adds an object id target read back by Pick.
	UseSelectionBuffer ContextFlags = 1 << iota
)

// ContextOptions configures NewContext.
type ContextOptions struct {
	Flags ContextFlags
	// RenderWidth and RenderHeight are the rendering resolution. Zero uses
	// the device size. The result is scaled to the device when presented.
	RenderWidth, RenderHeight int
	// SelectionScale sizes the selection target relative to the render
	// size. Zero means 0.5.
	SelectionScale float64
}

// namedTarget is a colour texture shown by Config.ShowRenderTarget.
type namedTarget struct {
	name string
	tex  rhi.Texture
}

// RenderContext owns the render targets of one output surface. It is
// created by Backend.NewContext and lives until Backend.Shutdown.
type RenderContext struct {
	Flags ContextFlags
	index int

	deviceW, deviceH int
	renderW, renderH int

	homTexture rhi.Texture
	homRT      rhi.RenderTarget
	homW, homH int
	// homLevels is the number of levels generated by the hierarchy pass.
	homLevels int

	screenColor rhi.Texture
	screenDepth rhi.Texture
	screenRT    rhi.RenderTarget

	postColor rhi.Texture
	postRT    rhi.RenderTarget

	velocity   rhi.Texture
	velocityRT rhi.RenderTarget

	selectionColor rhi.Texture
	selectionDepth rhi.Texture
	selectionRT    rhi.RenderTarget
	selectionW     int
	selectionH     int

	targets []namedTarget

	viewMatrixPrev math3d.Mat4
	hasPrevView    bool
}

func newRenderContext(dev rhi.Device, cfg Config, index int, opts ContextOptions) *RenderContext {
	ctx := &RenderContext{Flags: opts.Flags, index: index}
	ctx.deviceW, ctx.deviceH = dev.Size()
	ctx.renderW, ctx.renderH = opts.RenderWidth, opts.RenderHeight
	if ctx.renderW <= 0 || ctx.renderH <= 0 {
		ctx.renderW, ctx.renderH = ctx.deviceW, ctx.deviceH
	}

	ctx.screenColor = dev.CreateTexture(rhi.TextureDesc{W: ctx.renderW, H: ctx.renderH, Levels: 1, Format: rhi.RGBA32F})
	ctx.screenDepth = dev.CreateTexture(rhi.TextureDesc{W: ctx.renderW, H: ctx.renderH, Levels: 1, Format: rhi.Depth})
	ctx.screenRT = dev.CreateRenderTarget(ctx.screenColor, ctx.screenDepth)
	ctx.targets = append(ctx.targets, namedTarget{"screen", ctx.screenColor})

	ctx.postColor = dev.CreateTexture(rhi.TextureDesc{W: ctx.renderW, H: ctx.renderH, Levels: 1, Format: rhi.RGBA32F})
	ctx.postRT = dev.CreateRenderTarget(ctx.postColor, rhi.NullTexture)
	ctx.targets = append(ctx.targets, namedTarget{"post", ctx.postColor})

	// Velocities are depth tested against the scene depth of screenRT.
	ctx.velocity = dev.CreateTexture(rhi.TextureDesc{W: ctx.renderW, H: ctx.renderH, Levels: 1, Format: rhi.RGBA32F})
	ctx.velocityRT = dev.CreateRenderTarget(ctx.velocity, ctx.screenDepth)
	ctx.targets = append(ctx.targets, namedTarget{"velocity", ctx.velocity})

	if ctx.Flags&UseSelectionBuffer != 0 {
		scale := opts.SelectionScale
		if scale <= 0 {
			scale = 0.5
		}
		ctx.selectionW = max(1, math3d.Rint(float64(ctx.renderW)*scale))
		ctx.selectionH = max(1, math3d.Rint(float64(ctx.renderH)*scale))
		ctx.selectionColor = dev.CreateTexture(rhi.TextureDesc{W: ctx.selectionW, H: ctx.selectionH, Levels: 1, Format: rhi.RGBA8})
		ctx.selectionDepth = dev.CreateTexture(rhi.TextureDesc{W: ctx.selectionW, H: ctx.selectionH, Levels: 1, Format: rhi.Depth})
		ctx.selectionRT = dev.CreateRenderTarget(ctx.selectionColor, ctx.selectionDepth)
		ctx.targets = append(ctx.targets, namedTarget{"selection", ctx.selectionColor})
	}

	if cfg.HOM {
		ctx.createHOM(dev, cfg)
	}
	return ctx
}

// createHOM allocates the occlusion map with its full mip chain.
func (ctx *RenderContext) createHOM(dev rhi.Device, cfg Config) {
	ctx.homW, ctx.homH = cfg.HOMWidth, cfg.HOMHeight
	levels := math3d.Log2Floor(max(ctx.homW, ctx.homH)) + 1
	ctx.homTexture = dev.CreateTexture(rhi.TextureDesc{W: ctx.homW, H: ctx.homH, Levels: levels, Format: rhi.Depth})
	ctx.homRT = dev.CreateRenderTarget(rhi.NullTexture, ctx.homTexture)
	ctx.targets = append(ctx.targets, namedTarget{"hom", ctx.homTexture})
}

// destroyHOM releases the occlusion map so that createHOM can size a new
// one.
func (ctx *RenderContext) destroyHOM(dev rhi.Device) {
	if ctx.homRT != rhi.NullRenderTarget {
		dev.DestroyRenderTarget(ctx.homRT)
		dev.DestroyTexture(ctx.homTexture)
	}
	ctx.targets = slices.DeleteFunc(ctx.targets, func(t namedTarget) bool { return t.tex == ctx.homTexture })
	ctx.homRT, ctx.homTexture = rhi.NullRenderTarget, rhi.NullTexture
	ctx.homW, ctx.homH, ctx.homLevels = 0, 0, 0
}

func (ctx *RenderContext) destroy(dev rhi.Device) {
	for _, rt := range []rhi.RenderTarget{ctx.homRT, ctx.screenRT, ctx.postRT, ctx.velocityRT, ctx.selectionRT} {
		if rt != rhi.NullRenderTarget {
			dev.DestroyRenderTarget(rt)
		}
	}
	for _, t := range []rhi.Texture{ctx.homTexture, ctx.screenColor, ctx.screenDepth, ctx.postColor, ctx.velocity, ctx.selectionColor, ctx.selectionDepth} {
		if t != rhi.NullTexture {
			dev.DestroyTexture(t)
		}
	}
	*ctx = RenderContext{index: ctx.index}
}

// Index returns the value to pass to CommandBuffer.BeginContext.
func (ctx *RenderContext) Index() int { return ctx.index }

// RenderSize returns the rendering resolution.
func (ctx *RenderContext) RenderSize() (w, h int) { return ctx.renderW, ctx.renderH }

// UpscaleFactor is the device size over the render size.
func (ctx *RenderContext) UpscaleFactor() math3d.Vec2 {
	return math3d.V2(float64(ctx.deviceW)/float64(ctx.renderW), float64(ctx.deviceH)/float64(ctx.renderH))
}

// HOMLevels returns how many occlusion map levels the last hierarchy pass
// produced.
func (ctx *RenderContext) HOMLevels() int { return ctx.homLevels }

// HOMTexture returns the occlusion map, or the null texture when HOM was
// never enabled.
func (ctx *RenderContext) HOMTexture() rhi.Texture { return ctx.homTexture }

// Pick returns the selection id under render pixel (x, y) from the last
// selection pass, or 0.
func (ctx *RenderContext) Pick(dev rhi.Device, x, y int) uint32 {
	if ctx.selectionRT == rhi.NullRenderTarget {
		return 0
	}
	sx := x * ctx.selectionW / ctx.renderW
	sy := y * ctx.selectionH / ctx.renderH
	if sx < 0 || sy < 0 || sx >= ctx.selectionW || sy >= ctx.selectionH {
		return 0
	}
	texels := dev.ReadTexels(ctx.selectionColor, 0, 0)
	i := (sy*ctx.selectionW + sx) * 4
	return decodeSelectionID(texels[i : i+4])
}

// encodeSelectionID spreads the low 24 bits of id over RGB.
func encodeSelectionID(id uint32) math3d.Vec4 {
	return math3d.V4(
		float64(id&0xFF)/255,
		float64((id>>8)&0xFF)/255,
		float64((id>>16)&0xFF)/255,
		1,
	)
}

func decodeSelectionID(px []byte) uint32 {
	return binary.LittleEndian.Uint32([]byte{px[0], px[1], px[2], 0})
}
