// Package render is a software implementation of rhi.Device.
//
// It keeps a float colour plane, a depth plane and an 8-bit stencil plane
// for the back buffer, textures with full mip chains that can be bound as
// render targets per level, two-sided stencil, blending and sample-counting
// occlusion queries. Swapped frames are handed to a Presenter.
package render

import (
	"image"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// Presenter receives every swapped frame.
type Presenter interface {
	Present(frame *image.RGBA)
}

// Stats counts device work since the last swap.
type Stats struct {
	DrawCalls  int
	Primitives int
	Fragments  int
}

// Options configures a Device.
type Options struct {
	Width, Height int
	// SRGBWrite reports the back buffer as an sRGB surface.
	SRGBWrite bool
	// QueryLatency is the number of swaps before a query result becomes
	// available.
	QueryLatency int
	Presenter    Presenter
}

type renderTarget struct {
	color   rhi.Texture
	depth   rhi.Texture
	stencil map[int][]uint8
}

type query struct {
	samples    int
	readyFrame int
	pending    bool
}

// Device is the software graphics device.
type Device struct {
	opts Options

	back   *surface
	target  surface // currently bound planes
	rt      rhi.RenderTarget
	rtLevel int

	nextHandle int32
	textures   map[rhi.Texture]*deviceTexture
	rts        map[rhi.RenderTarget]*renderTarget
	stencils   map[rhi.StencilState]rhi.StencilDesc
	queries    map[rhi.Query]*query
	units      [8]rhi.Texture

	state        rhi.StateBits
	cull         rhi.CullFace
	viewport     rhi.Rect
	scissor      rhi.Rect
	depthNear    float64
	depthFar     float64
	stencilState rhi.StencilState
	stencilRef   uint8
	activeQuery  *query

	gamma [768]uint16
	frame int

	Stats     Stats
	LastStats Stats
}

// New creates a device with a back buffer of the given size.
func New(opts Options) *Device {
	d := &Device{
		opts:      opts,
		back:      newSurface(opts.Width, opts.Height),
		textures:  make(map[rhi.Texture]*deviceTexture),
		rts:       make(map[rhi.RenderTarget]*renderTarget),
		stencils:  make(map[rhi.StencilState]rhi.StencilDesc),
		queries:   make(map[rhi.Query]*query),
		state:     rhi.ColorWrite | rhi.AlphaWrite | rhi.DepthWrite,
		viewport:  rhi.Rect{W: opts.Width, H: opts.Height},
		depthNear: 0,
		depthFar:  1,
	}
	for i := range 256 {
		v := uint16(i) * 257
		d.gamma[i], d.gamma[256+i], d.gamma[512+i] = v, v, v
	}
	fill(d.back.Depth, 1.0)
	d.target = *d.back
	return d
}

// Size returns the back buffer size.
func (d *Device) Size() (int, int) { return d.back.Width, d.back.Height }

func (d *Device) SRGBWriteEnabled() bool { return d.opts.SRGBWrite }

// Resize reallocates the back buffer. Bound state is reset to the back buffer.
func (d *Device) Resize(width, height int) {
	d.opts.Width, d.opts.Height = width, height
	d.back = newSurface(width, height)
	fill(d.back.Depth, 1.0)
	d.target = *d.back
	d.rt = rhi.NullRenderTarget
	d.viewport = rhi.Rect{W: width, H: height}
}

// SetPresenter replaces the swap target.
func (d *Device) SetPresenter(p Presenter) { d.opts.Presenter = p }

func (d *Device) CreateRenderTarget(color, depth rhi.Texture) rhi.RenderTarget {
	d.nextHandle++
	h := rhi.RenderTarget(d.nextHandle)
	d.rts[h] = &renderTarget{color: color, depth: depth, stencil: make(map[int][]uint8)}
	return h
}

func (d *Device) DestroyRenderTarget(rt rhi.RenderTarget) {
	if d.rt == rt {
		d.EndRenderTarget()
	}
	delete(d.rts, rt)
}

// BeginRenderTarget redirects drawing to one level of a render target.
// A stencil plane is attached when the target has a depth texture.
func (d *Device) BeginRenderTarget(h rhi.RenderTarget, level int) {
	rt, ok := d.rts[h]
	if !ok {
		return
	}
	s := surface{}
	if tex, ok := d.textures[rt.color]; ok {
		tex.surfaceLevel(level, &s)
	}
	if tex, ok := d.textures[rt.depth]; ok {
		depthOnly := surface{}
		tex.surfaceLevel(level, &depthOnly)
		s.Depth = depthOnly.Depth
		s.Width, s.Height = depthOnly.Width, depthOnly.Height
		st, ok := rt.stencil[level]
		if !ok {
			st = make([]uint8, s.Width*s.Height)
			rt.stencil[level] = st
		}
		s.Stencil = st
	}
	d.target = s
	d.rt, d.rtLevel = h, level
}

// EndRenderTarget rebinds the back buffer.
func (d *Device) EndRenderTarget() {
	d.target = *d.back
	d.rt, d.rtLevel = rhi.NullRenderTarget, 0
}

// RenderTarget returns the bound target and level. The back buffer is
// NullRenderTarget.
func (d *Device) RenderTarget() (rhi.RenderTarget, int) {
	return d.rt, d.rtLevel
}

func (d *Device) CreateStencilState(desc rhi.StencilDesc) rhi.StencilState {
	d.nextHandle++
	h := rhi.StencilState(d.nextHandle)
	d.stencils[h] = desc
	return h
}

func (d *Device) DestroyStencilState(s rhi.StencilState) {
	if d.stencilState == s {
		d.stencilState = rhi.NullStencilState
	}
	delete(d.stencils, s)
}

// SetStencilState enables the stencil test with s. The null state disables
// it.
func (d *Device) SetStencilState(s rhi.StencilState, ref uint8) {
	d.stencilState = s
	d.stencilRef = ref
}

func (d *Device) StateBits() rhi.StateBits     { return d.state }
func (d *Device) SetStateBits(s rhi.StateBits) { d.state = s }
func (d *Device) SetCullFace(c rhi.CullFace)   { d.cull = c }
func (d *Device) Viewport() rhi.Rect           { return d.viewport }
func (d *Device) SetViewport(r rhi.Rect)       { d.viewport = r }
func (d *Device) Scissor() rhi.Rect            { return d.scissor }

// SetScissor enables the scissor test. An empty rect disables it.
func (d *Device) SetScissor(r rhi.Rect) { d.scissor = r }

func (d *Device) SetDepthRange(near, far float64) {
	d.depthNear, d.depthFar = near, far
}

// clipRect is the pixel region writable by the next draw: the bound planes,
// the viewport and the scissor.
func (d *Device) clipRect() image.Rectangle {
	r := image.Rect(0, 0, d.target.Width, d.target.Height).Intersect(d.viewport.Image())
	if !d.scissor.Empty() {
		r = r.Intersect(d.scissor.Image())
	}
	return r
}

// Clear fills the selected planes inside the scissor (or the whole target
// when the scissor is disabled).
func (d *Device) Clear(bits rhi.ClearBits, c math3d.Vec4, depth float64, stencil uint8) {
	r := image.Rect(0, 0, d.target.Width, d.target.Height)
	if !d.scissor.Empty() {
		r = r.Intersect(d.scissor.Image())
	}
	if bits&rhi.ColorBit != 0 {
		fillRect(d.target.Color, d.target.Width, r, d.target.quantize(c))
	}
	if bits&rhi.DepthBit != 0 {
		fillRect(d.target.Depth, d.target.Width, r, depth)
	}
	if bits&rhi.StencilBit != 0 {
		fillRect(d.target.Stencil, d.target.Width, r, stencil)
	}
}

func (d *Device) CreateQuery() rhi.Query {
	d.nextHandle++
	h := rhi.Query(d.nextHandle)
	d.queries[h] = &query{}
	return h
}

func (d *Device) DestroyQuery(q rhi.Query) {
	delete(d.queries, q)
}

// BeginQuery starts counting samples that pass both stencil and depth.
func (d *Device) BeginQuery(h rhi.Query) {
	q, ok := d.queries[h]
	if !ok {
		return
	}
	q.samples = 0
	q.pending = true
	d.activeQuery = q
}

func (d *Device) EndQuery() {
	if d.activeQuery == nil {
		return
	}
	d.activeQuery.readyFrame = d.frame + d.opts.QueryLatency
	d.activeQuery = nil
}

func (d *Device) QueryResultAvailable(h rhi.Query) bool {
	q, ok := d.queries[h]
	if !ok {
		return false
	}
	return q.pending && d.frame >= q.readyFrame
}

// QueryResult returns the sample count. It blocks conceptually until the
// result is available; the software device has it immediately.
func (d *Device) QueryResult(h rhi.Query) int {
	q, ok := d.queries[h]
	if !ok {
		return 0
	}
	return q.samples
}

// ReadPixels reads r from the bound colour plane as 8-bit RGBA.
func (d *Device) ReadPixels(r rhi.Rect) *image.RGBA {
	return d.target.ToImage(r.Image())
}

func (d *Device) GammaRamp() [768]uint16         { return d.gamma }
func (d *Device) SetGammaRamp(ramp [768]uint16) { d.gamma = ramp }

// SwapBuffers presents the back buffer through the gamma ramp and advances
// the frame counter used for query latency.
func (d *Device) SwapBuffers() {
	d.frame++
	d.LastStats = d.Stats
	d.Stats = Stats{}
	if d.opts.Presenter == nil {
		return
	}
	img := d.back.ToImage(image.Rect(0, 0, d.back.Width, d.back.Height))
	applyGammaRamp(img, d.gamma)
	d.opts.Presenter.Present(img)
}

// applyGammaRamp maps each channel of img through a 3x256 ramp.
func applyGammaRamp(img *image.RGBA, ramp [768]uint16) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(ramp[img.Pix[i]] >> 8)
		img.Pix[i+1] = uint8(ramp[256+int(img.Pix[i+1])] >> 8)
		img.Pix[i+2] = uint8(ramp[512+int(img.Pix[i+2])] >> 8)
	}
}

// Frame returns the number of swaps so far.
func (d *Device) Frame() int { return d.frame }

var _ rhi.Device = (*Device)(nil)
