// Package rhi describes the graphics device consumed by the render back end.
//
// The back end never talks to a concrete device. Everything it needs (state
// setters, resource handles, draw primitives, occlusion queries and
// readback) goes through the Device interface so the same pass code can run
// on the software device in pkg/render or on any other implementation.
package rhi

import (
	"image"

	"github.com/taigrr/occlude/pkg/math3d"
)

// Resource handles. The zero value of every handle is the null handle.
type (
	Texture      int32
	RenderTarget int32
	StencilState int32
	Query        int32
)

const (
	NullTexture      Texture      = 0
	NullRenderTarget RenderTarget = 0
	NullStencilState StencilState = 0
	NullQuery        Query        = 0
)

// StateBits packs the write masks, depth function and blend mode.
type StateBits uint32

const (
	ColorWrite StateBits = 1 << iota
	AlphaWrite
	DepthWrite
)

// Depth functions occupy bits 4..7. LEqual is the zero value.
const (
	DFLEqual      StateBits = 0 << 4
	DFAlways      StateBits = 1 << 4
	DFLess        StateBits = 2 << 4
	DFEqual       StateBits = 3 << 4
	DFGreater     StateBits = 4 << 4
	DepthFuncMask StateBits = 0xF << 4
)

// Blend modes occupy bits 8..11. Zero means no blending.
const (
	BlendAdd   StateBits = 1 << 8
	BlendAlpha StateBits = 2 << 8
	BlendMask  StateBits = 0xF << 8
)

// DepthFunc returns the depth function field of s.
func (s StateBits) DepthFunc() StateBits { return s & DepthFuncMask }

// Blend returns the blend field of s.
func (s StateBits) Blend() StateBits { return s & BlendMask }

// CullFace selects which faces are discarded.
type CullFace int

const (
	NoCull CullFace = iota
	BackCull
	FrontCull
)

// StencilFunc is the stencil comparison.
type StencilFunc int

const (
	AlwaysFunc StencilFunc = iota
	NeverFunc
	EqualFunc
	NotEqualFunc
	LessFunc
	LEqualFunc
	GreaterFunc
	GEqualFunc
)

// StencilOp is applied to the stencil value after a test.
type StencilOp int

const (
	KeepOp StencilOp = iota
	ZeroOp
	ReplaceOp
	IncrOp
	DecrOp
	IncrWrapOp
	DecrWrapOp
	InvertOp
)

// StencilFace configures one side of two-sided stencil.
type StencilFace struct {
	Func  StencilFunc
	Fail  StencilOp // stencil test failed
	ZFail StencilOp // stencil passed, depth failed
	ZPass StencilOp // both passed
}

// StencilDesc is the immutable description of a stencil state object.
type StencilDesc struct {
	ReadMask  uint8
	WriteMask uint8
	Front     StencilFace
	Back      StencilFace
}

// ClearBits selects the buffers cleared by Device.Clear.
type ClearBits int

const (
	ColorBit ClearBits = 1 << iota
	DepthBit
	StencilBit
)

// Filter selects blit sampling.
type Filter int

const (
	Nearest Filter = iota
	Linear
)

// Rect is a pixel rectangle with a top-left origin.
type Rect struct {
	X, Y, W, H int
}

// X2 returns the exclusive right edge.
func (r Rect) X2() int { return r.X + r.W }

// Y2 returns the exclusive bottom edge.
func (r Rect) Y2() int { return r.Y + r.H }

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Intersect returns the overlap of two rects.
func (r Rect) Intersect(o Rect) Rect {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X2(), o.X2()), min(r.Y2(), o.Y2())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Image returns r as an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X2(), r.Y2())
}

// Vertex is the single vertex layout understood by the device.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
	Color    math3d.Vec4
}

// Point is one point primitive given directly in normalized device
// coordinates with two free attributes.
type Point struct {
	NDC   math3d.Vec2
	Attrs [2]math3d.Vec3
}

// Fragment is the input and output of a fragment shader. Depth is the
// window depth in [0, 1] and may be overwritten by the shader.
type Fragment struct {
	X, Y        int
	Depth       float64
	Position    math3d.Vec3
	Normal      math3d.Vec3
	UV          math3d.Vec2
	Color       math3d.Vec4
	FrontFacing bool
	Attrs       [2]math3d.Vec3
	Primitive   int
}

// FragmentShader shades one fragment in place. Returning false discards it.
type FragmentShader func(f *Fragment) bool

// TextureType distinguishes 2D textures from cube maps.
type TextureType int

const (
	Texture2D TextureType = iota
	TextureCube
)

// Format is a texel storage format.
type Format int

const (
	RGBA8 Format = iota
	RGBA32F
	Depth
)

// BytesPerTexel returns the readback size of one texel in f.
func (f Format) BytesPerTexel() int {
	switch f {
	case RGBA32F:
		return 16
	case Depth:
		return 4
	default:
		return 4
	}
}

// TextureDesc describes a texture at creation.
type TextureDesc struct {
	Type   TextureType
	W, H   int
	Levels int
	Format Format
}

// Device is the graphics device consumed by the back end.
type Device interface {
	Size() (w, h int)
	SRGBWriteEnabled() bool

	CreateTexture(desc TextureDesc) Texture
	DestroyTexture(t Texture)
	TextureSize(t Texture, level int) (w, h int)
	// ReadTexels returns one level of one face in the texture's own format.
	// RGBA32F and Depth are little-endian float32.
	ReadTexels(t Texture, face, level int) []byte
	WriteTexels(t Texture, face, level int, texels []math3d.Vec4)
	BindTexture(unit int, t Texture)
	// SetTextureLevel limits the mip range visible through the bound unit 0
	// texture.
	SetTextureLevel(base, max int)
	Fetch(unit, level, x, y int) math3d.Vec4
	Sample(unit int, u, v float64) math3d.Vec4

	CreateRenderTarget(color, depth Texture) RenderTarget
	DestroyRenderTarget(rt RenderTarget)
	BeginRenderTarget(rt RenderTarget, level int)
	EndRenderTarget()
	// RenderTarget returns the bound target and level, NullRenderTarget
	// for the back buffer.
	RenderTarget() (RenderTarget, int)

	CreateStencilState(desc StencilDesc) StencilState
	DestroyStencilState(s StencilState)
	SetStencilState(s StencilState, ref uint8)

	StateBits() StateBits
	SetStateBits(s StateBits)
	SetCullFace(c CullFace)
	Viewport() Rect
	SetViewport(r Rect)
	Scissor() Rect
	SetScissor(r Rect)
	SetDepthRange(near, far float64)
	Clear(bits ClearBits, color math3d.Vec4, depth float64, stencil uint8)

	DrawTriangles(verts []Vertex, mvp math3d.Mat4, fs FragmentShader)
	DrawLines(verts []Vertex, mvp math3d.Mat4, fs FragmentShader)
	DrawPoints(points []Point, fs FragmentShader)
	DrawFullscreen(fs FragmentShader)
	// Blit copies srcRect of a texture level into dst. An empty srcRect
	// copies the whole level.
	Blit(src Texture, level int, srcRect, dst Rect, filter Filter)

	CreateQuery() Query
	DestroyQuery(q Query)
	BeginQuery(q Query)
	EndQuery()
	QueryResultAvailable(q Query) bool
	QueryResult(q Query) int

	ReadPixels(r Rect) *image.RGBA
	GammaRamp() [768]uint16
	SetGammaRamp(ramp [768]uint16)
	SwapBuffers()
}
