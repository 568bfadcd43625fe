package render

import (
	"math"
	"testing"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// quad returns two counter-clockwise triangles covering an NDC rectangle at
// depth z.
func quad(x0, y0, x1, y1, z float64, c math3d.Vec4) []rhi.Vertex {
	v := func(x, y float64) rhi.Vertex {
		return rhi.Vertex{Position: math3d.V3(x, y, z), Color: c}
	}
	return []rhi.Vertex{
		v(x0, y0), v(x1, y0), v(x1, y1),
		v(x0, y0), v(x1, y1), v(x0, y1),
	}
}

func reverse(verts []rhi.Vertex) []rhi.Vertex {
	out := make([]rhi.Vertex, len(verts))
	for i := 0; i+2 < len(verts); i += 3 {
		out[i], out[i+1], out[i+2] = verts[i], verts[i+2], verts[i+1]
	}
	return out
}

func newTestDevice(w, h int) *Device {
	d := New(Options{Width: w, Height: h})
	d.Clear(rhi.ColorBit|rhi.DepthBit|rhi.StencilBit, math3d.Vec4{}, 1, 0)
	return d
}

func pixel(d *Device, x, y int) math3d.Vec4 {
	return d.target.Color[y*d.target.Width+x]
}

var (
	red   = math3d.V4(1, 0, 0, 1)
	green = math3d.V4(0, 1, 0, 1)
)

func TestDrawTrianglesDepthTest(t *testing.T) {
	d := newTestDevice(8, 8)

	d.DrawTriangles(quad(-1, -1, 1, 1, 0.5, red), math3d.Identity(), nil)
	d.DrawTriangles(quad(-1, -1, 0, 1, 0.0, green), math3d.Identity(), nil)
	d.DrawTriangles(quad(-1, -1, 1, 1, 0.9, math3d.V4(0, 0, 1, 1)), math3d.Identity(), nil)

	if got := pixel(d, 1, 4); got != green {
		t.Errorf("left half = %v, want green (nearest)", got)
	}
	if got := pixel(d, 6, 4); got != red {
		t.Errorf("right half = %v, want red", got)
	}
	wantDepth := 0.5 * (0.5 + 1)
	if got := d.target.Depth[4*8+6]; math.Abs(got-wantDepth) > 1e-9 {
		t.Errorf("depth = %v, want %v", got, wantDepth)
	}
}

func TestCullFace(t *testing.T) {
	tests := []struct {
		name    string
		cull    rhi.CullFace
		flipped bool
		drawn   bool
	}{
		{"ccw with back cull", rhi.BackCull, false, true},
		{"cw with back cull", rhi.BackCull, true, false},
		{"ccw with front cull", rhi.FrontCull, false, false},
		{"cw with front cull", rhi.FrontCull, true, true},
		{"cw without cull", rhi.NoCull, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDevice(4, 4)
			d.SetCullFace(tc.cull)
			verts := quad(-1, -1, 1, 1, 0, red)
			if tc.flipped {
				verts = reverse(verts)
			}
			d.DrawTriangles(verts, math3d.Identity(), nil)
			if drawn := pixel(d, 2, 2) == red; drawn != tc.drawn {
				t.Errorf("drawn = %v, want %v", drawn, tc.drawn)
			}
		})
	}
}

func TestFrontFacingReachesShader(t *testing.T) {
	d := newTestDevice(4, 4)
	var front, back int
	fs := func(f *rhi.Fragment) bool {
		if f.FrontFacing {
			front++
		} else {
			back++
		}
		return true
	}
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, red), math3d.Identity(), fs)
	d.DrawTriangles(reverse(quad(-1, -1, 1, 1, 0, red)), math3d.Identity(), fs)
	if front != 16 || back != 16 {
		t.Errorf("front=%d back=%d, want 16 each", front, back)
	}
}

func TestStencilTwoSided(t *testing.T) {
	d := newTestDevice(4, 4)
	st := d.CreateStencilState(rhi.StencilDesc{
		ReadMask:  0xFF,
		WriteMask: 0xFF,
		Front:     rhi.StencilFace{Func: rhi.AlwaysFunc, ZPass: rhi.IncrWrapOp},
		Back:      rhi.StencilFace{Func: rhi.AlwaysFunc, ZFail: rhi.DecrWrapOp},
	})
	d.SetStencilState(st, 0)
	d.SetStateBits(rhi.DFLEqual)

	// Front face passes depth: +1.
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, red), math3d.Identity(), nil)
	if got := d.target.Stencil[5]; got != 1 {
		t.Fatalf("after front zpass stencil = %d, want 1", got)
	}

	// Back face fails depth against a nearer depth value: wraps below zero.
	d.SetStencilState(rhi.NullStencilState, 0)
	d.SetStateBits(rhi.DepthWrite)
	d.DrawTriangles(quad(-1, -1, 1, 1, -0.5, red), math3d.Identity(), nil)
	d.SetStencilState(st, 0)
	d.SetStateBits(0)
	d.DrawTriangles(reverse(quad(-1, -1, 1, 1, 0.5, red)), math3d.Identity(), nil)
	d.DrawTriangles(reverse(quad(-1, -1, 1, 1, 0.5, red)), math3d.Identity(), nil)
	if got := d.target.Stencil[5]; got != 255 {
		t.Errorf("after two back zfails stencil = %d, want 255", got)
	}
}

func TestStencilTestMasksColor(t *testing.T) {
	d := newTestDevice(4, 4)
	eq := d.CreateStencilState(rhi.StencilDesc{
		ReadMask: 0xFF,
		Front:    rhi.StencilFace{Func: rhi.EqualFunc},
		Back:     rhi.StencilFace{Func: rhi.EqualFunc},
	})
	d.target.Stencil[0] = 1
	d.SetStencilState(eq, 1)
	d.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DFAlways)
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, red), math3d.Identity(), nil)

	if pixel(d, 0, 0) != red {
		t.Error("pixel with matching stencil should be written")
	}
	if pixel(d, 1, 0) == red {
		t.Error("pixel with other stencil should be masked")
	}
}

func TestOcclusionQueryCountsPassingSamples(t *testing.T) {
	d := New(Options{Width: 4, Height: 4, QueryLatency: 1})
	d.Clear(rhi.ColorBit|rhi.DepthBit, math3d.Vec4{}, 1, 0)
	d.DrawTriangles(quad(-1, -1, 0, 1, -0.5, red), math3d.Identity(), nil)

	q := d.CreateQuery()
	d.SetStateBits(0)
	d.BeginQuery(q)
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, green), math3d.Identity(), nil)
	d.EndQuery()

	if d.QueryResultAvailable(q) {
		t.Error("result should be pending until the next swap")
	}
	d.SwapBuffers()
	if !d.QueryResultAvailable(q) {
		t.Fatal("result should be available after one swap")
	}
	if got := d.QueryResult(q); got != 8 {
		t.Errorf("samples = %d, want 8 (right half only)", got)
	}
}

func TestNearPlaneClipping(t *testing.T) {
	d := newTestDevice(16, 16)
	proj := math3d.Perspective(math.Pi/2, 1, 1, 100)
	// A floor triangle reaching behind the camera.
	verts := []rhi.Vertex{
		{Position: math3d.V3(-10, -1, 5), Color: red},
		{Position: math3d.V3(10, -1, 5), Color: red},
		{Position: math3d.V3(0, -1, -50), Color: red},
	}
	d.SetCullFace(rhi.NoCull)
	d.DrawTriangles(verts, proj, nil)

	var lit int
	for _, c := range d.target.Color {
		if c == red {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("clipped triangle drew nothing")
	}
	for _, z := range d.target.Depth {
		if z < 0 || z > 1 {
			t.Fatalf("depth %v outside [0,1] after clipping", z)
		}
	}
	if pixel(d, 8, 2) == red {
		t.Error("floor should not cover the top of the screen")
	}
}

func TestViewportAndScissor(t *testing.T) {
	d := newTestDevice(8, 8)
	d.SetViewport(rhi.Rect{X: 4, Y: 0, W: 4, H: 4})
	d.SetScissor(rhi.Rect{X: 4, Y: 0, W: 2, H: 4})
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, red), math3d.Identity(), nil)

	tests := []struct {
		x, y int
		want bool
	}{
		{4, 0, true},
		{5, 3, true},
		{6, 0, false}, // outside scissor
		{0, 0, false}, // outside viewport
		{4, 5, false},
	}
	for _, tc := range tests {
		if got := pixel(d, tc.x, tc.y) == red; got != tc.want {
			t.Errorf("pixel(%d,%d) drawn = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}

func TestClearRespectsScissor(t *testing.T) {
	d := newTestDevice(4, 4)
	d.SetScissor(rhi.Rect{X: 0, Y: 0, W: 2, H: 2})
	d.Clear(rhi.ColorBit, red, 1, 0)
	if pixel(d, 1, 1) != red || pixel(d, 2, 2) == red {
		t.Error("clear should touch only the scissor rect")
	}
}

func TestBlendAdd(t *testing.T) {
	d := newTestDevice(2, 2)
	d.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite | rhi.DFAlways | rhi.BlendAdd)
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, math3d.V4(0.25, 0, 0, 1)), math3d.Identity(), nil)
	d.DrawTriangles(quad(-1, -1, 1, 1, 0, math3d.V4(0.25, 0.5, 0, 0)), math3d.Identity(), nil)
	got := pixel(d, 0, 0)
	if math.Abs(got.X-0.5) > 1.0/255 || math.Abs(got.Y-0.5) > 1.0/255 {
		t.Errorf("blended = %v, want (0.5, 0.5, 0, 1)", got)
	}
}

func TestRenderTargetLevelsAndFetch(t *testing.T) {
	d := newTestDevice(4, 4)
	depth := d.CreateTexture(rhi.TextureDesc{W: 8, H: 4, Levels: 3, Format: rhi.Depth})
	rt := d.CreateRenderTarget(rhi.NullTexture, depth)

	if w, h := d.TextureSize(depth, 2); w != 2 || h != 1 {
		t.Fatalf("level 2 size = %dx%d, want 2x1", w, h)
	}

	d.BeginRenderTarget(rt, 1)
	d.SetViewport(rhi.Rect{W: 4, H: 2})
	d.SetStateBits(rhi.DepthWrite | rhi.DFAlways)
	d.DrawFullscreen(func(f *rhi.Fragment) bool {
		f.Depth = 0.25
		return true
	})
	d.EndRenderTarget()

	d.BindTexture(0, depth)
	d.SetTextureLevel(1, 1)
	if got := d.Fetch(0, 0, 3, 1).X; got != 0.25 {
		t.Errorf("fetch level 0 relative to base 1 = %v, want 0.25", got)
	}
	d.SetTextureLevel(0, 2)
	if got := d.Fetch(0, 0, 0, 0).X; got != 1 {
		t.Errorf("level 0 should still hold the clear depth, got %v", got)
	}
}

func TestDrawPointsAddressesTexels(t *testing.T) {
	d := newTestDevice(2, 2)
	out := d.CreateTexture(rhi.TextureDesc{W: 16, H: 1, Format: rhi.RGBA8})
	rt := d.CreateRenderTarget(out, rhi.NullTexture)
	d.BeginRenderTarget(rt, 0)
	d.SetViewport(rhi.Rect{W: 16, H: 1})
	d.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite)

	var pts []rhi.Point
	for i := range 16 {
		pts = append(pts, rhi.Point{NDC: math3d.V2((float64(i)+0.5)/16*2-1, 0)})
	}
	d.DrawPoints(pts, func(f *rhi.Fragment) bool {
		f.Color = math3d.V4(0, 0, float64(f.Primitive%2), 1)
		return true
	})
	d.EndRenderTarget()

	px := d.ReadTexels(out, 0, 0)
	for i := range 16 {
		want := uint8(0)
		if i%2 == 1 {
			want = 255
		}
		if px[i*4+2] != want {
			t.Errorf("texel %d blue = %d, want %d", i, px[i*4+2], want)
		}
	}
}

func TestBlitScales(t *testing.T) {
	d := newTestDevice(8, 8)
	src := d.CreateTexture(rhi.TextureDesc{W: 2, H: 2, Format: rhi.RGBA8})
	d.WriteTexels(src, 0, 0, []math3d.Vec4{red, green, green, red})
	d.Blit(src, 0, rhi.Rect{}, rhi.Rect{W: 8, H: 8}, rhi.Nearest)

	if pixel(d, 1, 1) != red || pixel(d, 6, 1) != green || pixel(d, 6, 6) != red {
		t.Errorf("blit quadrants = %v %v %v", pixel(d, 1, 1), pixel(d, 6, 1), pixel(d, 6, 6))
	}
}

func TestSwapPresentsThroughGamma(t *testing.T) {
	p := &ImagePresenter{}
	d := New(Options{Width: 2, Height: 2, Presenter: p})
	d.Clear(rhi.ColorBit, math3d.V4(0.5, 0.5, 0.5, 1), 1, 0)

	var ramp [768]uint16
	for i := range 768 {
		ramp[i] = 0xFFFF
	}
	d.SetGammaRamp(ramp)
	d.SwapBuffers()

	if got := p.Last().RGBAAt(0, 0); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("presented = %v, want white through the ramp", got)
	}
	if d.Frame() != 1 {
		t.Errorf("frame = %d, want 1", d.Frame())
	}
}

func TestEdgeCoeffs(t *testing.T) {
	A, B, C := edgeCoeffs(0, 0, 1, 0)
	if got := edgeFunc(A, B, C, 0.5, 1); got <= 0 {
		t.Errorf("point below the edge in window space should be positive, got %v", got)
	}
	if got := edgeFunc(A, B, C, 0.5, -1); got >= 0 {
		t.Errorf("point above the edge should be negative, got %v", got)
	}
}
