package backend

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/render"
	"github.com/taigrr/occlude/pkg/scene"
)

func homConfig(w, h int) Config {
	cfg := DefaultConfig()
	cfg.HOM = true
	cfg.HOMWidth, cfg.HOMHeight = w, h
	return cfg
}

// readDepthLevel decodes one level of the occlusion map.
func readDepthLevel(dev *render.Device, ctx *RenderContext, level int) []float32 {
	b := dev.ReadTexels(ctx.HOMTexture(), 0, level)
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func TestHOMLevelCount(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{256, 1, 8},
		{256, 128, 8},
		{100, 60, 6},
		{16, 64, 6},
	}
	for _, tc := range tests {
		_, b, ctx := newTestBackend(t, 32, 32, homConfig(tc.w, tc.h), ContextOptions{})
		frame := scene.NewFrame()
		frame.AddView(scene.NewView(scene.NewCamera(32, 32)))
		if err := b.Execute(frame, drawStream(0)); err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if got := ctx.HOMLevels(); got != tc.want {
			t.Errorf("%dx%d map has %d levels, want %d", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestHOMHierarchyIsConservative(t *testing.T) {
	const w, h = 64, 32
	dev, b, ctx := newTestBackend(t, 32, 32, homConfig(w, h), ContextOptions{})
	v := scene.NewView(scene.NewCamera(32, 32))
	addWall(v)
	addBox(v, scene.NewRenderObject("near", math3d.V3(1, 0.5, 4)), math3d.V3(1, 1, 1),
		scene.NewMaterial("near", math3d.V4(1, 1, 1, 1)))
	v.Finish()
	frame := scene.NewFrame()
	frame.AddView(v)
	if err := b.Execute(frame, drawStream(0)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	prev := readDepthLevel(dev, ctx, 0)
	prevW, prevH := w, h
	for level := 1; level < ctx.HOMLevels(); level++ {
		lw, lh := math3d.MipDim(w, level), math3d.MipDim(h, level)
		cur := readDepthLevel(dev, ctx, level)
		for y := range lh {
			y0, y1 := footprint(y, prevH, lh)
			for x := range lw {
				x0, x1 := footprint(x, prevW, lw)
				var farthest float32
				for sy := y0; sy <= y1; sy++ {
					for sx := x0; sx <= x1; sx++ {
						farthest = max(farthest, prev[sy*prevW+sx])
					}
				}
				if got := cur[y*lw+x]; got != farthest {
					t.Fatalf("level %d texel (%d, %d) = %v, want the farthest covered depth %v", level, x, y, got, farthest)
				}
			}
		}
		prev, prevW, prevH = cur, lw, lh
	}
}

func TestHOMCulling(t *testing.T) {
	tests := []struct {
		name         string
		outputWidth  int
		wantTested   int
		wantOccluded int
		skinnedShown bool
	}{
		{"all tested", 4096, 3, 3, false},
		{"result target full", 2, 3, 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := homConfig(256, 128)
			cfg.HOMOutputWidth = tc.outputWidth
			_, b, _ := newTestBackend(t, 64, 64, cfg, ContextOptions{})

			v := scene.NewView(scene.NewCamera(64, 64))
			wall := addWall(v)
			mtl := scene.NewMaterial("box", math3d.V4(1, 1, 1, 1))
			hidden := addBox(v, scene.NewRenderObject("hidden", math3d.V3(0, 0, -5)), math3d.Splat3(1), mtl)

			skinned := scene.NewRenderObject("skinned", math3d.V3(2, 0, -8))
			skinned.Skinned = true
			skinned.LocalAABB = math3d.AABBFromCenterExtents(math3d.Vec3{}, math3d.Splat3(1))
			space := v.AddObject(skinned)
			head := v.AddSurface(space, hidden.SubMesh, mtl)
			body := v.AddSurface(space, hidden.SubMesh, scene.NewMaterial("body", math3d.V4(1, 0, 0, 1)))

			// Around the eye, crossing the near plane.
			glass := scene.NewMaterial("glass", math3d.V4(1, 1, 1, 1))
			glass.Occluder = false
			straddler := addBox(v, scene.NewRenderObject("straddler", math3d.V3(0, 0, 10)), math3d.Splat3(1), glass)

			v.Finish()
			frame := scene.NewFrame()
			frame.AddView(v)
			if err := b.Execute(frame, drawStream(0)); err != nil {
				t.Fatalf("Execute: %v", err)
			}

			c := b.Counters()
			if c.Occludees != tc.wantTested {
				t.Errorf("occludees = %d, want %d", c.Occludees, tc.wantTested)
			}
			if c.OccludedSurfs != tc.wantOccluded {
				t.Errorf("occluded surfaces = %d, want %d", c.OccludedSurfs, tc.wantOccluded)
			}
			if !wall.Visible() {
				t.Error("the occluder hid itself")
			}
			if hidden.Visible() {
				t.Error("box behind the wall is still visible")
			}
			if !straddler.Visible() {
				t.Error("surface crossing the near plane was culled")
			}
			if head.Visible() != tc.skinnedShown || body.Visible() != tc.skinnedShown {
				t.Errorf("skinned surfaces visible = %v, %v, want both %v", head.Visible(), body.Visible(), tc.skinnedShown)
			}
		})
	}
}

func TestHOMKeepsUnoccludedSurfaces(t *testing.T) {
	_, b, _ := newTestBackend(t, 64, 64, homConfig(256, 128), ContextOptions{})
	v := scene.NewView(scene.NewCamera(64, 64))
	addWall(v)
	mtl := scene.NewMaterial("box", math3d.V4(1, 1, 1, 1))
	front := addBox(v, scene.NewRenderObject("front", math3d.V3(0, 0, 3)), math3d.Splat3(1), mtl)
	touching := addBox(v, scene.NewRenderObject("touching", math3d.V3(2, 0, 1.5)), math3d.Splat3(1), mtl)
	v.Finish()
	frame := scene.NewFrame()
	frame.AddView(v)
	if err := b.Execute(frame, drawStream(0)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !front.Visible() || !touching.Visible() {
		t.Errorf("visible = %v, %v, want both", front.Visible(), touching.Visible())
	}
	if got := b.Counters().OccludedSurfs; got != 0 {
		t.Errorf("occluded surfaces = %d, want 0", got)
	}
}

func TestFootprint(t *testing.T) {
	tests := []struct {
		x, src, dst int
		lo, hi      int
	}{
		{0, 8, 4, 0, 1},
		{3, 8, 4, 6, 7},
		{0, 5, 2, 0, 2},
		{1, 5, 2, 2, 4},
		{0, 1, 1, 0, 0},
	}
	for _, tc := range tests {
		lo, hi := footprint(tc.x, tc.src, tc.dst)
		if lo != tc.lo || hi != tc.hi {
			t.Errorf("footprint(%d, %d, %d) = %d, %d, want %d, %d", tc.x, tc.src, tc.dst, lo, hi, tc.lo, tc.hi)
		}
	}
}

func TestMipTexel(t *testing.T) {
	tests := []struct {
		p, size, level int
		want           int
	}{
		{255, 256, 1, 127},
		{255, 256, 8, 0},
		{99, 100, 1, 49},
		{4, 5, 1, 1},
		{0, 5, 2, 0},
	}
	for _, tc := range tests {
		if got := mipTexel(tc.p, tc.size, tc.level); got != tc.want {
			t.Errorf("mipTexel(%d, %d, %d) = %d, want %d", tc.p, tc.size, tc.level, got, tc.want)
		}
	}
}

func BenchmarkHOMFrame(b *testing.B) {
	dev := render.New(render.Options{Width: 64, Height: 64})
	be := New(dev, homConfig(256, 128))
	defer be.Shutdown()
	be.NewContext(ContextOptions{})

	v := scene.NewView(scene.NewCamera(64, 64))
	addWall(v)
	v.Finish()
	frame := scene.NewFrame()
	frame.AddView(v)
	stream := drawStream(0)

	b.ResetTimer()
	for range b.N {
		if err := be.Execute(frame, stream); err != nil {
			b.Fatal(err)
		}
	}
	b.ReportMetric(be.Counters().HomGenMsec, "homgen-ms")
}
