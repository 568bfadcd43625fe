package backend

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/models"
	"github.com/taigrr/occlude/pkg/render"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

func newTestBackend(t *testing.T, w, h int, cfg Config, opts ContextOptions) (*render.Device, *Backend, *RenderContext) {
	t.Helper()
	dev := render.New(render.Options{Width: w, Height: h})
	b := New(dev, cfg)
	ctx := b.NewContext(opts)
	t.Cleanup(b.Shutdown)
	return dev, b, ctx
}

// addBox adds obj to v with a single box surface.
func addBox(v *scene.View, obj *scene.RenderObject, half math3d.Vec3, mtl *scene.Material) *scene.DrawSurf {
	sub := scene.NewSubMesh(scene.TriangleList(models.NewBox(obj.Name, half)))
	return v.AddSurface(v.AddObject(obj), sub, mtl)
}

// addWall puts a screen filling occluder at the origin, facing the
// default camera.
func addWall(v *scene.View) *scene.DrawSurf {
	return addBox(v, scene.NewRenderObject("wall", math3d.Vec3{}), math3d.V3(50, 50, 0.5),
		scene.NewMaterial("wall", math3d.V4(0.5, 0.5, 0.5, 1)))
}

// drawStream draws views into context 0 and swaps.
func drawStream(views ...int) []uint32 {
	var cb CommandBuffer
	cb.BeginContext(0)
	for _, v := range views {
		cb.DrawCamera(v)
	}
	cb.SwapBuffers()
	cb.End()
	return cb.Buf
}

func TestExecuteVisitsRecordsInOrder(t *testing.T) {
	_, b, _ := newTestBackend(t, 16, 16, DefaultConfig(), ContextOptions{})
	frame := scene.NewFrame()
	frame.AddView(scene.New2DView(scene.NewCamera(16, 16)))

	type visit struct {
		tag    CommandTag
		offset int
	}
	var got []visit
	b.Trace = func(tag CommandTag, offset int) {
		got = append(got, visit{tag, offset})
	}
	if err := b.Execute(frame, drawStream(0)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []visit{
		{BeginContextCommand, 0},
		{DrawCameraCommand, 3},
		{SwapBuffersCommand, 6},
		{EndOfCommand, 8},
	}
	if !slices.Equal(got, want) {
		t.Errorf("visited %v, want %v", got, want)
	}
	c := b.Counters()
	if c.Commands[DrawCameraCommand] != 1 || c.Commands[SwapBuffersCommand] != 1 {
		t.Errorf("command counts = %v", c.Commands)
	}
}

func TestExecuteErrors(t *testing.T) {
	build := func(fill func(cb *CommandBuffer)) []uint32 {
		var cb CommandBuffer
		fill(&cb)
		return cb.Buf
	}

	tests := []struct {
		name   string
		stream []uint32
		want   error
	}{
		{"unknown tag", []uint32{99, 0, 0}, ErrUnknownCommand},
		{"no terminator", build(func(cb *CommandBuffer) { cb.BeginContext(0) }), ErrTruncatedStream},
		{"payload past the end", []uint32{uint32(DrawCameraCommand), 5, 0}, ErrTruncatedStream},
		{"short payload", []uint32{uint32(BeginContextCommand), 0, uint32(EndOfCommand)}, ErrTruncatedStream},
		{"short screenshot", []uint32{uint32(ScreenshotCommand), 2, 0, 0, uint32(EndOfCommand)}, ErrTruncatedStream},
		{"draw without context", build(func(cb *CommandBuffer) {
			cb.DrawCamera(0)
			cb.End()
		}), ErrNoContext},
		{"unknown context", build(func(cb *CommandBuffer) {
			cb.BeginContext(3)
			cb.End()
		}), ErrNoContext},
		{"bad view", build(func(cb *CommandBuffer) {
			cb.BeginContext(0)
			cb.DrawCamera(7)
			cb.End()
		}), ErrBadView},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, b, _ := newTestBackend(t, 16, 16, DefaultConfig(), ContextOptions{})
			frame := scene.NewFrame()
			frame.AddView(scene.New2DView(scene.NewCamera(16, 16)))
			err := b.Execute(frame, tc.stream)
			if !errors.Is(err, tc.want) {
				t.Errorf("Execute = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEmpty2DViewIssuesNoDrawCalls(t *testing.T) {
	dev, b, _ := newTestBackend(t, 32, 32, DefaultConfig(), ContextOptions{})
	frame := scene.NewFrame()
	frame.AddView(scene.New2DView(scene.NewCamera(32, 32)))

	var cb CommandBuffer
	cb.BeginContext(0)
	cb.DrawCamera(0)
	cb.End()
	if err := b.Execute(frame, cb.Buf); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if dev.Stats.DrawCalls != 0 {
		t.Errorf("device draw calls = %d, want 0", dev.Stats.DrawCalls)
	}
	if got := b.Counters().DrawCalls; got != 0 {
		t.Errorf("counted draw calls = %d, want 0", got)
	}

	// The same view with a surface draws.
	v, _ := frame.View(0)
	addBox(v, scene.NewRenderObject("button", math3d.V3(8, 8, 0)), math3d.V3(4, 4, 0.5),
		scene.NewMaterial("button", math3d.V4(1, 1, 1, 1)))
	v.Finish()
	if err := b.Execute(frame, cb.Buf); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := b.Counters().DrawCalls; got != 1 {
		t.Errorf("counted draw calls = %d, want 1", got)
	}
}

func TestCommandBufferBytes(t *testing.T) {
	var cb CommandBuffer
	cb.BeginContext(2)
	cb.Screenshot(-1, 2, 30, 40, "shot.png")
	cb.End()

	words, err := DecodeWords(cb.Bytes())
	if err != nil {
		t.Fatalf("DecodeWords: %v", err)
	}
	if !slices.Equal(words, cb.Buf) {
		t.Fatalf("decoded %v, want %v", words, cb.Buf)
	}

	rec, next, err := nextRecord(words, 3)
	if err != nil {
		t.Fatalf("nextRecord: %v", err)
	}
	if rec.tag != ScreenshotCommand || next != len(words)-1 {
		t.Fatalf("record %v ending at %d", rec.tag, next)
	}
	if x := int(int32(rec.payload[0])); x != -1 {
		t.Errorf("x = %d, want -1", x)
	}
	name, ok := unpackString(rec.payload[5:], int(rec.payload[4]))
	if !ok || name != "shot.png" {
		t.Errorf("name = %q, %v", name, ok)
	}

	if _, err := DecodeWords(make([]byte, 6)); !errors.Is(err, ErrTruncatedStream) {
		t.Errorf("DecodeWords of 6 bytes = %v, want ErrTruncatedStream", err)
	}
}

func TestScreenshot(t *testing.T) {
	_, b, _ := newTestBackend(t, 32, 16, DefaultConfig(), ContextOptions{})
	cam := scene.NewCamera(32, 16)
	cam.ClearColor = math3d.V4(1, 0, 0, 1)
	frame := scene.NewFrame()
	frame.AddView(scene.NewView(cam))

	dir := t.TempDir()
	var cb CommandBuffer
	cb.BeginContext(0)
	cb.DrawCamera(0)
	cb.Screenshot(0, 0, 32, 16, filepath.Join(dir, "full.png"))
	cb.Screenshot(16, 8, 32, 32, filepath.Join(dir, "clipped.bmp"))
	cb.Screenshot(0, 0, 8, 8, filepath.Join(dir, "noext"))
	cb.Screenshot(100, 100, 4, 4, filepath.Join(dir, "offscreen.png"))
	cb.End()

	if err := b.Execute(frame, cb.Buf); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := b.Counters().Screenshots; got != 3 {
		t.Errorf("screenshots = %d, want 3", got)
	}

	f, err := os.Open(filepath.Join(dir, "full.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if r := img.Bounds(); r.Dx() != 32 || r.Dy() != 16 {
		t.Errorf("full screenshot is %v", r)
	}
	if r, g, _, a := img.At(4, 4).RGBA(); r != 0xFFFF || g != 0 || a != 0xFFFF {
		t.Errorf("pixel = %v, want opaque red", img.At(4, 4))
	}

	bf, err := os.Open(filepath.Join(dir, "clipped.bmp"))
	if err != nil {
		t.Fatal(err)
	}
	defer bf.Close()
	cfg, err := bmp.DecodeConfig(bf)
	if err != nil {
		t.Fatalf("decode bmp: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 8 {
		t.Errorf("clipped screenshot is %dx%d, want 16x8", cfg.Width, cfg.Height)
	}

	if _, err := os.Stat(filepath.Join(dir, "noext.png")); err != nil {
		t.Errorf("screenshot without extension: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "offscreen.png")); !os.IsNotExist(err) {
		t.Errorf("off screen rect wrote a file: %v", err)
	}
	if err := b.TakeScreenshot(rhi.Rect{X: 40, Y: 0, W: 4, H: 4}, filepath.Join(dir, "x.png")); err == nil {
		t.Error("TakeScreenshot of an off screen rect should fail")
	}
}

func TestPickSelection(t *testing.T) {
	dev, b, ctx := newTestBackend(t, 32, 32, DefaultConfig(), ContextOptions{
		Flags:          UseSelectionBuffer,
		SelectionScale: 1,
	})
	v := scene.NewView(scene.NewCamera(32, 32))
	wall := addWall(v)
	wall.Space.Def.SelectionID = 42
	v.Finish()
	frame := scene.NewFrame()
	frame.AddView(v)

	if err := b.Execute(frame, drawStream(0)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := ctx.Pick(dev, 16, 16); got != 42 {
		t.Errorf("Pick(16, 16) = %d, want 42", got)
	}
	if got := ctx.Pick(dev, -1, 0); got != 0 {
		t.Errorf("Pick outside = %d, want 0", got)
	}

	_, _, plain := newTestBackend(t, 32, 32, DefaultConfig(), ContextOptions{})
	if got := plain.Pick(dev, 16, 16); got != 0 {
		t.Errorf("Pick without selection buffer = %d, want 0", got)
	}
}

func TestSelectionIDEncoding(t *testing.T) {
	for _, id := range []uint32{0, 1, 255, 256, 0xABCDEF} {
		c := encodeSelectionID(id)
		px := []byte{
			byte(math3d.Rint(c.X * 255)),
			byte(math3d.Rint(c.Y * 255)),
			byte(math3d.Rint(c.Z * 255)),
			255,
		}
		if got := decodeSelectionID(px); got != id {
			t.Errorf("id %#x decoded as %#x", id, got)
		}
	}
}

func TestGammaRamp(t *testing.T) {
	identity := gammaRamp(1)
	if identity[0] != 0 || identity[255] != 0xFFFF || identity[256+128] != identity[128] {
		t.Errorf("identity ramp ends = %d, %d", identity[0], identity[255])
	}
	bright := gammaRamp(2.2)
	if bright[128] <= identity[128] {
		t.Errorf("gamma 2.2 ramp at 128 = %d, not above %d", bright[128], identity[128])
	}
	if gammaRamp(0) != identity {
		t.Error("non-positive gamma should fall back to 1")
	}
}

func TestWalk(t *testing.T) {
	var cb CommandBuffer
	cb.BeginContext(1)
	cb.Screenshot(4, 5, 6, 7, "a.tif")
	cb.SwapBuffers()
	cb.End()

	var tags []CommandTag
	err := Walk(cb.Buf, func(tag CommandTag, offset int, payload []uint32) bool {
		tags = append(tags, tag)
		if tag == ScreenshotCommand {
			r, name, err := ScreenshotArgs(payload)
			if err != nil {
				t.Fatalf("ScreenshotArgs: %v", err)
			}
			if r != (rhi.Rect{X: 4, Y: 5, W: 6, H: 7}) || name != "a.tif" {
				t.Errorf("screenshot %+v %q", r, name)
			}
		}
		return true
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []CommandTag{BeginContextCommand, ScreenshotCommand, SwapBuffersCommand, EndOfCommand}
	if !slices.Equal(tags, want) {
		t.Errorf("walked %v, want %v", tags, want)
	}

	n := 0
	if err := Walk(cb.Buf, func(CommandTag, int, []uint32) bool { n++; return false }); err != nil || n != 1 {
		t.Errorf("stopped walk visited %d records, err %v", n, err)
	}
	if err := Walk(cb.Buf[:3], func(CommandTag, int, []uint32) bool { return true }); !errors.Is(err, ErrTruncatedStream) {
		t.Errorf("Walk of a cut stream = %v", err)
	}
}
