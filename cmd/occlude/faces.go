package main

import (
	"fmt"
	"image"

	"github.com/taigrr/occlude/pkg/backend"
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/probe"
	"github.com/taigrr/occlude/pkg/render"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// faceRenderer draws env probe faces of the demo scene offscreen. It keeps
// one device and back end per face size. It is not safe for concurrent
// use; bake gives every worker its own.
type faceRenderer struct {
	scene   *demoScene
	cfg     backend.Config
	time    float64
	targets map[int]*faceTarget
	cb      backend.CommandBuffer
}

type faceTarget struct {
	dev *render.Device
	be  *backend.Backend
}

func newFaceRenderer(s *demoScene, cfg backend.Config) *faceRenderer {
	// Faces are captured raw; overlays would end up in the cube maps.
	cfg.HOMDebug = false
	cfg.ShowCounters = false
	cfg.ShowLights = false
	cfg.ShowTris = false
	cfg.ShowRenderTarget = 0
	return &faceRenderer{scene: s, cfg: cfg, targets: make(map[int]*faceTarget)}
}

func (r *faceRenderer) target(size int) *faceTarget {
	if t, ok := r.targets[size]; ok {
		return t
	}
	dev := render.New(render.Options{Width: size, Height: size})
	be := backend.New(dev, r.cfg)
	be.NewContext(backend.ContextOptions{})
	t := &faceTarget{dev: dev, be: be}
	r.targets[size] = t
	return t
}

// RenderFace implements probe.FaceRenderer.
func (r *faceRenderer) RenderFace(p *probe.EnvProbe, f probe.Face) ([]math3d.Vec4, error) {
	size := p.Size()
	t := r.target(size)

	mask := p.State().LayerMask &^ (1 << probe.EditorLayer)
	frame := scene.NewFrame()
	frame.AddView(r.scene.view(p.Camera(f), mask, r.time))

	r.cb.Reset()
	r.cb.BeginContext(0)
	r.cb.DrawCamera(0)
	r.cb.End()
	if err := t.be.Execute(frame, r.cb.Buf); err != nil {
		return nil, fmt.Errorf("render face %d of probe %d: %w", f, p.Handle(), err)
	}
	t.dev.EndRenderTarget()
	return imageTexels(t.dev.ReadPixels(rhi.Rect{W: size, H: size})), nil
}

// imageTexels converts img to texels in [0, 1], row by row from the top.
func imageTexels(img *image.RGBA) []math3d.Vec4 {
	b := img.Bounds()
	texels := make([]math3d.Vec4, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			texels = append(texels, math3d.V4(
				float64(c.R)/255,
				float64(c.G)/255,
				float64(c.B)/255,
				float64(c.A)/255,
			))
		}
	}
	return texels
}

// Close releases every device resource.
func (r *faceRenderer) Close() {
	for _, t := range r.targets {
		t.be.Shutdown()
	}
	clear(r.targets)
}

// refreshAll runs World.Refresh until no probe is queued or limit calls
// were made.
func refreshAll(w *probe.World, r probe.FaceRenderer, limit int) error {
	for range limit {
		if len(w.Scheduled()) == 0 {
			return nil
		}
		if err := w.Refresh(r); err != nil {
			return err
		}
	}
	return nil
}
