// Package backend executes the render commands recorded by the front end.
//
// A frame is a flat stream of uint32 words (see CommandBuffer) plus the
// scene.Frame holding the views it refers to. Backend.Execute walks the
// stream record by record on the caller's goroutine and drives an
// rhi.Device through the passes of every view: clear, occlusion culling,
// depth pre-pass, base, additive lights, unlit, velocity, final, debug
// overlays and post processing.
//
// A Backend is not safe for concurrent use. All of its state (render
// contexts, stencil states, light queries, counters) belongs to the
// goroutine that calls Execute.
package backend

import (
	"fmt"
	"math"
	"time"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/models"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// Backend owns the device resources shared by every render context.
type Backend struct {
	dev rhi.Device
	cfg Config

	stencilStates [numStencilStates]rhi.StencilState

	// Occludee result target, one RGBA8 texel per tested box.
	homCullTexture   rhi.Texture
	homCullRT        rhi.RenderTarget
	homOutW, homOutH int

	contexts     []*RenderContext
	lightQueries map[int]*lightQuery
	batch        batch
	unitSphere   []rhi.Vertex

	frameCount int
	counters   RenderCounter

	// Trace, if set, is called with every record before it executes.
	Trace func(tag CommandTag, offset int)
	// TracePass, if set, is called as every view pass starts.
	TracePass func(p Pass)
}

// New creates the shared resources on dev.
func New(dev rhi.Device, cfg Config) *Backend {
	b := &Backend{
		dev:          dev,
		lightQueries: make(map[int]*lightQuery),
		unitSphere:   scene.TriangleList(models.NewSphere("unit sphere", 1, 16, 16)),
	}
	b.counters.reset()
	b.batch.dev = dev
	b.createStencilStates()
	b.SetConfig(cfg)
	return b
}

// Config returns the current settings.
func (b *Backend) Config() Config { return b.cfg }

// SetConfig replaces the settings. Turning HOM on allocates its targets,
// and targets of a different size than cfg asks for are recreated.
func (b *Backend) SetConfig(cfg Config) {
	b.cfg = cfg
	if cfg.HOM {
		b.ensureHOM()
	}
	b.dev.SetGammaRamp(gammaRamp(cfg.Gamma))
}

// Device returns the device the back end draws with.
func (b *Backend) Device() rhi.Device { return b.dev }

// Counters returns the telemetry of the last Execute call.
func (b *Backend) Counters() RenderCounter {
	c := b.counters
	c.Commands = make(map[CommandTag]int, len(b.counters.Commands))
	for k, v := range b.counters.Commands {
		c.Commands[k] = v
	}
	return c
}

// NewContext creates a render context and returns it. Its index is what
// CommandBuffer.BeginContext refers to.
func (b *Backend) NewContext(opts ContextOptions) *RenderContext {
	ctx := newRenderContext(b.dev, b.cfg, len(b.contexts), opts)
	b.contexts = append(b.contexts, ctx)
	return ctx
}

// Context returns the context at index.
func (b *Backend) Context(index int) (*RenderContext, bool) {
	if index < 0 || index >= len(b.contexts) {
		return nil, false
	}
	return b.contexts[index], true
}

// Shutdown destroys every resource created by the back end. The Backend
// must not be used afterwards.
func (b *Backend) Shutdown() {
	for _, ctx := range b.contexts {
		ctx.destroy(b.dev)
	}
	b.contexts = nil
	for i, s := range b.stencilStates {
		if s != rhi.NullStencilState {
			b.dev.DestroyStencilState(s)
		}
		b.stencilStates[i] = rhi.NullStencilState
	}
	b.destroyHOMOutput()
	for _, q := range b.lightQueries {
		b.dev.DestroyQuery(q.handle)
	}
	clear(b.lightQueries)
}

// ensureHOM allocates the occludee result target and the occlusion map of
// every context, replacing the ones sized for an older Config.
func (b *Backend) ensureHOM() {
	if b.homOutW != b.cfg.HOMOutputWidth || b.homOutH != b.cfg.HOMOutputHeight {
		b.destroyHOMOutput()
	}
	if b.homCullRT == rhi.NullRenderTarget {
		b.homOutW, b.homOutH = b.cfg.HOMOutputWidth, b.cfg.HOMOutputHeight
		b.homCullTexture = b.dev.CreateTexture(rhi.TextureDesc{
			W:      b.homOutW,
			H:      b.homOutH,
			Levels: 1,
			Format: rhi.RGBA8,
		})
		b.homCullRT = b.dev.CreateRenderTarget(b.homCullTexture, rhi.NullTexture)
	}
	for _, ctx := range b.contexts {
		if ctx.homW != b.cfg.HOMWidth || ctx.homH != b.cfg.HOMHeight {
			ctx.destroyHOM(b.dev)
		}
		if ctx.homRT == rhi.NullRenderTarget {
			ctx.createHOM(b.dev, b.cfg)
		}
	}
}

func (b *Backend) destroyHOMOutput() {
	if b.homCullRT != rhi.NullRenderTarget {
		b.dev.DestroyRenderTarget(b.homCullRT)
		b.dev.DestroyTexture(b.homCullTexture)
	}
	b.homCullRT, b.homCullTexture = rhi.NullRenderTarget, rhi.NullTexture
	b.homOutW, b.homOutH = 0, 0
}

// executor is the state of one Execute call.
type executor struct {
	b     *Backend
	frame *scene.Frame
	ctx   *RenderContext
}

// Execute runs one command stream against frame. Records are executed in
// stream order until EndOfCommand. A malformed record abandons the rest of
// the frame and returns an error wrapping one of the Err values.
func (b *Backend) Execute(frame *scene.Frame, stream []uint32) error {
	start := time.Now()
	b.counters.reset()
	b.frameCount++
	b.batch.reset()

	ex := executor{b: b, frame: frame}
	offset := 0
	for {
		rec, next, err := nextRecord(stream, offset)
		if err != nil {
			return b.abandon(err, offset)
		}
		if b.Trace != nil {
			b.Trace(rec.tag, offset)
		}
		b.counters.Commands[rec.tag]++

		switch rec.tag {
		case BeginContextCommand:
			err = ex.beginContext(rec.payload)
		case DrawCameraCommand:
			err = ex.drawCamera(rec.payload)
		case ScreenshotCommand:
			err = ex.screenshot(rec.payload)
		case SwapBuffersCommand:
			b.dev.SwapBuffers()
		case EndOfCommand:
			b.counters.BackEndMsec = msecSince(start)
			return nil
		}
		if err != nil {
			return b.abandon(err, offset)
		}
		offset = next
	}
}

// abandon drops the rest of the frame and leaves the device on the back
// buffer with neutral state.
func (b *Backend) abandon(err error, offset int) error {
	b.dev.EndRenderTarget()
	b.dev.SetStencilState(rhi.NullStencilState, 0)
	b.dev.SetScissor(rhi.Rect{})
	Logger().Error("frame abandoned", "offset", offset, "error", err)
	return fmt.Errorf("execute at word %d: %w", offset, err)
}

func (ex *executor) beginContext(payload []uint32) error {
	if len(payload) != 1 {
		return fmt.Errorf("begin context payload of %d words: %w", len(payload), ErrTruncatedStream)
	}
	ctx, ok := ex.b.Context(int(payload[0]))
	if !ok {
		return fmt.Errorf("context %d: %w", payload[0], ErrNoContext)
	}
	ex.ctx = ctx
	return nil
}

func (ex *executor) drawCamera(payload []uint32) error {
	if len(payload) != 1 {
		return fmt.Errorf("draw camera payload of %d words: %w", len(payload), ErrTruncatedStream)
	}
	if ex.ctx == nil {
		return fmt.Errorf("draw camera: %w", ErrNoContext)
	}
	v, ok := ex.frame.View(int(payload[0]))
	if !ok || v == nil || v.Camera == nil {
		return fmt.Errorf("view %d: %w", payload[0], ErrBadView)
	}

	vs := ex.b.newViewState(ex.ctx, v)
	if v.Is2D {
		ex.b.draw2DView(vs)
	} else {
		ex.b.drawView(vs)
	}
	return nil
}

// gammaRamp builds a ramp raising every channel to 1/gamma.
func gammaRamp(gamma float64) [768]uint16 {
	var ramp [768]uint16
	if gamma <= 0 {
		gamma = 1
	}
	for i := range 256 {
		v := uint16(math3d.Clamp(math.Pow(float64(i)/255, 1/gamma)*0xFFFF, 0, 0xFFFF))
		ramp[i], ramp[256+i], ramp[512+i] = v, v, v
	}
	return ramp
}
