package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/spf13/cobra"

	"github.com/taigrr/occlude/pkg/backend"
	"github.com/taigrr/occlude/pkg/render"
	"github.com/taigrr/occlude/pkg/scene"
)

const viewHelp = `Controls:
  Mouse drag  - Orbit the camera
  Click       - Select an env probe (with --gizmos)
  Scroll, +/- - Zoom in/out
  W/S/A/D     - Pitch and yaw
  Space       - Random spin
  R           - Reset view
  H           - Toggle occlusion culling
  G           - Toggle occlusion map debug view
  O           - Toggle light occlusion queries
  Z           - Toggle z-fail light volumes
  L           - Toggle light volume outlines
  C           - Toggle counters
  X           - Toggle triangle outlines
  P           - Toggle post processing
  1-4         - Show a render target, 0 hides it
  ?           - Toggle HUD overlay
  Esc         - Quit`

func newViewCmd(opts *options) *cobra.Command {
	var fps int
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Interactive terminal viewer",
		Long:  "view draws the scene in the terminal with two pixels per cell.\n\n" + viewHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newDemoScene(opts.scene)
			if err != nil {
				return err
			}
			return runViewer(s, opts, fps)
		},
	}
	cmd.Flags().IntVar(&fps, "fps", 30, "target FPS")
	return cmd
}

// RotationAxis tracks position and velocity for one rotation axis with spring decay
type RotationAxis struct {
	Position  float64
	Velocity  float64
	velSpring harmonica.Spring
	velAccel  float64 // spring velocity of Velocity itself
}

// NewRotationAxis creates an axis whose velocity is critically damped
// toward zero.
func NewRotationAxis(fps int) RotationAxis {
	return RotationAxis{
		velSpring: harmonica.NewSpring(harmonica.FPS(fps), 4.0, 1.0),
	}
}

// Update applies velocity to position and decays velocity toward 0.
func (a *RotationAxis) Update() {
	a.Position += a.Velocity
	a.Velocity, a.velAccel = a.velSpring.Update(a.Velocity, a.velAccel, 0)
}

// OrbitState is the camera orbit around the scene: yaw and pitch with
// spring physics and a distance.
type OrbitState struct {
	Pitch, Yaw RotationAxis
	Distance   float64
	fps        int
}

const (
	defaultPitch    = 0.25
	defaultYaw      = 0.4
	defaultDistance = 12.0
	minDistance     = 3.0
	maxDistance     = 40.0
)

func NewOrbitState(fps int) *OrbitState {
	o := &OrbitState{fps: fps}
	o.Reset()
	return o
}

func (o *OrbitState) Update() {
	o.Pitch.Update()
	o.Yaw.Update()
	const maxPitch = math.Pi/2 - 0.05
	o.Pitch.Position = max(-0.1, min(maxPitch, o.Pitch.Position))
}

func (o *OrbitState) ApplyImpulse(pitch, yaw float64) {
	o.Pitch.Velocity += pitch
	o.Yaw.Velocity += yaw
}

func (o *OrbitState) Zoom(delta float64) {
	o.Distance = max(minDistance, min(maxDistance, o.Distance+delta))
}

func (o *OrbitState) Reset() {
	o.Pitch = NewRotationAxis(o.fps)
	o.Yaw = NewRotationAxis(o.fps)
	o.Pitch.Position = defaultPitch
	o.Yaw.Position = defaultYaw
	o.Distance = defaultDistance
}

// Camera returns the orbit camera for a w x h frame.
func (o *OrbitState) Camera(w, h int) *scene.Camera {
	return orbitCamera(w, h, o.Yaw.Position, o.Pitch.Position, o.Distance)
}

// HUD renders an overlay with the scene name, the frame counters and the
// back end switches.
type HUD struct {
	name      string
	triangles int
	fps       float64
	fpsFrames int
	fpsTime   time.Time
	Show      bool
}

func NewHUD(name string, triangles int) *HUD {
	return &HUD{name: name, triangles: triangles, fpsTime: time.Now(), Show: true}
}

// UpdateFPS updates the FPS counter (call once per frame)
func (h *HUD) UpdateFPS() {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed >= time.Second {
		h.fps = float64(h.fpsFrames) / elapsed.Seconds()
		h.fpsFrames = 0
		h.fpsTime = time.Now()
	}
}

// Render draws the HUD directly to the terminal, over the last display.
func (h *HUD) Render(width, height int, cfg backend.Config, c backend.RenderCounter) {
	const (
		reset     = "\x1b[0m"
		bold      = "\x1b[1m"
		dim       = "\x1b[2m"
		bgBlack   = "\x1b[40m"
		fgWhite   = "\x1b[97m"
		fgGreen   = "\x1b[92m"
		fgYellow  = "\x1b[93m"
		fgCyan    = "\x1b[96m"
		clearLine = "\x1b[2K"
	)
	moveTo := func(row, col int) string {
		return fmt.Sprintf("\x1b[%d;%dH", row, col)
	}

	// The rows are cleared even when hidden so that toggling off works.
	fmt.Print(moveTo(1, 1) + clearLine)
	fmt.Print(moveTo(height, 1) + clearLine)
	if !h.Show {
		return
	}

	fmt.Printf("%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)
	titleCol := max((width-len(h.name)-2)/2, 1)
	fmt.Printf("%s%s%s%s %s %s", moveTo(1, titleCol), bold, bgBlack, fgWhite, h.name, reset)
	stats := fmt.Sprintf("%d tris  %d draws  %d/%d occluded  %d lights", h.triangles, c.DrawCalls, c.OccludedSurfs, c.Occludees, c.VisibleLights)
	fmt.Printf("%s%s%s%s %s %s", moveTo(1, max(width-len(stats)-1, 1)), bgBlack, fgCyan, bold, stats, reset)

	check := func(on bool) string {
		if on {
			return "[✓]"
		}
		return "[ ]"
	}
	modes := fmt.Sprintf("%s HOM  %s queries  %s zfail  %s scissors  %s post",
		check(cfg.HOM), check(cfg.LightOcclusionQueries), check(cfg.LightVolumeZFail),
		check(cfg.UseLightScissors), check(cfg.UsePostProcessing))
	fmt.Printf("%s%s%s %s %s", moveTo(height, 1), bgBlack, fgWhite, modes, reset)
	fmt.Printf("%s%s%s%s ?: help %s", moveTo(height, max(width-10, 1)), bgBlack, dim, fgYellow, reset)
}

// viewer is the state of the interactive loop. Every field is owned by
// the loop goroutine.
type viewer struct {
	scene *demoScene
	opts  *options
	term  *uv.Terminal

	presenter *render.TerminalPresenter
	dev       *render.Device
	be        *backend.Backend
	faces     *faceRenderer
	frame     *scene.Frame
	cb        backend.CommandBuffer

	width, height int
	orbit         *OrbitState
	hud           *HUD
	torque        struct{ pitch, yaw float64 }
	mouseDown     bool
	dragged       bool
	lastX, lastY  int
	start         time.Time
}

// resize recreates the device for a width x height cell area. Render
// contexts are sized at creation, so the back end goes with it.
func (v *viewer) resize(width, height int) {
	v.width, v.height = width, height
	if v.be != nil {
		v.be.Shutdown()
	}
	v.dev = render.New(render.Options{
		Width:     width,
		Height:    height * 2,
		Presenter: v.presenter,
	})
	v.be = backend.New(v.dev, v.opts.cfg)
	v.be.NewContext(backend.ContextOptions{
		Flags:          backend.UseSelectionBuffer,
		SelectionScale: 1,
	})
}

func runViewer(s *demoScene, opts *options, fps int) error {
	fps = max(fps, 1)
	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	fmt.Fprint(os.Stdout, "\x1b[?1003h") // any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // SGR extended mouse mode

	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	v := &viewer{
		scene:     s,
		opts:      opts,
		term:      term,
		presenter: &render.TerminalPresenter{},
		faces:     newFaceRenderer(s, opts.cfg),
		frame:     scene.NewFrame(),
		orbit:     NewOrbitState(fps),
		hud:       NewHUD(s.name, s.triangles),
		start:     time.Now(),
	}
	defer v.faces.Close()
	v.resize(width, height)
	defer func() { v.be.Shutdown() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	events := term.Events()
	targetDuration := time.Second / time.Duration(fps)
	lastFrame := time.Now()
	for {
		// Drain pending input before drawing.
		for drained := false; !drained; {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				if !v.handle(ev) {
					return nil
				}
			default:
				drained = true
			}
		}

		now := time.Now()
		dt := min(now.Sub(lastFrame).Seconds(), 0.1)
		lastFrame = now

		// Key release events are unreliable, so torque decays on its own.
		v.orbit.ApplyImpulse(v.torque.pitch*dt, v.torque.yaw*dt)
		v.torque.pitch *= 0.9
		v.torque.yaw *= 0.9
		v.orbit.Update()

		if err := v.drawFrame(now); err != nil {
			return err
		}
		if err := term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}
		v.hud.UpdateFPS()
		v.hud.Render(v.width, v.height, v.be.Config(), v.be.Counters())

		if elapsed := time.Since(now); elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}

// drawFrame advances the probes, builds the view and executes one frame.
func (v *viewer) drawFrame(now time.Time) error {
	t := now.Sub(v.start).Seconds()
	for _, p := range v.scene.probes {
		p.Update()
	}
	v.faces.time = t
	if err := v.scene.world.Refresh(v.faces); err != nil {
		return err
	}

	w, h := v.dev.Size()
	cam := v.orbit.Camera(w, h)
	cam.Time = t
	view := v.scene.view(cam, v.scene.layerMask(v.opts.scene.gizmos), t)
	if sel := v.scene.selected; sel != nil {
		sel.DrawGizmos(view, true, now)
	}
	v.frame.Reset()
	v.frame.AddView(view)

	v.cb.Reset()
	frameStream(&v.cb, 1, "")
	if err := v.be.Execute(v.frame, v.cb.Buf); err != nil {
		return err
	}
	v.presenter.Draw(v.term, v.term.Bounds())
	return nil
}

// pick selects the probe under cell x, y.
func (v *viewer) pick(x, y int) {
	rc, ok := v.be.Context(0)
	if !ok {
		return
	}
	v.scene.selected = v.scene.probeAt(rc.Pick(v.dev, x, y*2))
}

// toggle flips one back end switch.
func (v *viewer) toggle(set func(cfg *backend.Config)) {
	cfg := v.be.Config()
	set(&cfg)
	v.be.SetConfig(cfg)
	v.opts.cfg = cfg
}

// targetKey returns the render target picked by digit keys 0 to 4, or -1.
func targetKey(ev uv.KeyPressEvent) int {
	for i, k := range []string{"0", "1", "2", "3", "4"} {
		if ev.MatchString(k) {
			return i
		}
	}
	return -1
}

// handle applies one terminal event and reports whether the viewer keeps
// running.
func (v *viewer) handle(ev uv.Event) bool {
	const torqueStrength = 3.0

	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		v.term.Erase()
		v.term.Resize(ev.Width, ev.Height)
		v.resize(ev.Width, ev.Height)

	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("escape", "ctrl+c"):
			return false
		case ev.MatchString("r"):
			v.orbit.Reset()
		case ev.MatchString("w", "up"):
			v.torque.pitch = torqueStrength
		case ev.MatchString("s", "down"):
			v.torque.pitch = -torqueStrength
		case ev.MatchString("a", "left"):
			v.torque.yaw = -torqueStrength
		case ev.MatchString("d", "right"):
			v.torque.yaw = torqueStrength
		case ev.MatchString("space"):
			v.orbit.ApplyImpulse((rand.Float64()-0.5)*0.3, (rand.Float64()-0.5)*1.5)
		case ev.MatchString("+", "="):
			v.orbit.Zoom(-0.5)
		case ev.MatchString("-", "_"):
			v.orbit.Zoom(0.5)
		case ev.MatchString("h"):
			v.toggle(func(c *backend.Config) { c.HOM = !c.HOM })
		case ev.MatchString("g"):
			v.toggle(func(c *backend.Config) { c.HOMDebug = !c.HOMDebug })
		case ev.MatchString("o"):
			v.toggle(func(c *backend.Config) { c.LightOcclusionQueries = !c.LightOcclusionQueries })
		case ev.MatchString("z"):
			v.toggle(func(c *backend.Config) { c.LightVolumeZFail = !c.LightVolumeZFail })
		case ev.MatchString("l"):
			v.toggle(func(c *backend.Config) { c.ShowLights = !c.ShowLights })
		case ev.MatchString("c"):
			v.toggle(func(c *backend.Config) { c.ShowCounters = !c.ShowCounters })
		case ev.MatchString("x"):
			v.toggle(func(c *backend.Config) { c.ShowTris = !c.ShowTris })
		case ev.MatchString("p"):
			v.toggle(func(c *backend.Config) { c.UsePostProcessing = !c.UsePostProcessing })
		case targetKey(ev) >= 0:
			n := targetKey(ev)
			v.toggle(func(c *backend.Config) { c.ShowRenderTarget = n })
		case ev.MatchString("?"), ev.MatchString("shift+/"):
			v.hud.Show = !v.hud.Show
		}

	case uv.KeyReleaseEvent:
		switch {
		case ev.MatchString("w", "up", "s", "down"):
			v.torque.pitch = 0
		case ev.MatchString("a", "left", "d", "right"):
			v.torque.yaw = 0
		}

	case uv.MouseClickEvent:
		v.mouseDown, v.dragged = true, false
		v.lastX, v.lastY = ev.X, ev.Y

	case uv.MouseReleaseEvent:
		if v.mouseDown && !v.dragged {
			v.pick(ev.X, ev.Y)
		}
		v.mouseDown = false

	case uv.MouseMotionEvent:
		if v.mouseDown {
			dx, dy := ev.X-v.lastX, ev.Y-v.lastY
			if dx != 0 || dy != 0 {
				v.dragged = true
			}
			v.orbit.ApplyImpulse(float64(dy)*0.03, float64(-dx)*0.03)
			v.lastX, v.lastY = ev.X, ev.Y
		}

	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			v.orbit.Zoom(-0.5)
		case uv.MouseWheelDown:
			v.orbit.Zoom(0.5)
		}
	}
	return true
}
