package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taigrr/occlude/pkg/backend"
	"github.com/taigrr/occlude/pkg/render"
	"github.com/taigrr/occlude/pkg/scene"
)

// shotOptions size and place the offscreen camera.
type shotOptions struct {
	output string
	width  int
	height int
	frames int
	yaw    float64
	pitch  float64
	dist   float64
	time   float64
}

func newShotCmd(opts *options) *cobra.Command {
	so := shotOptions{
		output: "occlude.png",
		width:  320,
		height: 180,
		frames: 3,
		yaw:    0.4,
		pitch:  0.25,
		dist:   12,
	}
	cmd := &cobra.Command{
		Use:   "shot",
		Short: "Render frames offscreen and write a screenshot",
		Long: "shot renders a few frames so that late occlusion query results come\n" +
			"in, then captures the last one. The format follows the extension of\n" +
			"--output: .png, .bmp or .tif.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newDemoScene(opts.scene)
			if err != nil {
				return err
			}
			counters, err := renderShot(s, opts, so)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), counters.String())
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&so.output, "output", "o", so.output, "screenshot file")
	fs.IntVar(&so.width, "width", so.width, "image width")
	fs.IntVar(&so.height, "height", so.height, "image height")
	fs.IntVar(&so.frames, "frames", so.frames, "frames rendered before the capture")
	fs.Float64Var(&so.yaw, "yaw", so.yaw, "camera yaw around the scene in radians")
	fs.Float64Var(&so.pitch, "pitch", so.pitch, "camera pitch in radians")
	fs.Float64Var(&so.dist, "distance", so.dist, "camera distance")
	fs.Float64Var(&so.time, "time", so.time, "scene time in seconds")
	return cmd
}

// renderShot draws so.frames frames of s and captures the last one into
// so.output through a Screenshot record. It returns the counters of the
// last frame.
func renderShot(s *demoScene, opts *options, so shotOptions) (backend.RenderCounter, error) {
	if so.width <= 0 || so.height <= 0 {
		return backend.RenderCounter{}, fmt.Errorf("bad image size %dx%d", so.width, so.height)
	}
	faces := newFaceRenderer(s, opts.cfg)
	defer faces.Close()
	faces.time = so.time
	if err := settleProbes(s, faces); err != nil {
		return backend.RenderCounter{}, err
	}

	dev := render.New(render.Options{Width: so.width, Height: so.height})
	be := backend.New(dev, opts.cfg)
	defer be.Shutdown()
	be.NewContext(backend.ContextOptions{})

	cam := orbitCamera(so.width, so.height, so.yaw, so.pitch, so.dist)
	cam.Time = so.time
	mask := s.layerMask(opts.scene.gizmos)
	frame := scene.NewFrame()
	var cb backend.CommandBuffer
	for i := range max(so.frames, 1) {
		frame.Reset()
		frame.AddView(s.view(cam, mask, so.time))

		cb.Reset()
		cb.BeginContext(0)
		cb.DrawCamera(0)
		if i == max(so.frames, 1)-1 {
			cb.Screenshot(0, 0, so.width, so.height, so.output)
		}
		cb.SwapBuffers()
		cb.End()
		if err := be.Execute(frame, cb.Buf); err != nil {
			return backend.RenderCounter{}, err
		}
	}

	c := be.Counters()
	if c.Screenshots == 0 {
		return c, fmt.Errorf("screenshot %s was not written", so.output)
	}
	return c, nil
}
