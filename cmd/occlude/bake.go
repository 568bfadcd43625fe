package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/occlude/pkg/dds"
	"github.com/taigrr/occlude/pkg/probe"
)

func newBakeCmd(opts *options) *cobra.Command {
	var (
		mapName string
		hdr     bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "bake",
		Short: "Refresh every env probe and write its cube maps as DDS",
		Long: "bake renders the six faces of every env probe of the scene, builds\n" +
			"the diffuse and specular sums and writes them next to the map file,\n" +
			"in a directory named after the map.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newDemoScene(opts.scene)
			if err != nil {
				return err
			}
			if len(s.probes) == 0 {
				return fmt.Errorf("the scene has no env probes (see --probes)")
			}
			for _, p := range s.probes {
				p.SetHDR(hdr)
			}
			paths, err := bakeProbes(s, opts, mapName, workers)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintf(out, "%s\n%s\n", p[0], p[1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mapName, "map", "maps/demo.map", "map file the probes belong to")
	cmd.Flags().BoolVar(&hdr, "hdr", true, "store packed R11G11B10 floats instead of RGBA8")
	cmd.Flags().IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "probes rendered in parallel")
	return cmd
}

// bakeProbes refreshes and bakes every probe of s, workers at a time, and
// returns the diffuse and specular paths per probe. Each worker renders
// with its own devices; the world is not modified until every refresh is
// done.
func bakeProbes(s *demoScene, opts *options, mapName string, workers int) ([][2]string, error) {
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for _, p := range s.probes {
		g.Go(func() error {
			faces := newFaceRenderer(s, opts.cfg)
			defer faces.Close()
			return s.world.RefreshProbe(p.Handle(), faces)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := make([][2]string, len(s.probes))
	for i, p := range s.probes {
		diffuse, specular, err := p.Bake(mapName)
		if err != nil {
			return nil, fmt.Errorf("probe %d: %w", p.Handle(), err)
		}
		paths[i] = [2]string{diffuse, specular}
	}
	return paths, nil
}

// settleProbes brings every probe queued on awake up to date before the
// first frame.
func settleProbes(s *demoScene, faces probe.FaceRenderer) error {
	// Individual faces take one call per face and the sums one more.
	return refreshAll(s.world, faces, dds.CubeFaces+1)
}
