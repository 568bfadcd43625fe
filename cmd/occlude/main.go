// occlude - Occlusion culling render back end
// Draw a scene with hierarchical occlusion culling and stencil light
// volumes, live in the terminal or offscreen, and bake environment probes.
//
// Commands:
//
//	view   - Interactive terminal viewer
//	shot   - Render frames offscreen and write a screenshot
//	bake   - Refresh every env probe and write its cube maps as DDS
//	stream - Encode or list the command stream of a frame
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/taigrr/occlude/pkg/backend"
	"github.com/taigrr/occlude/pkg/probe"
)

// options are the flags shared by every command.
type options struct {
	verbose bool
	cfg     backend.Config
	scene   sceneOptions
}

func main() {
	if err := fang.Execute(context.Background(), newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{
		cfg:   backend.DefaultConfig(),
		scene: defaultSceneOptions(),
	}
	root := &cobra.Command{
		Use:   "occlude",
		Short: "Occlusion culling render back end",
		Long: "occlude draws a scene through a multi-pass back end with hierarchical\n" +
			"occlusion culling and stencil light volumes. Frames are shown in the\n" +
			"terminal, written as screenshots, or baked into env probe cube maps.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
				backend.SetLogger(logger)
				probe.SetLogger(logger)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log back end and probe activity to stderr")
	bindConfigFlags(root, &opts.cfg)
	bindSceneFlags(root, &opts.scene)

	root.AddCommand(
		newViewCmd(opts),
		newShotCmd(opts),
		newBakeCmd(opts),
		newStreamCmd(opts),
	)
	return root
}
