package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/taigrr/occlude/pkg/backend"
)

func newStreamCmd(opts *options) *cobra.Command {
	var (
		output     string
		decode     string
		views      int
		screenshot string
	)
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Encode or list the command stream of a frame",
		Long: "stream builds the command stream the viewer submits each frame and\n" +
			"lists its records, or writes it as raw words with --output. With\n" +
			"--decode it lists the records of a stream file instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if decode != "" {
				b, err := os.ReadFile(decode)
				if err != nil {
					return fmt.Errorf("read stream: %w", err)
				}
				words, err := backend.DecodeWords(b)
				if err != nil {
					return err
				}
				return listStream(out, words)
			}

			var cb backend.CommandBuffer
			frameStream(&cb, views, screenshot)
			if output != "" {
				if err := os.WriteFile(output, cb.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write stream: %w", err)
				}
				return nil
			}
			return listStream(out, cb.Buf)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&output, "output", "o", "", "write the encoded stream to this file")
	fs.StringVar(&decode, "decode", "", "list the records of an encoded stream file")
	fs.IntVar(&views, "views", 1, "number of views drawn")
	fs.StringVar(&screenshot, "screenshot", "", "capture the frame into this file")
	return cmd
}

// frameStream fills cb with one frame: context 0, views draws, an
// optional full screen capture and a swap.
func frameStream(cb *backend.CommandBuffer, views int, screenshot string) {
	cb.BeginContext(0)
	for i := range views {
		cb.DrawCamera(i)
	}
	if screenshot != "" {
		// The rect is clipped to the screen when executed.
		cb.Screenshot(0, 0, 1<<16, 1<<16, screenshot)
	}
	cb.SwapBuffers()
	cb.End()
}

// listStream prints one line per record.
func listStream(w io.Writer, stream []uint32) error {
	var werr error
	err := backend.Walk(stream, func(tag backend.CommandTag, offset int, payload []uint32) bool {
		line := fmt.Sprintf("%6d  %-12v", offset, tag)
		switch tag {
		case backend.BeginContextCommand:
			line += fmt.Sprintf(" context=%v", payload)
		case backend.DrawCameraCommand:
			line += fmt.Sprintf(" view=%v", payload)
		case backend.ScreenshotCommand:
			r, name, err := backend.ScreenshotArgs(payload)
			if err != nil {
				line += " " + err.Error()
				break
			}
			line += fmt.Sprintf(" rect=%d,%d %dx%d file=%s", r.X, r.Y, r.W, r.H, name)
		}
		_, werr = fmt.Fprintln(w, line)
		return werr == nil
	})
	if err != nil {
		return err
	}
	return werr
}
