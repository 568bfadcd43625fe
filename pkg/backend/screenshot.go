package backend

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/taigrr/occlude/pkg/rhi"
)

func (ex *executor) screenshot(payload []uint32) error {
	r, name, err := ScreenshotArgs(payload)
	if err != nil {
		return err
	}
	if err := ex.b.TakeScreenshot(r, name); err != nil {
		// A failed write is not a protocol error; the frame goes on.
		Logger().Error("screenshot failed", "file", name, "error", err)
	}
	return nil
}

// TakeScreenshot reads r from the back buffer and writes it to filename.
// A rect reaching past the screen is clipped with a warning. The format
// follows the extension: .png (the default when there is none), .bmp or
// .tif/.tiff. The device gamma ramp is applied when Config.Gamma is not 1.
func (b *Backend) TakeScreenshot(r rhi.Rect, filename string) error {
	dev := b.dev
	w, h := dev.Size()
	screen := rhi.Rect{W: w, H: h}
	if r.X < 0 || r.Y < 0 || r.X2() > w || r.Y2() > h {
		Logger().Warn("screenshot rect larger than the screen",
			"rect", r,
			"width", w,
			"height", h,
		)
	}
	clipped := r.Intersect(screen)
	if clipped.Empty() {
		return fmt.Errorf("screenshot rect %+v is off screen", r)
	}
	r = clipped

	dev.EndRenderTarget()
	img := dev.ReadPixels(r)
	if b.cfg.Gamma != 1 {
		applyGammaRamp(img, dev.GammaRamp())
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}

	if filepath.Ext(filename) == "" {
		filename += ".png"
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create screenshot: %w", err)
	}
	if err := encodeImage(f, img, filepath.Ext(filename)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close screenshot: %w", err)
	}
	b.counters.Screenshots++
	Logger().Debug("wrote screenshot", "file", filename, "width", r.W, "height", r.H)
	return nil
}

func encodeImage(w io.Writer, img image.Image, ext string) error {
	var err error
	switch strings.ToLower(ext) {
	case ".bmp":
		err = bmp.Encode(w, img)
	case ".tif", ".tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".png":
		err = png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported screenshot format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("encode screenshot: %w", err)
	}
	return nil
}

// applyGammaRamp maps every colour channel of img through the ramp.
func applyGammaRamp(img *image.RGBA, ramp [768]uint16) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(ramp[img.Pix[i]] >> 8)
		img.Pix[i+1] = uint8(ramp[256+int(img.Pix[i+1])] >> 8)
		img.Pix[i+2] = uint8(ramp[512+int(img.Pix[i+2])] >> 8)
	}
}
