package render

import (
	"image"
	"image/color"
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
)

// surface is one bound set of colour, depth and stencil planes. Any plane
// may be nil: the HOM target has depth only, the culling output colour only.
type surface struct {
	Width   int
	Height  int
	Color   []math3d.Vec4 // row-major, linear floats
	Depth   []float64
	Stencil []uint8
	format  rhiFormat
}

// rhiFormat records how colour writes are quantized.
type rhiFormat int

const (
	formatFloat rhiFormat = iota
	formatUnorm8
)

func newSurface(width, height int) *surface {
	return &surface{
		Width:   width,
		Height:  height,
		Color:   make([]math3d.Vec4, width*height),
		Depth:   make([]float64, width*height),
		Stencil: make([]uint8, width*height),
		format:  formatUnorm8,
	}
}

func (s *surface) contains(x, y int) bool {
	return x >= 0 && x < s.Width && y >= 0 && y < s.Height
}

// fill sets every element of buf to v using copy-doubling.
func fill[T any](buf []T, v T) {
	n := len(buf)
	if n == 0 {
		return
	}
	buf[0] = v
	for i := 1; i < n; i *= 2 {
		copy(buf[i:], buf[:i])
	}
}

// fillRect sets the elements of buf inside r (already clipped) to v.
func fillRect[T any](buf []T, stride int, r image.Rectangle, v T) {
	if len(buf) == 0 || r.Empty() {
		return
	}
	if r.Min.X == 0 && r.Dx() == stride {
		fill(buf[r.Min.Y*stride:r.Max.Y*stride], v)
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		fill(buf[y*stride+r.Min.X:y*stride+r.Max.X], v)
	}
}

func (s *surface) quantize(c math3d.Vec4) math3d.Vec4 {
	if s.format != formatUnorm8 {
		return c
	}
	q := func(f float64) float64 {
		return math.Round(math3d.Clamp(f, 0, 1)*255) / 255
	}
	return math3d.V4(q(c.X), q(c.Y), q(c.Z), q(c.W))
}

// toRGBA8 converts a linear float colour to 8-bit.
func toRGBA8(c math3d.Vec4) color.RGBA {
	b := func(f float64) uint8 {
		return uint8(math.Round(math3d.Clamp(f, 0, 1) * 255))
	}
	return color.RGBA{b(c.X), b(c.Y), b(c.Z), b(c.W)}
}

// fromColor converts any colour to a float vector.
func fromColor(c color.Color) math3d.Vec4 {
	r, g, b, a := c.RGBA()
	return math3d.V4(float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff, float64(a)/0xffff)
}

// ToImage converts the rectangle r of the colour plane to an image whose
// bounds start at the origin.
func (s *surface) ToImage(r image.Rectangle) *image.RGBA {
	r = r.Intersect(image.Rect(0, 0, s.Width, s.Height))
	img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	if s.Color == nil {
		return img
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x-r.Min.X, y-r.Min.Y, toRGBA8(s.Color[y*s.Width+x]))
		}
	}
	return img
}

// lineSteps walks a Bresenham line from (x0, y0) to (x1, y1), calling fn
// with each pixel and its parameter along the line.
func lineSteps(x0, y0, x1, y1 int, fn func(x, y int, t float64)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	steps := max(dx, -dy)
	i := 0

	for {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}
		fn(x0, y0, t)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
		i++
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
