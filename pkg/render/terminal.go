package render

import (
	"image"
	"image/color"
	"sync"

	uv "github.com/charmbracelet/ultraviolet"
)

// TerminalPresenter keeps the last swapped frame and draws it as half-block
// cells, two pixel rows per terminal row.
type TerminalPresenter struct {
	mu    sync.Mutex
	frame *image.RGBA
	// Overlay is drawn over each presented frame before it is stored.
	Overlay func(img *image.RGBA)
}

// Present stores frame for the next Draw.
func (p *TerminalPresenter) Present(frame *image.RGBA) {
	if p.Overlay != nil {
		p.Overlay(frame)
	}
	p.mu.Lock()
	p.frame = frame
	p.mu.Unlock()
}

// Frame returns the last presented frame, or nil.
func (p *TerminalPresenter) Frame() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Draw implements uv.Drawable. The frame height should be twice the number
// of terminal rows in area.
func (p *TerminalPresenter) Draw(scr uv.Screen, area uv.Rectangle) {
	frame := p.Frame()
	if frame == nil {
		return
	}
	b := frame.Bounds()
	for row := area.Min.Y; row < area.Max.Y; row++ {
		topY := (row - area.Min.Y) * 2
		botY := topY + 1

		for col := area.Min.X; col < area.Max.X && col-area.Min.X < b.Dx(); col++ {
			x := col - area.Min.X
			cell := &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: rgbaToColor(pixelAt(frame, x, topY)),
					Bg: rgbaToColor(pixelAt(frame, x, botY)),
				},
			}
			scr.SetCell(col, row, cell)
		}
	}
}

func pixelAt(img *image.RGBA, x, y int) color.RGBA {
	if !image.Pt(x, y).In(img.Bounds()) {
		return color.RGBA{}
	}
	return img.RGBAAt(x, y)
}

// rgbaToColor converts color.RGBA to Go's color.Color interface.
func rgbaToColor(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil // Transparent = no color
	}
	return c
}

// ImagePresenter keeps every presented frame; used by offscreen commands.
type ImagePresenter struct {
	Frames []*image.RGBA
}

func (p *ImagePresenter) Present(frame *image.RGBA) {
	p.Frames = append(p.Frames, frame)
}

// Last returns the most recent frame, or nil.
func (p *ImagePresenter) Last() *image.RGBA {
	if len(p.Frames) == 0 {
		return nil
	}
	return p.Frames[len(p.Frames)-1]
}
