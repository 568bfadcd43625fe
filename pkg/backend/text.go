package backend

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawText draws s onto img with its top-left corner at (x, y) using the
// 7x13 basic face. Each line advances by the face height.
func drawText(img *image.RGBA, x, y int, s string, c color.Color) {
	face := basicfont.Face7x13
	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
	}
	lineY := y + face.Ascent
	start := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != '\n' {
			continue
		}
		dr.Dot = fixed.P(x, lineY)
		dr.DrawString(s[start:i])
		lineY += face.Height
		start = i + 1
	}
}

// textSize returns the pixel size of s in the basic face.
func textSize(s string) (w, h int) {
	face := basicfont.Face7x13
	lines := 1
	cur := 0
	for _, r := range s {
		if r == '\n' {
			lines++
			cur = 0
			continue
		}
		cur++
		w = max(w, cur*face.Advance)
	}
	return w, lines * face.Height
}
