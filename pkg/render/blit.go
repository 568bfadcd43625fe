package render

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/taigrr/occlude/pkg/rhi"
)

// levelImage converts one level of a texture to 8-bit RGBA.
func (t *deviceTexture) levelImage(level int) *image.RGBA {
	level = min(max(level, 0), t.desc.Levels-1)
	w, h := t.size(level)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetRGBA(x, y, toRGBA8(t.texel(0, level, x, y)))
		}
	}
	return img
}

// Blit copies srcRect of a texture level into dst of the bound colour plane,
// scaling with the given filter. Only the scissor applies; write masks and
// blending are ignored.
func (d *Device) Blit(src rhi.Texture, level int, srcRect, dst rhi.Rect, filter rhi.Filter) {
	tex, ok := d.textures[src]
	if !ok || d.target.Color == nil || dst.Empty() {
		return
	}
	d.Stats.DrawCalls++
	scaled := image.NewRGBA(dst.Image())
	var scaler draw.Scaler = draw.NearestNeighbor
	if filter == rhi.Linear {
		scaler = draw.BiLinear
	}
	srcImg := tex.levelImage(level)
	sr := srcImg.Bounds()
	if !srcRect.Empty() {
		sr = sr.Intersect(srcRect.Image())
	}
	scaler.Scale(scaled, scaled.Bounds(), srcImg, sr, draw.Src, nil)

	clip := image.Rect(0, 0, d.target.Width, d.target.Height).Intersect(dst.Image())
	if !d.scissor.Empty() {
		clip = clip.Intersect(d.scissor.Image())
	}
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			d.target.Color[y*d.target.Width+x] = fromColor(scaled.RGBAAt(x, y))
		}
	}
}
