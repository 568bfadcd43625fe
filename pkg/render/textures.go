package render

import (
	"encoding/binary"
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// deviceTexture is a texture object with its full mip chain. Depth textures
// keep their texels in depth, everything else in color.
type deviceTexture struct {
	desc      rhi.TextureDesc
	color     [][]math3d.Vec4 // face*levels + level
	depth     [][]float64
	baseLevel int
	maxLevel  int
}

func (t *deviceTexture) faces() int {
	if t.desc.Type == rhi.TextureCube {
		return 6
	}
	return 1
}

func (t *deviceTexture) size(level int) (int, int) {
	return math3d.MipDim(t.desc.W, level), math3d.MipDim(t.desc.H, level)
}

func (t *deviceTexture) slot(face, level int) int {
	return face*t.desc.Levels + level
}

func newDeviceTexture(desc rhi.TextureDesc) *deviceTexture {
	if desc.Levels < 1 {
		desc.Levels = 1
	}
	t := &deviceTexture{desc: desc, maxLevel: desc.Levels - 1}
	n := t.faces() * desc.Levels
	if desc.Format == rhi.Depth {
		t.depth = make([][]float64, n)
	} else {
		t.color = make([][]math3d.Vec4, n)
	}
	for face := range t.faces() {
		for level := range desc.Levels {
			w, h := t.size(level)
			i := t.slot(face, level)
			if t.depth != nil {
				t.depth[i] = make([]float64, w*h)
				fill(t.depth[i], 1.0)
			} else {
				t.color[i] = make([]math3d.Vec4, w*h)
			}
		}
	}
	return t
}

// texel returns the texel at (x, y) of an absolute level, clamping the
// coordinates to the level size.
func (t *deviceTexture) texel(face, level, x, y int) math3d.Vec4 {
	level = math3d.Clamp(level, 0, t.desc.Levels-1)
	w, h := t.size(level)
	x = math3d.Clamp(x, 0, w-1)
	y = math3d.Clamp(y, 0, h-1)
	i := t.slot(face, level)
	if t.depth != nil {
		d := t.depth[i][y*w+x]
		return math3d.V4(d, d, d, 1)
	}
	return t.color[i][y*w+x]
}

// surfaceLevel points s at one level of the texture.
func (t *deviceTexture) surfaceLevel(level int, s *surface) {
	w, h := t.size(level)
	s.Width, s.Height = w, h
	i := t.slot(0, level)
	if t.depth != nil {
		s.Depth = t.depth[i]
		return
	}
	s.Color = t.color[i]
	if t.desc.Format == rhi.RGBA8 {
		s.format = formatUnorm8
	} else {
		s.format = formatFloat
	}
}

func (t *deviceTexture) readTexels(face, level int) []byte {
	w, h := t.size(level)
	i := t.slot(face, level)
	switch t.desc.Format {
	case rhi.Depth:
		out := make([]byte, 4*w*h)
		for j, d := range t.depth[i] {
			binary.LittleEndian.PutUint32(out[j*4:], math.Float32bits(float32(d)))
		}
		return out
	case rhi.RGBA32F:
		out := make([]byte, 16*w*h)
		for j, c := range t.color[i] {
			o := out[j*16:]
			binary.LittleEndian.PutUint32(o[0:], math.Float32bits(float32(c.X)))
			binary.LittleEndian.PutUint32(o[4:], math.Float32bits(float32(c.Y)))
			binary.LittleEndian.PutUint32(o[8:], math.Float32bits(float32(c.Z)))
			binary.LittleEndian.PutUint32(o[12:], math.Float32bits(float32(c.W)))
		}
		return out
	default:
		out := make([]byte, 4*w*h)
		for j, c := range t.color[i] {
			p := toRGBA8(c)
			out[j*4], out[j*4+1], out[j*4+2], out[j*4+3] = p.R, p.G, p.B, p.A
		}
		return out
	}
}

func (t *deviceTexture) writeTexels(face, level int, texels []math3d.Vec4) {
	i := t.slot(face, level)
	if t.depth != nil {
		for j := range min(len(texels), len(t.depth[i])) {
			t.depth[i][j] = texels[j].X
		}
		return
	}
	copy(t.color[i], texels)
}

// sample filters the base level bilinearly with repeat wrapping.
func (t *deviceTexture) sample(u, v float64) math3d.Vec4 {
	w, h := t.size(t.baseLevel)
	fx := (u-math.Floor(u))*float64(w) - 0.5
	fy := (v-math.Floor(v))*float64(h) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)
	wrap := func(c, n int) int {
		c %= n
		if c < 0 {
			c += n
		}
		return c
	}
	x1, y1 := wrap(x0+1, w), wrap(y0+1, h)
	x0, y0 = wrap(x0, w), wrap(y0, h)

	top := t.texel(0, t.baseLevel, x0, y0).Lerp(t.texel(0, t.baseLevel, x1, y0), tx)
	bot := t.texel(0, t.baseLevel, x0, y1).Lerp(t.texel(0, t.baseLevel, x1, y1), tx)
	return top.Lerp(bot, ty)
}

// CreateTexture allocates a texture with all of its levels.
func (d *Device) CreateTexture(desc rhi.TextureDesc) rhi.Texture {
	d.nextHandle++
	h := rhi.Texture(d.nextHandle)
	d.textures[h] = newDeviceTexture(desc)
	return h
}

func (d *Device) DestroyTexture(t rhi.Texture) {
	delete(d.textures, t)
	for i := range d.units {
		if d.units[i] == t {
			d.units[i] = rhi.NullTexture
		}
	}
}

func (d *Device) TextureSize(t rhi.Texture, level int) (int, int) {
	tex, ok := d.textures[t]
	if !ok {
		return 0, 0
	}
	return tex.size(level)
}

func (d *Device) ReadTexels(t rhi.Texture, face, level int) []byte {
	tex, ok := d.textures[t]
	if !ok {
		return nil
	}
	return tex.readTexels(face, level)
}

func (d *Device) WriteTexels(t rhi.Texture, face, level int, texels []math3d.Vec4) {
	if tex, ok := d.textures[t]; ok {
		tex.writeTexels(face, level, texels)
	}
}

func (d *Device) BindTexture(unit int, t rhi.Texture) {
	if unit >= 0 && unit < len(d.units) {
		d.units[unit] = t
	}
}

// SetTextureLevel sets the base and max level of the texture bound to unit 0.
func (d *Device) SetTextureLevel(base, maxLevel int) {
	tex, ok := d.textures[d.units[0]]
	if !ok {
		return
	}
	tex.baseLevel = math3d.Clamp(base, 0, tex.desc.Levels-1)
	tex.maxLevel = math3d.Clamp(maxLevel, tex.baseLevel, tex.desc.Levels-1)
}

// Fetch reads one texel. level is relative to the texture's base level and
// clamped to its max level.
func (d *Device) Fetch(unit, level, x, y int) math3d.Vec4 {
	if unit < 0 || unit >= len(d.units) {
		return math3d.Vec4{}
	}
	tex, ok := d.textures[d.units[unit]]
	if !ok {
		return math3d.Vec4{}
	}
	return tex.texel(0, min(tex.baseLevel+level, tex.maxLevel), x, y)
}

func (d *Device) Sample(unit int, u, v float64) math3d.Vec4 {
	if unit < 0 || unit >= len(d.units) {
		return math3d.Vec4{}
	}
	tex, ok := d.textures[d.units[unit]]
	if !ok {
		return math3d.Vec4{}
	}
	return tex.sample(u, v)
}
