package scene

import "github.com/taigrr/occlude/pkg/math3d"

// Sampler is a 2D texture readable by shaders. render.Texture implements it.
type Sampler interface {
	Sample(u, v float64) math3d.Vec4
}

// Sort decides which pass draws a surface.
type Sort int

const (
	// SortOpaque surfaces are ambient: depth pre-pass, occlusion, base and
	// additive light passes.
	SortOpaque Sort = iota
	// SortUnlit surfaces are alpha blended in the unlit pass.
	SortUnlit
	// SortFinal surfaces have no lighting interaction and draw last.
	SortFinal
)

// Material is the shading description of a surface or a light.
type Material struct {
	Name    string
	Color   math3d.Vec4
	Texture Sampler
	Sort    Sort
	// TwoSided disables back face culling.
	TwoSided bool
	// Occluder marks opaque surfaces that are rendered into the occlusion
	// map. Occluders are still tested as occludees.
	Occluder bool

	// TextureScale and TextureOffset transform light projection texture
	// coordinates. Only light materials use them.
	TextureScale  math3d.Vec2
	TextureOffset math3d.Vec2
}

// NewMaterial returns an opaque occluder material of the given colour.
func NewMaterial(name string, c math3d.Vec4) *Material {
	return &Material{
		Name:         name,
		Color:        c,
		Occluder:     true,
		TextureScale: math3d.V2(1, 1),
	}
}

// Shade returns the unlit colour of the material at uv.
func (m *Material) Shade(uv math3d.Vec2) math3d.Vec4 {
	if m.Texture == nil {
		return m.Color
	}
	return m.Texture.Sample(uv.X, uv.Y).Mul(m.Color)
}
