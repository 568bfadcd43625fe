package probe

import (
	"math"

	"github.com/taigrr/occlude/pkg/dds"
	"github.com/taigrr/occlude/pkg/math3d"
)

// Face indexes a cube map face in DDS order.
type Face int

const (
	PosX Face = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// faceBasis is the camera looking through one face: the rotation handed
// to scene.Camera.SetRotation and the resulting axes.
type faceBasis struct {
	pitch, yaw         float64
	forward, right, up math3d.Vec3
}

var faceBases = [dds.CubeFaces]faceBasis{
	PosX: {0, -math.Pi / 2, math3d.V3(1, 0, 0), math3d.V3(0, 0, 1), math3d.V3(0, 1, 0)},
	NegX: {0, math.Pi / 2, math3d.V3(-1, 0, 0), math3d.V3(0, 0, -1), math3d.V3(0, 1, 0)},
	PosY: {math.Pi / 2, 0, math3d.V3(0, 1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, 1)},
	NegY: {-math.Pi / 2, 0, math3d.V3(0, -1, 0), math3d.V3(1, 0, 0), math3d.V3(0, 0, -1)},
	PosZ: {0, math.Pi, math3d.V3(0, 0, 1), math3d.V3(-1, 0, 0), math3d.V3(0, 1, 0)},
	NegZ: {0, 0, math3d.V3(0, 0, -1), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)},
}

// FaceRotation returns the camera pitch and yaw that look through f with a
// 90 degree square frustum.
func FaceRotation(f Face) (pitch, yaw float64) {
	b := faceBases[f]
	return b.pitch, b.yaw
}

// FaceDirection returns the direction through u, v of face f, with 0, 0
// the top-left corner. The result is not normalized.
func FaceDirection(f Face, u, v float64) math3d.Vec3 {
	b := faceBases[f]
	return b.forward.Add(b.right.Scale(2*u - 1)).Add(b.up.Scale(1 - 2*v))
}

// faceCoords projects d onto the face it points through.
func faceCoords(d math3d.Vec3) (Face, float64, float64) {
	a := d.Abs()
	var f Face
	switch {
	case a.X >= a.Y && a.X >= a.Z:
		f = PosX
		if d.X < 0 {
			f = NegX
		}
	case a.Y >= a.Z:
		f = PosY
		if d.Y < 0 {
			f = NegY
		}
	default:
		f = PosZ
		if d.Z < 0 {
			f = NegZ
		}
	}
	b := faceBases[f]
	z := d.Dot(b.forward)
	if z <= 0 {
		return f, 0.5, 0.5
	}
	u := (d.Dot(b.right)/z + 1) / 2
	v := (1 - d.Dot(b.up)/z) / 2
	return f, u, v
}

// SampleCube bilinearly filters level of img along d. Filtering does not
// cross face edges.
func SampleCube(img *dds.Image, d math3d.Vec3, level int) math3d.Vec4 {
	f, u, v := faceCoords(d)
	level = math3d.Clamp(level, 0, img.Levels()-1)
	return sampleSurface(&img.Faces[f][level], u, v)
}

func sampleSurface(s *dds.Surface, u, v float64) math3d.Vec4 {
	x := u*float64(s.Width) - 0.5
	y := v*float64(s.Height) - 0.5
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix0 := math3d.Clamp(int(x0), 0, s.Width-1)
	iy0 := math3d.Clamp(int(y0), 0, s.Height-1)
	ix1 := math3d.Clamp(int(x0)+1, 0, s.Width-1)
	iy1 := math3d.Clamp(int(y0)+1, 0, s.Height-1)
	t := s.Texels
	top := t[iy0*s.Width+ix0].Lerp(t[iy0*s.Width+ix1], fx)
	bottom := t[iy1*s.Width+ix0].Lerp(t[iy1*s.Width+ix1], fx)
	return top.Lerp(bottom, fy)
}

// GenerateMips rebuilds levels 1 and up of every face by averaging the
// footprint of each texel in the level above.
func GenerateMips(img *dds.Image) {
	for _, face := range img.Faces {
		for l := 1; l < len(face); l++ {
			downsample(&face[l], &face[l-1])
		}
	}
}

func downsample(dst, src *dds.Surface) {
	for y := range dst.Height {
		y0, y1 := footprint(y, src.Height, dst.Height)
		for x := range dst.Width {
			x0, x1 := footprint(x, src.Width, dst.Width)
			var sum math3d.Vec4
			for sy := y0; sy <= y1; sy++ {
				for sx := x0; sx <= x1; sx++ {
					sum = sum.Add(src.Texels[sy*src.Width+sx])
				}
			}
			n := float64((y1 - y0 + 1) * (x1 - x0 + 1))
			dst.Texels[y*dst.Width+x] = sum.Scale(1 / n)
		}
	}
}

// footprint returns the inclusive range of source texels under texel i
// when src texels are reduced to dst.
func footprint(i, src, dst int) (int, int) {
	lo := i * src / dst
	hi := ((i+1)*src+dst-1)/dst - 1
	return lo, max(lo, min(hi, src-1))
}

// irradianceSourceSize bounds the face size convolved by Irradiance.
// Larger inputs are read from a smaller mip level.
const irradianceSourceSize = 16

type radianceSample struct {
	dir    math3d.Vec3
	color  math3d.Vec4
	weight float64
}

// Irradiance returns a size x size cube map holding, for every direction,
// the cosine weighted average of src over the hemisphere around it.
func Irradiance(src *dds.Image, size int) *dds.Image {
	level := 0
	for level < src.Levels()-1 && src.Faces[0][level].Width > irradianceSourceSize {
		level++
	}

	var samples []radianceSample
	for f := range src.Faces {
		s := &src.Faces[f][level]
		texel := 2 / float64(s.Width)
		for y := range s.Height {
			for x := range s.Width {
				u := (float64(x) + 0.5) / float64(s.Width)
				v := (float64(y) + 0.5) / float64(s.Height)
				d := FaceDirection(Face(f), u, v)
				// Solid angle of the texel.
				lenSq := d.LenSq()
				w := texel * texel / (lenSq * math.Sqrt(lenSq))
				samples = append(samples, radianceSample{dir: d.Normalize(), color: s.Texels[y*s.Width+x], weight: w})
			}
		}
	}

	out := dds.NewImage(size, size, 1, true)
	for f := range out.Faces {
		s := &out.Faces[f][0]
		for y := range size {
			for x := range size {
				n := FaceDirection(Face(f), (float64(x)+0.5)/float64(size), (float64(y)+0.5)/float64(size)).Normalize()
				var sum math3d.Vec4
				total := 0.0
				for _, rs := range samples {
					c := n.Dot(rs.dir)
					if c <= 0 {
						continue
					}
					sum = sum.Add(rs.color.Scale(c * rs.weight))
					total += c * rs.weight
				}
				if total > 0 {
					sum = sum.Scale(1 / total)
				}
				sum.W = 1
				s.Texels[y*size+x] = sum
			}
		}
	}
	return out
}

// EnvSampler reads a cube map with the texture coordinates of the proxy
// sphere, so the sphere shows the environment around the probe.
type EnvSampler struct {
	Image *dds.Image
}

func (s EnvSampler) Sample(u, v float64) math3d.Vec4 {
	if s.Image == nil {
		return math3d.V4(0, 0, 0, 1)
	}
	theta, phi := 2*math.Pi*u, math.Pi*v
	d := math3d.V3(math.Sin(phi)*math.Cos(theta), math.Cos(phi), -math.Sin(phi)*math.Sin(theta))
	return SampleCube(s.Image, d, 0)
}
