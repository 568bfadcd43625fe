package render

import (
	"image"
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// clipVertex is a vertex in clip space carrying its attributes.
type clipVertex struct {
	Clip   math3d.Vec4
	Pos    math3d.Vec3
	Normal math3d.Vec3
	UV     math3d.Vec2
	Color  math3d.Vec4
}

func lerpClip(a, b clipVertex, t float64) clipVertex {
	return clipVertex{
		Clip:   a.Clip.Lerp(b.Clip, t),
		Pos:    a.Pos.Lerp(b.Pos, t),
		Normal: a.Normal.Lerp(b.Normal, t),
		UV:     a.UV.Add(b.UV.Sub(a.UV).Scale(t)),
		Color:  a.Color.Lerp(b.Color, t),
	}
}

// nearDist is the signed distance to the GL near clip plane z = -w.
func nearDist(v clipVertex) float64 { return v.Clip.Z + v.Clip.W }

// clipNear clips a triangle against the near plane (Sutherland-Hodgman),
// returning a convex polygon of 0, 3 or 4 vertices.
func clipNear(tri [3]clipVertex, out []clipVertex) []clipVertex {
	out = out[:0]
	for i := range 3 {
		a, b := tri[i], tri[(i+1)%3]
		da, db := nearDist(a), nearDist(b)
		if da >= 0 {
			out = append(out, a)
		}
		if (da >= 0) != (db >= 0) {
			out = append(out, lerpClip(a, b, da/(da-db)))
		}
	}
	return out
}

// screenVertex holds a vertex transformed to window space.
type screenVertex struct {
	X, Y float64 // window pixels, top-left origin
	Z    float64 // window depth
	InvW float64
	v    *clipVertex
}

func (d *Device) toWindow(v *clipVertex) screenVertex {
	w := v.Clip.W
	if w == 0 {
		w = 1e-12
	}
	ndc := v.Clip.PerspectiveDivide()
	vp := d.viewport
	return screenVertex{
		X:    float64(vp.X) + (ndc.X+1)*0.5*float64(vp.W),
		Y:    float64(vp.Y) + (1-ndc.Y)*0.5*float64(vp.H),
		Z:    d.depthNear + (d.depthFar-d.depthNear)*(ndc.Z+1)*0.5,
		InvW: 1 / w,
		v:    v,
	}
}

// DrawTriangles rasterizes a triangle list. Counter-clockwise triangles in
// normalized device coordinates are front facing.
func (d *Device) DrawTriangles(verts []rhi.Vertex, mvp math3d.Mat4, fs rhi.FragmentShader) {
	d.Stats.DrawCalls++
	clip := d.clipRect()
	if clip.Empty() {
		return
	}
	var poly [4]clipVertex
	for p := 0; p+2 < len(verts); p += 3 {
		var tri [3]clipVertex
		for i := range 3 {
			v := verts[p+i]
			tri[i] = clipVertex{
				Clip:   mvp.MulVec4(math3d.V4FromV3(v.Position, 1)),
				Pos:    v.Position,
				Normal: v.Normal,
				UV:     v.UV,
				Color:  v.Color,
			}
		}
		clipped := clipNear(tri, poly[:0])
		for i := 1; i+1 < len(clipped); i++ {
			d.rasterTriangle(&clipped[0], &clipped[i], &clipped[i+1], p/3, fs)
		}
		d.Stats.Primitives++
	}
}

// rasterTriangle scans one clipped triangle with edge functions stepped
// incrementally across its bounding box.
func (d *Device) rasterTriangle(a, b, c *clipVertex, prim int, fs rhi.FragmentShader) {
	sv := [3]screenVertex{d.toWindow(a), d.toWindow(b), d.toWindow(c)}

	area2 := (sv[1].X-sv[0].X)*(sv[2].Y-sv[0].Y) - (sv[1].Y-sv[0].Y)*(sv[2].X-sv[0].X)
	if area2 == 0 {
		return
	}
	// Window Y points down, so NDC counter-clockwise has negative area.
	front := area2 < 0
	if (d.cull == rhi.BackCull && !front) || (d.cull == rhi.FrontCull && front) {
		return
	}

	clip := d.clipRect()
	minX := max(clip.Min.X, int(math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := min(clip.Max.X-1, int(math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := max(clip.Min.Y, int(math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := min(clip.Max.Y-1, int(math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))
	if minX > maxX || minY > maxY {
		return
	}

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	A0, B0, C0 := edgeCoeffs(sv[1].X, sv[1].Y, sv[2].X, sv[2].Y)
	A1, B1, C1 := edgeCoeffs(sv[2].X, sv[2].Y, sv[0].X, sv[0].Y)
	A2, B2, C2 := edgeCoeffs(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y)
	invArea := 1.0 / area2

	// Top-left fill rule, so pixels on a shared edge are drawn once.
	sign := 1.0
	if area2 < 0 {
		sign = -1
	}
	tl0, tl1, tl2 := topLeft(A0*sign, B0*sign), topLeft(A1*sign, B1*sign), topLeft(A2*sign, B2*sign)

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	w0Row := edgeFunc(A0, B0, C0, px, py)
	w1Row := edgeFunc(A1, B1, C1, px, py)
	w2Row := edgeFunc(A2, B2, C2, px, py)

	for y := minY; y <= maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		for x := minX; x <= maxX; x++ {
			if inside(w0*sign, tl0) && inside(w1*sign, tl1) && inside(w2*sign, tl2) {
				d.shadeTriangleFragment(x, y, &sv, w0*invArea, w1*invArea, w2*invArea, front, prim, fs)
			}
			w0 += A0
			w1 += A1
			w2 += A2
		}
		w0Row += B0
		w1Row += B1
		w2Row += B2
	}
}

func (d *Device) shadeTriangleFragment(x, y int, sv *[3]screenVertex, bc0, bc1, bc2 float64, front bool, prim int, fs rhi.FragmentShader) {
	// Perspective-correct weights.
	p0, p1, p2 := bc0*sv[0].InvW, bc1*sv[1].InvW, bc2*sv[2].InvW
	sum := p0 + p1 + p2
	if sum == 0 {
		return
	}
	p0, p1, p2 = p0/sum, p1/sum, p2/sum
	a, b, c := sv[0].v, sv[1].v, sv[2].v

	f := rhi.Fragment{
		X:           x,
		Y:           y,
		Depth:       bc0*sv[0].Z + bc1*sv[1].Z + bc2*sv[2].Z,
		Position:    a.Pos.Scale(p0).Add(b.Pos.Scale(p1)).Add(c.Pos.Scale(p2)),
		Normal:      a.Normal.Scale(p0).Add(b.Normal.Scale(p1)).Add(c.Normal.Scale(p2)),
		UV:          a.UV.Scale(p0).Add(b.UV.Scale(p1)).Add(c.UV.Scale(p2)),
		Color:       a.Color.Scale(p0).Add(b.Color.Scale(p1)).Add(c.Color.Scale(p2)),
		FrontFacing: front,
		Primitive:   prim,
	}
	if fs != nil && !fs(&f) {
		return
	}
	d.writeFragment(&f)
}

// DrawLines rasterizes a line list with Bresenham stepping.
func (d *Device) DrawLines(verts []rhi.Vertex, mvp math3d.Mat4, fs rhi.FragmentShader) {
	d.Stats.DrawCalls++
	clip := d.clipRect()
	if clip.Empty() {
		return
	}
	for p := 0; p+1 < len(verts); p += 2 {
		a := clipVertex{Clip: mvp.MulVec4(math3d.V4FromV3(verts[p].Position, 1)), Pos: verts[p].Position, Color: verts[p].Color}
		b := clipVertex{Clip: mvp.MulVec4(math3d.V4FromV3(verts[p+1].Position, 1)), Pos: verts[p+1].Position, Color: verts[p+1].Color}
		da, db := nearDist(a), nearDist(b)
		if da < 0 && db < 0 {
			continue
		}
		if da < 0 {
			a = lerpClip(a, b, da/(da-db))
		} else if db < 0 {
			b = lerpClip(a, b, da/(da-db))
		}
		sa, sb := d.toWindow(&a), d.toWindow(&b)
		prim := p / 2
		lineSteps(int(sa.X), int(sa.Y), int(sb.X), int(sb.Y), func(x, y int, t float64) {
			if !image.Pt(x, y).In(clip) {
				return
			}
			f := rhi.Fragment{
				X:           x,
				Y:           y,
				Depth:       sa.Z + (sb.Z-sa.Z)*t,
				Position:    a.Pos.Lerp(b.Pos, t),
				Color:       a.Color.Lerp(b.Color, t),
				FrontFacing: true,
				Primitive:   prim,
			}
			if fs != nil && !fs(&f) {
				return
			}
			d.writeFragment(&f)
		})
		d.Stats.Primitives++
	}
}

// DrawPoints draws one pixel per point at its normalized device position.
func (d *Device) DrawPoints(points []rhi.Point, fs rhi.FragmentShader) {
	d.Stats.DrawCalls++
	clip := d.clipRect()
	vp := d.viewport
	for i, p := range points {
		x := vp.X + int(math.Floor((p.NDC.X+1)*0.5*float64(vp.W)))
		y := vp.Y + int(math.Floor((1-p.NDC.Y)*0.5*float64(vp.H)))
		if !image.Pt(x, y).In(clip) {
			continue
		}
		f := rhi.Fragment{
			X:           x,
			Y:           y,
			Depth:       d.depthNear,
			Color:       math3d.V4(1, 1, 1, 1),
			FrontFacing: true,
			Attrs:       p.Attrs,
			Primitive:   i,
		}
		d.Stats.Primitives++
		if fs != nil && !fs(&f) {
			continue
		}
		d.writeFragment(&f)
	}
}

// DrawFullscreen shades every pixel of the viewport. UV spans [0,1] over
// the viewport with V growing downwards.
func (d *Device) DrawFullscreen(fs rhi.FragmentShader) {
	d.Stats.DrawCalls++
	clip := d.clipRect()
	vp := d.viewport
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		for x := clip.Min.X; x < clip.Max.X; x++ {
			f := rhi.Fragment{
				X:           x,
				Y:           y,
				Depth:       d.depthNear,
				UV:          math3d.V2((float64(x-vp.X)+0.5)/float64(vp.W), (float64(y-vp.Y)+0.5)/float64(vp.H)),
				Color:       math3d.V4(1, 1, 1, 1),
				FrontFacing: true,
			}
			if fs != nil && !fs(&f) {
				continue
			}
			d.writeFragment(&f)
		}
	}
}

// edgeCoeffs returns A, B, C for edge(x,y) = A*x + B*y + C.
func edgeCoeffs(x0, y0, x1, y1 float64) (A, B, C float64) {
	A = y0 - y1
	B = x1 - x0
	C = x0*y1 - x1*y0
	return
}

// topLeft reports whether an edge whose inside is positive is a left edge
// or a horizontal top edge in window space.
func topLeft(A, B float64) bool {
	return A > 0 || (A == 0 && B > 0)
}

func inside(w float64, tl bool) bool {
	return w > 0 || (w == 0 && tl)
}

func edgeFunc(A, B, C, x, y float64) float64 {
	return A*x + B*y + C
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}
