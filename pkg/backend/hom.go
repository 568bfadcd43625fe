package backend

import (
	"math"
	"time"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// homDepthEpsilon keeps boxes touching the occluder depth visible.
const homDepthEpsilon = 1e-5

// renderOcclusionMap renders the depth of the occluders into level 0 of
// the occlusion map.
func (b *Backend) renderOcclusionMap(vs *viewState) {
	dev := b.dev
	ctx := vs.ctx
	prevViewport := dev.Viewport()
	prevScissor := dev.Scissor()
	prevRT, prevLevel := dev.RenderTarget()

	dev.BeginRenderTarget(ctx.homRT, 0)
	dev.SetScissor(rhi.Rect{})
	dev.SetStateBits(rhi.DepthWrite)
	dev.Clear(rhi.DepthBit|rhi.StencilBit, math3d.V4(1, 0, 0, 0), 1, 0)
	dev.SetViewport(rhi.Rect{W: ctx.homW, H: ctx.homH})
	b.occluderPass(vs)

	rebindTarget(dev, prevRT, prevLevel)
	dev.SetViewport(prevViewport)
	dev.SetScissor(prevScissor)
}

// generateOcclusionMapHierarchy downsamples the occlusion map. Every texel
// of level i holds the farthest depth of the level i-1 texels it covers,
// so any level is a conservative bound of the levels below it.
func (b *Backend) generateOcclusionMapHierarchy(vs *viewState) {
	start := time.Now()
	dev := b.dev
	ctx := vs.ctx
	prevViewport := dev.Viewport()
	prevRT, prevLevel := dev.RenderTarget()

	w, h := ctx.homW, ctx.homH
	numLevels := math3d.Log2Floor(max(w, h))
	for i := 1; i < numLevels; i++ {
		srcW, srcH := w, h
		w, h = math3d.HalveDim(w), math3d.HalveDim(h)

		dev.BindTexture(0, ctx.homTexture)
		dev.SetTextureLevel(i-1, i-1)
		dev.BeginRenderTarget(ctx.homRT, i)
		dev.SetViewport(rhi.Rect{W: w, H: h})
		dev.SetStateBits(rhi.DepthWrite | rhi.DFAlways)
		dev.SetCullFace(rhi.NoCull)
		dev.DrawFullscreen(maxDepthShader(dev, srcW, srcH, w, h))
	}
	rebindTarget(dev, prevRT, prevLevel)
	dev.BindTexture(0, ctx.homTexture)
	dev.SetTextureLevel(0, numLevels)
	ctx.homLevels = numLevels

	dev.SetViewport(prevViewport)
	b.counters.HomGenMsec = msecSince(start)
}

// footprint returns the inclusive range of source texels covered by
// destination texel x when src texels shrink to dst.
func footprint(x, src, dst int) (lo, hi int) {
	lo = x * src / dst
	hi = ((x+1)*src+dst-1)/dst - 1
	return lo, min(hi, src-1)
}

// maxDepthShader reduces the unit 0 base level into the bound level.
func maxDepthShader(dev rhi.Device, srcW, srcH, dstW, dstH int) rhi.FragmentShader {
	return func(f *rhi.Fragment) bool {
		x0, x1 := footprint(f.X, srcW, dstW)
		y0, y1 := footprint(f.Y, srcH, dstH)
		d := 0.0
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				d = max(d, dev.Fetch(0, 0, x, y).X)
			}
		}
		f.Depth = d
		return true
	}
}

// testOccludeeBounds tests the bounds of the ambient surfaces against the
// occlusion map and clears the visible flag of the hidden ones. Surfaces
// crossing the near plane are never tested.
func (b *Backend) testOccludeeBounds(vs *viewState) {
	near := vs.camera.NearPlane()
	surfs := vs.ambientSurfs()

	var (
		boxes     []math3d.AABB
		indexes   []int
		prevSpace *scene.VisObject
	)
	for i, s := range surfs {
		if s.Space.Def.Skinned && s.Space == prevSpace {
			continue
		}
		box := s.WorldAABB()
		if box.PlaneSide(near) != math3d.SideBack {
			continue
		}
		boxes = append(boxes, box)
		indexes = append(indexes, i)
		prevSpace = s.Space
	}
	if len(boxes) == 0 {
		return
	}
	b.counters.Occludees += len(boxes)

	n := b.queryOccludeeAABBs(vs, boxes)
	b.markOccludeeVisibility(vs, indexes[:n])
}

// queryOccludeeAABBs writes one texel per box into the result target:
// black when the box is hidden behind the occlusion map. It returns how
// many boxes fit; the rest are left visible.
func (b *Backend) queryOccludeeAABBs(vs *viewState, boxes []math3d.AABB) int {
	start := time.Now()
	dev := b.dev
	ctx := vs.ctx
	outW, outH := b.homOutW, b.homOutH

	n := min(len(boxes), outW*outH)
	points := make([]rhi.Point, n)
	for i, box := range boxes[:n] {
		x, y := i%outW, i/outW
		points[i] = rhi.Point{
			NDC:   math3d.V2((float64(x)+0.5)/float64(outW)*2-1, 1-(float64(y)+0.5)/float64(outH)*2),
			Attrs: [2]math3d.Vec3{box.Center(), box.Extents()},
		}
	}

	prevViewport := dev.Viewport()
	prevScissor := dev.Scissor()
	prevRT, prevLevel := dev.RenderTarget()
	dev.BeginRenderTarget(b.homCullRT, 0)
	dev.SetViewport(rhi.Rect{W: outW, H: outH})
	dev.SetScissor(rhi.Rect{})
	dev.SetStateBits(rhi.ColorWrite | rhi.AlphaWrite)
	dev.SetCullFace(rhi.NoCull)
	dev.BindTexture(0, ctx.homTexture)
	dev.DrawPoints(points, b.occludeeShader(vs))
	rebindTarget(dev, prevRT, prevLevel)
	dev.SetViewport(prevViewport)
	dev.SetScissor(prevScissor)

	b.counters.HomQueryMsec = msecSince(start)
	return n
}

// occludeeShader projects the box of a point and compares its nearest
// depth with the farthest occluder depth over its screen rectangle, read
// from the coarsest level where the rectangle spans at most two texels.
func (b *Backend) occludeeShader(vs *viewState) rhi.FragmentShader {
	dev := b.dev
	vp := vs.viewProjMatrix
	homW, homH := vs.ctx.homW, vs.ctx.homH
	maxLevel := max(vs.ctx.homLevels-1, 0)
	visible := math3d.V4(1, 1, 1, 1)

	return func(f *rhi.Fragment) bool {
		box := math3d.AABBFromCenterExtents(f.Attrs[0], f.Attrs[1])
		minX, minY, zmin := math.Inf(1), math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, c := range box.Corners() {
			clip := vp.MulVec4(math3d.V4FromV3(c, 1))
			if clip.W <= 0 {
				f.Color = visible
				return true
			}
			ndc := clip.PerspectiveDivide()
			x := (ndc.X + 1) * 0.5 * float64(homW)
			y := (1 - ndc.Y) * 0.5 * float64(homH)
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
			zmin = math.Min(zmin, (ndc.Z+1)*0.5)
		}
		if maxX < 0 || maxY < 0 || minX >= float64(homW) || minY >= float64(homH) {
			f.Color = visible
			return true
		}

		level := math3d.Clamp(math3d.Log2Ceil(math.Max(maxX-minX, maxY-minY)), 0, maxLevel)
		px0 := math3d.Clamp(int(math.Floor(minX)), 0, homW-1)
		px1 := math3d.Clamp(int(math.Floor(maxX)), 0, homW-1)
		py0 := math3d.Clamp(int(math.Floor(minY)), 0, homH-1)
		py1 := math3d.Clamp(int(math.Floor(maxY)), 0, homH-1)
		tx0, tx1 := mipTexel(px0, homW, level), mipTexel(px1, homW, level)
		ty0, ty1 := mipTexel(py0, homH, level), mipTexel(py1, homH, level)

		maxDepth := 0.0
		for y := ty0; y <= ty1; y++ {
			for x := tx0; x <= tx1; x++ {
				maxDepth = math.Max(maxDepth, dev.Fetch(0, level, x, y).X)
			}
		}
		if zmin > maxDepth+homDepthEpsilon {
			f.Color = math3d.Vec4{}
		} else {
			f.Color = visible
		}
		return true
	}
}

// mipTexel follows level 0 texel p down the hierarchy to the texel of
// level that covers it.
func mipTexel(p, size, level int) int {
	for range level {
		half := math3d.HalveDim(size)
		p = p * half / size
		size = half
	}
	return p
}

// markOccludeeVisibility reads the result target back and clears the
// visible flag of every hidden surface. A hidden skinned surface hides the
// rest of its entity.
func (b *Backend) markOccludeeVisibility(vs *viewState, indexes []int) {
	start := time.Now()
	surfs := vs.ambientSurfs()
	texels := b.dev.ReadTexels(b.homCullTexture, 0, 0)

	for i, idx := range indexes {
		if texels[i*4+2] != 0 {
			continue
		}
		s := surfs[idx]
		s.Flags &^= scene.SurfVisible
		b.counters.OccludedSurfs++
		if !s.Space.Def.Skinned {
			continue
		}
		for j := idx + 1; j < len(surfs) && surfs[j].Space == s.Space; j++ {
			surfs[j].Flags &^= scene.SurfVisible
			b.counters.OccludedSurfs++
		}
	}

	b.counters.HomCullMsec = msecSince(start)
	Logger().Debug("occlusion culling",
		"occludees", len(indexes),
		"occluded", b.counters.OccludedSurfs,
	)
}
