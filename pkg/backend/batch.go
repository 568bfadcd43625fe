package backend

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
	"github.com/taigrr/occlude/pkg/scene"
)

// flushType selects the shader a batch is drawn with.
type flushType int

const (
	flushDepth flushType = iota
	flushOccluder
	flushBase
	flushLit
	flushUnlit
	flushVelocity
	flushFinal
	flushTris
	flushBackground
	flushGui
	flushSelection
)

// batch accumulates consecutive surfaces that share a material and a
// transform space and draws them with one call.
type batch struct {
	dev rhi.Device

	flush    flushType
	vs       *viewState
	material *scene.Material
	space    *scene.VisObject
	light    *scene.VisLight

	verts []rhi.Vertex
	// drawCalls and surfaces count everything flushed since reset.
	drawCalls int
	surfaces  int
}

// reset forgets the current material and space so the next surface always
// starts a new batch.
func (bt *batch) reset() {
	bt.vs = nil
	bt.material = nil
	bt.space = nil
	bt.light = nil
	bt.verts = bt.verts[:0]
	bt.drawCalls = 0
	bt.surfaces = 0
}

func (bt *batch) begin(ft flushType, vs *viewState, mtl *scene.Material, space *scene.VisObject, light *scene.VisLight) {
	bt.flush = ft
	bt.vs = vs
	bt.material = mtl
	bt.space = space
	bt.light = light
	bt.verts = bt.verts[:0]
}

// compatible reports whether s can join the open batch.
func (bt *batch) compatible(s *scene.DrawSurf) bool {
	return bt.material == s.Material && bt.space == s.Space
}

func (bt *batch) addSurface(s *scene.DrawSurf) {
	bt.verts = append(bt.verts, s.SubMesh.Verts...)
	bt.surfaces++
}

// end draws the accumulated triangles.
func (bt *batch) end() {
	if len(bt.verts) == 0 || bt.space == nil {
		return
	}
	vs := bt.vs
	model := bt.space.ModelMatrix
	mvp := vs.viewProjMatrix.Mul(model)
	if bt.flush == flushGui {
		rr := vs.renderRect
		ortho := math3d.Orthographic(float64(rr.X), float64(rr.X2()), float64(rr.Y2()), float64(rr.Y), -1, 1)
		mvp = ortho.Mul(model)
	}

	cull := rhi.BackCull
	if bt.material != nil && bt.material.TwoSided || bt.flush == flushGui {
		cull = rhi.NoCull
	}
	bt.dev.SetCullFace(cull)

	if bt.flush == flushTris {
		bt.dev.DrawLines(triangleEdges(bt.verts), mvp, trisShader(bt.space.Def.WireframeColor))
	} else {
		bt.dev.DrawTriangles(bt.verts, mvp, bt.shader())
	}
	bt.drawCalls++
	bt.verts = bt.verts[:0]
}

func (bt *batch) shader() rhi.FragmentShader {
	vs, mtl, space := bt.vs, bt.material, bt.space
	switch bt.flush {
	case flushBase:
		return baseShader(vs, mtl, space)
	case flushLit:
		return litShader(vs, mtl, space, bt.light)
	case flushUnlit, flushFinal:
		return unlitShader(mtl, space)
	case flushVelocity:
		return velocityShader(vs, space)
	case flushBackground:
		return backgroundShader(mtl)
	case flushGui:
		return guiShader(mtl, space)
	case flushSelection:
		return selectionShader(space.Def.SelectionID)
	default:
		return nil
	}
}

// triangleEdges turns a triangle list into a line list of its edges.
func triangleEdges(verts []rhi.Vertex) []rhi.Vertex {
	lines := make([]rhi.Vertex, 0, len(verts)*2)
	for i := 0; i+2 < len(verts); i += 3 {
		a, b, c := verts[i], verts[i+1], verts[i+2]
		lines = append(lines, a, b, b, c, c, a)
	}
	return lines
}

// surfacePass draws every visible surface accepted by filter, batching
// runs of surfaces with the same material and space. The caller sets the
// state bits. A nil filter accepts everything.
func (b *Backend) surfacePass(vs *viewState, surfs []*scene.DrawSurf, ft flushType, filter func(*scene.DrawSurf) bool, light *scene.VisLight) {
	bt := &b.batch
	bt.begin(ft, vs, nil, nil, light)
	calls, drawn := bt.drawCalls, bt.surfaces
	for _, s := range surfs {
		if !s.Visible() || filter != nil && !filter(s) {
			continue
		}
		if !bt.compatible(s) {
			bt.end()
			bt.begin(ft, vs, s.Material, s.Space, light)
		}
		bt.addSurface(s)
	}
	bt.end()
	b.counters.DrawCalls += bt.drawCalls - calls
	b.counters.Surfaces += bt.surfaces - drawn
}
