package render

import (
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

func stencilTest(fn rhi.StencilFunc, ref, stored, mask uint8) bool {
	ref &= mask
	stored &= mask
	switch fn {
	case rhi.NeverFunc:
		return false
	case rhi.EqualFunc:
		return ref == stored
	case rhi.NotEqualFunc:
		return ref != stored
	case rhi.LessFunc:
		return ref < stored
	case rhi.LEqualFunc:
		return ref <= stored
	case rhi.GreaterFunc:
		return ref > stored
	case rhi.GEqualFunc:
		return ref >= stored
	default:
		return true
	}
}

func stencilApply(op rhi.StencilOp, ref, stored, writeMask uint8) uint8 {
	var v uint8
	switch op {
	case rhi.KeepOp:
		return stored
	case rhi.ZeroOp:
		v = 0
	case rhi.ReplaceOp:
		v = ref
	case rhi.IncrOp:
		v = stored
		if v < 255 {
			v++
		}
	case rhi.DecrOp:
		v = stored
		if v > 0 {
			v--
		}
	case rhi.IncrWrapOp:
		v = stored + 1
	case rhi.DecrWrapOp:
		v = stored - 1
	case rhi.InvertOp:
		v = ^stored
	}
	return stored&^writeMask | v&writeMask
}

func depthTest(fn rhi.StateBits, incoming, stored float64) bool {
	switch fn {
	case rhi.DFAlways:
		return true
	case rhi.DFLess:
		return incoming < stored
	case rhi.DFEqual:
		return incoming == stored
	case rhi.DFGreater:
		return incoming > stored
	default:
		return incoming <= stored
	}
}

// blend combines a source colour with the destination.
func blend(mode rhi.StateBits, src, dst math3d.Vec4) math3d.Vec4 {
	switch mode {
	case rhi.BlendAdd:
		return src.Add(dst)
	case rhi.BlendAlpha:
		return dst.Lerp(src, src.W)
	default:
		return src
	}
}

// writeFragment runs the per-sample operations for one shaded fragment:
// stencil test and ops, depth test, query counting and the masked,
// blended colour write.
func (d *Device) writeFragment(f *rhi.Fragment) {
	t := &d.target
	i := f.Y*t.Width + f.X
	d.Stats.Fragments++

	var face rhi.StencilFace
	var desc rhi.StencilDesc
	useStencil := false
	if d.stencilState != rhi.NullStencilState && t.Stencil != nil {
		desc, useStencil = d.stencils[d.stencilState]
		face = desc.Back
		if f.FrontFacing {
			face = desc.Front
		}
	}

	if useStencil {
		stored := t.Stencil[i]
		if !stencilTest(face.Func, d.stencilRef, stored, desc.ReadMask) {
			t.Stencil[i] = stencilApply(face.Fail, d.stencilRef, stored, desc.WriteMask)
			return
		}
	}

	if t.Depth != nil && !depthTest(d.state.DepthFunc(), f.Depth, t.Depth[i]) {
		if useStencil {
			t.Stencil[i] = stencilApply(face.ZFail, d.stencilRef, t.Stencil[i], desc.WriteMask)
		}
		return
	}
	if useStencil {
		t.Stencil[i] = stencilApply(face.ZPass, d.stencilRef, t.Stencil[i], desc.WriteMask)
	}
	if d.activeQuery != nil {
		d.activeQuery.samples++
	}

	if d.state&rhi.DepthWrite != 0 && t.Depth != nil {
		t.Depth[i] = f.Depth
	}

	if t.Color == nil || d.state&(rhi.ColorWrite|rhi.AlphaWrite) == 0 {
		return
	}
	dst := t.Color[i]
	c := blend(d.state.Blend(), f.Color, dst)
	if d.state&rhi.ColorWrite == 0 {
		c.X, c.Y, c.Z = dst.X, dst.Y, dst.Z
	}
	if d.state&rhi.AlphaWrite == 0 {
		c.W = dst.W
	}
	t.Color[i] = t.quantize(c)
}
