package backend

import "github.com/taigrr/occlude/pkg/rhi"

// Stencil state objects created once in New.
const (
	// stencilZPass counts front faces up and back faces down where the
	// volume passes the depth test. Used when the eye is outside the volume.
	stencilZPass = iota
	// stencilZFail counts back faces up and front faces down where the
	// volume fails the depth test (Carmack's reverse).
	stencilZFail
	// stencilInsideZFail counts only the back faces behind the scene. The
	// eye is inside the volume so no front face is visible.
	stencilInsideZFail
	// stencilTest passes where the stored value equals the reference.
	stencilTest
	numStencilStates
)

func (b *Backend) createStencilStates() {
	descs := [numStencilStates]rhi.StencilDesc{
		stencilZPass: {
			ReadMask:  0xFF,
			WriteMask: 0xFF,
			Front:     rhi.StencilFace{Func: rhi.AlwaysFunc, Fail: rhi.KeepOp, ZFail: rhi.KeepOp, ZPass: rhi.IncrWrapOp},
			Back:      rhi.StencilFace{Func: rhi.AlwaysFunc, Fail: rhi.KeepOp, ZFail: rhi.KeepOp, ZPass: rhi.DecrWrapOp},
		},
		stencilZFail: {
			ReadMask:  0xFF,
			WriteMask: 0xFF,
			Front:     rhi.StencilFace{Func: rhi.AlwaysFunc, Fail: rhi.KeepOp, ZFail: rhi.DecrWrapOp, ZPass: rhi.KeepOp},
			Back:      rhi.StencilFace{Func: rhi.AlwaysFunc, Fail: rhi.KeepOp, ZFail: rhi.IncrWrapOp, ZPass: rhi.KeepOp},
		},
		stencilInsideZFail: {
			ReadMask:  0xFF,
			WriteMask: 0xFF,
			Front:     rhi.StencilFace{Func: rhi.NeverFunc, Fail: rhi.KeepOp, ZFail: rhi.KeepOp, ZPass: rhi.KeepOp},
			Back:      rhi.StencilFace{Func: rhi.AlwaysFunc, Fail: rhi.KeepOp, ZFail: rhi.IncrWrapOp, ZPass: rhi.KeepOp},
		},
		stencilTest: {
			ReadMask:  0xFF,
			WriteMask: 0,
			Front:     rhi.StencilFace{Func: rhi.EqualFunc, Fail: rhi.KeepOp, ZFail: rhi.KeepOp, ZPass: rhi.KeepOp},
			Back:      rhi.StencilFace{Func: rhi.EqualFunc, Fail: rhi.KeepOp, ZFail: rhi.KeepOp, ZPass: rhi.KeepOp},
		},
	}
	for i, d := range descs {
		b.stencilStates[i] = b.dev.CreateStencilState(d)
	}
}
