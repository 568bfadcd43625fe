package scene

import "github.com/taigrr/occlude/pkg/math3d"

// DebugLine is a world space line drawn by the debug pass.
type DebugLine struct {
	A, B      math3d.Vec3
	Color     math3d.Vec4
	DepthTest bool
}

// boxEdges are the 12 edges between corners laid out like
// math3d.AABB.Corners.
var boxEdges = [12][2]int{
	// Back face
	{0, 1},
	{1, 3},
	{3, 2},
	{2, 0},
	// Front face
	{4, 5},
	{5, 7},
	{7, 6},
	{6, 4},
	// Connecting edges
	{0, 4},
	{1, 5},
	{2, 6},
	{3, 7},
}

var (
	red   = math3d.V4(1, 0, 0, 1)
	green = math3d.V4(0, 1, 0, 1)
	blue  = math3d.V4(0, 0, 1, 1)
)

// AddDebugLine queues a line.
func (v *View) AddDebugLine(a, b math3d.Vec3, c math3d.Vec4, depthTest bool) {
	v.DebugLines = append(v.DebugLines, DebugLine{A: a, B: b, Color: c, DepthTest: depthTest})
}

// AddDebugBox queues the edges of a box given by its 8 corners.
func (v *View) AddDebugBox(corners [8]math3d.Vec3, c math3d.Vec4, depthTest bool) {
	for _, e := range boxEdges {
		v.AddDebugLine(corners[e[0]], corners[e[1]], c, depthTest)
	}
}

// AddDebugAABB queues the edges of an axis aligned box.
func (v *View) AddDebugAABB(box math3d.AABB, c math3d.Vec4, depthTest bool) {
	v.AddDebugBox(box.Corners(), c, depthTest)
}

// AddDebugLightVolume queues the outline of a light's influence volume.
func (v *View) AddDebugLightVolume(l *RenderLight, c math3d.Vec4) {
	v.AddDebugBox(l.VolumeCorners(), c, true)
}

// AddDebugAxes queues the coordinate axes at origin.
func (v *View) AddDebugAxes(origin math3d.Vec3, length float64) {
	v.AddDebugLine(origin, origin.Add(math3d.V3(length, 0, 0)), red, false)   // X axis
	v.AddDebugLine(origin, origin.Add(math3d.V3(0, length, 0)), green, false) // Y axis
	v.AddDebugLine(origin, origin.Add(math3d.V3(0, 0, length)), blue, false)  // Z axis
}

// AddDebugGrid queues a grid on the XZ plane at y=0.
func (v *View) AddDebugGrid(size, step float64, c math3d.Vec4) {
	half := size / 2
	for x := -half; x <= half; x += step {
		v.AddDebugLine(math3d.V3(x, 0, -half), math3d.V3(x, 0, half), c, true)
	}
	for z := -half; z <= half; z += step {
		v.AddDebugLine(math3d.V3(-half, 0, z), math3d.V3(half, 0, z), c, true)
	}
}
