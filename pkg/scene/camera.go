package scene

import (
	"math"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/rhi"
)

// ClearMethod selects what a view clears before rendering.
type ClearMethod int

const (
	ClearDepthOnly ClearMethod = iota
	ClearColor
	ClearSkybox
)

// CameraFlags toggle per-camera render features.
type CameraFlags uint32

const (
	TexturedMode CameraFlags = 1 << iota
	WireFrameMode
	SkipPostProcess
	SkipDebugDraw
)

// Has reports whether every flag in f is set.
func (c CameraFlags) Has(f CameraFlags) bool { return c&f == f }

// Camera is the camera definition of one view: a position and orientation
// plus everything the back end needs to clear and size the view.
type Camera struct {
	// Position in world space
	Position math3d.Vec3

	// Orientation (Euler angles in radians)
	Pitch float64 // Rotation around X axis (look up/down)
	Yaw   float64 // Rotation around Y axis (look left/right)
	Roll  float64 // Rotation around Z axis (tilt)

	// Projection parameters
	FOV         float64 // Vertical field of view in radians
	AspectRatio float64 // Width / Height
	Near        float64 // Near clipping plane
	Far         float64 // Far clipping plane

	ClearMethod ClearMethod
	ClearColor  math3d.Vec4
	// RenderRect is the view rectangle in rendering resolution pixels.
	RenderRect rhi.Rect
	Flags      CameraFlags
	// Time is the scene time in seconds handed to shaders.
	Time float64

	viewMatrix     math3d.Mat4
	projMatrix     math3d.Mat4
	viewProjMatrix math3d.Mat4
	viewDirty      bool
	projDirty      bool
	viewProjDirty  bool
}

// NewCamera creates a camera covering a width x height render rect.
func NewCamera(width, height int) *Camera {
	return &Camera{
		Position:      math3d.V3(0, 0, 10),
		FOV:           math.Pi / 3, // 60 degrees
		AspectRatio:   float64(width) / float64(max(height, 1)),
		Near:          0.1,
		Far:           1000,
		ClearMethod:   ClearColor,
		ClearColor:    math3d.V4(0, 0, 0, 1),
		RenderRect:    rhi.Rect{W: width, H: height},
		Flags:         TexturedMode,
		viewDirty:     true,
		projDirty:     true,
		viewProjDirty: true,
	}
}

// SetPosition sets the camera position.
func (c *Camera) SetPosition(pos math3d.Vec3) {
	c.Position = pos
	c.viewDirty = true
}

// SetRotation sets the camera rotation (pitch, yaw, roll in radians).
func (c *Camera) SetRotation(pitch, yaw, roll float64) {
	c.Pitch = pitch
	c.Yaw = yaw
	c.Roll = roll
	c.viewDirty = true
}

// SetFOV sets the field of view (in radians).
func (c *Camera) SetFOV(fov float64) {
	c.FOV = fov
	c.projDirty = true
}

// SetAspectRatio sets the aspect ratio.
func (c *Camera) SetAspectRatio(aspect float64) {
	c.AspectRatio = aspect
	c.projDirty = true
}

// SetClipPlanes sets the near and far clipping planes.
func (c *Camera) SetClipPlanes(near, far float64) {
	c.Near = near
	c.Far = far
	c.projDirty = true
}

// SetRenderRect resizes the view and keeps the aspect ratio in sync.
func (c *Camera) SetRenderRect(r rhi.Rect) {
	c.RenderRect = r
	if r.H > 0 {
		c.SetAspectRatio(float64(r.W) / float64(r.H))
	}
}

// Forward returns the forward direction vector.
func (c *Camera) Forward() math3d.Vec3 {
	// Forward is -Z in camera space, rotated by yaw and pitch
	return math3d.V3(
		-math.Sin(c.Yaw)*math.Cos(c.Pitch),
		math.Sin(c.Pitch),
		-math.Cos(c.Yaw)*math.Cos(c.Pitch),
	)
}

// Right returns the right direction vector.
func (c *Camera) Right() math3d.Vec3 {
	return math3d.V3(
		math.Cos(c.Yaw),
		0,
		-math.Sin(c.Yaw),
	)
}

// Up returns the up direction vector.
func (c *Camera) Up() math3d.Vec3 {
	return c.Right().Cross(c.Forward())
}

// Axis returns the camera basis {right, up, back}.
func (c *Camera) Axis() math3d.Mat3 {
	return math3d.Mat3FromCols(c.Right(), c.Up(), c.Forward().Negate())
}

// ViewMatrix returns the view matrix.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.computeViewMatrix()
		c.viewDirty = false
		c.viewProjDirty = true
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.AspectRatio, c.Near, c.Far)
		c.projDirty = false
		c.viewProjDirty = true
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns the combined view-projection matrix.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	view := c.ViewMatrix()
	proj := c.ProjectionMatrix()
	if c.viewProjDirty {
		c.viewProjMatrix = proj.Mul(view)
		c.viewProjDirty = false
	}
	return c.viewProjMatrix
}

func (c *Camera) computeViewMatrix() {
	// View = Rotation * Translation(-position), the inverse of the camera
	// orientation.
	rot := math3d.RotateZ(-c.Roll).Mul(
		math3d.RotateX(-c.Pitch)).Mul(
		math3d.RotateY(-c.Yaw))

	trans := math3d.Translate(c.Position.Negate())

	c.viewMatrix = rot.Mul(trans)
}

// Frustum returns the world space view frustum.
func (c *Camera) Frustum() math3d.Frustum {
	return math3d.NewFrustumFromMatrix(c.ViewProjectionMatrix())
}

// NearPlane returns the near clipping plane with its normal facing the
// camera. Everything beyond the near plane is on its back side.
func (c *Camera) NearPlane() math3d.Plane {
	p := c.Frustum().Planes[math3d.FrustumNear]
	return math3d.Plane{Normal: p.Normal.Negate(), D: -p.D}
}

// MoveForward moves the camera forward (or backward if negative).
func (c *Camera) MoveForward(distance float64) {
	c.Position = c.Position.Add(c.Forward().Scale(distance))
	c.viewDirty = true
}

// MoveRight moves the camera right (or left if negative).
func (c *Camera) MoveRight(distance float64) {
	c.Position = c.Position.Add(c.Right().Scale(distance))
	c.viewDirty = true
}

// MoveUp moves the camera up (or down if negative).
func (c *Camera) MoveUp(distance float64) {
	c.Position = c.Position.Add(math3d.Up().Scale(distance))
	c.viewDirty = true
}

// Rotate rotates the camera by the given angles (in radians).
func (c *Camera) Rotate(deltaPitch, deltaYaw, deltaRoll float64) {
	c.Pitch += deltaPitch
	c.Yaw += deltaYaw
	c.Roll += deltaRoll

	const maxPitch = math.Pi/2 - 0.01
	c.Pitch = math3d.Clamp(c.Pitch, -maxPitch, maxPitch)

	c.viewDirty = true
}

// LookAt makes the camera look at a target point.
func (c *Camera) LookAt(target math3d.Vec3) {
	dir := target.Sub(c.Position).Normalize()

	c.Pitch = math.Asin(dir.Y)
	c.Yaw = math.Atan2(-dir.X, -dir.Z)
	c.Roll = 0

	c.viewDirty = true
}

// WorldToScreen transforms a world point to render rect pixels.
// Returns (screenX, screenY, depth, visible).
func (c *Camera) WorldToScreen(worldPos math3d.Vec3) (x, y, depth float64, visible bool) {
	clipPos := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(worldPos, 1))

	// Behind the camera
	if clipPos.W <= 0 {
		return 0, 0, 0, false
	}

	ndc := clipPos.PerspectiveDivide()
	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 || ndc.Z < -1 || ndc.Z > 1 {
		return 0, 0, 0, false
	}

	r := c.RenderRect
	x = float64(r.X) + (ndc.X+1)*0.5*float64(r.W)
	y = float64(r.Y) + (1-ndc.Y)*0.5*float64(r.H) // Y is flipped
	depth = ndc.Z

	return x, y, depth, true
}
