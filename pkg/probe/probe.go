package probe

import (
	"fmt"
	"time"

	"github.com/taigrr/occlude/pkg/dds"
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/scene"
)

const (
	// gizmoRefreshInterval is how often a selected realtime probe
	// refreshes while its gizmo is drawn.
	gizmoRefreshInterval = 3 * time.Second
	// sphereMaxVisDist hides the proxy sphere beyond 50 meters.
	sphereMaxVisDist = 50
	// proxyRadius is the radius of the bounds reported by AABB.
	proxyRadius = 0.5
)

var gizmoColor = math3d.V4(0, 0.5, 1, 1)

// Probe is the environment probe entity of a scene. It owns the probe
// definition and keeps the render world in sync with it: every setter
// repairs the definition invariants and registers or updates the render
// probe and its proxy sphere.
type Probe struct {
	world       *World
	transform   *Transform
	unsubscribe func()

	def State

	sphereDef    RenderEntity
	sphereMesh   string
	sphereMtl    string
	probeHandle  Handle
	sphereHandle Handle

	bakedDiffusePath  string
	bakedSpecularPath string

	initialized bool
	active      bool
	gizmoTime   time.Time
}

// New creates an active probe at the origin of t with the default
// definition and registers it with w.
func New(w *World, t *Transform) *Probe {
	p := &Probe{
		world:        w,
		def:          DefaultState(),
		probeHandle:  InvalidHandle,
		sphereHandle: InvalidHandle,
		active:       true,
	}
	p.init(t)
	return p
}

func (p *Probe) init(t *Transform) {
	p.transform = t
	p.def.Origin = t.Origin()
	p.unsubscribe = t.Subscribe(p)

	mesh, err := p.world.Meshes.Get(DefaultSphereMesh)
	if err != nil {
		Logger().Warn("probe sphere mesh unavailable", "error", err)
	} else {
		p.sphereMesh = DefaultSphereMesh
	}
	obj := scene.NewRenderObject("env probe", t.Origin())
	p.sphereDef = RenderEntity{
		Object:     *obj,
		Mesh:       mesh,
		Layer:      EditorLayer,
		MaxVisDist: sphereMaxVisDist,
	}
	if mesh != nil {
		p.sphereDef.Object.LocalAABB = mesh.AABB
	}

	p.initialized = true
	p.updateVisuals()
}

// updateVisuals registers the render probe and the proxy sphere, or
// updates them when already registered.
func (p *Probe) updateVisuals() {
	if !p.initialized || !p.active {
		return
	}
	if p.probeHandle == InvalidHandle {
		p.probeHandle = p.world.AddEnvProbe(&p.def)
	} else {
		p.world.UpdateEnvProbe(p.probeHandle, &p.def)
	}

	if p.sphereDef.Material == nil {
		name := fmt.Sprintf("_envProbeSphere-%d", p.probeHandle)
		rp := p.world.EnvProbe(p.probeHandle)
		mtl := scene.NewMaterial(name, math3d.V4(1, 1, 1, 1))
		mtl.Texture = probeCubeSampler{rp}
		mtl.Occluder = false
		p.sphereDef.Material = p.world.Materials.Put(name, mtl)
		p.sphereMtl = name
	}

	if p.sphereHandle == InvalidHandle {
		p.sphereHandle = p.world.AddRenderObject(&p.sphereDef)
	} else {
		p.world.UpdateRenderObject(p.sphereHandle, &p.sphereDef)
	}
}

// probeCubeSampler shows the current specular cube of a render probe,
// which is replaced on every refresh.
type probeCubeSampler struct {
	p *EnvProbe
}

func (s probeCubeSampler) Sample(u, v float64) math3d.Vec4 {
	return EnvSampler{Image: s.p.SpecularSumCube()}.Sample(u, v)
}

// Handle returns the render world handle of the probe, or InvalidHandle
// while it is inactive.
func (p *Probe) Handle() Handle { return p.probeHandle }

// Transform returns the transform the probe follows.
func (p *Probe) Transform() *Transform { return p.transform }

// SphereHandle returns the handle of the proxy sphere.
func (p *Probe) SphereHandle() Handle { return p.sphereHandle }

// State returns a copy of the definition.
func (p *Probe) State() State { return p.def }

// Active reports whether the probe is active.
func (p *Probe) Active() bool { return p.active }

// SetActive mirrors scene graph activation. Deactivating unregisters the
// render probe and the proxy sphere and keeps the definition.
func (p *Probe) SetActive(active bool) {
	if active == p.active {
		return
	}
	p.active = active
	if active {
		p.updateVisuals()
		return
	}
	p.detach()
}

// detach removes every render world registration. The sphere material
// shows the render probe, so it goes too and is rebuilt on the next
// registration.
func (p *Probe) detach() {
	if p.sphereHandle != InvalidHandle {
		p.world.RemoveRenderObject(p.sphereHandle)
		p.sphereHandle = InvalidHandle
	}
	if p.sphereMtl != "" {
		p.world.Materials.Release(p.sphereMtl)
		p.sphereMtl = ""
	}
	p.sphereDef.Material = nil
	if p.probeHandle != InvalidHandle {
		p.world.RemoveEnvProbe(p.probeHandle)
		p.probeHandle = InvalidHandle
	}
}

// Awake schedules the first refresh of a realtime probe refreshed on
// awake.
func (p *Probe) Awake() {
	if p.def.Type == Realtime && p.def.RefreshMode == OnAwake {
		p.world.ScheduleRefresh(p.probeHandle)
	}
}

// Update schedules a refresh of an active realtime probe refreshed every
// frame.
func (p *Probe) Update() {
	if !p.active {
		return
	}
	if p.def.Type == Realtime && p.def.RefreshMode == EveryFrame {
		p.world.ScheduleRefresh(p.probeHandle)
	}
}

// DrawGizmos outlines the box of a selected probe in view. A selected
// realtime probe also refreshes every few seconds, with now as the clock.
func (p *Probe) DrawGizmos(view *scene.View, selected bool, now time.Time) {
	if !selected {
		return
	}
	view.AddDebugAABB(p.def.BoxAABB(), gizmoColor, false)

	if now.Sub(p.gizmoTime) > gizmoRefreshInterval {
		p.gizmoTime = now
		if p.def.Type == Realtime {
			p.world.ScheduleRefresh(p.probeHandle)
		}
	}
}

// AABB returns the local bounds used to pick the probe.
func (p *Probe) AABB() math3d.AABB {
	return math3d.Sphere{Radius: proxyRadius}.AABB()
}

// TransformUpdated follows the owning transform.
func (p *Probe) TransformUpdated(t *Transform) {
	p.def.Origin = t.Origin()
	p.sphereDef.Object.Origin = t.Origin()
	p.updateVisuals()
}

// Type reports whether the probe is baked or realtime.
func (p *Probe) Type() Type { return p.def.Type }

// SetType changes the probe type.
func (p *Probe) SetType(t Type) {
	p.def.Type = t
	p.updateVisuals()
}

// RefreshMode returns when a realtime probe renders.
func (p *Probe) RefreshMode() RefreshMode { return p.def.RefreshMode }

// SetRefreshMode sets the refresh mode. It is read by Awake and Update.
func (p *Probe) SetRefreshMode(m RefreshMode) {
	p.def.RefreshMode = m
	p.updateVisuals()
}

// TimeSlicing returns how a refresh spreads over frames.
func (p *Probe) TimeSlicing() TimeSlicing { return p.def.TimeSlicing }

// SetTimeSlicing sets how many faces each Refresh renders.
func (p *Probe) SetTimeSlicing(ts TimeSlicing) {
	p.def.TimeSlicing = ts
	p.updateVisuals()
}

// Importance returns the blend priority among overlapping probes.
func (p *Probe) Importance() int { return p.def.Importance }

// SetImportance sets the blend priority.
func (p *Probe) SetImportance(importance int) {
	p.def.Importance = importance
	p.updateVisuals()
}

// Resolution returns the cube face size.
func (p *Probe) Resolution() Resolution { return p.def.Resolution }

// SetResolution sets the cube face size used by the next render.
func (p *Probe) SetResolution(r Resolution) {
	p.def.Resolution = r
	p.updateVisuals()
}

// HDR reports whether bakes use a float format.
func (p *Probe) HDR() bool { return p.def.UseHDR }

// SetHDR switches bakes between R11G11B10F and RGBA8.
func (p *Probe) SetHDR(hdr bool) {
	p.def.UseHDR = hdr
	p.updateVisuals()
}

// LayerMask returns the layers drawn into the cube map.
func (p *Probe) LayerMask() int { return p.def.LayerMask }

// SetLayerMask sets the culling mask.
func (p *Probe) SetLayerMask(mask int) {
	p.def.LayerMask = mask
	p.updateVisuals()
}

// ClearMethod returns what fills the faces before drawing.
func (p *Probe) ClearMethod() ClearMethod { return p.def.ClearMethod }

// SetClearMethod sets the face clear method.
func (p *Probe) SetClearMethod(m ClearMethod) {
	p.def.ClearMethod = m
	p.updateVisuals()
}

// ClearColor returns the RGB clear colour; the alpha is ClearAlpha.
func (p *Probe) ClearColor() math3d.Vec3 { return p.def.ClearColor.Vec3() }

// SetClearColor sets the RGB clear colour and keeps the alpha.
func (p *Probe) SetClearColor(c math3d.Vec3) {
	p.def.ClearColor = math3d.V4FromV3(c, p.def.ClearColor.W)
	p.updateVisuals()
}

// ClearAlpha returns the alpha of the clear colour.
func (p *Probe) ClearAlpha() float64 { return p.def.ClearColor.W }

// SetClearAlpha sets the clear alpha.
func (p *Probe) SetClearAlpha(a float64) {
	p.def.ClearColor.W = a
	p.updateVisuals()
}

// ClippingNear returns the near distance of the face cameras.
func (p *Probe) ClippingNear() float64 { return p.def.ClippingNear }

// SetClippingNear sets the near distance, pushing the far distance out to
// match when near passes it.
func (p *Probe) SetClippingNear(near float64) {
	p.def.ClippingNear = near
	if p.def.ClippingNear > p.def.ClippingFar {
		p.def.ClippingFar = p.def.ClippingNear
	}
	p.updateVisuals()
}

// ClippingFar returns the far distance of the face cameras.
func (p *Probe) ClippingFar() float64 { return p.def.ClippingFar }

// SetClippingFar sets the far distance. A value below the near distance
// is raised to it.
func (p *Probe) SetClippingFar(far float64) {
	p.def.ClippingFar = max(far, p.def.ClippingNear)
	p.updateVisuals()
}

// BoxProjection reports whether reflections are corrected to the box.
func (p *Probe) BoxProjection() bool { return p.def.UseBoxProjection }

// SetBoxProjection toggles box projection.
func (p *Probe) SetBoxProjection(on bool) {
	p.def.UseBoxProjection = on
	p.updateVisuals()
}

// BlendDistance returns the fade distance outside the box.
func (p *Probe) BlendDistance() float64 { return p.def.BlendDistance }

// SetBlendDistance sets the fade distance. Negative values are zero.
func (p *Probe) SetBlendDistance(d float64) {
	p.def.BlendDistance = max(d, 0)
	p.updateVisuals()
}

// BoxSize returns the half size of the influence box.
func (p *Probe) BoxSize() math3d.Vec3 { return p.def.BoxSize }

// SetBoxSize sets the box half size. Negative components are taken as
// zero. The offset is pulled in on every axis where the origin would fall
// outside the box.
func (p *Probe) SetBoxSize(size math3d.Vec3) {
	size = size.Max(math3d.Vec3{})
	p.def.BoxSize = size
	for i := range 3 {
		s, o := size.At(i), p.def.BoxOffset.At(i)
		p.def.BoxOffset = p.def.BoxOffset.With(i, math3d.Clamp(o, -s, s))
	}
	p.updateVisuals()
}

// BoxOffset returns the box center relative to the probe origin.
func (p *Probe) BoxOffset() math3d.Vec3 { return p.def.BoxOffset }

// SetBoxOffset moves the box center. The size grows on every axis where
// the origin would fall outside the box.
func (p *Probe) SetBoxOffset(offset math3d.Vec3) {
	p.def.BoxOffset = offset
	p.def.BoxSize = p.def.BoxSize.Max(offset.Abs())
	p.updateVisuals()
}

// BakedDiffuseTexture returns the path of the baked diffuse cube map.
func (p *Probe) BakedDiffuseTexture() string { return p.bakedDiffusePath }

// SetBakedDiffuseTexture releases the current baked diffuse cube map and
// loads the one at path. An empty path only releases.
func (p *Probe) SetBakedDiffuseTexture(path string) error {
	img, err := p.swapTexture(&p.bakedDiffusePath, path)
	p.def.BakedDiffuseTexture = img
	p.updateVisuals()
	return err
}

// BakedSpecularTexture returns the path of the baked specular cube map.
func (p *Probe) BakedSpecularTexture() string { return p.bakedSpecularPath }

// SetBakedSpecularTexture releases the current baked specular cube map and
// loads the one at path. An empty path only releases.
func (p *Probe) SetBakedSpecularTexture(path string) error {
	img, err := p.swapTexture(&p.bakedSpecularPath, path)
	p.def.BakedSpecularTexture = img
	p.updateVisuals()
	return err
}

func (p *Probe) swapTexture(cur *string, path string) (*dds.Image, error) {
	if *cur != "" {
		p.world.Textures.Release(*cur)
		*cur = ""
	}
	if path == "" {
		return nil, nil
	}
	img, err := p.world.Textures.Get(path)
	if err != nil {
		Logger().Warn("probe texture unavailable", "path", path, "error", err)
		return nil, err
	}
	*cur = path
	return img, nil
}

// Purge releases the proxy sphere mesh and material and removes the
// sphere from the world. It is safe to call more than once.
func (p *Probe) Purge() {
	if p.sphereMesh != "" {
		p.world.Meshes.Release(p.sphereMesh)
		p.sphereMesh = ""
	}
	p.sphereDef.Mesh = nil
	if p.sphereMtl != "" {
		p.world.Materials.Release(p.sphereMtl)
		p.sphereMtl = ""
	}
	p.sphereDef.Material = nil
	if p.sphereHandle != InvalidHandle {
		p.world.RemoveRenderObject(p.sphereHandle)
		p.sphereHandle = InvalidHandle
	}
}

// Destroy purges the probe, releases its baked textures, unregisters the
// render probe and stops following the transform. The probe must not be
// used afterwards.
func (p *Probe) Destroy() {
	p.Purge()
	p.detach()
	p.swapTexture(&p.bakedDiffusePath, "")
	p.swapTexture(&p.bakedSpecularPath, "")
	p.def.BakedDiffuseTexture = nil
	p.def.BakedSpecularTexture = nil
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	p.initialized = false
	p.active = false
}
