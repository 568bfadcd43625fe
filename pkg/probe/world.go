package probe

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/taigrr/occlude/pkg/dds"
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/models"
	"github.com/taigrr/occlude/pkg/scene"
)

// Handle identifies a registration in a World. InvalidHandle is never
// returned by an Add.
type Handle int

const InvalidHandle Handle = -1

// diffuseSize is the face size of the irradiance cube map.
const diffuseSize = 16

// Layer tags a render entity for the views that draw it.
type Layer int

const (
	DefaultLayer Layer = iota
	EditorLayer
)

// RenderEntity is a render world object definition: the placement, the
// mesh and material and the visibility limits.
type RenderEntity struct {
	Object   scene.RenderObject
	Mesh     *scene.SubMesh
	Material *scene.Material
	Layer    Layer
	// MaxVisDist culls the entity beyond this distance from the eye. Zero
	// is unlimited.
	MaxVisDist float64
}

// VisibleFrom reports whether the entity is drawn for an eye at eye by a
// view showing the layers in mask.
func (e *RenderEntity) VisibleFrom(eye math3d.Vec3, mask int) bool {
	if mask&(1<<e.Layer) == 0 {
		return false
	}
	return e.MaxVisDist <= 0 || eye.DistanceSq(e.Object.Origin) <= e.MaxVisDist*e.MaxVisDist
}

// EnvProbe is the render side of a probe: a copy of its state, its world
// bounds and the cube maps the renderer reads.
type EnvProbe struct {
	handle Handle
	state  State

	proxyAABB     math3d.AABB
	influenceAABB math3d.AABB

	diffuse  *dds.Image
	specular *dds.Image

	job       *refreshJob
	refreshes int
}

func (p *EnvProbe) Handle() Handle              { return p.handle }
func (p *EnvProbe) State() State                { return p.state }
func (p *EnvProbe) Type() Type                  { return p.state.Type }
func (p *EnvProbe) Origin() math3d.Vec3         { return p.state.Origin }
func (p *EnvProbe) BoxCenter() math3d.Vec3      { return p.state.Origin.Add(p.state.BoxOffset) }
func (p *EnvProbe) BoxSize() math3d.Vec3        { return p.state.BoxSize }
func (p *EnvProbe) UseBoxProjection() bool      { return p.state.UseBoxProjection }
func (p *EnvProbe) Importance() int             { return p.state.Importance }
func (p *EnvProbe) TimeSlicing() TimeSlicing    { return p.state.TimeSlicing }
func (p *EnvProbe) Size() int                   { return p.state.Resolution.Size() }
func (p *EnvProbe) ProxyAABB() math3d.AABB      { return p.proxyAABB }
func (p *EnvProbe) InfluenceAABB() math3d.AABB  { return p.influenceAABB }
func (p *EnvProbe) DiffuseSumCube() *dds.Image  { return p.diffuse }
func (p *EnvProbe) SpecularSumCube() *dds.Image { return p.specular }

// Refreshes returns how many refreshes completed.
func (p *EnvProbe) Refreshes() int { return p.refreshes }

// SpecularMaxMipLevel returns the last mip level of the specular cube.
func (p *EnvProbe) SpecularMaxMipLevel() int { return p.specular.Levels() - 1 }

// Camera returns the camera rendering face f of the probe: at the origin,
// square, 90 degrees wide and cleared the way the probe asks.
func (p *EnvProbe) Camera(f Face) *scene.Camera {
	size := p.Size()
	cam := scene.NewCamera(size, size)
	cam.SetPosition(p.state.Origin)
	pitch, yaw := FaceRotation(f)
	cam.SetRotation(pitch, yaw, 0)
	cam.SetFOV(math.Pi / 2)
	cam.SetClipPlanes(p.state.ClippingNear, p.state.ClippingFar)
	cam.Flags |= scene.SkipDebugDraw | scene.SkipPostProcess
	if p.state.ClearMethod == ColorClear {
		cam.ClearMethod = scene.ClearColor
		cam.ClearColor = p.state.ClearColor
	} else {
		cam.ClearMethod = scene.ClearSkybox
	}
	return cam
}

// update copies s and reallocates the cube maps when their size changes.
func (p *EnvProbe) update(s *State) {
	resized := p.specular == nil || p.state.Resolution != s.Resolution
	p.state = *s
	p.proxyAABB = s.BoxAABB()
	p.influenceAABB = p.proxyAABB.Expanded(s.BlendDistance)

	if resized {
		size := p.Size()
		p.specular = dds.NewImage(size, size, math3d.Log2Floor(size)+1, true)
		p.diffuse = dds.NewImage(diffuseSize, diffuseSize, 1, true)
		p.job = nil
	}
	if s.Type == Baked {
		if s.BakedSpecularTexture != nil {
			p.specular = s.BakedSpecularTexture
		}
		if s.BakedDiffuseTexture != nil {
			p.diffuse = s.BakedDiffuseTexture
		}
	}
}

// FaceRenderer draws the scene around a probe into one cube face. The
// result holds Size()*Size() texels, row by row from the top.
type FaceRenderer interface {
	RenderFace(p *EnvProbe, f Face) ([]math3d.Vec4, error)
}

// refreshJob is a refresh in progress.
type refreshJob struct {
	faces    [dds.CubeFaces][]math3d.Vec4
	rendered int
}

// World is the render world of a scene: the registered probes, the render
// entities and the probes waiting for a refresh.
type World struct {
	probes     map[Handle]*EnvProbe
	entities   map[Handle]*RenderEntity
	nextProbe  Handle
	nextEntity Handle
	scheduled  []Handle

	Meshes    *Manager[*scene.SubMesh]
	Materials *Manager[*scene.Material]
	Textures  *Manager[*dds.Image]
}

// DefaultSphereMesh is the name of the unit sphere in World.Meshes.
const DefaultSphereMesh = "_defaultSphereMesh"

// NewWorld returns an empty world. Textures are loaded from DDS files by
// path.
func NewWorld() *World {
	return &World{
		probes:   make(map[Handle]*EnvProbe),
		entities: make(map[Handle]*RenderEntity),
		Meshes: NewManager(func(name string) (*scene.SubMesh, error) {
			if name != DefaultSphereMesh {
				return nil, fmt.Errorf("no mesh %q", name)
			}
			return scene.NewSubMesh(scene.TriangleList(models.NewSphere(name, 0.5, 16, 16))), nil
		}, nil),
		Materials: NewManager[*scene.Material](nil, nil),
		Textures: NewManager(func(path string) (*dds.Image, error) {
			img, _, err := dds.ReadFile(path)
			return img, err
		}, nil),
	}
}

// AddEnvProbe registers a probe with state s.
func (w *World) AddEnvProbe(s *State) Handle {
	h := w.nextProbe
	w.nextProbe++
	p := &EnvProbe{handle: h}
	p.update(s)
	w.probes[h] = p
	Logger().Debug("added env probe", "handle", h, "type", s.Type, "size", p.Size())
	return h
}

// UpdateEnvProbe replaces the state of a registered probe.
func (w *World) UpdateEnvProbe(h Handle, s *State) {
	if p, ok := w.probes[h]; ok {
		p.update(s)
	}
}

// RemoveEnvProbe unregisters a probe and drops any pending refresh.
func (w *World) RemoveEnvProbe(h Handle) {
	delete(w.probes, h)
	w.scheduled = slices.DeleteFunc(w.scheduled, func(x Handle) bool { return x == h })
}

// EnvProbe returns the registered probe h or nil.
func (w *World) EnvProbe(h Handle) *EnvProbe {
	return w.probes[h]
}

// EnvProbes returns the registered probes in handle order.
func (w *World) EnvProbes() []*EnvProbe {
	handles := slices.Sorted(maps.Keys(w.probes))
	out := make([]*EnvProbe, len(handles))
	for i, h := range handles {
		out[i] = w.probes[h]
	}
	return out
}

// AddRenderObject registers a copy of def.
func (w *World) AddRenderObject(def *RenderEntity) Handle {
	h := w.nextEntity
	w.nextEntity++
	e := *def
	w.entities[h] = &e
	return h
}

// UpdateRenderObject replaces the definition of a registered entity.
func (w *World) UpdateRenderObject(h Handle, def *RenderEntity) {
	if e, ok := w.entities[h]; ok {
		*e = *def
	}
}

// RemoveRenderObject unregisters an entity. Unknown handles are ignored.
func (w *World) RemoveRenderObject(h Handle) {
	delete(w.entities, h)
}

// RenderObject returns the registered entity h or nil.
func (w *World) RenderObject(h Handle) *RenderEntity {
	return w.entities[h]
}

// RenderObjects returns the registered entities in handle order.
func (w *World) RenderObjects() []*RenderEntity {
	handles := slices.Sorted(maps.Keys(w.entities))
	out := make([]*RenderEntity, len(handles))
	for i, h := range handles {
		out[i] = w.entities[h]
	}
	return out
}

// ScheduleRefresh queues probe h for the next Refresh. A probe is queued
// at most once.
func (w *World) ScheduleRefresh(h Handle) {
	if _, ok := w.probes[h]; !ok || slices.Contains(w.scheduled, h) {
		return
	}
	w.scheduled = append(w.scheduled, h)
}

// Scheduled returns the queued probes in order.
func (w *World) Scheduled() []Handle {
	return slices.Clone(w.scheduled)
}

// Refresh advances every queued probe by one step of its time slicing and
// removes the probes that finished. It stops at the first render error;
// that probe stays queued.
func (w *World) Refresh(r FaceRenderer) error {
	var remaining []Handle
	for i, h := range w.scheduled {
		p := w.probes[h]
		done, err := p.step(r)
		if err != nil {
			w.scheduled = append(remaining, w.scheduled[i:]...)
			return fmt.Errorf("refresh probe %d: %w", h, err)
		}
		if !done {
			remaining = append(remaining, h)
		}
	}
	w.scheduled = remaining
	return nil
}

// RefreshProbe renders and convolves probe h in one go, whatever its time
// slicing. Distinct probes may be refreshed concurrently as long as the
// world is not modified meanwhile.
func (w *World) RefreshProbe(h Handle, r FaceRenderer) error {
	p := w.probes[h]
	if p == nil {
		return fmt.Errorf("no env probe %d", h)
	}
	p.job = &refreshJob{}
	if err := p.renderFaces(r, dds.CubeFaces); err != nil {
		return fmt.Errorf("refresh probe %d: %w", h, err)
	}
	p.finish()
	return nil
}

// step runs one time slice and reports whether the refresh completed.
func (p *EnvProbe) step(r FaceRenderer) (bool, error) {
	if p.job == nil {
		p.job = &refreshJob{}
	}
	switch p.state.TimeSlicing {
	case NoTimeSlicing:
		if err := p.renderFaces(r, dds.CubeFaces); err != nil {
			return false, err
		}
	case IndividualFaces:
		if p.job.rendered < dds.CubeFaces {
			return false, p.renderFaces(r, 1)
		}
	default:
		if p.job.rendered < dds.CubeFaces {
			return false, p.renderFaces(r, dds.CubeFaces)
		}
	}
	p.finish()
	return true, nil
}

// renderFaces renders up to n of the faces still missing.
func (p *EnvProbe) renderFaces(r FaceRenderer, n int) error {
	size := p.Size()
	for ; n > 0 && p.job.rendered < dds.CubeFaces; n-- {
		f := Face(p.job.rendered)
		texels, err := r.RenderFace(p, f)
		if err != nil {
			return fmt.Errorf("face %d: %w", f, err)
		}
		if len(texels) != size*size {
			return fmt.Errorf("face %d: got %d texels, want %d", f, len(texels), size*size)
		}
		p.job.faces[f] = texels
		p.job.rendered++
	}
	return nil
}

// finish turns the rendered faces into the specular and diffuse sums.
func (p *EnvProbe) finish() {
	size := p.Size()
	spec := dds.NewImage(size, size, math3d.Log2Floor(size)+1, true)
	for f := range spec.Faces {
		copy(spec.Faces[f][0].Texels, p.job.faces[f])
	}
	GenerateMips(spec)
	p.specular = spec
	p.diffuse = Irradiance(spec, diffuseSize)
	p.job = nil
	p.refreshes++
	Logger().Debug("refreshed env probe", "handle", p.handle, "size", size, "refreshes", p.refreshes)
}
