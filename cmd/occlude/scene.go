package main

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/models"
	"github.com/taigrr/occlude/pkg/probe"
	"github.com/taigrr/occlude/pkg/render"
	"github.com/taigrr/occlude/pkg/scene"
)

// sceneOptions choose what the demo scene contains.
type sceneOptions struct {
	model      string
	texture    string
	lights     int
	probes     int
	resolution int
	gizmos     bool
}

func defaultSceneOptions() sceneOptions {
	return sceneOptions{
		lights:     3,
		probes:     1,
		resolution: int(probe.Resolution32),
	}
}

// sceneTarget is where the orbit camera looks.
var sceneTarget = math3d.V3(0, 0.5, 0)

var lightColors = []math3d.Vec4{
	math3d.V4(1, 0.4, 0.3, 1),
	math3d.V4(0.3, 1, 0.4, 1),
	math3d.V4(0.3, 0.5, 1, 1),
	math3d.V4(1, 0.9, 0.4, 1),
}

// orbitLight is a point light circling the scene center.
type orbitLight struct {
	light  *scene.RenderLight
	radius float64
	height float64
	speed  float64
	phase  float64
}

// at returns a copy of the light placed for scene time t.
func (o *orbitLight) at(t float64) *scene.RenderLight {
	l := *o.light
	a := o.phase + o.speed*t
	l.Origin = math3d.V3(math.Cos(a)*o.radius, o.height, math.Sin(a)*o.radius)
	return &l
}

// demoScene is a floor, an occluding wall with a model hidden behind it,
// a few props in front, orbiting lights and env probes, all registered in
// a probe.World.
type demoScene struct {
	world   *probe.World
	probes  []*probe.Probe
	primary *scene.RenderLight
	lights  []*orbitLight

	name      string
	triangles int
	// selected is the probe whose gizmo is drawn, or nil.
	selected *probe.Probe
}

func newDemoScene(opts sceneOptions) (*demoScene, error) {
	s := &demoScene{world: probe.NewWorld(), name: "demo"}

	grey := s.material("floor", math3d.V4(0.6, 0.6, 0.6, 1))
	grey.Texture = render.NewCheckerTexture(64, 64, 8,
		color.RGBA{200, 200, 200, 255}, color.RGBA{120, 120, 120, 255})
	s.addBox("floor", math3d.V3(0, -1.25, 0), math3d.V3(12, 0.25, 12), grey)
	s.addBox("wall", math3d.V3(0, 0.75, 0), math3d.V3(4, 2, 0.25), s.material("wall", math3d.V4(0.7, 0.5, 0.4, 1)))

	pillar := s.material("pillar", math3d.V4(0.5, 0.5, 0.7, 1))
	for i, x := range []float64{-2.5, 2.5} {
		s.addBox(fmt.Sprintf("pillar%d", i), math3d.V3(x, 0, -2.5), math3d.V3(0.4, 1, 0.4), pillar)
	}

	glass := s.material("glass", math3d.V4(0.6, 0.8, 1, 0.5))
	glass.Sort = scene.SortUnlit
	glass.Occluder = false
	ball := s.mesh("ball", models.NewSphere("ball", 0.75, 12, 16))
	s.addEntity("glass ball", math3d.V3(-3, -0.25, 3), ball, glass)
	s.addEntity("ball", math3d.V3(3, -0.25, 3), ball, s.material("ball", math3d.V4(0.9, 0.9, 0.9, 1)))

	if err := s.addModel(opts, math3d.V3(0, 0, -4)); err != nil {
		return nil, err
	}

	s.primary = scene.NewPointLight(0, math3d.V3(4, 8, 6), 40, s.material("sun", math3d.V4(1, 1, 0.95, 1)))
	s.primary.Name = "sun"
	for i := range opts.lights {
		c := lightColors[i%len(lightColors)]
		l := scene.NewPointLight(i+1, math3d.Vec3{}, 4, s.material(fmt.Sprintf("light%d", i), c))
		l.Name = fmt.Sprintf("light%d", i)
		s.lights = append(s.lights, &orbitLight{
			light:  l,
			radius: 5,
			height: 0.5 + 0.5*float64(i%3),
			speed:  0.6 + 0.15*float64(i),
			phase:  2 * math.Pi * float64(i) / float64(max(opts.lights, 1)),
		})
	}

	for i := range opts.probes {
		x := float64(i*4) - float64(opts.probes-1)*2
		p := probe.New(s.world, probe.NewTransform(math3d.V3(x, 0.5, 3)))
		p.SetType(probe.Realtime)
		p.SetResolution(probe.Resolution(opts.resolution))
		p.SetTimeSlicing(probe.IndividualFaces)
		p.SetBoxSize(math3d.V3(3, 2, 3))
		p.SetClearMethod(probe.ColorClear)
		p.SetClearColor(math3d.V3(0.12, 0.12, 0.16))
		p.Awake()
		s.probes = append(s.probes, p)
	}
	return s, nil
}

// material registers a named material with the world.
func (s *demoScene) material(name string, c math3d.Vec4) *scene.Material {
	return s.world.Materials.Put(name, scene.NewMaterial(name, c))
}

// mesh registers a model as a single sub mesh.
func (s *demoScene) mesh(name string, m *models.Mesh) *scene.SubMesh {
	s.triangles += m.TriangleCount()
	return s.world.Meshes.Put(name, scene.NewSubMesh(scene.TriangleList(m)))
}

func (s *demoScene) addBox(name string, origin, half math3d.Vec3, mtl *scene.Material) {
	s.addEntity(name, origin, s.mesh(name, models.NewBox(name, half)), mtl)
}

func (s *demoScene) addEntity(name string, origin math3d.Vec3, sub *scene.SubMesh, mtl *scene.Material) probe.Handle {
	obj := scene.NewRenderObject(name, origin)
	obj.LocalAABB = sub.AABB
	return s.world.AddRenderObject(&probe.RenderEntity{
		Object:   *obj,
		Mesh:     sub,
		Material: mtl,
		Layer:    probe.DefaultLayer,
	})
}

// addModel places the model behind the wall, scaled to two units and
// culled as one unit. Without a model a sphere stands in.
func (s *demoScene) addModel(opts sceneOptions, origin math3d.Vec3) error {
	if opts.model == "" {
		sphere := s.mesh("sphere", models.NewSphere("sphere", 1, 16, 24))
		s.addEntity("sphere", origin, sphere, s.material("sphere", math3d.V4(0.9, 0.3, 0.3, 1)))
		return nil
	}

	ext := strings.ToLower(filepath.Ext(opts.model))
	if ext != ".glb" && ext != ".gltf" {
		return fmt.Errorf("unsupported format: %s (use .glb or .gltf)", ext)
	}
	mesh, embedded, err := models.LoadGLBWithTexture(opts.model)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	var tex scene.Sampler
	switch {
	case opts.texture != "":
		t, err := render.LoadTexture(opts.texture)
		if err != nil {
			return fmt.Errorf("load texture: %w", err)
		}
		tex = t
	case embedded != nil:
		tex = render.TextureFromImage(embedded)
	default:
		tex = render.NewCheckerTexture(64, 64, 8, color.RGBA{200, 200, 200, 255}, color.RGBA{100, 100, 100, 255})
	}

	mesh.CalculateBounds()
	center := mesh.Center()
	size := mesh.Size()
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	if maxDim > 0 {
		scale := 2.0 / maxDim
		mesh.Transform(math3d.Scale(math3d.Splat3(scale)).Mul(math3d.Translate(center.Scale(-1))))
	}
	mesh.CalculateBounds()

	s.name = filepath.Base(opts.model)
	s.triangles += mesh.TriangleCount()
	obj := scene.NewRenderObject(s.name, origin)
	obj.Skinned = true
	obj.LocalAABB = math3d.AABB{Min: mesh.BoundsMin, Max: mesh.BoundsMax}

	for _, part := range scene.MeshSurfaces(mesh) {
		name := fmt.Sprintf("%s/%d", s.name, part.Material)
		var mtl *scene.Material
		if m := mesh.GetMaterial(part.Material); m != nil {
			partTex := tex
			if m.BaseMap != nil {
				partTex = render.TextureFromImage(m.BaseMap)
			}
			mtl = scene.MaterialFromModel(m, partTex)
		} else {
			mtl = scene.NewMaterial(name, math3d.V4(1, 1, 1, 1))
			mtl.Texture = tex
		}
		s.world.AddRenderObject(&probe.RenderEntity{
			Object:   *obj,
			Mesh:     s.world.Meshes.Put(name, part.SubMesh),
			Material: s.world.Materials.Put(name, mtl),
			Layer:    probe.DefaultLayer,
		})
	}
	return nil
}

// layerMask returns the layers drawn by the main view.
func (s *demoScene) layerMask(gizmos bool) int {
	mask := 1 << probe.DefaultLayer
	if gizmos {
		mask |= 1 << probe.EditorLayer
	}
	return mask
}

// view builds the view of cam at scene time t: every entity visible from
// the camera in mask, the primary light and the orbiting lights. Entities
// sharing a skinned object share one transform space. The selection id of
// an entity is its index in RenderObjects plus one.
func (s *demoScene) view(cam *scene.Camera, mask int, t float64) *scene.View {
	v := scene.NewView(cam)
	var (
		space    *scene.VisObject
		lastName string
	)
	for i, e := range s.world.RenderObjects() {
		if e.Mesh == nil || e.Material == nil || !e.VisibleFrom(cam.Position, mask) {
			continue
		}
		if space == nil || !e.Object.Skinned || e.Object.Name != lastName {
			obj := e.Object
			obj.SelectionID = uint32(i + 1)
			space = v.AddObject(&obj)
			lastName = obj.Name
		}
		v.AddSurface(space, e.Mesh, e.Material)
	}

	v.SetPrimaryLight(s.primary)
	for _, o := range s.lights {
		v.AddLight(o.at(t))
	}
	v.Finish()
	return v
}

// probeAt returns the probe whose proxy sphere has selection id id.
func (s *demoScene) probeAt(id uint32) *probe.Probe {
	if id == 0 {
		return nil
	}
	entities := s.world.RenderObjects()
	if int(id) > len(entities) {
		return nil
	}
	picked := entities[id-1]
	for _, p := range s.probes {
		if s.world.RenderObject(p.SphereHandle()) == picked {
			return p
		}
	}
	return nil
}

// orbitCamera returns a w x h camera at distance dist from sceneTarget,
// turned by yaw around it and raised by pitch.
func orbitCamera(w, h int, yaw, pitch, dist float64) *scene.Camera {
	cam := scene.NewCamera(w, h)
	cam.SetClipPlanes(0.1, 200)
	cam.ClearColor = math3d.V4(0.12, 0.12, 0.16, 1)
	offset := math3d.V3(
		math.Sin(yaw)*math.Cos(pitch),
		math.Sin(pitch),
		math.Cos(yaw)*math.Cos(pitch),
	).Scale(dist)
	cam.SetPosition(sceneTarget.Add(offset))
	cam.LookAt(sceneTarget)
	return cam
}
