package probe

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/taigrr/occlude/pkg/dds"
	"github.com/taigrr/occlude/pkg/math3d"
	"github.com/taigrr/occlude/pkg/scene"
)

const tol = 1e-9

func vecNear(a, b math3d.Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

// constRenderer fills every face with one colour and records the faces.
type constRenderer struct {
	color math3d.Vec4
	faces []Face
	err   error
}

func (r *constRenderer) RenderFace(p *EnvProbe, f Face) ([]math3d.Vec4, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.faces = append(r.faces, f)
	texels := make([]math3d.Vec4, p.Size()*p.Size())
	for i := range texels {
		texels[i] = r.color
	}
	return texels, nil
}

func newTestProbe(t *testing.T) (*World, *Transform, *Probe) {
	t.Helper()
	w := NewWorld()
	tr := NewTransform(math3d.V3(1, 2, 3))
	p := New(w, tr)
	p.SetResolution(Resolution16)
	return w, tr, p
}

func originEnclosed(s State) bool {
	for i := range 3 {
		o, size := s.BoxOffset.At(i), s.BoxSize.At(i)
		// The origin is the zero of the box frame.
		if 0 < o-size || 0 > o+size {
			return false
		}
	}
	return true
}

func TestBoxInvariant(t *testing.T) {
	tests := []struct {
		name     string
		apply    func(p *Probe)
		wantSize math3d.Vec3
		wantOff  math3d.Vec3
	}{
		{
			name:     "offset past the size grows the size",
			apply:    func(p *Probe) { p.SetBoxOffset(math3d.V3(15, 0, 0)) },
			wantSize: math3d.V3(15, 10, 10),
			wantOff:  math3d.V3(15, 0, 0),
		},
		{
			name:     "negative offset grows the size",
			apply:    func(p *Probe) { p.SetBoxOffset(math3d.V3(0, -12, 3)) },
			wantSize: math3d.V3(10, 12, 10),
			wantOff:  math3d.V3(0, -12, 3),
		},
		{
			name: "shrinking the size pulls the offset in",
			apply: func(p *Probe) {
				p.SetBoxOffset(math3d.V3(5, -5, 1))
				p.SetBoxSize(math3d.V3(2, 2, 2))
			},
			wantSize: math3d.V3(2, 2, 2),
			wantOff:  math3d.V3(2, -2, 1),
		},
		{
			name:     "negative size is zero",
			apply:    func(p *Probe) { p.SetBoxSize(math3d.V3(-1, 4, 4)) },
			wantSize: math3d.V3(0, 4, 4),
			wantOff:  math3d.V3(0, 0, 0),
		},
		{
			name:     "offset inside the box is kept",
			apply:    func(p *Probe) { p.SetBoxOffset(math3d.V3(3, 3, -3)) },
			wantSize: math3d.V3(10, 10, 10),
			wantOff:  math3d.V3(3, 3, -3),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, _, p := newTestProbe(t)
			tc.apply(p)
			s := p.State()
			if !originEnclosed(s) {
				t.Fatalf("origin left the box: offset %v size %v", s.BoxOffset, s.BoxSize)
			}
			if !vecNear(s.BoxSize, tc.wantSize, tol) || !vecNear(s.BoxOffset, tc.wantOff, tol) {
				t.Errorf("size %v offset %v, want %v %v", s.BoxSize, s.BoxOffset, tc.wantSize, tc.wantOff)
			}
			// The render probe follows every setter.
			rp := w.EnvProbe(p.Handle())
			if !vecNear(rp.BoxSize(), s.BoxSize, tol) {
				t.Errorf("render probe box size %v, want %v", rp.BoxSize(), s.BoxSize)
			}
			want := math3d.AABBFromCenterExtents(s.Origin.Add(s.BoxOffset), s.BoxSize)
			if got := rp.ProxyAABB(); !vecNear(got.Min, want.Min, tol) || !vecNear(got.Max, want.Max, tol) {
				t.Errorf("proxy AABB %v, want %v", got, want)
			}
			if got := rp.InfluenceAABB(); !vecNear(got.Min, want.Min.Sub(math3d.Splat3(1)), tol) {
				t.Errorf("influence AABB %v not expanded by the blend distance", got)
			}
		})
	}
}

func TestClippingPlanes(t *testing.T) {
	tests := []struct {
		name      string
		apply     func(p *Probe)
		near, far float64
	}{
		{"far below near is raised", func(p *Probe) { p.SetClippingNear(5); p.SetClippingFar(1) }, 5, 5},
		{"near above far pushes far", func(p *Probe) { p.SetClippingNear(800) }, 800, 800},
		{"plain far", func(p *Probe) { p.SetClippingFar(50) }, 0.1, 50},
		{"far equal to near", func(p *Probe) { p.SetClippingFar(0.1) }, 0.1, 0.1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, p := newTestProbe(t)
			tc.apply(p)
			if p.ClippingNear() != tc.near || p.ClippingFar() != tc.far {
				t.Errorf("near %v far %v, want %v %v", p.ClippingNear(), p.ClippingFar(), tc.near, tc.far)
			}
			if p.ClippingNear() > p.ClippingFar() {
				t.Error("near is past far")
			}
		})
	}
}

func TestPurgeIsIdempotent(t *testing.T) {
	w, _, p := newTestProbe(t)
	sphere := p.SphereHandle()
	if w.RenderObject(sphere) == nil {
		t.Fatal("sphere was not registered")
	}
	if refs := w.Meshes.Refs(DefaultSphereMesh); refs != 1 {
		t.Fatalf("sphere mesh refs = %d, want 1", refs)
	}

	p.Purge()
	p.Purge()
	if w.RenderObject(sphere) != nil {
		t.Error("sphere still registered after Purge")
	}
	if w.Meshes.Len() != 0 || w.Materials.Len() != 0 {
		t.Errorf("leaked %d meshes and %d materials", w.Meshes.Len(), w.Materials.Len())
	}
	if p.SphereHandle() != InvalidHandle {
		t.Error("sphere handle not reset")
	}

	p.Destroy()
	p.Destroy()
	if len(w.EnvProbes()) != 0 {
		t.Error("render probe still registered after Destroy")
	}
}

func TestRefreshScheduling(t *testing.T) {
	t.Run("baked never schedules", func(t *testing.T) {
		w, _, p := newTestProbe(t)
		p.Awake()
		p.Update()
		p.DrawGizmos(scene.NewView(scene.NewCamera(8, 8)), true, time.Now())
		if n := len(w.Scheduled()); n != 0 {
			t.Errorf("scheduled %d refreshes", n)
		}
	})

	t.Run("realtime on awake", func(t *testing.T) {
		w, _, p := newTestProbe(t)
		p.SetType(Realtime)
		p.Update()
		if len(w.Scheduled()) != 0 {
			t.Fatal("Update scheduled an on-awake probe")
		}
		p.Awake()
		if got := w.Scheduled(); len(got) != 1 || got[0] != p.Handle() {
			t.Errorf("scheduled %v", got)
		}
	})

	t.Run("realtime every frame", func(t *testing.T) {
		w, _, p := newTestProbe(t)
		p.SetType(Realtime)
		p.SetRefreshMode(EveryFrame)
		p.Update()
		p.Update()
		if n := len(w.Scheduled()); n != 1 {
			t.Errorf("scheduled %d times, want once", n)
		}
		p.SetActive(false)
		if n := len(w.Scheduled()); n != 0 {
			t.Errorf("inactive probe still queued %d times", n)
		}
		p.Update()
		if n := len(w.Scheduled()); n != 0 {
			t.Errorf("inactive probe scheduled %d times", n)
		}
	})

	t.Run("selected gizmo every 3s", func(t *testing.T) {
		w, _, p := newTestProbe(t)
		p.SetType(Realtime)
		p.SetTimeSlicing(NoTimeSlicing)
		view := scene.NewView(scene.NewCamera(8, 8))
		r := &constRenderer{color: math3d.V4(1, 1, 1, 1)}
		start := time.Unix(1000, 0)

		steps := []struct {
			at   time.Duration
			want bool
		}{
			{0, true},
			{time.Second, false},
			{2900 * time.Millisecond, false},
			{3100 * time.Millisecond, true},
			{4 * time.Second, false},
		}
		for _, s := range steps {
			p.DrawGizmos(view, true, start.Add(s.at))
			if got := len(w.Scheduled()) == 1; got != s.want {
				t.Errorf("at %v scheduled = %v, want %v", s.at, got, s.want)
			}
			if err := w.Refresh(r); err != nil {
				t.Fatal(err)
			}
		}
		if len(view.DebugLines) == 0 {
			t.Error("no gizmo drawn")
		}
	})
}

func TestTransformObserver(t *testing.T) {
	w, tr, p := newTestProbe(t)
	dest := math3d.V3(-4, 0, 9)
	tr.SetOrigin(dest)

	if !vecNear(p.State().Origin, dest, tol) {
		t.Errorf("probe origin %v, want %v", p.State().Origin, dest)
	}
	if !vecNear(w.EnvProbe(p.Handle()).Origin(), dest, tol) {
		t.Error("render probe did not follow the transform")
	}
	if !vecNear(w.RenderObject(p.SphereHandle()).Object.Origin, dest, tol) {
		t.Error("sphere did not follow the transform")
	}

	p.Destroy()
	tr.SetOrigin(math3d.V3(100, 100, 100))
	if !vecNear(p.State().Origin, dest, tol) {
		t.Error("destroyed probe still follows the transform")
	}
}

func TestSetActive(t *testing.T) {
	w, _, p := newTestProbe(t)
	p.SetActive(false)
	if p.Handle() != InvalidHandle || p.SphereHandle() != InvalidHandle {
		t.Fatal("inactive probe kept its registrations")
	}
	if len(w.EnvProbes()) != 0 || len(w.RenderObjects()) != 0 {
		t.Fatal("world still holds the inactive probe")
	}

	p.SetImportance(7)
	p.SetActive(true)
	rp := w.EnvProbe(p.Handle())
	if rp == nil || rp.Importance() != 7 {
		t.Fatal("reactivated probe lost its definition")
	}
	e := w.RenderObject(p.SphereHandle())
	if e == nil || e.Layer != EditorLayer || e.Material == nil {
		t.Fatalf("sphere entity = %+v", e)
	}
}

func TestTimeSlicing(t *testing.T) {
	tests := []struct {
		slicing TimeSlicing
		// faces rendered after each Refresh call until done
		faces []int
	}{
		{NoTimeSlicing, []int{6}},
		{AllFacesAtOnce, []int{6, 6}},
		{IndividualFaces, []int{1, 2, 3, 4, 5, 6, 6}},
	}
	for _, tc := range tests {
		w, _, p := newTestProbe(t)
		p.SetType(Realtime)
		p.SetTimeSlicing(tc.slicing)
		p.Awake()
		r := &constRenderer{color: math3d.V4(0.5, 0.5, 0.5, 1)}
		rp := w.EnvProbe(p.Handle())

		for i, want := range tc.faces {
			if err := w.Refresh(r); err != nil {
				t.Fatal(err)
			}
			if len(r.faces) != want {
				t.Errorf("slicing %d call %d: %d faces rendered, want %d", tc.slicing, i, len(r.faces), want)
			}
			last := i == len(tc.faces)-1
			if queued := len(w.Scheduled()) == 1; queued == last {
				t.Errorf("slicing %d call %d: queued = %v", tc.slicing, i, queued)
			}
		}
		if rp.Refreshes() != 1 {
			t.Errorf("slicing %d: %d refreshes", tc.slicing, rp.Refreshes())
		}
		for i, f := range r.faces {
			if f != Face(i) {
				t.Errorf("slicing %d: face %d rendered as %d", tc.slicing, i, f)
			}
		}
	}
}

func TestRefreshErrorKeepsProbeQueued(t *testing.T) {
	w, _, p := newTestProbe(t)
	p.SetType(Realtime)
	p.Awake()
	boom := errors.New("device lost")
	if err := w.Refresh(&constRenderer{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("Refresh error = %v", err)
	}
	if len(w.Scheduled()) != 1 {
		t.Error("failed probe dropped from the queue")
	}
}

func TestConstantEnvironment(t *testing.T) {
	w, _, p := newTestProbe(t)
	c := math3d.V4(0.25, 0.5, 2, 1)
	if err := w.RefreshProbe(p.Handle(), &constRenderer{color: c}); err != nil {
		t.Fatal(err)
	}
	rp := w.EnvProbe(p.Handle())
	spec := rp.SpecularSumCube()
	if rp.SpecularMaxMipLevel() != 4 {
		t.Fatalf("specular max mip level = %d, want 4", rp.SpecularMaxMipLevel())
	}
	for f := range spec.Faces {
		for l, s := range spec.Faces[f] {
			for _, texel := range s.Texels {
				if !vecNear(texel.Vec3(), c.Vec3(), 1e-9) {
					t.Fatalf("face %d level %d texel %v, want %v", f, l, texel, c)
				}
			}
		}
	}
	// The cosine weighted average of a constant is the constant.
	for f, face := range rp.DiffuseSumCube().Faces {
		for _, texel := range face[0].Texels {
			if !vecNear(texel.Vec3(), c.Vec3(), 1e-6) {
				t.Fatalf("diffuse face %d texel %v, want %v", f, texel, c)
			}
		}
	}
	// The proxy sphere shows the new cube.
	e := w.RenderObject(p.SphereHandle())
	if got := e.Material.Shade(math3d.V2(0.3, 0.6)); !vecNear(got.Vec3(), c.Vec3(), 1e-9) {
		t.Errorf("sphere shades %v, want %v", got, c)
	}
}

func TestCubeFaceCoords(t *testing.T) {
	for f := range Face(dds.CubeFaces) {
		for _, uv := range [][2]float64{{0.5, 0.5}, {0.1, 0.2}, {0.9, 0.7}} {
			d := FaceDirection(f, uv[0], uv[1])
			gf, u, v := faceCoords(d.Scale(3))
			if gf != f || math.Abs(u-uv[0]) > tol || math.Abs(v-uv[1]) > tol {
				t.Errorf("face %d uv %v: got face %d uv (%v, %v)", f, uv, gf, u, v)
			}
		}
	}
}

func TestFaceRotationMatchesCamera(t *testing.T) {
	for f := range Face(dds.CubeFaces) {
		cam := scene.NewCamera(16, 16)
		pitch, yaw := FaceRotation(f)
		cam.SetRotation(pitch, yaw, 0)
		b := faceBases[f]
		if !vecNear(cam.Forward(), b.forward, 1e-9) || !vecNear(cam.Right(), b.right, 1e-9) || !vecNear(cam.Up(), b.up, 1e-9) {
			t.Errorf("face %d: camera basis %v %v %v, want %v %v %v",
				f, cam.Right(), cam.Up(), cam.Forward(), b.right, b.up, b.forward)
		}

		// The texel at the top-left of the face projects there.
		cam.SetFOV(math.Pi / 2)
		cam.SetPosition(math3d.Vec3{})
		x, y, _, ok := cam.WorldToScreen(FaceDirection(f, 0.25, 0.25))
		if !ok || math.Abs(x-4) > 1e-6 || math.Abs(y-4) > 1e-6 {
			t.Errorf("face %d: quarter texel at (%v, %v), want (4, 4)", f, x, y)
		}
	}
}

func TestBake(t *testing.T) {
	w, _, p := newTestProbe(t)
	if err := w.RefreshProbe(p.Handle(), &constRenderer{color: math3d.V4(1, 0.5, 0.25, 1)}); err != nil {
		t.Fatal(err)
	}
	mapName := filepath.Join(t.TempDir(), "maps", "harbor.map")
	diffuse, specular, err := p.Bake(mapName)
	if err != nil {
		t.Fatal(err)
	}
	wantDir := filepath.Join(filepath.Dir(mapName), "harbor")
	if diffuse != filepath.Join(wantDir, "DiffuseProbe-0.dds") || specular != filepath.Join(wantDir, "SpecularProbe-0.dds") {
		t.Errorf("paths %q %q", diffuse, specular)
	}

	tests := []struct {
		path   string
		levels int
		size   int
	}{
		{diffuse, 1, diffuseSize},
		{specular, 5, 16},
	}
	for _, tc := range tests {
		img, format, err := dds.ReadFile(tc.path)
		if err != nil {
			t.Fatal(err)
		}
		if format != dds.FormatR11G11B10F || !img.Cube || img.Levels() != tc.levels || img.Width != tc.size {
			t.Errorf("%s: format %v cube %v levels %d width %d", filepath.Base(tc.path), format, img.Cube, img.Levels(), img.Width)
		}
	}

	// Baked textures are shared through the world and released on swap.
	if err := p.SetBakedSpecularTexture(specular); err != nil {
		t.Fatal(err)
	}
	if refs := w.Textures.Refs(specular); refs != 1 {
		t.Errorf("baked texture refs = %d, want 1", refs)
	}
	rp := w.EnvProbe(p.Handle())
	if rp.SpecularSumCube() != p.State().BakedSpecularTexture {
		t.Error("baked probe does not use its baked specular cube")
	}
	if err := p.SetBakedSpecularTexture(""); err != nil {
		t.Fatal(err)
	}
	if refs := w.Textures.Refs(specular); refs != 0 {
		t.Errorf("released texture refs = %d", refs)
	}

	if err := p.SetBakedDiffuseTexture(filepath.Join(wantDir, "missing.dds")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing texture error = %v", err)
	}
}

func TestBakeLDR(t *testing.T) {
	w, _, p := newTestProbe(t)
	p.SetHDR(false)
	if err := w.RefreshProbe(p.Handle(), &constRenderer{color: math3d.V4(1, 1, 1, 1)}); err != nil {
		t.Fatal(err)
	}
	_, specular, err := p.Bake(filepath.Join(t.TempDir(), "room"))
	if err != nil {
		t.Fatal(err)
	}
	if _, format, err := dds.ReadFile(specular); err != nil || format != dds.FormatRGBA8 {
		t.Errorf("format %v err %v, want RGBA8", format, err)
	}
}

func TestManager(t *testing.T) {
	loads, frees := 0, 0
	m := NewManager(func(name string) (string, error) {
		loads++
		if name == "bad" {
			return "", errors.New("no such resource")
		}
		return "res:" + name, nil
	}, func(string) { frees++ })

	for range 2 {
		if v, err := m.Get("a"); err != nil || v != "res:a" {
			t.Fatalf("Get = %q, %v", v, err)
		}
	}
	if loads != 1 || m.Refs("a") != 2 {
		t.Fatalf("loads %d refs %d", loads, m.Refs("a"))
	}
	if _, err := m.Get("bad"); err == nil {
		t.Error("failed load returned no error")
	}
	m.Release("a")
	if frees != 0 {
		t.Error("freed while referenced")
	}
	m.Release("a")
	m.Release("a")
	if frees != 1 || m.Len() != 0 {
		t.Errorf("frees %d len %d", frees, m.Len())
	}
	if v := m.Put("b", "x"); v != "x" {
		t.Errorf("Put = %q", v)
	}
	if v := m.Put("b", "y"); v != "x" || m.Refs("b") != 2 {
		t.Errorf("second Put = %q refs %d", v, m.Refs("b"))
	}
}

func TestResolutionSize(t *testing.T) {
	tests := []struct {
		r    Resolution
		want int
	}{
		{Resolution16, 16},
		{Resolution128, 128},
		{Resolution2048, 2048},
		{Resolution(99), 2048},
	}
	for _, tc := range tests {
		if got := tc.r.Size(); got != tc.want {
			t.Errorf("Resolution(%d).Size() = %d, want %d", tc.r, got, tc.want)
		}
	}
}
