// Package probe implements environment probes: the scene entity that owns
// a probe definition, the render world that registers probes and their
// proxy objects, cube map refreshes through a FaceRenderer and baking of
// the diffuse and specular sums to DDS files.
//
// Nothing in this package is safe for concurrent use unless noted.
package probe

import (
	"fmt"

	"github.com/taigrr/occlude/pkg/dds"
	"github.com/taigrr/occlude/pkg/math3d"
)

// Type selects how the probe gets its cube maps.
type Type int

const (
	// Baked probes use cube maps written by Bake and never refresh on
	// their own.
	Baked Type = iota
	// Realtime probes render their cube maps when scheduled.
	Realtime
)

func (t Type) String() string {
	switch t {
	case Baked:
		return "baked"
	case Realtime:
		return "realtime"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// RefreshMode decides when a realtime probe schedules itself.
type RefreshMode int

const (
	OnAwake RefreshMode = iota
	EveryFrame
)

// TimeSlicing decides how a refresh is spread over World.Refresh calls.
type TimeSlicing int

const (
	// AllFacesAtOnce renders the six faces in one call and builds the sums
	// in the next.
	AllFacesAtOnce TimeSlicing = iota
	// IndividualFaces renders one face per call.
	IndividualFaces
	// NoTimeSlicing finishes the refresh in a single call.
	NoTimeSlicing
)

// Resolution is the face size of the specular cube map.
type Resolution int

const (
	Resolution16 Resolution = iota
	Resolution32
	Resolution64
	Resolution128
	Resolution256
	Resolution512
	Resolution1024
	Resolution2048
)

// Size returns the face size in texels.
func (r Resolution) Size() int {
	r = math3d.Clamp(r, Resolution16, Resolution2048)
	return 16 << r
}

// ClearMethod is what a face is cleared to before the scene is drawn.
type ClearMethod int

const (
	ColorClear ClearMethod = iota
	SkyClear
)

// State is the definition of a probe shared between the entity and the
// render world.
type State struct {
	Type        Type
	RefreshMode RefreshMode
	TimeSlicing TimeSlicing

	Resolution   Resolution
	UseHDR       bool
	ClearMethod  ClearMethod
	ClearColor   math3d.Vec4
	ClippingNear float64
	ClippingFar  float64

	Importance int
	LayerMask  int

	// Origin is the cube map center in world space.
	Origin math3d.Vec3
	// BoxOffset moves the box center away from the origin. BoxSize is the
	// half size per axis. The origin always lies inside the box.
	BoxOffset math3d.Vec3
	BoxSize   math3d.Vec3

	BlendDistance    float64
	UseBoxProjection bool

	BakedDiffuseTexture  *dds.Image
	BakedSpecularTexture *dds.Image
}

// DefaultState returns the definition of a new probe.
func DefaultState() State {
	return State{
		Type:          Baked,
		RefreshMode:   OnAwake,
		TimeSlicing:   AllFacesAtOnce,
		Resolution:    Resolution128,
		UseHDR:        true,
		ClearMethod:   SkyClear,
		ClearColor:    math3d.V4(0, 0, 0, 0),
		ClippingNear:  0.1,
		ClippingFar:   500,
		Importance:    1,
		LayerMask:     -1,
		BoxSize:       math3d.Splat3(10),
		BlendDistance: 1,
	}
}

// BoxAABB returns the box projection volume in world space.
func (s *State) BoxAABB() math3d.AABB {
	return math3d.AABBFromCenterExtents(s.Origin.Add(s.BoxOffset), s.BoxSize)
}
