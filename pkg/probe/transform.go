package probe

import (
	"slices"

	"github.com/taigrr/occlude/pkg/math3d"
)

// TransformObserver is notified after a transform changes. Notification is
// synchronous on the goroutine that changed the transform.
type TransformObserver interface {
	TransformUpdated(t *Transform)
}

// Transform is the placement of a scene entity.
type Transform struct {
	origin    math3d.Vec3
	axis      math3d.Mat3
	observers []TransformObserver
}

// NewTransform returns an unrotated transform at origin.
func NewTransform(origin math3d.Vec3) *Transform {
	return &Transform{origin: origin, axis: math3d.Identity3()}
}

func (t *Transform) Origin() math3d.Vec3 { return t.origin }
func (t *Transform) Axis() math3d.Mat3   { return t.axis }

// SetOrigin moves the transform and notifies the observers.
func (t *Transform) SetOrigin(origin math3d.Vec3) {
	t.origin = origin
	t.notify()
}

// SetAxis rotates the transform and notifies the observers.
func (t *Transform) SetAxis(axis math3d.Mat3) {
	t.axis = axis
	t.notify()
}

// Subscribe registers o once. The returned function removes it again.
func (t *Transform) Subscribe(o TransformObserver) (unsubscribe func()) {
	if !slices.Contains(t.observers, o) {
		t.observers = append(t.observers, o)
	}
	return func() {
		t.observers = slices.DeleteFunc(t.observers, func(x TransformObserver) bool { return x == o })
	}
}

func (t *Transform) notify() {
	// Observers may unsubscribe while being notified.
	for _, o := range slices.Clone(t.observers) {
		o.TransformUpdated(t)
	}
}
