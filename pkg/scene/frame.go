package scene

// Frame owns the views referenced by one command stream. Draw camera
// commands carry an index into it. A frame is reset once its stream has
// executed, so no view outlives the frame it was built for.
type Frame struct {
	views []*View
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{}
}

// AddView appends v and returns its index.
func (f *Frame) AddView(v *View) int {
	f.views = append(f.views, v)
	return len(f.views) - 1
}

// View returns the view at index i.
func (f *Frame) View(i int) (*View, bool) {
	if i < 0 || i >= len(f.views) {
		return nil, false
	}
	return f.views[i], true
}

// Len returns the number of views.
func (f *Frame) Len() int { return len(f.views) }

// Reset drops every view, keeping the backing array for the next frame.
func (f *Frame) Reset() {
	clear(f.views)
	f.views = f.views[:0]
}
