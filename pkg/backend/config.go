package backend

// Config toggles the passes and features of the back end. Every pass can
// be switched off on its own.
type Config struct {
	// Hierarchical occlusion culling.
	HOM       bool
	HOMDebug  bool
	HOMWidth  int
	HOMHeight int
	// HOMOutputWidth and HOMOutputHeight size the occludee result target.
	// Occludees beyond its capacity are kept visible.
	HOMOutputWidth  int
	HOMOutputHeight int

	UseDepthPrePass      bool
	SkipBasePass         bool
	SkipShadowAndLitPass bool
	SkipBlendPass        bool
	SkipFinalPass        bool

	UsePostProcessing bool
	// MotionBlur is a bit mask. Bit 2 enables the velocity pass.
	MotionBlur int

	ShowTris bool

	// Light visibility through stencil volumes and occlusion queries.
	LightOcclusionQueries bool
	QueryWaitFrames       int
	UseLightScissors      bool
	LightVolumeZFail      bool
	ShowLights            bool

	// ShowRenderTarget draws the colour of the Nth render target of the
	// context in a corner. Zero disables it.
	ShowRenderTarget           int
	ShowRenderTargetFullscreen bool
	ShowCounters               bool

	// Gamma builds the device gamma ramp. Screenshots apply the ramp when
	// it is not 1.
	Gamma float64
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		HOMWidth:              256,
		HOMHeight:             128,
		HOMOutputWidth:        4096,
		HOMOutputHeight:       1,
		UseDepthPrePass:       true,
		UsePostProcessing:     true,
		LightOcclusionQueries: false,
		QueryWaitFrames:       2,
		UseLightScissors:      true,
		Gamma:                 1,
	}
}

// velocityPass reports whether the motion blur mask asks for velocities.
func (c Config) velocityPass() bool {
	return c.MotionBlur&2 != 0
}
