package main

import (
	"github.com/spf13/cobra"

	"github.com/taigrr/occlude/pkg/backend"
)

// bindConfigFlags exposes every back end switch as a persistent flag.
func bindConfigFlags(cmd *cobra.Command, cfg *backend.Config) {
	fs := cmd.PersistentFlags()

	fs.BoolVar(&cfg.HOM, "hom", cfg.HOM, "hierarchical occlusion culling")
	fs.BoolVar(&cfg.HOMDebug, "hom-debug", cfg.HOMDebug, "show the occlusion map levels")
	fs.IntVar(&cfg.HOMWidth, "hom-width", cfg.HOMWidth, "occlusion map width")
	fs.IntVar(&cfg.HOMHeight, "hom-height", cfg.HOMHeight, "occlusion map height")
	fs.IntVar(&cfg.HOMOutputWidth, "hom-output-width", cfg.HOMOutputWidth, "occludee result target width")
	fs.IntVar(&cfg.HOMOutputHeight, "hom-output-height", cfg.HOMOutputHeight, "occludee result target height")

	fs.BoolVar(&cfg.UseDepthPrePass, "depth-prepass", cfg.UseDepthPrePass, "lay down depth before shading")
	fs.BoolVar(&cfg.SkipBasePass, "skip-base", cfg.SkipBasePass, "skip the base pass")
	fs.BoolVar(&cfg.SkipShadowAndLitPass, "skip-lit", cfg.SkipShadowAndLitPass, "skip the additive light passes")
	fs.BoolVar(&cfg.SkipBlendPass, "skip-blend", cfg.SkipBlendPass, "skip the unlit blended pass")
	fs.BoolVar(&cfg.SkipFinalPass, "skip-final", cfg.SkipFinalPass, "skip the final pass")

	fs.BoolVar(&cfg.UsePostProcessing, "postprocess", cfg.UsePostProcessing, "run post processing")
	fs.IntVar(&cfg.MotionBlur, "motion-blur", cfg.MotionBlur, "motion blur mask, bit 2 renders velocities")
	fs.BoolVar(&cfg.ShowTris, "show-tris", cfg.ShowTris, "outline every drawn triangle")

	fs.BoolVar(&cfg.LightOcclusionQueries, "light-queries", cfg.LightOcclusionQueries, "cull lights with stencil volume occlusion queries")
	fs.IntVar(&cfg.QueryWaitFrames, "query-wait", cfg.QueryWaitFrames, "frames to wait for a query result before blocking")
	fs.BoolVar(&cfg.UseLightScissors, "light-scissors", cfg.UseLightScissors, "scissor each light to its projected volume")
	fs.BoolVar(&cfg.LightVolumeZFail, "zfail", cfg.LightVolumeZFail, "mark light volumes with depth fail stencil ops")
	fs.BoolVar(&cfg.ShowLights, "show-lights", cfg.ShowLights, "outline light volumes")

	fs.IntVar(&cfg.ShowRenderTarget, "show-target", cfg.ShowRenderTarget, "show the Nth render target of the context, 0 disables")
	fs.BoolVar(&cfg.ShowRenderTargetFullscreen, "show-target-fullscreen", cfg.ShowRenderTargetFullscreen, "show the render target over the whole screen")
	fs.BoolVar(&cfg.ShowCounters, "counters", cfg.ShowCounters, "draw the frame counters")
	fs.Float64Var(&cfg.Gamma, "gamma", cfg.Gamma, "display gamma")
}

// bindSceneFlags exposes the demo scene settings as persistent flags.
func bindSceneFlags(cmd *cobra.Command, opts *sceneOptions) {
	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.model, "model", opts.model, "glTF/GLB model placed behind the wall")
	fs.StringVar(&opts.texture, "texture", opts.texture, "texture image (PNG/JPG) for the model")
	fs.IntVar(&opts.lights, "lights", opts.lights, "number of orbiting point lights")
	fs.IntVar(&opts.probes, "probes", opts.probes, "number of env probes")
	fs.IntVar(&opts.resolution, "probe-resolution", opts.resolution, "env probe face size index, 0 is 16 texels")
	fs.BoolVar(&opts.gizmos, "gizmos", opts.gizmos, "draw probe spheres and boxes")
}
