package renderer

import (
	"fmt"

	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
)

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// The camera used for generating primary rays.
	Camera scene.Camera

	// Radiance estimation mode.
	Mode integrator.Mode

	// Direction towards the key light and its color.
	LightDir   types.Vec3
	LightColor types.Vec3

	// Extinction scale and phase function anisotropy.
	Alpha float32
	G     float32

	// Max scattering events (PT) or scattering octaves (RPNN/MRPNN).
	MultiScatter int

	// Number of samples per traced pixel and frame.
	SamplesPerPixel uint32

	// Seed for the per-pixel random streams.
	Seed uint64

	// Merge each frame with the estimate of the previous frames.
	LastPredict bool

	// Number of tracers to split the frame between. Each tracer uses
	// TracerWorkers goroutines; non-positive values select GOMAXPROCS.
	NumTracers    int
	TracerWorkers int

	// Post-processing.
	ToneType ToneType
	Denoise  bool
}

// Get the default render options for a frame with the given dimensions.
func DefaultOptions(frameW, frameH uint32) Options {
	params := integrator.DefaultParams()
	return Options{
		FrameW:          frameW,
		FrameH:          frameH,
		Camera:          scene.NewOrbitCamera(0, 0, 2, 45, float32(frameW)/float32(max(frameH, 1))),
		Mode:            params.Mode,
		LightDir:        params.LightDir,
		LightColor:      params.LightColor,
		Alpha:           params.Alpha,
		G:               params.G,
		MultiScatter:    params.MultiScatter,
		SamplesPerPixel: 1,
		NumTracers:      1,
		ToneType:        ToneACES,
	}
}

// Get the estimator parameters.
func (opts Options) Params() integrator.Params {
	return integrator.Params{
		Mode:         opts.Mode,
		LightDir:     opts.LightDir,
		LightColor:   opts.LightColor,
		Alpha:        opts.Alpha,
		G:            opts.G,
		MultiScatter: opts.MultiScatter,
	}
}

// Validate the options.
func (opts Options) Validate() error {
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return fmt.Errorf("renderer: invalid frame dimensions %dx%d", opts.FrameW, opts.FrameH)
	}
	if opts.SamplesPerPixel == 0 {
		return fmt.Errorf("renderer: samples per pixel must be positive")
	}
	return opts.Params().Validate()
}
