package scene

import "github.com/achilleasa/nimbus/types"

// Per-volume render settings. They are captured by every snapshot so a render
// observes a consistent set of values.
type Settings struct {
	// Render alternate pixels on alternate frames.
	Checkerboard bool

	// Scale applied to environment radiance.
	EnvExposure float32

	// Scale applied to the extinction coefficient.
	TrScale float32

	// Single scattering albedo per channel.
	ScatterRate types.Vec3

	// Exposure used when tone-mapping.
	Exposure float32

	// Index of refraction of the volume boundary. A value of 1 disables
	// the boundary Fresnel term.
	SurfaceIOR float32
}

// Get the default settings.
func DefaultSettings() Settings {
	return Settings{
		Checkerboard: true,
		EnvExposure:  1,
		TrScale:      1,
		ScatterRate:  types.Vec3{1, 1, 1},
		Exposure:     1,
		SurfaceIOR:   1,
	}
}
