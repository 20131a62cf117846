package scene

import (
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

// An immutable view of a scene's derived structures. Samplers hold on to a
// snapshot for the duration of a render; concurrent updates publish a new
// snapshot instead of modifying this one.
type Snapshot struct {
	Density       *volume.DensityField
	Transmittance *volume.TransmittanceField
	Phase         *volume.PhaseLUT
	Environment   *volume.Environment
	Settings      Settings

	// Generation counters of the captured structures. They increase each
	// time the matching structure is rebuilt.
	DensityGen       uint64
	TransmittanceGen uint64
	PhaseGen         uint64
}

// Verify that the captured transmittance field was built for the given light
// direction and extinction scale (before TrScale is applied).
func (s *Snapshot) CheckTransmittance(lightDir types.Vec3, alpha float32) error {
	if s.Transmittance == nil {
		return ErrNotReady
	}
	want := volume.TransmittanceParams{
		LightDir: lightDir.Normalize(),
		Alpha:    alpha * s.Settings.TrScale,
	}
	if !s.Transmittance.Params().Matches(want) {
		return ErrStaleTransmittance
	}
	return nil
}

// Evaluate the phase function for anisotropy g. The lookup table is used
// when it was built for the same g; otherwise the phase function is
// evaluated analytically.
func (s *Snapshot) EvalPhase(cos, g float32) float32 {
	if s.Phase != nil && s.Phase.G() == g {
		return s.Phase.Lookup(cos, 1)
	}
	return volume.HenyeyGreenstein(cos, g)
}

// Get the environment radiance along a direction, scaled by EnvExposure.
// Without an environment map, black is returned.
func (s *Snapshot) EnvRadiance(dir types.Vec3) types.Vec3 {
	if s.Environment == nil {
		return types.Vec3{}
	}
	return s.Environment.Lookup(dir).Mul(s.Settings.EnvExposure)
}

// Get the average environment radiance scaled by EnvExposure.
func (s *Snapshot) EnvAverage() types.Vec3 {
	if s.Environment == nil {
		return types.Vec3{}
	}
	return s.Environment.Average().Mul(s.Settings.EnvExposure)
}
