package integrator

import (
	"fmt"

	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
)

// An Estimator computes radiance estimates against a fixed scene snapshot.
// The estimation strategy is selected once when the estimator is created.
// Estimators are safe for concurrent use as long as each goroutine uses its
// own Sampler.
type Estimator struct {
	snap   *scene.Snapshot
	params Params

	radiance func(ori, dir types.Vec3, s *Sampler) types.Vec3
}

// Create an estimator. RPNN and MRPNN require the snapshot's transmittance
// field to have been built for the light direction and alpha in params.
func New(snap *scene.Snapshot, params Params) (*Estimator, error) {
	if snap == nil || snap.Density == nil {
		return nil, scene.ErrNotReady
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.LightDir = params.LightDir.Normalize()

	e := &Estimator{
		snap:   snap,
		params: params,
	}
	switch params.Mode {
	case PT:
		e.radiance = newPathTracer(
			snap, params.Alpha, params.G,
			snap.Settings.ScatterRate, params.LightDir, params.LightColor,
			params.MultiScatter,
		).radiance
	case RPNN, MRPNN:
		if err := snap.CheckTransmittance(params.LightDir, params.Alpha); err != nil {
			return nil, fmt.Errorf("integrator: %s mode: %w", params.Mode, err)
		}
		e.radiance = newMarcher(snap, params, params.Mode == MRPNN).radiance
	}
	return e, nil
}

// Get the snapshot this estimator renders.
func (e *Estimator) Snapshot() *scene.Snapshot {
	return e.snap
}

// Get the estimator parameters.
func (e *Estimator) Params() Params {
	return e.params
}

// Estimate the radiance arriving at a world-space origin from direction
// -dir. Degenerate rays yield zero radiance.
func (e *Estimator) Radiance(ori, dir types.Vec3, s *Sampler) types.Vec3 {
	dir = dir.Normalize()
	if dir.IsZero() || !dir.IsFinite() || !ori.IsFinite() {
		return types.Vec3{}
	}
	return e.radiance(ori, dir, s)
}
