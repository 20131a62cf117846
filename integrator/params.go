package integrator

import (
	"fmt"
	"strings"

	"github.com/achilleasa/nimbus/types"
)

// Mode selects the radiance estimator.
type Mode uint8

const (
	// Unbiased delta-tracking path tracer.
	PT Mode = iota

	// Ray-marched approximation using the full resolution transmittance
	// field and analytic multiple scattering octaves.
	RPNN

	// Like RPNN but each scattering octave reads a coarser transmittance
	// level.
	MRPNN
)

func (m Mode) String() string {
	switch m {
	case PT:
		return "PT"
	case RPNN:
		return "RPNN"
	case MRPNN:
		return "MRPNN"
	}
	return "unknown"
}

// Parse a mode name (case insensitive).
func ParseMode(name string) (Mode, error) {
	switch strings.ToUpper(name) {
	case "PT":
		return PT, nil
	case "RPNN":
		return RPNN, nil
	case "MRPNN":
		return MRPNN, nil
	}
	return PT, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// Params control a radiance estimate.
type Params struct {
	Mode Mode

	// Direction pointing towards the key light and its color.
	LightDir   types.Vec3
	LightColor types.Vec3

	// Extinction scale applied to the density.
	Alpha float32

	// Henyey-Greenstein anisotropy.
	G float32

	// Max scattering events (PT) or number of scattering octaves
	// (RPNN/MRPNN, clamped to 8).
	MultiScatter int
}

// DefaultParams returns the parameters used by the render defaults.
func DefaultParams() Params {
	return Params{
		Mode:         PT,
		LightDir:     types.Vec3{0, 1, 0},
		LightColor:   types.Vec3{1, 1, 1},
		Alpha:        1,
		G:            0.857,
		MultiScatter: 512,
	}
}

// Validate the parameters.
func (p Params) Validate() error {
	switch {
	case p.Mode > MRPNN:
		return fmt.Errorf("%w: mode %d", ErrUnknownMode, p.Mode)
	case !types.IsFinite(p.Alpha) || p.Alpha < 0:
		return fmt.Errorf("%w: alpha must be a finite non-negative value; got %f", ErrInvalidParams, p.Alpha)
	case !types.IsFinite(p.G) || p.G <= -1 || p.G >= 1:
		return fmt.Errorf("%w: g must be in (-1, 1); got %f", ErrInvalidParams, p.G)
	case p.MultiScatter < 1:
		return fmt.Errorf("%w: multiScatter must be at least 1; got %d", ErrInvalidParams, p.MultiScatter)
	case !p.LightColor.IsFinite():
		return fmt.Errorf("%w: light color must be finite", ErrInvalidParams)
	case p.LightDir.Normalize().IsZero() || !p.LightDir.IsFinite():
		return fmt.Errorf("%w: light direction must be non-zero", ErrInvalidParams)
	}
	return nil
}
