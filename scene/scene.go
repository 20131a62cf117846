package scene

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	volfile "github.com/achilleasa/nimbus/asset/volume"
	"github.com/achilleasa/nimbus/log"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

// The largest number of voxels a scene may allocate. Defaults to the budget
// enforced when decoding volume files.
var MaxVoxels = volfile.MaxVoxels

// A FillFunc generates the density of voxel (x, y, z).
type FillFunc func(x, y, z int) float32

// The Scene owns a density volume together with all structures derived from
// it: the density mip cascade, the transmittance cascade, the phase lookup
// table and the environment map.
//
// Host data is modified through SetData/SetDatas and becomes visible to
// samplers only after Update. Derived structures are rebuilt into new
// immutable values and published as a Snapshot, so a render that captured a
// snapshot never observes a partially built field.
type Scene struct {
	logger log.Logger

	sync.Mutex

	resolution int
	data       []float32
	closed     bool

	settings Settings
	density  *volume.DensityField
	tr       *volume.TransmittanceField
	phase    *volume.PhaseLUT
	env      *volume.Environment

	densityGen uint64
	trGen      uint64
	phaseGen   uint64

	// Density generation the transmittance field was built from.
	trDensityGen uint64

	snapshot atomic.Pointer[Snapshot]
}

// Create a new empty scene with the given volume resolution.
func New(resolution int) (*Scene, error) {
	if !types.IsPowerOfTwo(resolution) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidResolution, resolution)
	}
	if resolution > 1024 || resolution*resolution*resolution > MaxVoxels {
		return nil, fmt.Errorf("%w: %d^3 voxels requested; limit is %d", ErrOutOfMemory, resolution, MaxVoxels)
	}

	return &Scene{
		logger:     log.New("scene"),
		resolution: resolution,
		data:       make([]float32, resolution*resolution*resolution),
		settings:   DefaultSettings(),
	}, nil
}

// Create a new scene and initialize it with density data (x-fastest order).
// The data slice is copied.
func NewFromData(resolution int, data []float32) (*Scene, error) {
	sc, err := New(resolution)
	if err != nil {
		return nil, err
	}
	if len(data) != len(sc.data) {
		return nil, fmt.Errorf("%w: expected %d values; got %d", ErrDataSize, len(sc.data), len(data))
	}
	copy(sc.data, data)
	return sc, nil
}

// Get the volume resolution.
func (s *Scene) Resolution() int {
	return s.resolution
}

// Release all host data and derived structures. Any subsequent call fails
// with ErrClosed.
func (s *Scene) Close() {
	s.Lock()
	defer s.Unlock()

	s.closed = true
	s.data = nil
	s.density = nil
	s.tr = nil
	s.phase = nil
	s.env = nil
	s.snapshot.Store(nil)
}

// Set the density of a single voxel.
func (s *Scene) SetData(x, y, z int, value float32) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return ErrClosed
	}
	res := s.resolution
	if x < 0 || y < 0 || z < 0 || x >= res || y >= res || z >= res {
		return fmt.Errorf("%w: (%d, %d, %d) for resolution %d", ErrOutOfBounds, x, y, z, res)
	}
	s.data[(z*res+y)*res+x] = value
	return nil
}

// Fill the whole volume using a generator function.
func (s *Scene) SetDatas(fn FillFunc) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return ErrClosed
	}
	res := s.resolution
	for z := 0; z < res; z++ {
		for y := 0; y < res; y++ {
			row := s.data[(z*res+y)*res:]
			for x := 0; x < res; x++ {
				row[x] = fn(x, y, z)
			}
		}
	}
	return nil
}

// Build the density mip cascade from the current host data and publish it.
// The transmittance field is invalidated and must be rebuilt with
// UpdateTransmittance.
func (s *Scene) Update() error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return ErrClosed
	}

	start := time.Now()
	base := volume.GridFromData(s.resolution, append([]float32(nil), s.data...))
	s.density = volume.NewDensityField(base)
	s.densityGen++
	s.tr = nil
	s.publish()

	s.logger.Debugf("built %d level density cascade (%d^3) in %s", s.density.Levels(), s.resolution, time.Since(start))
	return nil
}

// Rebuild the transmittance cascade for the given light direction (pointing
// towards the light) and extinction scale. When the cached field was built
// for the same parameters and density this is a no-op and false is returned.
// Setting cpu builds the cascade on the calling goroutine instead of
// splitting the work between workers.
func (s *Scene) UpdateTransmittance(lightDir types.Vec3, alpha float32, cpu bool) (bool, error) {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if s.density == nil {
		return false, ErrNotReady
	}
	dir := lightDir.Normalize()
	if dir.IsZero() || !dir.IsFinite() {
		return false, ErrDegenerateLight
	}

	params := volume.TransmittanceParams{
		LightDir: dir,
		Alpha:    alpha * s.settings.TrScale,
	}
	if s.tr != nil && s.trDensityGen == s.densityGen && s.tr.Params().Matches(params) {
		return false, nil
	}

	start := time.Now()
	s.tr = volume.BuildTransmittance(s.density.Level(0), params, !cpu)
	s.trGen++
	s.trDensityGen = s.densityGen
	s.publish()

	s.logger.Debugf("built transmittance cascade for light %v, alpha %.3f in %s", dir, params.Alpha, time.Since(start))
	return true, nil
}

// Rebuild the phase lookup table for anisotropy g unless the cached table
// was built for the same value. Returns true if the table was rebuilt.
func (s *Scene) UpdatePhaseLUT(g float32) bool {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return false
	}
	if s.phase != nil && s.phase.G() == g {
		return false
	}

	s.phase = volume.NewPhaseLUT(g)
	s.phaseGen++
	s.publish()
	return true
}

// Replace the environment map.
func (s *Scene) SetEnvironment(env *volume.Environment) {
	s.update(func() { s.env = env })
}

// Render alternate pixels on alternate frames.
func (s *Scene) SetCheckerboard(checkerboard bool) {
	s.update(func() { s.settings.Checkerboard = checkerboard })
}

// Set the environment radiance scale.
func (s *Scene) SetEnvExposure(exposure float32) {
	s.update(func() { s.settings.EnvExposure = exposure })
}

// Set the extinction scale. The transmittance field is considered stale
// until UpdateTransmittance is called again.
func (s *Scene) SetTrScale(scale float32) {
	s.update(func() { s.settings.TrScale = scale })
}

// Set a grey scattering albedo.
func (s *Scene) SetScatterRate(rate float32) {
	s.update(func() { s.settings.ScatterRate = types.Splat3(rate) })
}

// Set a per-channel scattering albedo.
func (s *Scene) SetScatterRateRGB(rate types.Vec3) {
	s.update(func() { s.settings.ScatterRate = rate })
}

// Set the tone-mapping exposure.
func (s *Scene) SetExposure(exposure float32) {
	s.update(func() { s.settings.Exposure = exposure })
}

// Set the index of refraction of the volume boundary.
func (s *Scene) SetSurfaceIOR(ior float32) {
	s.update(func() { s.settings.SurfaceIOR = ior })
}

// Get the current settings.
func (s *Scene) Settings() Settings {
	s.Lock()
	defer s.Unlock()
	return s.settings
}

func (s *Scene) update(fn func()) {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return
	}
	fn()
	s.publish()
}

// Publish a snapshot of the current state. Must be called while holding the
// scene lock. Nothing is published before the first Update.
func (s *Scene) publish() {
	if s.density == nil {
		return
	}
	s.snapshot.Store(&Snapshot{
		Density:          s.density,
		Transmittance:    s.tr,
		Phase:            s.phase,
		Environment:      s.env,
		Settings:         s.settings,
		DensityGen:       s.densityGen,
		TransmittanceGen: s.trGen,
		PhaseGen:         s.phaseGen,
	})
}

// Get the latest published snapshot.
func (s *Scene) Snapshot() (*Snapshot, error) {
	snap := s.snapshot.Load()
	if snap == nil {
		s.Lock()
		closed := s.closed
		s.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, ErrNotReady
	}
	return snap, nil
}

// Sample the density at an integer mip level and world-space position.
func (s *Scene) DensityAtPosition(mip int, pos types.Vec3) (float32, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return snap.Density.AtPosition(mip, pos), nil
}

// Sample the density at a fractional mip level and world-space position.
func (s *Scene) DensityAtPositionLerp(mip float32, pos types.Vec3) (float32, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return snap.Density.AtPositionLerp(mip, pos), nil
}

// Sample the density at an integer mip level and uv coordinates.
func (s *Scene) DensityAtUV(mip int, uv types.Vec3) (float32, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return snap.Density.AtUV(mip, uv), nil
}

// Sample the density at a fractional mip level and uv coordinates.
func (s *Scene) DensityAtUVLerp(mip float32, uv types.Vec3) (float32, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	return snap.Density.AtUVLerp(mip, uv), nil
}

// Sample the transmittance towards the light. The light direction must match
// the one the cascade was built for.
func (s *Scene) TrAtPosition(mip int, pos, lightDir types.Vec3) (float32, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	if snap.Transmittance == nil {
		return 0, ErrNotReady
	}
	if snap.Transmittance.Params().LightDir != lightDir.Normalize() {
		return 0, ErrStaleTransmittance
	}
	return snap.Transmittance.AtPosition(mip, pos), nil
}

// Look up the phase table. Returns ErrNotReady if UpdatePhaseLUT was never
// called.
func (s *Scene) PhaseLUT(cos, v float32) (float32, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	if snap.Phase == nil {
		return 0, ErrNotReady
	}
	return snap.Phase.Lookup(cos, v), nil
}
