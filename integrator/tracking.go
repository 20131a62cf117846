package integrator

import (
	"math"

	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

const (
	// Distance used to pick the cell ahead of a point lying on a cell
	// boundary.
	cellProbe float32 = 1e-5

	// Ratio tracking switches to russian roulette below this transmittance.
	rrTransmittance float32 = 0.1
)

var inf = float32(math.Inf(1))

// Intersect a ray given in uv space with the unit cube. Rays starting inside
// the cube get tNear = 0 and axis = -1; otherwise axis is the axis of the
// entry face.
func intersectUnitBox(o, d types.Vec3) (tNear, tFar float32, axis int, ok bool) {
	tNear, tFar, axis = -inf, inf, -1
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			if o[i] < 0 || o[i] > 1 {
				return 0, 0, -1, false
			}
			continue
		}
		inv := 1 / d[i]
		t0 := -o[i] * inv
		t1 := (1 - o[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear, axis = t0, i
		}
		tFar = min(tFar, t1)
	}
	if tNear < 0 {
		tNear, axis = 0, -1
	}
	return tNear, tFar, axis, tFar > tNear
}

// A heterogeneous medium: the density field scaled by an extinction factor.
type medium struct {
	density *volume.DensityField
	sigma   float32
}

func newMedium(snap *scene.Snapshot, alpha float32) medium {
	return medium{
		density: snap.Density,
		sigma:   alpha * snap.Settings.TrScale,
	}
}

// Get the extinction coefficient at a uv position. Densities below
// DensityEpsilon are treated as vacuum.
func (m medium) extinction(uv types.Vec3) float32 {
	d := m.density.AtUV(0, uv)
	if d < volume.DensityEpsilon {
		return 0
	}
	return m.sigma * d
}

// Find the majorant segment starting at uv. The coarsest level whose cell
// is either empty or optically thin is selected; the returned majorant
// bounds the extinction up to the returned distance. A zero majorant marks
// an empty cell that can be skipped.
func (m medium) segment(uv, d types.Vec3) (mu, dist float32) {
	probe := uv.MulAdd(d, cellProbe)
	for level := m.density.Levels() - 1; level >= 0; level-- {
		maj, res := m.density.Majorant(level, probe)
		if maj < volume.DensityEpsilon {
			return 0, cellExit(uv, probe, d, res)
		}
		mu = m.sigma * maj
		if level == 0 || mu <= float32(res) {
			return mu, cellExit(uv, probe, d, res)
		}
	}
	return mu, cellProbe
}

// Distance from uv to the boundary of the cell of a grid with the given
// resolution that contains probe.
func cellExit(uv, probe, d types.Vec3, res int) float32 {
	r := float32(res)
	dist := inf
	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			continue
		}
		c := float32(math.Floor(float64(probe[i] * r)))
		c = types.Clamp(c, 0, r-1)
		var bound float32
		if d[i] > 0 {
			bound = (c + 1) / r
		} else {
			bound = c / r
		}
		dist = min(dist, (bound-uv[i])/d[i])
	}
	return max(dist, cellProbe)
}

// Sample a free-flight distance using delta tracking. Returns false if the
// ray leaves [tNear, tFar) without a real collision.
func (m medium) freeFlight(o, d types.Vec3, tNear, tFar float32, s *Sampler) (float32, bool) {
	if m.sigma <= 0 {
		return 0, false
	}
	for t := tNear; t < tFar; {
		mu, dist := m.segment(o.MulAdd(d, t), d)
		tEnd := min(t+dist, tFar)
		if mu > 0 {
			for {
				t -= types.Log(1-s.Float()) / mu
				if t >= tEnd {
					break
				}
				if s.Float()*mu < m.extinction(o.MulAdd(d, t)) {
					return t, true
				}
			}
		}
		t = tEnd
	}
	return 0, false
}

// Estimate the transmittance over [tNear, tFar) using ratio tracking with
// russian roulette on low throughput.
func (m medium) ratioTrack(o, d types.Vec3, tNear, tFar float32, s *Sampler) float32 {
	if m.sigma <= 0 {
		return 1
	}
	tr := float32(1)
	for t := tNear; t < tFar; {
		mu, dist := m.segment(o.MulAdd(d, t), d)
		tEnd := min(t+dist, tFar)
		if mu > 0 {
			for {
				t -= types.Log(1-s.Float()) / mu
				if t >= tEnd {
					break
				}
				tr *= 1 - m.extinction(o.MulAdd(d, t))/mu
				if tr < rrTransmittance {
					if s.Float() >= 0.5 {
						return 0
					}
					tr *= 2
				}
			}
		}
		t = tEnd
	}
	return tr
}

// Estimate the transmittance from uv position o along d until the ray
// leaves the volume.
func (m medium) transmittance(o, d types.Vec3, s *Sampler) float32 {
	tNear, tFar, _, ok := intersectUnitBox(o, d)
	if !ok {
		return 1
	}
	return m.ratioTrack(o, d, tNear, tFar, s)
}

// Estimate the transmittance along a world-space ray through the volume
// for extinction scale alpha, averaging sampleNum ratio-tracking estimates.
// The result is grey. Degenerate rays have zero transmittance.
func GetTr(snap *scene.Snapshot, ori, dir types.Vec3, alpha float32, sampleNum int, seed uint64) types.Vec3 {
	dir = dir.Normalize()
	if dir.IsZero() || !dir.IsFinite() || !ori.IsFinite() || !types.IsFinite(alpha) {
		return types.Vec3{}
	}
	sampleNum = max(sampleNum, 1)

	m := newMedium(snap, alpha)
	o := volume.PosToUV(ori)
	s := NewSampler(seed, Stream(0, 0))
	var sum float32
	for i := 0; i < sampleNum; i++ {
		sum += m.transmittance(o, dir, s)
	}
	return types.Splat3(sum / float32(sampleNum))
}
