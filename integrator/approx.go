package integrator

import (
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

const (
	// Upper bound for the number of multiple scattering octaves.
	maxOctaves = 8

	// Per-octave attenuation of scattering, extinction and phase
	// eccentricity.
	octaveScatter    float32 = 0.5
	octaveExtinction float32 = 0.5
	octaveEccentric  float32 = 0.5

	// Optical depth scale of the ambient occlusion lookup.
	ambientDepth float32 = 0.25

	// Density level used for ambient occlusion in MRPNN mode.
	ambientMip float32 = 3

	// March terminates once transmittance drops below this value.
	minMarchTransmittance float32 = 1e-4
)

// The ray-marched approximate estimator.
type marcher struct {
	medium
	snap *scene.Snapshot

	multiRes   bool
	g          float32
	albedo     types.Vec3
	lightDir   types.Vec3
	lightColor types.Vec3
	octaves    int
	step       float32
	ambient    types.Vec3
}

func newMarcher(snap *scene.Snapshot, params Params, multiRes bool) marcher {
	m := marcher{
		medium:     newMedium(snap, params.Alpha),
		snap:       snap,
		multiRes:   multiRes,
		g:          params.G,
		albedo:     snap.Settings.ScatterRate,
		lightDir:   params.LightDir.Normalize(),
		lightColor: params.LightColor,
		octaves:    min(max(params.MultiScatter, 1), maxOctaves),
		ambient:    snap.EnvAverage(),
	}

	voxel := 1 / float32(snap.Density.Resolution())
	m.step = voxel
	if thick := m.sigma * snap.Density.MaxDensity(); thick > 0 {
		m.step = max(min(voxel, 0.5/thick), voxel/16)
	}
	return m
}

// Estimate the radiance arriving at a world-space origin from direction
// -dir by marching through the volume with a jittered start offset.
func (m marcher) radiance(ori, dir types.Vec3, s *Sampler) types.Vec3 {
	o := volume.PosToUV(ori)
	tNear, tFar, _, ok := intersectUnitBox(o, dir)
	if !ok || m.sigma <= 0 {
		return m.snap.EnvRadiance(dir)
	}

	cos := dir.Dot(m.lightDir)
	phases := m.octavePhases(cos)

	var radiance types.Vec3
	tr := float32(1)
	for t := tNear + s.Float()*m.step; t < tFar; t += m.step {
		uv := o.MulAdd(dir, t)
		sigma := m.extinction(uv)
		if sigma == 0 {
			continue
		}

		stepTr := types.Exp(-sigma * m.step)
		inScatter := m.inScatter(uv, &phases)
		radiance = radiance.Add(m.albedo.MulVec(inScatter).Mul(tr * (1 - stepTr)))

		tr *= stepTr
		if tr < minMarchTransmittance {
			tr = 0
			break
		}
	}
	radiance = radiance.Add(m.snap.EnvRadiance(dir).Mul(tr))

	if !radiance.IsFinite() {
		return types.Vec3{}
	}
	return radiance
}

// Evaluate the phase function of each octave for a fixed scattering angle.
func (m marcher) octavePhases(cos float32) [maxOctaves]float32 {
	var phases [maxOctaves]float32
	lut := m.snap.Phase
	c := float32(1)
	for n := 0; n < m.octaves; n++ {
		if lut != nil && lut.G() == m.g {
			phases[n] = lut.Lookup(cos, c)
		} else {
			phases[n] = volume.HenyeyGreenstein(cos, m.g*c)
		}
		c *= octaveEccentric
	}
	return phases
}

// Estimate the in-scattered radiance per unit scattering coefficient.
func (m marcher) inScatter(uv types.Vec3, phases *[maxOctaves]float32) types.Vec3 {
	pos := volume.UVToPos(uv)
	field := m.snap.Transmittance

	var sun float32
	a, b := float32(1), float32(1)
	for n := 0; n < m.octaves; n++ {
		var lightTr float32
		if m.multiRes {
			lightTr = field.AtPositionLerp(float32(n), pos)
		} else {
			lightTr = field.AtPosition(0, pos)
		}
		sun += a * phases[n] * types.Pow(lightTr, b)
		a *= octaveScatter
		b *= octaveExtinction
	}

	var occlusion float32
	if m.multiRes {
		occlusion = m.density.AtUVLerp(ambientMip, uv)
	} else {
		occlusion = m.density.AtUV(0, uv)
	}
	ambient := m.ambient.Mul(types.Exp(-m.sigma * occlusion * ambientDepth))
	return m.lightColor.Mul(sun).Add(ambient)
}
