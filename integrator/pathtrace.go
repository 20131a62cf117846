package integrator

import (
	"math"

	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

// Russian roulette kicks in after this many scattering events.
const rrMinBounces = 8

// Per-path parameters of the reference path tracer.
type pathTracer struct {
	medium
	snap *scene.Snapshot

	g          float32
	albedo     types.Vec3
	lightDir   types.Vec3
	lightColor types.Vec3
	maxBounces int
	ior        float32
}

func newPathTracer(snap *scene.Snapshot, alpha, g float32, albedo, lightDir, lightColor types.Vec3, maxBounces int) pathTracer {
	return pathTracer{
		medium:     newMedium(snap, alpha),
		snap:       snap,
		g:          g,
		albedo:     albedo,
		lightDir:   lightDir.Normalize(),
		lightColor: lightColor,
		maxBounces: maxBounces,
		ior:        snap.Settings.SurfaceIOR,
	}
}

// Estimate the radiance arriving at a world-space origin from direction
// -dir.
func (pt pathTracer) radiance(ori, dir types.Vec3, s *Sampler) types.Vec3 {
	o := volume.PosToUV(ori)
	tNear, tFar, axis, ok := intersectUnitBox(o, dir)
	if !ok {
		return pt.snap.EnvRadiance(dir)
	}

	throughput := types.Vec3{1, 1, 1}
	if axis >= 0 && pt.ior != 1 {
		throughput = throughput.Mul(1 - schlick(abs(dir[axis]), pt.ior))
	}

	var radiance types.Vec3
	d := dir
	for bounce := 0; ; bounce++ {
		t, collided := pt.freeFlight(o, d, tNear, tFar, s)
		if !collided {
			radiance = radiance.Add(throughput.MulVec(pt.snap.EnvRadiance(d)))
			break
		}

		o = o.MulAdd(d, t)
		throughput = throughput.MulVec(pt.albedo)

		// Next event estimation towards the key light.
		if tr := pt.transmittance(o, pt.lightDir, s); tr > 0 {
			phase := pt.snap.EvalPhase(d.Dot(pt.lightDir), pt.g)
			radiance = radiance.Add(throughput.MulVec(pt.lightColor).Mul(tr * phase))
		}

		if bounce+1 >= pt.maxBounces {
			break
		}
		if bounce+1 >= rrMinBounces {
			q := min(throughput.MaxComponent(), 0.95)
			if s.Float() >= q {
				break
			}
			throughput = throughput.Mul(1 / q)
		}

		d = sampleHG(d, pt.g, s.Vec2())
		tNear, tFar, _, ok = intersectUnitBox(o, d)
		if !ok {
			// Collision on the boundary heading outwards.
			radiance = radiance.Add(throughput.MulVec(pt.snap.EnvRadiance(d)))
			break
		}
	}

	if !radiance.IsFinite() {
		return types.Vec3{}
	}
	return radiance
}

// Sample an outgoing direction from the Henyey-Greenstein distribution
// around the propagation direction d.
func sampleHG(d types.Vec3, g float32, u types.Vec2) types.Vec3 {
	var cos float32
	if abs(g) < 1e-3 {
		cos = 1 - 2*u[0]
	} else {
		sq := (1 - g*g) / (1 - g + 2*g*u[0])
		cos = (1 + g*g - sq*sq) / (2 * g)
	}
	cos = types.Clamp(cos, -1, 1)
	sin := float32(math.Sqrt(float64(max(0, 1-cos*cos))))
	phi := 2 * math.Pi * float64(u[1])

	t1, t2 := basis(d)
	return t1.Mul(sin * float32(math.Cos(phi))).
		Add(t2.Mul(sin * float32(math.Sin(phi)))).
		Add(d.Mul(cos)).
		Normalize()
}

// Build an orthonormal basis around a unit vector.
func basis(n types.Vec3) (types.Vec3, types.Vec3) {
	var t1 types.Vec3
	if abs(n[0]) > 0.9 {
		t1 = types.Vec3{0, 1, 0}.Cross(n).Normalize()
	} else {
		t1 = types.Vec3{1, 0, 0}.Cross(n).Normalize()
	}
	return t1, n.Cross(t1)
}

// Schlick approximation of the Fresnel reflectance for light entering a
// medium with the given index of refraction.
func schlick(cos, ior float32) float32 {
	r0 := (1 - ior) / (1 + ior)
	r0 *= r0
	c := 1 - cos
	return r0 + (1-r0)*c*c*c*c*c
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
