package integrator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/types"
	"github.com/achilleasa/nimbus/volume"
)

// Batch items are handed out to workers in chunks of this size.
const batchChunk = 64

// Run fn for every index in [0, n) on GOMAXPROCS workers. Each invocation
// gets a sampler seeded from (seed, index) so results do not depend on the
// scheduling. The context is checked between chunks.
func parallelFor(ctx context.Context, n int, seed uint64, fn func(i int, s *Sampler)) error {
	workers := min(runtime.GOMAXPROCS(0), (n+batchChunk-1)/batchChunk)
	var (
		next int64
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewSampler(seed, 0)
			for ctx.Err() == nil {
				start := int(atomic.AddInt64(&next, batchChunk)) - batchChunk
				if start >= n {
					return
				}
				for i := start; i < min(start+batchChunk, n); i++ {
					s.Seed(seed, Stream(0, i))
					fn(i, s)
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Estimate the radiance for a batch of world-space rays, averaging
// sampleNum estimates per ray.
func (e *Estimator) Radiances(ctx context.Context, ori, dir []types.Vec3, sampleNum int, seed uint64) ([]types.Vec3, error) {
	if len(ori) != len(dir) {
		return nil, fmt.Errorf("%w: %d origins, %d directions", ErrLengthMismatch, len(ori), len(dir))
	}
	sampleNum = max(sampleNum, 1)
	out := make([]types.Vec3, len(ori))
	err := parallelFor(ctx, len(ori), seed, func(i int, s *Sampler) {
		var sum types.Vec3
		for k := 0; k < sampleNum; k++ {
			sum = sum.Add(e.Radiance(ori[i], dir[i], s))
		}
		out[i] = sum.Mul(1 / float32(sampleNum))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// A batch of rays with per-ray medium and lighting parameters.
type SampleBatch struct {
	Alpha    []float32
	Ori      []types.Vec3
	Dir      []types.Vec3
	LightDir []types.Vec3
	G        []float32

	// Grey single scattering albedo.
	Scatter []float32
}

func (b SampleBatch) len() (int, error) {
	n := len(b.Ori)
	for _, l := range []int{len(b.Alpha), len(b.Dir), len(b.LightDir), len(b.G), len(b.Scatter)} {
		if l != n {
			return 0, fmt.Errorf("%w: expected %d entries; got %d", ErrLengthMismatch, n, l)
		}
	}
	return n, nil
}

// Estimate path traced radiance for a batch of rays with per-ray
// parameters. The phase lookup table is used for rays whose g matches the
// table; others evaluate the phase function analytically. Rays with invalid
// parameters yield zero radiance.
func Samples(ctx context.Context, snap *scene.Snapshot, batch SampleBatch, lightColor types.Vec3, multiScatter, sampleNum int, seed uint64) ([]types.Vec3, error) {
	if snap == nil || snap.Density == nil {
		return nil, scene.ErrNotReady
	}
	n, err := batch.len()
	if err != nil {
		return nil, err
	}
	multiScatter = max(multiScatter, 1)
	sampleNum = max(sampleNum, 1)

	out := make([]types.Vec3, n)
	err = parallelFor(ctx, n, seed, func(i int, s *Sampler) {
		dir := batch.Dir[i].Normalize()
		lightDir := batch.LightDir[i].Normalize()
		alpha, g := batch.Alpha[i], batch.G[i]
		if dir.IsZero() || lightDir.IsZero() || !dir.IsFinite() || !lightDir.IsFinite() || !batch.Ori[i].IsFinite() ||
			!types.IsFinite(alpha) || alpha < 0 || !(g > -1 && g < 1) || !types.IsFinite(batch.Scatter[i]) {
			return
		}

		pt := newPathTracer(snap, alpha, g, types.Splat3(batch.Scatter[i]), lightDir, lightColor, multiScatter)
		var sum types.Vec3
		for k := 0; k < sampleNum; k++ {
			sum = sum.Add(pt.radiance(batch.Ori[i], dir, s))
		}
		out[i] = sum.Mul(1 / float32(sampleNum))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Estimate the key light radiance scattered at each world-space point ori
// towards -dir: lightColor times the transmittance towards the light times
// the phase function. sampleNum ratio-tracking estimates are averaged per
// point.
func Trs(ctx context.Context, snap *scene.Snapshot, alpha float32, ori, dir []types.Vec3, lightDir, lightColor types.Vec3, g float32, sampleNum int, seed uint64) ([]types.Vec3, error) {
	if snap == nil || snap.Density == nil {
		return nil, scene.ErrNotReady
	}
	if len(ori) != len(dir) {
		return nil, fmt.Errorf("%w: %d origins, %d directions", ErrLengthMismatch, len(ori), len(dir))
	}
	lightDir = lightDir.Normalize()
	if lightDir.IsZero() || !lightDir.IsFinite() {
		return nil, fmt.Errorf("%w: light direction must be non-zero and finite", ErrInvalidParams)
	}
	sampleNum = max(sampleNum, 1)

	m := newMedium(snap, alpha)
	out := make([]types.Vec3, len(ori))
	err := parallelFor(ctx, len(ori), seed, func(i int, s *Sampler) {
		d := dir[i].Normalize()
		if d.IsZero() || !d.IsFinite() || !ori[i].IsFinite() {
			return
		}
		o := volume.PosToUV(ori[i])
		var tr float32
		for k := 0; k < sampleNum; k++ {
			tr += m.transmittance(o, lightDir, s)
		}
		phase := snap.EvalPhase(d.Dot(lightDir), g)
		out[i] = lightColor.Mul(tr / float32(sampleNum) * phase)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
