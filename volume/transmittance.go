package volume

import (
	"math"
	"runtime"
	"sync"

	"github.com/achilleasa/nimbus/types"
)

// Number of levels in the transmittance cascade.
const TransmittanceMipLevels = 8

// The parameters a transmittance field was built for.
type TransmittanceParams struct {
	// Normalized direction pointing from the volume towards the light.
	LightDir types.Vec3

	// Extinction scale applied to the density.
	Alpha float32
}

// Returns true if both parameter sets describe the same build.
func (p TransmittanceParams) Matches(other TransmittanceParams) bool {
	return p.LightDir == other.LightDir && p.Alpha == other.Alpha
}

// An immutable cascade of precomputed transmittance values towards a fixed
// light direction. Level i has the resolution of density mean-cascade level
// i+1.
type TransmittanceField struct {
	levels []*Grid
	params TransmittanceParams
}

// Build the transmittance cascade for the given base density grid. When
// parallel is false the build runs on the calling goroutine; otherwise the
// slices of each level are split between workers. Both paths perform the
// same per-voxel computation and produce identical results.
func BuildTransmittance(base *Grid, params TransmittanceParams, parallel bool) *TransmittanceField {
	means := BuildCascade(base, TransmittanceMipLevels+1, MeanReducer)

	field := &TransmittanceField{
		levels: make([]*Grid, TransmittanceMipLevels),
		params: params,
	}
	for i := range field.levels {
		src := means[i+1]
		dst := NewGrid(src.Res)
		if parallel {
			marchLevelParallel(src, dst, params)
		} else {
			marchSlices(src, dst, params, 0, dst.Res)
		}
		field.levels[i] = dst
	}
	return field
}

// Get the build parameters.
func (f *TransmittanceField) Params() TransmittanceParams {
	return f.params
}

// Get the number of mip levels.
func (f *TransmittanceField) Levels() int {
	return len(f.levels)
}

// Get the grid for a mip level (clamped to the valid range).
func (f *TransmittanceField) Level(mip int) *Grid {
	return f.levels[f.clampMip(mip)]
}

func (f *TransmittanceField) clampMip(mip int) int {
	if mip < 0 {
		return 0
	}
	if mip >= len(f.levels) {
		return len(f.levels) - 1
	}
	return mip
}

// Sample the transmittance towards the light at a world-space position.
// Coordinates are clamped so positions outside the volume repeat edge values.
func (f *TransmittanceField) AtPosition(mip int, pos types.Vec3) float32 {
	return f.levels[f.clampMip(mip)].Sample(PosToUV(pos))
}

// Sample the transmittance at a fractional mip level.
func (f *TransmittanceField) AtPositionLerp(mip float32, pos types.Vec3) float32 {
	uv := PosToUV(pos)
	if mip <= 0 {
		return f.levels[0].Sample(uv)
	}
	lo := int(math.Floor(float64(mip)))
	if lo >= len(f.levels)-1 {
		return f.levels[len(f.levels)-1].Sample(uv)
	}
	t := mip - float32(lo)
	a := f.levels[lo].Sample(uv)
	return a + (f.levels[lo+1].Sample(uv)-a)*t
}

func marchLevelParallel(src, dst *Grid, params TransmittanceParams) {
	workers := runtime.GOMAXPROCS(0)
	if workers > dst.Res {
		workers = dst.Res
	}
	slicesPerWorker := (dst.Res + workers - 1) / workers

	var wg sync.WaitGroup
	for z0 := 0; z0 < dst.Res; z0 += slicesPerWorker {
		z1 := min(z0+slicesPerWorker, dst.Res)
		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			marchSlices(src, dst, params, z0, z1)
		}(z0, z1)
	}
	wg.Wait()
}

// Fill slices [z0, z1) of dst by marching from each voxel center towards the
// light through src until the ray leaves the unit cube.
func marchSlices(src, dst *Grid, params TransmittanceParams, z0, z1 int) {
	res := float32(dst.Res)
	step := 0.5 / res
	dir := params.LightDir
	if dir.IsZero() {
		for i := dst.index(0, 0, z0); i < dst.index(0, 0, z1); i++ {
			dst.Data[i] = 1
		}
		return
	}
	for z := z0; z < z1; z++ {
		for y := 0; y < dst.Res; y++ {
			for x := 0; x < dst.Res; x++ {
				origin := types.Vec3{
					(float32(x) + 0.5) / res,
					(float32(y) + 0.5) / res,
					(float32(z) + 0.5) / res,
				}

				var depth float32
				for t := 0.5 * step; ; t += step {
					uv := origin.MulAdd(dir, t)
					if !InsideUV(uv) {
						break
					}
					depth += src.Sample(uv) * step
				}
				dst.Data[dst.index(x, y, z)] = types.Exp(-params.Alpha * depth)
			}
		}
	}
}
