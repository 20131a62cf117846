package volume

import (
	"math"

	"github.com/achilleasa/nimbus/types"
)

const (
	// Number of levels in the density cascade (level 0 is the base grid).
	DensityMipLevels = 9

	// Densities below this threshold are treated as vacuum.
	DensityEpsilon float32 = 1e-6

	// Floor for the reported max density so it can safely be used as a
	// divisor.
	minMaxDensity float32 = 0.00001
)

// An immutable density field with its max-reduced mip cascade and the
// dilated majorant grids used for empty-space skipping.
type DensityField struct {
	levels     []*Grid
	majorants  []*Grid
	maxDensity float32
}

// Build a density field from a base grid. The base grid is owned by the
// returned field and must not be modified afterwards.
func NewDensityField(base *Grid) *DensityField {
	levels := BuildCascade(base, DensityMipLevels, MaxReducer)
	majorants := make([]*Grid, len(levels))
	for i, level := range levels {
		majorants[i] = level.Dilate()
	}

	return &DensityField{
		levels:     levels,
		majorants:  majorants,
		maxDensity: max(levels[len(levels)-1].Max(), minMaxDensity),
	}
}

// Get the number of mip levels.
func (f *DensityField) Levels() int {
	return len(f.levels)
}

// Get the grid for a mip level (clamped to the valid range).
func (f *DensityField) Level(mip int) *Grid {
	return f.levels[f.clampMip(mip)]
}

// Get the base grid resolution.
func (f *DensityField) Resolution() int {
	return f.levels[0].Res
}

// Get the largest density value in the field (never below 1e-5).
func (f *DensityField) MaxDensity() float32 {
	return f.maxDensity
}

func (f *DensityField) clampMip(mip int) int {
	if mip < 0 {
		return 0
	}
	if mip >= len(f.levels) {
		return len(f.levels) - 1
	}
	return mip
}

// Sample the density at the given mip level and uv coordinates. Positions
// outside the volume have zero density.
func (f *DensityField) AtUV(mip int, uv types.Vec3) float32 {
	if !InsideUV(uv) {
		return 0
	}
	return f.levels[f.clampMip(mip)].Sample(uv)
}

// Sample the density at a fractional mip level, blending the two nearest
// levels linearly.
func (f *DensityField) AtUVLerp(mip float32, uv types.Vec3) float32 {
	if !InsideUV(uv) {
		return 0
	}
	if mip <= 0 {
		return f.levels[0].Sample(uv)
	}
	lo := int(math.Floor(float64(mip)))
	if lo >= len(f.levels)-1 {
		return f.levels[len(f.levels)-1].Sample(uv)
	}
	t := mip - float32(lo)
	a := f.levels[lo].Sample(uv)
	if t == 0 {
		return a
	}
	return a + (f.levels[lo+1].Sample(uv)-a)*t
}

// Sample the density at a world-space position.
func (f *DensityField) AtPosition(mip int, pos types.Vec3) float32 {
	return f.AtUV(mip, PosToUV(pos))
}

// Sample the density at a world-space position and fractional mip level.
func (f *DensityField) AtPositionLerp(mip float32, pos types.Vec3) float32 {
	return f.AtUVLerp(mip, PosToUV(pos))
}

// Get the majorant for the cell containing uv at the given level together
// with the cell resolution. The majorant bounds every trilinear density
// sample taken at level 0 inside that cell.
func (f *DensityField) Majorant(mip int, uv types.Vec3) (float32, int) {
	g := f.majorants[f.clampMip(mip)]
	return g.CellAt(uv), g.Res
}
