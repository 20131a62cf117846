package volume

// A Reducer folds the eight voxels of a 2x2x2 block into the value of the
// corresponding coarse voxel.
type Reducer func(block *[8]float32) float32

// Conservative reduction used for empty-space skipping; the coarse voxel is
// never smaller than any voxel of its block.
func MaxReducer(block *[8]float32) float32 {
	m := block[0]
	for _, v := range block[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Averaging reduction used for building the transmittance cascade.
func MeanReducer(block *[8]float32) float32 {
	var sum float32
	for _, v := range block {
		sum += v
	}
	return sum * 0.125
}

// Downsample the grid by a factor of two along each axis using the supplied
// reducer. A grid with resolution 1 is copied.
func (g *Grid) Downsample(reduce Reducer) *Grid {
	if g.Res <= 1 {
		return g.Clone()
	}

	out := NewGrid(g.Res / 2)
	var block [8]float32
	for z := 0; z < out.Res; z++ {
		for y := 0; y < out.Res; y++ {
			for x := 0; x < out.Res; x++ {
				fx, fy, fz := 2*x, 2*y, 2*z
				block[0] = g.Data[g.index(fx, fy, fz)]
				block[1] = g.Data[g.index(fx+1, fy, fz)]
				block[2] = g.Data[g.index(fx, fy+1, fz)]
				block[3] = g.Data[g.index(fx+1, fy+1, fz)]
				block[4] = g.Data[g.index(fx, fy, fz+1)]
				block[5] = g.Data[g.index(fx+1, fy, fz+1)]
				block[6] = g.Data[g.index(fx, fy+1, fz+1)]
				block[7] = g.Data[g.index(fx+1, fy+1, fz+1)]
				out.Data[out.index(x, y, z)] = reduce(&block)
			}
		}
	}
	return out
}

// Dilate returns a grid where every voxel holds the max over its 3x3x3
// neighbourhood. Trilinear samples taken anywhere inside a cell only touch
// voxels of that neighbourhood, so the dilated value bounds them. The max
// filter is separable and is applied one axis at a time.
func (g *Grid) Dilate() *Grid {
	src := g
	for axis := 0; axis < 3; axis++ {
		out := NewGrid(g.Res)
		for z := 0; z < g.Res; z++ {
			for y := 0; y < g.Res; y++ {
				for x := 0; x < g.Res; x++ {
					var m float32
					for d := -1; d <= 1; d++ {
						var v float32
						switch axis {
						case 0:
							v = src.At(x+d, y, z)
						case 1:
							v = src.At(x, y+d, z)
						default:
							v = src.At(x, y, z+d)
						}
						if v > m {
							m = v
						}
					}
					out.Data[out.index(x, y, z)] = m
				}
			}
		}
		src = out
	}
	return src
}

// Build a cascade of numLevels grids where level 0 is base and each
// following level is the reduced version of the previous one.
func BuildCascade(base *Grid, numLevels int, reduce Reducer) []*Grid {
	if numLevels < 1 {
		numLevels = 1
	}
	levels := make([]*Grid, numLevels)
	levels[0] = base
	for i := 1; i < numLevels; i++ {
		levels[i] = levels[i-1].Downsample(reduce)
	}
	return levels
}
