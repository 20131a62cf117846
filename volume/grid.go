package volume

import (
	"math"

	"github.com/achilleasa/nimbus/types"
)

// The world-space box occupied by the volume. UV space maps the box to [0, 1]^3.
var (
	BoxMin = types.Vec3{-0.5, -0.5, -0.5}
	BoxMax = types.Vec3{0.5, 0.5, 0.5}
)

// A cubic grid of scalar samples stored in x-fastest order. Voxel i is
// centered at uv (i+0.5)/Res.
type Grid struct {
	Res  int
	Data []float32
}

// Allocate a zeroed grid with the given side length.
func NewGrid(res int) *Grid {
	return &Grid{
		Res:  res,
		Data: make([]float32, res*res*res),
	}
}

// Wrap existing data into a grid. The caller must ensure len(data) == res^3.
func GridFromData(res int, data []float32) *Grid {
	return &Grid{Res: res, Data: data}
}

// Convert a world-space position to uv coordinates.
func PosToUV(pos types.Vec3) types.Vec3 {
	return pos.Sub(BoxMin)
}

// Convert uv coordinates to a world-space position.
func UVToPos(uv types.Vec3) types.Vec3 {
	return uv.Add(BoxMin)
}

// Returns true if uv lies inside the unit cube.
func InsideUV(uv types.Vec3) bool {
	return uv[0] >= 0 && uv[0] <= 1 &&
		uv[1] >= 0 && uv[1] <= 1 &&
		uv[2] >= 0 && uv[2] <= 1
}

func (g *Grid) index(x, y, z int) int {
	return (z*g.Res+y)*g.Res + x
}

func (g *Grid) clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= g.Res {
		return g.Res - 1
	}
	return i
}

// Get the voxel at the given integer coordinates. Out of range coordinates
// are clamped so edge voxels repeat.
func (g *Grid) At(x, y, z int) float32 {
	return g.Data[g.index(g.clampIndex(x), g.clampIndex(y), g.clampIndex(z))]
}

// Set the voxel at the given coordinates. Returns false if out of range.
func (g *Grid) Set(x, y, z int, v float32) bool {
	if x < 0 || y < 0 || z < 0 || x >= g.Res || y >= g.Res || z >= g.Res {
		return false
	}
	g.Data[g.index(x, y, z)] = v
	return true
}

// Get the integer coordinates of the cell containing uv (clamped).
func (g *Grid) Cell(uv types.Vec3) (x, y, z int) {
	res := float32(g.Res)
	x = g.clampIndex(int(floor(uv[0] * res)))
	y = g.clampIndex(int(floor(uv[1] * res)))
	z = g.clampIndex(int(floor(uv[2] * res)))
	return x, y, z
}

// Get the value of the cell containing uv without interpolation.
func (g *Grid) CellAt(uv types.Vec3) float32 {
	x, y, z := g.Cell(uv)
	return g.Data[g.index(x, y, z)]
}

// Sample the grid with trilinear interpolation. Coordinates are clamped to
// the grid bounds.
func (g *Grid) Sample(uv types.Vec3) float32 {
	res := float32(g.Res)
	px := uv[0]*res - 0.5
	py := uv[1]*res - 0.5
	pz := uv[2]*res - 0.5

	fx, fy, fz := floor(px), floor(py), floor(pz)
	wx, wy, wz := px-fx, py-fy, pz-fz
	x, y, z := int(fx), int(fy), int(fz)

	c000 := g.At(x, y, z)
	c100 := g.At(x+1, y, z)
	c010 := g.At(x, y+1, z)
	c110 := g.At(x+1, y+1, z)
	c001 := g.At(x, y, z+1)
	c101 := g.At(x+1, y, z+1)
	c011 := g.At(x, y+1, z+1)
	c111 := g.At(x+1, y+1, z+1)

	c00 := c000 + (c100-c000)*wx
	c10 := c010 + (c110-c010)*wx
	c01 := c001 + (c101-c001)*wx
	c11 := c011 + (c111-c011)*wx

	c0 := c00 + (c10-c00)*wy
	c1 := c01 + (c11-c01)*wy

	return c0 + (c1-c0)*wz
}

// Get the largest value stored in the grid.
func (g *Grid) Max() float32 {
	var m float32
	for _, v := range g.Data {
		if v > m {
			m = v
		}
	}
	return m
}

// Make a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := &Grid{Res: g.Res, Data: make([]float32, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

func floor(v float32) float32 {
	return float32(math.Floor(float64(v)))
}
