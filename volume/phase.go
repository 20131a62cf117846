package volume

import (
	"math"

	"github.com/achilleasa/nimbus/types"
)

// Number of bins along each axis of the phase lookup table.
const PhaseLUTSize = 512

// Evaluate the normalized Henyey-Greenstein phase function for the cosine
// of the scattering angle and anisotropy g.
func HenyeyGreenstein(cos, g float32) float32 {
	g2 := g * g
	denom := 1 + g2 - 2*g*cos
	if denom <= 0 {
		denom = 1e-6
	}
	return (1 - g2) / (4 * math.Pi * denom * float32(math.Sqrt(float64(denom))))
}

// A precomputed Henyey-Greenstein table for a fixed anisotropy g. Columns
// map the cosine of the scattering angle [-1, 1]; rows map an anisotropy
// control v in [0, 1] which evaluates the phase function for g*v.
type PhaseLUT struct {
	g     float32
	table []float32
}

// Build a phase table for anisotropy g.
func NewPhaseLUT(g float32) *PhaseLUT {
	lut := &PhaseLUT{
		g:     g,
		table: make([]float32, PhaseLUTSize*PhaseLUTSize),
	}

	for row := 0; row < PhaseLUTSize; row++ {
		rowG := g * float32(row) / (PhaseLUTSize - 1)
		for col := 0; col < PhaseLUTSize; col++ {
			cos := 2*float32(col)/(PhaseLUTSize-1) - 1
			lut.table[row*PhaseLUTSize+col] = HenyeyGreenstein(cos, rowG)
		}
	}
	return lut
}

// Get the anisotropy the table was built for.
func (lut *PhaseLUT) G() float32 {
	return lut.g
}

// Get the raw table data (row-major, PhaseLUTSize^2 entries).
func (lut *PhaseLUT) Table() []float32 {
	return lut.table
}

// Look up the phase value for the cosine of the scattering angle and the
// anisotropy control v using bilinear interpolation. Non-finite inputs
// yield zero.
func (lut *PhaseLUT) Lookup(cos, v float32) float32 {
	if !types.IsFinite(cos) || !types.IsFinite(v) {
		return 0
	}
	px := (types.Clamp(cos, -1, 1) + 1) * 0.5 * (PhaseLUTSize - 1)
	py := types.Clamp(v, 0, 1) * (PhaseLUTSize - 1)

	x0 := int(px)
	y0 := int(py)
	x1 := min(x0+1, PhaseLUTSize-1)
	y1 := min(y0+1, PhaseLUTSize-1)
	wx := px - float32(x0)
	wy := py - float32(y0)

	r0 := lut.table[y0*PhaseLUTSize:]
	r1 := lut.table[y1*PhaseLUTSize:]
	a := r0[x0] + (r0[x1]-r0[x0])*wx
	b := r1[x0] + (r1[x1]-r1[x0])*wx
	return a + (b-a)*wy
}
