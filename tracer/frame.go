package tracer

import (
	"math"

	"github.com/achilleasa/nimbus/types"
)

const (
	// Number of histogram bins per color channel.
	HistogramSize = 10

	// Sample values are binned over [0, HistogramRange]; larger values land
	// in the last bin.
	HistogramRange float32 = 7.5
)

// A per-pixel sample histogram. Bins for the red, green and blue channels
// are stored back to back. X and X2 accumulate the sum and sum of squares of
// the sample luminance.
type Histogram struct {
	Bin            [HistogramSize * 3]float32
	TotalSampleNum float32
	X2             float32
	X              float32
}

// Add a sample. Each channel is split linearly between its two nearest
// bins so the per-channel weights sum to one and the bin-space mean of
// in-range samples is preserved.
func (h *Histogram) Add(sample types.Vec3) {
	for c := 0; c < 3; c++ {
		v := sample[c]
		if !(v > 0) {
			v = 0
		}
		pos := min(v/HistogramRange, 1) * (HistogramSize - 1)
		b0 := int(pos)
		if b0 >= HistogramSize-1 {
			h.Bin[c*HistogramSize+HistogramSize-1]++
			continue
		}
		w := pos - float32(b0)
		h.Bin[c*HistogramSize+b0] += 1 - w
		h.Bin[c*HistogramSize+b0+1] += w
	}

	lum := sample.Luminance()
	h.TotalSampleNum++
	h.X += lum
	h.X2 += lum * lum
}

// Clear all bins and moments.
func (h *Histogram) Reset() {
	*h = Histogram{}
}

// Get the mean sample luminance.
func (h *Histogram) Mean() float32 {
	if h.TotalSampleNum == 0 {
		return 0
	}
	return h.X / h.TotalSampleNum
}

// Reconstruct the per-channel sample mean from the bins. Samples above
// HistogramRange contribute HistogramRange.
func (h *Histogram) BinMean() types.Vec3 {
	var mean types.Vec3
	if h.TotalSampleNum == 0 {
		return mean
	}
	binW := HistogramRange / (HistogramSize - 1)
	for c := 0; c < 3; c++ {
		for b := 0; b < HistogramSize; b++ {
			mean[c] += h.Bin[c*HistogramSize+b] * float32(b) * binW
		}
		mean[c] /= h.TotalSampleNum
	}
	return mean
}

// Get the sample variance of the luminance.
func (h *Histogram) Variance() float32 {
	if h.TotalSampleNum < 2 {
		return 0
	}
	mean := h.Mean()
	return max(0, (h.X2-h.TotalSampleNum*mean*mean)/(h.TotalSampleNum-1))
}

// Get the chi-square distance between two histograms after normalizing
// their bins by the respective sample counts.
func (h *Histogram) ChiSquare(other *Histogram) float32 {
	if h.TotalSampleNum == 0 || other.TotalSampleNum == 0 {
		return 0
	}
	na, nb := h.TotalSampleNum, other.TotalSampleNum
	ka := float32(math.Sqrt(float64(nb / na)))
	kb := float32(math.Sqrt(float64(na / nb)))

	var dist float32
	var bins int
	for i := range h.Bin {
		a, b := h.Bin[i], other.Bin[i]
		if a+b == 0 {
			continue
		}
		d := ka*a - kb*b
		dist += d * d / (a + b)
		bins++
	}
	if bins == 0 {
		return 0
	}
	return dist / float32(bins)
}

// A rendered frame. All buffers are indexed by y*Width + x.
type Frame struct {
	Width  int
	Height int

	// Mean radiance estimate per pixel. This is the accumulator that
	// subsequent frames merge their samples into.
	Radiance []types.Vec3

	// Filtered radiance written by post-processing; nil until a denoiser
	// runs. Radiance is never overwritten by filters.
	Denoised []types.Vec3

	// Sample histogram per pixel.
	Histogram []Histogram

	// Tone-mapped output packed as RGBA8 with red in the lowest byte.
	Aux []uint32
}

// Allocate a frame.
func NewFrame(width, height int) *Frame {
	n := width * height
	return &Frame{
		Width:     width,
		Height:    height,
		Radiance:  make([]types.Vec3, n),
		Histogram: make([]Histogram, n),
		Aux:       make([]uint32, n),
	}
}

// Clear all buffers.
func (f *Frame) Reset() {
	clear(f.Radiance)
	clear(f.Histogram)
	clear(f.Aux)
	clear(f.Denoised)
}

// Get the radiance buffer that should be presented: the denoised buffer if
// one was produced, the accumulated estimate otherwise.
func (f *Frame) Output() []types.Vec3 {
	if f.Denoised != nil {
		return f.Denoised
	}
	return f.Radiance
}

// Returns true if the buffers match the frame dimensions.
func (f *Frame) Valid() bool {
	n := f.Width * f.Height
	return f.Width > 0 && f.Height > 0 &&
		len(f.Radiance) == n && len(f.Histogram) == n && len(f.Aux) == n &&
		(f.Denoised == nil || len(f.Denoised) == n)
}
