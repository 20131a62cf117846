package renderer

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/tracer"
	"github.com/achilleasa/nimbus/tracer/cpu"
	"github.com/achilleasa/nimbus/types"
	"github.com/mrjoshuak/go-openexr/exr"
)

const (
	// Default neighbourhood radius and chi-square threshold for the
	// histogram denoiser.
	DenoiseRadius    = 3
	DenoiseThreshold = 1.0
)

// An alias for functions that post-process a rendered frame.
type PostProcessStage func(frame *tracer.Frame, snap *scene.Snapshot) (time.Duration, error)

// The list of pluggable stages that are used to render the scene.
type Pipeline struct {
	// The stages executed by each tracer for its block.
	Tracer *cpu.Pipeline

	// A set of post-processing stages that are executed once all blocks
	// of a frame are rendered.
	PostProcess []PostProcessStage
}

func DefaultPipeline(opts Options) *Pipeline {
	pipeline := &Pipeline{
		Tracer: cpu.DefaultPipeline(),
	}
	if opts.Denoise {
		pipeline.PostProcess = append(pipeline.PostProcess, DenoiseHistogram(DenoiseRadius, DenoiseThreshold))
	}
	pipeline.PostProcess = append(pipeline.PostProcess, Tonemap(opts.ToneType))
	return pipeline
}

// Write into the frame's denoised buffer the mean radiance of the
// neighbours within radius whose sample histograms are closer than
// threshold in chi-square distance. Pixels without samples keep their
// radiance. The accumulated radiance buffer is not modified.
func DenoiseHistogram(radius int, threshold float32) PostProcessStage {
	return func(frame *tracer.Frame, _ *scene.Snapshot) (time.Duration, error) {
		start := time.Now()
		if len(frame.Denoised) != len(frame.Radiance) {
			frame.Denoised = make([]types.Vec3, len(frame.Radiance))
		}
		out := frame.Denoised
		forEachRow(frame.Height, func(y int) {
			for x := 0; x < frame.Width; x++ {
				idx := y*frame.Width + x
				hist := &frame.Histogram[idx]
				if hist.TotalSampleNum == 0 {
					out[idx] = frame.Radiance[idx]
					continue
				}

				var sum types.Vec3
				var weight float32
				for ny := max(y-radius, 0); ny <= min(y+radius, frame.Height-1); ny++ {
					for nx := max(x-radius, 0); nx <= min(x+radius, frame.Width-1); nx++ {
						nIdx := ny*frame.Width + nx
						other := &frame.Histogram[nIdx]
						if other.TotalSampleNum == 0 || hist.ChiSquare(other) >= threshold {
							continue
						}
						sum = sum.Add(frame.Radiance[nIdx])
						weight++
					}
				}
				if weight == 0 {
					out[idx] = frame.Radiance[idx]
					continue
				}
				out[idx] = sum.Mul(1 / weight)
			}
		})
		return time.Since(start), nil
	}
}

// Tone map the frame output into the aux buffer using the snapshot's
// exposure.
func Tonemap(toneType ToneType) PostProcessStage {
	return func(frame *tracer.Frame, snap *scene.Snapshot) (time.Duration, error) {
		start := time.Now()
		exposure := float32(1)
		if snap != nil {
			exposure = snap.Settings.Exposure
		}
		radiance := frame.Output()
		forEachRow(frame.Height, func(y int) {
			for x := 0; x < frame.Width; x++ {
				idx := y*frame.Width + x
				frame.Aux[idx] = toneType.Pack(radiance[idx], exposure)
			}
		})
		return time.Since(start), nil
	}
}

// Save the tone mapped aux buffer as a PNG image.
func SaveFrameBuffer(imgFile string) PostProcessStage {
	return func(frame *tracer.Frame, _ *scene.Snapshot) (time.Duration, error) {
		start := time.Now()
		img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
		for idx, packed := range frame.Aux {
			offset := idx * 4
			img.Pix[offset] = uint8(packed)
			img.Pix[offset+1] = uint8(packed >> 8)
			img.Pix[offset+2] = uint8(packed >> 16)
			img.Pix[offset+3] = uint8(packed >> 24)
		}

		f, err := os.Create(imgFile)
		if err != nil {
			return 0, fmt.Errorf("renderer: could not save frame buffer: %w", err)
		}
		defer f.Close()

		if err = png.Encode(f, img); err != nil {
			return 0, fmt.Errorf("renderer: could not encode frame buffer: %w", err)
		}
		return time.Since(start), f.Close()
	}
}

// Save the linear frame output as an OpenEXR image.
func SaveRadianceEXR(imgFile string) PostProcessStage {
	return func(frame *tracer.Frame, _ *scene.Snapshot) (time.Duration, error) {
		start := time.Now()
		radiance := frame.Output()
		img := exr.NewRGBAImage(image.Rect(0, 0, frame.Width, frame.Height))
		for y := 0; y < frame.Height; y++ {
			for x := 0; x < frame.Width; x++ {
				c := radiance[y*frame.Width+x]
				img.SetRGBA(x, y, c[0], c[1], c[2], 1)
			}
		}
		if err := exr.EncodeFile(imgFile, img); err != nil {
			return 0, fmt.Errorf("renderer: could not save radiance buffer: %w", err)
		}
		return time.Since(start), nil
	}
}

// Run fn for every row on GOMAXPROCS goroutines.
func forEachRow(rows int, fn func(y int)) {
	workers := min(runtime.GOMAXPROCS(0), rows)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(first int) {
			defer wg.Done()
			for y := first; y < rows; y += workers {
				fn(y)
			}
		}(w)
	}
	wg.Wait()
}
