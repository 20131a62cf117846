package cpu

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/tracer"
	"github.com/achilleasa/nimbus/types"
)

// Rows are handed out to the block workers in batches of this size. The
// request context is checked before each batch.
const rowBatch = 4

// An alias for functions that can be used as part of the rendering pipeline.
type PipelineStage func(tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error)

// The list of pluggable stages that are used to render a block.
type Pipeline struct {
	// Reset the per-pixel sample state. This stage is skipped when the
	// block request merges with the previous estimate.
	Reset PipelineStage

	// This stage traces the block pixels and writes their radiance
	// estimate to the frame.
	Integrator PipelineStage
}

func DefaultPipeline() *Pipeline {
	return &Pipeline{
		Reset:      ClearHistograms(),
		Integrator: MonteCarloIntegrator(),
	}
}

// Clear the histograms of all pixels traced by the block request.
func ClearHistograms() PipelineStage {
	return func(tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		start := time.Now()
		frame := blockReq.Job.Frame
		for y := blockReq.BlockY; y < blockReq.BlockY+blockReq.BlockH; y++ {
			row := int(y) * frame.Width
			for x := 0; x < frame.Width; x++ {
				if blockReq.Traces(uint32(x), y) {
					frame.Histogram[row+x].Reset()
				}
			}
		}
		return time.Since(start), nil
	}
}

// Trace SamplesPerPixel camera rays for every pixel in the block. Each
// pixel draws its random numbers from a stream keyed by the frame count and
// pixel index so the output does not depend on how rows are distributed
// between workers.
func MonteCarloIntegrator() PipelineStage {
	return func(tr *Tracer, blockReq *tracer.BlockRequest) (time.Duration, error) {
		start := time.Now()
		job := blockReq.Job
		frame := job.Frame
		spp := max(blockReq.SamplesPerPixel, 1)

		var (
			nextRow int64
			wg      sync.WaitGroup
		)
		renderRows := func(s *integrator.Sampler) {
			defer wg.Done()
			for blockReq.Ctx.Err() == nil {
				first := uint32(atomic.AddInt64(&nextRow, rowBatch)) - rowBatch
				if first >= blockReq.BlockH {
					return
				}
				for y := blockReq.BlockY + first; y < blockReq.BlockY+min(first+rowBatch, blockReq.BlockH); y++ {
					for x := 0; x < frame.Width; x++ {
						if !blockReq.Traces(uint32(x), y) {
							continue
						}
						idx := int(y)*frame.Width + x
						s.Seed(blockReq.Seed, integrator.Stream(blockReq.FrameCount, idx))
						tracePixel(job, idx, x, int(y), spp, s)
					}
				}
			}
		}

		workers := min(tr.workers, int(blockReq.BlockH+rowBatch-1)/rowBatch)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go renderRows(integrator.NewSampler(blockReq.Seed, uint64(w)))
		}
		wg.Wait()

		if err := blockReq.Ctx.Err(); err != nil {
			return time.Since(start), fmt.Errorf("%w: %w", tracer.ErrInterrupted, err)
		}
		return time.Since(start), nil
	}
}

// Trace a single pixel and merge its samples with the existing histogram.
func tracePixel(job *tracer.Job, idx, x, y int, spp uint32, s *integrator.Sampler) {
	frame := job.Frame
	hist := &frame.Histogram[idx]
	prevN := hist.TotalSampleNum

	var sum types.Vec3
	for i := uint32(0); i < spp; i++ {
		ori, dir := job.Camera.Ray(x, y, frame.Width, frame.Height, s.Vec2())
		sample := job.Estimator.Radiance(ori, dir, s)
		hist.Add(sample)
		sum = sum.Add(sample)
	}

	if prevN == 0 {
		frame.Radiance[idx] = sum.Mul(1 / float32(spp))
		return
	}
	frame.Radiance[idx] = frame.Radiance[idx].Mul(prevN).Add(sum).Mul(1 / (prevN + float32(spp)))
}

// Number of block workers used by default.
func defaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}
