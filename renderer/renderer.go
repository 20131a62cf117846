package renderer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/log"
	"github.com/achilleasa/nimbus/scene"
	"github.com/achilleasa/nimbus/tracer"
	"github.com/achilleasa/nimbus/tracer/cpu"
	"github.com/achilleasa/nimbus/types"
)

type Renderer interface {
	// Render the next frame into the supplied frame buffers.
	Render(ctx context.Context, frame *tracer.Frame) error

	// Discard the accumulated estimate; the next frame starts over.
	Reset()

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}

// The default renderer splits each frame into row blocks, renders them on
// a pool of cpu tracers and runs the post-process stages on the result.
type defaultRenderer struct {
	logger log.Logger

	scene     *scene.Scene
	scheduler tracer.BlockScheduler
	pipeline  *Pipeline
	options   Options

	tracers []tracer.Tracer

	// The snapshot and frame the accumulated estimate belongs to.
	lastSnap  *scene.Snapshot
	lastFrame *tracer.Frame

	frameCount       uint32
	blockAssignments []uint32
	stats            FrameStats
}

// Create a new default renderer using the specified block scheduler and
// pipeline. A nil pipeline selects DefaultPipeline(opts).
func NewDefault(sc *scene.Scene, scheduler tracer.BlockScheduler, pipeline *Pipeline, opts Options) (Renderer, error) {
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if scheduler == nil {
		scheduler = tracer.PerfectScheduler()
	}
	if pipeline == nil {
		pipeline = DefaultPipeline(opts)
	}

	r := &defaultRenderer{
		logger:    log.New("renderer"),
		scene:     sc,
		scheduler: scheduler,
		pipeline:  pipeline,
		options:   opts,
	}

	numTracers := max(opts.NumTracers, 1)
	for idx := 0; idx < numTracers; idx++ {
		r.tracers = append(r.tracers, cpu.NewTracer(fmt.Sprintf("cpu-%d", idx), opts.TracerWorkers, pipeline.Tracer))
	}
	if len(r.tracers) == 0 {
		return nil, ErrNoTracers
	}

	r.logger.Debugf("using %d tracer(s) for %dx%d frames", len(r.tracers), opts.FrameW, opts.FrameH)
	return r, nil
}

// Shutdown and cleanup renderer and all connected tracers.
func (r *defaultRenderer) Close() {
	for _, tr := range r.tracers {
		tr.Close()
	}
	r.tracers = nil
}

func (r *defaultRenderer) Reset() {
	r.frameCount = 0
}

// Get render statistics.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}

// Render a frame. Transmittance and phase tables are rebuilt only when
// their parameters changed. A new scene snapshot or a different frame
// buffer restarts accumulation.
func (r *defaultRenderer) Render(ctx context.Context, frame *tracer.Frame) error {
	if len(r.tracers) == 0 {
		return ErrNoTracers
	}
	if frame == nil || !frame.Valid() || frame.Width != int(r.options.FrameW) || frame.Height != int(r.options.FrameH) {
		return ErrInvalidFrame
	}

	start := time.Now()
	snap, err := r.prepareScene()
	if err != nil {
		return err
	}
	if snap != r.lastSnap || frame != r.lastFrame {
		r.frameCount = 0
		r.lastSnap = snap
		r.lastFrame = frame
	}

	est, err := integrator.New(snap, r.options.Params())
	if err != nil {
		return err
	}
	job := &tracer.Job{
		Estimator: est,
		Camera:    r.options.Camera,
		Frame:     frame,
	}

	if err = r.renderBlocks(ctx, job, snap.Settings.Checkerboard); err != nil {
		return err
	}

	ppStart := time.Now()
	for _, stage := range r.pipeline.PostProcess {
		if _, err = stage(frame, snap); err != nil {
			return err
		}
	}

	r.frameCount++
	r.updateStats(start, time.Since(ppStart))
	r.logger.Infof("frame %d rendered in %d ms (post-process %d ms)", r.frameCount, r.stats.RenderTime.Nanoseconds()/1e6, r.stats.PostProcessTime.Nanoseconds()/1e6)
	return nil
}

// Ensure the scene tables match the render options and get a snapshot.
func (r *defaultRenderer) prepareScene() (*scene.Snapshot, error) {
	if r.options.Mode != integrator.PT {
		if _, err := r.scene.UpdateTransmittance(r.options.LightDir, r.options.Alpha, false); err != nil {
			return nil, err
		}
	}
	r.scene.UpdatePhaseLUT(r.options.G)
	return r.scene.Snapshot()
}

// Split the frame between the tracers and wait for all blocks.
func (r *defaultRenderer) renderBlocks(ctx context.Context, job *tracer.Job, checkerboard bool) error {
	r.blockAssignments = r.scheduler.Schedule(r.tracers, r.options.FrameH)

	doneChan := make(chan uint32, len(r.tracers))
	errChan := make(chan error, len(r.tracers))
	var blockY uint32
	pending := 0
	for idx, tr := range r.tracers {
		blockH := r.blockAssignments[idx]
		if blockH == 0 {
			continue
		}
		tr.Enqueue(tracer.BlockRequest{
			Ctx:             ctx,
			BlockY:          blockY,
			BlockH:          blockH,
			SamplesPerPixel: r.options.SamplesPerPixel,
			Seed:            r.options.Seed,
			FrameCount:      r.frameCount,
			Checkerboard:    checkerboard,
			LastPredict:     r.options.LastPredict && r.frameCount > 0,
			Job:             job,
			DoneChan:        doneChan,
			ErrChan:         errChan,
		})
		blockY += blockH
		pending++
	}

	// Tracers observe the context so every block replies.
	var firstErr error
	for ; pending > 0; pending-- {
		select {
		case <-doneChan:
		case err := <-errChan:
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		// The accumulated estimate is now partially updated
		r.frameCount = 0
		if errors.Is(firstErr, tracer.ErrInterrupted) {
			return fmt.Errorf("%w: %w", ErrInterrupted, firstErr)
		}
		return firstErr
	}
	return nil
}

func (r *defaultRenderer) updateStats(start time.Time, postProcess time.Duration) {
	r.stats = FrameStats{
		Tracers:         make([]TracerStat, len(r.tracers)),
		FrameCount:      r.frameCount,
		PostProcessTime: postProcess,
		RenderTime:      time.Since(start),
	}
	for idx, tr := range r.tracers {
		trStats := tr.Stats()
		r.stats.Tracers[idx] = TracerStat{
			Id:           tr.Id(),
			BlockH:       r.blockAssignments[idx],
			FramePercent: 100 * float32(r.blockAssignments[idx]) / float32(r.options.FrameH),
			RenderTime:   trStats.RenderTime,
		}
	}
}

// Render a single frame and return its (denoised, if requested) radiance
// buffer in row-major order.
// The scene must have been updated.
func RenderImage(ctx context.Context, sc *scene.Scene, opts Options) ([]types.Vec3, error) {
	r, err := NewDefault(sc, tracer.NaiveScheduler(), nil, opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	frame := tracer.NewFrame(int(opts.FrameW), int(opts.FrameH))
	if err = r.Render(ctx, frame); err != nil {
		return nil, err
	}
	return frame.Output(), nil
}
