package tracer

import (
	"context"
	"errors"
	"time"

	"github.com/achilleasa/nimbus/integrator"
	"github.com/achilleasa/nimbus/scene"
)

var ErrInterrupted = errors.New("tracer: interrupted while rendering block")

// The per-frame state shared by all block requests of a frame.
type Job struct {
	// The estimator used for tracing camera rays.
	Estimator *integrator.Estimator

	// The camera used for generating primary rays.
	Camera scene.Camera

	// The output frame. Each block request writes only to its own rows.
	Frame *Frame
}

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	// Cancelling the context interrupts the block at row batch
	// granularity.
	Ctx context.Context

	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// The number of emitted rays per traced pixel.
	SamplesPerPixel uint32

	// A random seed value for the tracer's random number generator.
	Seed uint64

	// Number of sequential rendered frames from current camera position.
	FrameCount uint32

	// Only render pixels with (x+y+FrameCount) even on all frames but the
	// first one.
	Checkerboard bool

	// Merge new samples with the previous estimate instead of replacing it.
	LastPredict bool

	Job *Job

	// A channel to signal on block completion with the number of completed rows.
	DoneChan chan<- uint32

	// A channel to signal if an error occurs.
	ErrChan chan<- error
}

// Returns true if pixel (x, y) is traced by this request.
func (r *BlockRequest) Traces(x, y uint32) bool {
	if !r.Checkerboard || r.FrameCount == 0 {
		return true
	}
	return (x+y+r.FrameCount)%2 == 0
}

// Tracer statistics.
type Stats struct {
	// The rendered block height
	BlockH uint32

	// The time for rendering this block.
	RenderTime time.Duration
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown and cleanup tracer.
	Close()

	// Get the tracers computation speed estimate compared to a
	// baseline implementation.
	SpeedEstimate() float32

	// Enqueue block request.
	Enqueue(BlockRequest)

	// Retrieve last frame statistics.
	Stats() *Stats
}
