package cpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/achilleasa/nimbus/log"
	"github.com/achilleasa/nimbus/tracer"
)

var (
	ErrInvalidRequest = errors.New("cpu tracer: invalid block request")
	ErrTracerClosed   = errors.New("cpu tracer: tracer closed")
	ErrBusy           = errors.New("cpu tracer: tracer busy")
)

// A tracer that renders blocks on a pool of goroutines.
type Tracer struct {
	logger log.Logger

	sync.Mutex
	wg sync.WaitGroup

	// The tracer id.
	id string

	// Number of goroutines used for rendering a block.
	workers int

	// A channel for receiving block requests from the renderer.
	blockReqChan chan tracer.BlockRequest

	// A channel for signaling the worker to exit.
	closeChan chan struct{}

	// Statistics for last rendered block.
	statsMu sync.Mutex
	stats   tracer.Stats

	// The tracer rendering pipeline.
	pipeline *Pipeline
}

// Create and start a new cpu tracer. If workers is not positive the tracer
// uses GOMAXPROCS goroutines per block. A nil pipeline selects the default
// pipeline.
func NewTracer(id string, workers int, pipeline *Pipeline) *Tracer {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	if pipeline == nil {
		pipeline = DefaultPipeline()
	}

	tr := &Tracer{
		logger:       log.New(fmt.Sprintf("cpu tracer (%s)", id)),
		id:           id,
		workers:      workers,
		blockReqChan: make(chan tracer.BlockRequest, 1),
		pipeline:     pipeline,
	}
	tr.startWorker()
	return tr
}

// Get tracer id.
func (tr *Tracer) Id() string {
	return tr.id
}

// Get the computation speed estimate. CPU tracers report their worker count.
func (tr *Tracer) SpeedEstimate() float32 {
	return float32(tr.workers)
}

// Shutdown the tracer worker. Close blocks until any in-flight block
// completes.
func (tr *Tracer) Close() {
	tr.Lock()
	defer tr.Unlock()

	// If the worker is running shut it down
	if tr.closeChan != nil {
		tr.closeChan <- struct{}{}

		// wait for worker to ack close and shutdown channel
		<-tr.closeChan
		close(tr.closeChan)
		tr.closeChan = nil
	}
	tr.wg.Wait()
}

// Enqueue block request. At most one request may be pending while the worker
// is rendering; further requests are dropped with an error reply.
func (tr *Tracer) Enqueue(blockReq tracer.BlockRequest) {
	tr.Lock()
	running := tr.closeChan != nil
	tr.Unlock()
	if !running {
		tr.logger.Error("tracer is closed; dropping block request")
		if blockReq.ErrChan != nil {
			blockReq.ErrChan <- ErrTracerClosed
		}
		return
	}

	select {
	case tr.blockReqChan <- blockReq:
	default:
		// drop the request if worker is not listening
		tr.logger.Error("request processor did not receive block request")
		if blockReq.ErrChan != nil {
			blockReq.ErrChan <- ErrBusy
		}
	}
}

// Retrieve last block statistics.
func (tr *Tracer) Stats() *tracer.Stats {
	tr.statsMu.Lock()
	defer tr.statsMu.Unlock()
	stats := tr.stats
	return &stats
}

// Spawn a go-routine to process block render requests.
func (tr *Tracer) startWorker() {
	// Worker already running
	if tr.closeChan != nil {
		return
	}

	closeChan := make(chan struct{})
	tr.closeChan = closeChan
	readyChan := make(chan struct{})
	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		close(readyChan)
		for {
			select {
			case blockReq := <-tr.blockReqChan:
				startTime := time.Now()

				// Render block and reply with our completion status
				err := tr.renderBlock(&blockReq)
				if err != nil {
					tr.logger.Debugf("block [%d, %d) failed: %v", blockReq.BlockY, blockReq.BlockY+blockReq.BlockH, err)
					if blockReq.ErrChan != nil {
						blockReq.ErrChan <- err
					}
					continue
				}

				// Update stats
				tr.statsMu.Lock()
				tr.stats.BlockH = blockReq.BlockH
				tr.stats.RenderTime = time.Since(startTime)
				tr.statsMu.Unlock()

				if blockReq.DoneChan != nil {
					blockReq.DoneChan <- blockReq.BlockH
				}
			case <-closeChan:
				// Ack close
				closeChan <- struct{}{}
				return
			}
		}
	}()

	// Wait for go-routine to start
	<-readyChan
}

// Render block.
func (tr *Tracer) renderBlock(blockReq *tracer.BlockRequest) error {
	if blockReq.Ctx == nil {
		blockReq.Ctx = context.Background()
	}
	job := blockReq.Job
	if job == nil || job.Estimator == nil || job.Frame == nil || !job.Frame.Valid() {
		return ErrInvalidRequest
	}
	if blockReq.BlockY+blockReq.BlockH > uint32(job.Frame.Height) {
		return fmt.Errorf("%w: rows [%d, %d) exceed frame height %d", ErrInvalidRequest, blockReq.BlockY, blockReq.BlockY+blockReq.BlockH, job.Frame.Height)
	}
	if err := blockReq.Ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", tracer.ErrInterrupted, err)
	}

	if !blockReq.LastPredict && tr.pipeline.Reset != nil {
		if _, err := tr.pipeline.Reset(tr, blockReq); err != nil {
			return err
		}
	}

	elapsed, err := tr.pipeline.Integrator(tr, blockReq)
	if err != nil {
		return err
	}
	tr.logger.Debugf("rendered rows [%d, %d) in %d ms", blockReq.BlockY, blockReq.BlockY+blockReq.BlockH, elapsed.Nanoseconds()/1e6)
	return nil
}
