package propagation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/star/tlepos/internal/transform"
)

// seriesJob is a unit of work for the worker pool.
type seriesJob struct {
	index int
	at    transform.Epoch
}

// seriesResult is the output of a single instant.
type seriesResult struct {
	index int
	point SeriesPoint
}

// WorkerPool manages a fixed number of goroutines for parallel evaluation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Series evaluates prop at every instant and rotates the result into the
// earth-fixed frame. The returned slice has one point per instant in input
// order; per-instant failures are reported in SeriesPoint.Err. If ctx is
// cancelled before all instants are done, Series returns ctx.Err().
func (wp *WorkerPool) Series(ctx context.Context, prop *Propagator, frames transform.Frames, instants []transform.Epoch) ([]SeriesPoint, error) {
	if len(instants) == 0 {
		return nil, nil
	}

	jobs := make(chan seriesJob, wp.workers*2)
	results := make(chan seriesResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := seriesResult{index: job.index, point: evaluate(prop, frames, job.at)}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, at := range instants {
			select {
			case jobs <- seriesJob{index: i, at: at}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results into their input slots.
	points := make([]SeriesPoint, len(instants))
	var done, failed int
	for result := range results {
		points[result.index] = result.point
		done++
		if result.point.Err != nil {
			failed++
		}
	}

	if err := ctx.Err(); err != nil && done < len(instants) {
		return nil, err
	}
	if failed > 0 {
		wp.logger.Debug("series evaluated with failures",
			"satnum", prop.el.SatNum,
			"points", len(points),
			"failed", failed,
		)
	}
	return points, nil
}

// evaluate propagates one instant and rotates it to ITRF.
func evaluate(prop *Propagator, frames transform.Frames, at transform.Epoch) SeriesPoint {
	teme, err := prop.Propagate(at)
	if err != nil {
		return SeriesPoint{Epoch: at, Err: err}
	}
	itrf, err := transform.RotateToEarthFixed(teme, frames)
	if err != nil {
		return SeriesPoint{Epoch: at, Err: err}
	}
	return SeriesPoint{Epoch: at, State: itrf}
}
