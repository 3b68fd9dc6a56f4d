package propagation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
)

// frameJob is a unit of work for the worker pool.
type frameJob struct {
	index int
	hours float64
}

// frameResult is the output of a single keyframe computation.
type frameResult struct {
	index    int
	keyframe *Keyframe
}

// WorkerPool manages a fixed number of goroutines for parallel keyframe generation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch computes a keyframe for every requested time. The result is
// ordered like hours; on cancellation it holds only the frames completed
// before the first gap, and the context error is returned.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, sys *catalog.System, revision uint64, hours []float64) ([]*Keyframe, error) {
	if len(hours) == 0 {
		return nil, nil
	}

	jobs := make(chan frameJob, wp.workers*2)
	results := make(chan frameResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := frameResult{index: job.index, keyframe: KeyframeAt(job.hours, sys, revision)}
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, h := range hours {
			select {
			case jobs <- frameJob{index: i, hours: h}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	frames := make([]*Keyframe, len(hours))
	var done int
	for result := range results {
		frames[result.index] = result.keyframe
		done++
	}

	if done < len(hours) {
		wp.logger.Debug("keyframe batch interrupted",
			"completed", done,
			"requested", len(hours),
		)
		for i, kf := range frames {
			if kf == nil {
				frames = frames[:i]
				break
			}
		}
		if err := ctx.Err(); err != nil {
			return frames, err
		}
	}

	return frames, nil
}
