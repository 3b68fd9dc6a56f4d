package propagation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/metrics"
)

// DefaultMaxFrames bounds a single GenerateKeyframes call.
const DefaultMaxFrames = 1000

// Propagator produces keyframes for the catalog currently held by a store.
type Propagator struct {
	store  *catalog.Store
	pool   *WorkerPool
	config PropConfig
	logger *slog.Logger
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(store *catalog.Store, config PropConfig, logger *slog.Logger) *Propagator {
	if config.MaxFrames <= 0 {
		config.MaxFrames = DefaultMaxFrames
	}
	return &Propagator{
		store:  store,
		pool:   NewWorkerPool(config.Workers, logger),
		config: config,
		logger: logger,
	}
}

// MaxFrames returns the largest count GenerateKeyframes accepts.
func (p *Propagator) MaxFrames() int { return p.config.MaxFrames }

// PropagateToTime generates a single keyframe at the given simulated hours.
func (p *Propagator) PropagateToTime(ctx context.Context, hours float64) (*Keyframe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sys, err := p.store.System()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	kf := KeyframeAt(hours, sys, p.store.Revision())
	metrics.RecordPropagation(time.Since(start), len(kf.Bodies))
	return kf, nil
}

// GenerateKeyframes generates count keyframes starting at startHours and
// spaced stepHours apart.
func (p *Propagator) GenerateKeyframes(ctx context.Context, startHours, stepHours float64, count int) ([]*Keyframe, error) {
	if count < 1 {
		return nil, fmt.Errorf("keyframe count must be positive, got %d", count)
	}
	if count > p.config.MaxFrames {
		return nil, fmt.Errorf("keyframe count %d exceeds limit %d", count, p.config.MaxFrames)
	}
	if stepHours <= 0 && count > 1 {
		return nil, fmt.Errorf("keyframe step must be positive, got %g", stepHours)
	}

	sys, err := p.store.System()
	if err != nil {
		return nil, err
	}

	hours := make([]float64, count)
	for i := range hours {
		hours[i] = startHours + float64(i)*stepHours
	}

	p.logger.Debug("generating keyframes",
		"start_hours", startHours,
		"step_hours", stepHours,
		"count", count,
		"workers", p.pool.workers,
	)

	start := time.Now()
	frames, err := p.pool.PropagateBatch(ctx, sys, p.store.Revision(), hours)
	duration := time.Since(start)
	metrics.RecordPropagation(duration, len(frames)*len(sys.Bodies))

	if err != nil {
		return frames, fmt.Errorf("keyframes from %g h: %w", startHours, err)
	}
	return frames, nil
}
