package search

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/metrics"
)

type options struct {
	logger   *slog.Logger
	progress func(Status)
}

// Option configures a Search.
type Option func(*options)

// WithLogger sets the logger used for phase transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgress registers a hook Run calls at every yield point.
func WithProgress(fn func(Status)) Option {
	return func(o *options) { o.progress = fn }
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Run drives the search to completion. Every YieldEvery evaluations it
// yields the processor, reports progress and checks ctx. It returns the
// result when found, (nil, nil) when the search space is exhausted, and an
// error wrapping ErrCancelled and ctx.Err() when ctx ends first.
func (s *Search) Run(ctx context.Context, opts ...Option) (*Result, error) {
	o := applyOptions(opts)
	every := s.limits.YieldEvery
	if every < 1 {
		every = 500
	}

	start := time.Now()
	defer func() { s.record(time.Since(start)) }()

	for {
		if err := ctx.Err(); err != nil {
			s.Cancel()
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		st := s.Step(every)
		switch st.Phase {
		case PhaseFound:
			s.logger.Debug("search found",
				"found_hours", s.result.FoundHours,
				"iterations", s.iterations,
				"windows", s.windows,
			)
			return s.result, nil
		case PhaseExhausted:
			s.logger.Debug("search exhausted", "iterations", s.iterations, "windows", s.windows)
			return nil, nil
		case PhaseCancelled:
			return nil, ErrCancelled
		}

		if o.progress != nil {
			o.progress(st)
		}
		runtime.Gosched()
	}
}

func (s *Search) record(d time.Duration) {
	st := s.cache.Stats()
	metrics.RecordSearch(s.req.Event.Name, s.req.Direction.String(), outcomeLabel(s.phase), d, s.iterations, s.windows)
	metrics.RecordPositionCache(st.Hits, st.Misses, st.Evictions)
}

func outcomeLabel(p Phase) string {
	switch p {
	case PhaseFound:
		return "found"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "not_found"
	}
}

// Find runs one search with default limits.
func Find(ctx context.Context, req Request, opts ...Option) (*Result, error) {
	return New(req, DefaultLimits(), opts...).Run(ctx, opts...)
}

// Finder runs searches with fixed limits and logger.
type Finder struct {
	Limits Limits
	Logger *slog.Logger
}

// NewFinder returns a Finder using DefaultLimits.
func NewFinder(logger *slog.Logger) Finder {
	return Finder{Limits: DefaultLimits(), Logger: logger}
}

// Find runs one search.
func (f Finder) Find(ctx context.Context, req Request, opts ...Option) (*Result, error) {
	opts = append([]Option{WithLogger(f.Logger)}, opts...)
	return New(req, f.Limits, opts...).Run(ctx, opts...)
}

// Outcome is the result of one search in a FindMany batch.
type Outcome struct {
	Event  string  `json:"event"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// FindMany runs independent searches concurrently, each with its own cache,
// bounded by a semaphore. Results are ordered like reqs.
func (f Finder) FindMany(ctx context.Context, reqs []Request) []Outcome {
	results := make([]Outcome, len(reqs))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Outcome{Event: r.Event.Name, Error: "cancelled"}
				return
			}

			res, err := f.Find(ctx, r)
			if err != nil {
				results[idx] = Outcome{Event: r.Event.Name, Error: err.Error()}
				return
			}
			results[idx] = Outcome{Event: r.Event.Name, Result: res}
		}(i, req)
	}

	wg.Wait()
	return results
}
