package precompute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/eventstore"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/metrics"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/search"
)

const (
	DefaultHorizonYears = 100000
	DefaultBufferDays   = 3
)

// Plan selects what a driver run computes.
type Plan struct {
	Events       []string // priority order; empty means every event
	StartHours   float64
	HorizonYears float64 // measured from StartHours
	Workers      int
	BufferDays   float64 // gap after each find before the next search
}

func (p Plan) withDefaults() Plan {
	if p.HorizonYears <= 0 {
		p.HorizonYears = DefaultHorizonYears
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.BufferDays <= 0 {
		p.BufferDays = DefaultBufferDays
	}
	return p
}

// Stop explains why an event's walk ended.
type Stop string

const (
	StopHorizon   Stop = "horizon"
	StopNotFound  Stop = "not_found"
	StopCancelled Stop = "cancelled"
	StopError     Stop = "error"
)

// EventSummary reports one event's walk.
type EventSummary struct {
	Name      string  `json:"name"`
	Found     int     `json:"found"`
	FromHours float64 `json:"from_hours"`
	LastHours float64 `json:"last_hours,omitempty"` // zero when nothing was found
	Stop      Stop    `json:"stop"`
	Error     string  `json:"error,omitempty"`
}

// Summary reports a driver run.
type Summary struct {
	Events   []EventSummary `json:"events"`
	Found    int            `json:"found"`
	Stored   int            `json:"stored"`
	Duration time.Duration  `json:"duration"`
}

// Driver runs searches for many events and persists their occurrences.
type Driver struct {
	store  eventstore.Store
	finder search.Finder
	logger *slog.Logger
}

// NewDriver creates a driver persisting to store.
func NewDriver(store eventstore.Store, finder search.Finder, logger *slog.Logger) *Driver {
	return &Driver{store: store, finder: finder, logger: logger}
}

type eventJob struct {
	index int
	event events.Event
}

// Run walks every selected event from the plan start, or from just after its
// last stored occurrence, to the horizon. Each find is appended to the store
// before the next search starts, so an interrupted run resumes where it
// stopped. Events are processed by plan.Workers goroutines.
func (d *Driver) Run(ctx context.Context, sys *catalog.System, reg *events.Registry, plan Plan) (Summary, error) {
	if d.store == nil {
		return Summary{}, eventstore.ErrNoStore
	}
	plan = plan.withDefaults()

	evs, err := reg.Select(plan.Events)
	if err != nil {
		return Summary{}, err
	}

	records, err := d.store.Load(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("loading event store: %w", err)
	}
	table := NewTable(records)
	metrics.SetPrecomputedStored(table.Len())

	start := time.Now()
	d.logger.Info("precompute started",
		"events", len(evs),
		"stored", table.Len(),
		"workers", plan.Workers,
		"horizon_years", plan.HorizonYears,
	)

	jobs := make(chan eventJob)
	summaries := make([]EventSummary, len(evs))
	for i, ev := range evs {
		summaries[i] = EventSummary{Name: ev.Name, Stop: StopCancelled}
	}

	var wg sync.WaitGroup
	for i := 0; i < plan.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				summaries[job.index] = d.walk(ctx, sys, job.event, plan, table)
			}
		}()
	}

dispatch:
	for i, ev := range evs {
		select {
		case jobs <- eventJob{index: i, event: ev}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	sum := Summary{Events: summaries, Stored: table.Len(), Duration: time.Since(start)}
	for _, es := range summaries {
		sum.Found += es.Found
	}

	d.logger.Info("precompute finished",
		"found", sum.Found,
		"stored", sum.Stored,
		"duration", sum.Duration.String(),
	)

	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("precompute interrupted: %w", err)
	}
	return sum, nil
}

// walk finds successive occurrences of one event until the horizon.
func (d *Driver) walk(ctx context.Context, sys *catalog.System, ev events.Event, plan Plan, table *Table) EventSummary {
	ts := sys.Time
	buffer := ts.Days(plan.BufferDays)
	end := plan.StartHours + ts.Years(plan.HorizonYears)

	cursor := plan.StartHours
	if last, ok := table.Last(ev.Name); ok {
		cursor = math.Max(cursor, last+buffer)
	}

	es := EventSummary{Name: ev.Name, FromHours: cursor}
	logger := d.logger.With("event", ev.Name)

	for {
		if cursor > end {
			es.Stop = StopHorizon
			break
		}

		res, err := d.finder.Find(ctx, search.Request{
			StartHours:           cursor,
			Event:                ev,
			System:               sys,
			Direction:            search.Next,
			RequireSunSeparation: true,
		})
		if err != nil {
			if errors.Is(err, search.ErrCancelled) {
				es.Stop = StopCancelled
			} else {
				es.Stop = StopError
				es.Error = err.Error()
			}
			break
		}
		if res == nil {
			es.Stop = StopNotFound
			break
		}
		if res.FoundHours > end {
			es.Stop = StopHorizon
			break
		}

		rec := eventstore.NewRecord(ev.Name, res.FoundHours, res.ViewingLatitude, res.ViewingLongitude, ts)
		if err := d.store.Append(ctx, rec); err != nil {
			es.Stop = StopError
			es.Error = err.Error()
			logger.Error("persisting occurrence", "found_hours", res.FoundHours, "error", err)
			break
		}
		if table.Add(rec) {
			es.Found++
			metrics.IncPrecomputed(ev.Name)
			metrics.SetPrecomputedStored(table.Len())
		}
		es.LastHours = res.FoundHours

		logger.Info("occurrence found",
			"found_hours", res.FoundHours,
			"year", rec.Year,
			"day", rec.Day,
			"latitude", rec.Latitude,
			"longitude", rec.Longitude,
		)

		next := res.FoundHours + buffer
		if next <= cursor {
			next = cursor + buffer
		}
		cursor = next
	}

	logger.Debug("event walk ended", "stop", string(es.Stop), "found", es.Found)
	return es
}
