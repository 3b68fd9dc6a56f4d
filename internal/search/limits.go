package search

import (
	"math"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/cache"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
)

// Limits bounds the work a search may do. Occultation fields override their
// general counterparts for occultation events, which recur far more rarely.
type Limits struct {
	StepDays float64 // scan resolution

	EscapeStepDays               float64
	EscapeBudgetYears            float64
	OccultationEscapeStepDays    float64
	OccultationEscapeBudgetYears float64

	MinWindowHalfWidthDays          float64
	WindowLookaheadYears            float64
	OccultationWindowLookaheadYears float64
	WindowMaxIterations             int

	BroadScanYears                float64
	OccultationBroadScanYears     float64
	BroadMaxIterations            int
	OccultationBroadMaxIterations int
	FallbackScanYears             float64 // broad scan horizon when no recurrence period exists

	StabilityDays      float64
	TightStabilityDays float64 // used below TightToleranceDeg and for occultations
	TightToleranceDeg  float64

	YieldEvery int
	CacheSize  int
}

// DefaultLimits returns the standard search limits.
func DefaultLimits() Limits {
	return Limits{
		StepDays: 1,

		EscapeStepDays:               30,
		EscapeBudgetYears:            2,
		OccultationEscapeStepDays:    90,
		OccultationEscapeBudgetYears: 10,

		MinWindowHalfWidthDays:          10,
		WindowLookaheadYears:            5000,
		OccultationWindowLookaheadYears: 50000,
		WindowMaxIterations:             10000,

		BroadScanYears:                100,
		OccultationBroadScanYears:     80000,
		BroadMaxIterations:            100000,
		OccultationBroadMaxIterations: 5000000,
		FallbackScanYears:             1000,

		StabilityDays:      2,
		TightStabilityDays: 1,
		TightToleranceDeg:  1,

		YieldEvery: 500,
		CacheSize:  cache.DefaultCapacity,
	}
}

// plan is Limits resolved for one event and time scale, in hours.
type plan struct {
	stepHours      float64
	escapeStep     float64
	escapeBudget   float64
	minHalfWidth   float64
	lookahead      float64
	windowCap      int
	broadHorizon   float64
	broadCap       int
	fallback       float64
	stabilitySteps int
}

func newPlan(l Limits, ev events.Event, ts catalog.TimeScale) plan {
	occ := ev.Type == events.TypeOccultation
	pick := func(general, occultation float64) float64 {
		if occ {
			return occultation
		}
		return general
	}

	step := l.StepDays
	if step <= 0 {
		step = 1
	}
	p := plan{
		stepHours:    ts.Days(step),
		escapeStep:   ts.Days(pick(l.EscapeStepDays, l.OccultationEscapeStepDays)),
		escapeBudget: ts.Years(pick(l.EscapeBudgetYears, l.OccultationEscapeBudgetYears)),
		minHalfWidth: ts.Days(l.MinWindowHalfWidthDays),
		lookahead:    ts.Years(pick(l.WindowLookaheadYears, l.OccultationWindowLookaheadYears)),
		windowCap:    l.WindowMaxIterations,
		broadHorizon: ts.Years(pick(l.BroadScanYears, l.OccultationBroadScanYears)),
		broadCap:     l.BroadMaxIterations,
		fallback:     ts.Years(l.FallbackScanYears),
	}
	if occ {
		p.broadCap = l.OccultationBroadMaxIterations
	}

	stability := l.StabilityDays
	if occ || ev.LongitudeTolerance < l.TightToleranceDeg {
		stability = l.TightStabilityDays
	}
	p.stabilitySteps = int(math.Ceil(stability/step - 1e-9))
	if p.stabilitySteps < 0 {
		p.stabilitySteps = 0
	}
	return p
}
