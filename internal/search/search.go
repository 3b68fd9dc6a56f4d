// Package search finds the next, previous or first occurrence of a celestial
// event. A Search is a resumable step function: callers drive it with Step,
// or let Run drive it with cooperative yields and context cancellation.
package search

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/cache"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/propagation"
)

// ErrCancelled is returned when a search stops because its context ended.
var ErrCancelled = errors.New("search cancelled")

// Direction selects which occurrence to look for relative to the start.
type Direction int

const (
	// Next finds the first occurrence after the start, skipping one already
	// in progress.
	Next Direction = iota
	// Previous searches backwards in time, skipping one already in progress.
	Previous
	// First finds the first occurrence at or after the start, including one
	// already in progress.
	First
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Previous:
		return "previous"
	case First:
		return "first"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses "next", "previous" or "first". Empty means next.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "next":
		return Next, nil
	case "previous", "prev":
		return Previous, nil
	case "first":
		return First, nil
	}
	return Next, fmt.Errorf("unknown search direction %q", s)
}

func (d Direction) sign() float64 {
	if d == Previous {
		return -1
	}
	return 1
}

// Request describes one search.
type Request struct {
	StartHours           float64
	Event                events.Event
	System               *catalog.System
	Direction            Direction
	RequireSunSeparation bool
}

// Result is the first stable occurrence found.
type Result struct {
	FoundHours       float64 `json:"found_hours"`
	ViewingLatitude  float64 `json:"viewing_latitude"`
	ViewingLongitude float64 `json:"viewing_longitude"`
}

// Phase is the state of a Search.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseEscape
	PhaseWindowScan
	PhaseBroadScan
	PhaseFound
	PhaseExhausted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseEscape:
		return "escape"
	case PhaseWindowScan:
		return "window_scan"
	case PhaseBroadScan:
		return "broad_scan"
	case PhaseFound:
		return "found"
	case PhaseExhausted:
		return "exhausted"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Done reports whether the phase is terminal.
func (p Phase) Done() bool {
	return p == PhaseFound || p == PhaseExhausted || p == PhaseCancelled
}

// Status is a progress report.
type Status struct {
	Phase       Phase   `json:"-"`
	PhaseName   string  `json:"phase"`
	Iterations  int     `json:"iterations"`
	CursorHours float64 `json:"cursor_hours"`
	Windows     int     `json:"windows"`
}

// span is the range currently being scanned, bounded by end (inclusive, in
// the scan direction) and an iteration cap.
type span struct {
	active bool
	end    float64
	cap    int
	iter   int
}

// stability tracks confirmation of a hit.
type stability struct {
	active    bool
	hit       float64
	outcome   events.Outcome
	confirmed int
}

// Search is the state of one event search. It owns its position cache and
// is not safe for concurrent use.
type Search struct {
	req    Request
	limits Limits
	plan   plan
	sign   float64
	logger *slog.Logger

	phase Phase
	cache *cache.PositionCache

	cursor  float64
	escaped float64
	origin  float64 // cursor after the escape phase

	recurrence float64 // hours; 0 when no recurrence period exists
	halfWidth  float64
	nextK      float64
	lastFar    float64
	windows    int

	span       span
	stab       stability
	iterations int
	result     *Result
}

// New creates a search. Nothing is evaluated until Step or Run.
func New(req Request, limits Limits, opts ...Option) *Search {
	o := applyOptions(opts)
	ts := catalog.DefaultTimeScale()
	if req.System != nil {
		ts = req.System.Time
	}
	return &Search{
		req:    req,
		limits: limits,
		plan:   newPlan(limits, req.Event, ts),
		sign:   req.Direction.sign(),
		logger: o.logger.With("event", req.Event.Name, "direction", req.Direction.String()),
		phase:  PhaseInit,
		cache:  cache.NewPositionCache(limits.CacheSize, ts.HoursPerDay),
		cursor: req.StartHours,
	}
}

// Phase returns the current phase.
func (s *Search) Phase() Phase { return s.phase }

// Result returns the occurrence once the phase is PhaseFound.
func (s *Search) Result() *Result { return s.result }

// CacheStats returns the search's position cache statistics.
func (s *Search) CacheStats() cache.CacheStats { return s.cache.Stats() }

// Status returns a progress report.
func (s *Search) Status() Status {
	return Status{
		Phase:       s.phase,
		PhaseName:   s.phase.String(),
		Iterations:  s.iterations,
		CursorHours: s.cursor,
		Windows:     s.windows,
	}
}

// Cancel moves a running search to PhaseCancelled.
func (s *Search) Cancel() {
	if !s.phase.Done() {
		s.setPhase(PhaseCancelled)
	}
}

// Step advances the search by at most budget predicate evaluations.
func (s *Search) Step(budget int) Status {
	for n := 0; n < budget && !s.phase.Done(); {
		switch s.phase {
		case PhaseInit:
			s.init()
		case PhaseEscape:
			s.escapeStep()
			n++
		case PhaseWindowScan:
			if s.windowStep() {
				n++
			}
		case PhaseBroadScan:
			if s.broadStep() {
				n++
			}
		}
	}
	return s.Status()
}

func (s *Search) setPhase(p Phase) {
	s.logger.Debug("search phase",
		"from", s.phase.String(),
		"to", p.String(),
		"cursor_hours", s.cursor,
		"iterations", s.iterations,
	)
	s.phase = p
}

func (s *Search) init() {
	if s.req.System == nil {
		s.setPhase(PhaseExhausted)
		return
	}
	if s.req.Direction == First {
		s.enterWindowScan()
		return
	}
	s.setPhase(PhaseEscape)
}

// escapeStep moves past an occurrence already in progress at the start so
// it is not reported again.
func (s *Search) escapeStep() {
	if !s.evaluate(s.cursor).Met || s.escaped >= s.plan.escapeBudget {
		s.enterWindowScan()
		return
	}
	s.cursor += s.sign * s.plan.escapeStep
	s.escaped += s.plan.escapeStep
}

func (s *Search) enterWindowScan() {
	s.origin = s.cursor
	s.lastFar = math.NaN()

	days, ok := events.EstimateRecurrenceDays(s.req.Event, s.req.System)
	if !ok {
		s.logger.Debug("no recurrence period, falling back to broad scan")
		s.enterBroadScan(true)
		return
	}

	ts := s.req.System.Time
	s.recurrence = ts.Days(days)
	s.halfWidth = math.Max(s.plan.minHalfWidth, 0.5*(s.req.Event.LongitudeTolerance/360)*s.recurrence)

	// First window whose far edge reaches the origin in the scan direction.
	if s.sign > 0 {
		s.nextK = math.Ceil((s.origin - s.halfWidth) / s.recurrence)
	} else {
		s.nextK = math.Floor((s.origin + s.halfWidth) / s.recurrence)
	}

	s.setPhase(PhaseWindowScan)
}

// openWindow starts the next candidate window, or falls through to the
// broad scan when the lookahead is exhausted.
func (s *Search) openWindow() {
	center := s.nextK * s.recurrence
	s.nextK += s.sign

	if math.Abs(center-s.origin) > s.plan.lookahead {
		s.logger.Debug("window lookahead exhausted", "windows", s.windows)
		s.enterBroadScan(false)
		return
	}

	near := center - s.sign*s.halfWidth
	far := center + s.sign*s.halfWidth
	if s.sign*(near-s.origin) < 0 {
		near = s.origin
	}
	if !math.IsNaN(s.lastFar) && s.sign*(near-s.lastFar) <= 0 {
		near = s.lastFar + s.sign*s.plan.stepHours
	}
	s.lastFar = far
	if s.sign*(far-near) < 0 {
		return
	}

	s.cursor = near
	s.span = span{active: true, end: far, cap: s.plan.windowCap}
	s.windows++
}

func (s *Search) windowStep() bool {
	if s.stab.active {
		s.confirmStep()
		return true
	}
	if !s.span.active {
		s.openWindow()
		return false
	}
	if s.span.iter >= s.span.cap {
		s.logger.Debug("window abandoned", "cursor_hours", s.cursor, "cap", s.span.cap)
		s.span.active = false
		return false
	}
	if s.sign*(s.cursor-s.span.end) > 0 {
		s.span.active = false
		return false
	}
	s.scanStep()
	return true
}

// enterBroadScan scans day by day from the origin. Without a recurrence
// period the horizon widens to the fallback; the iteration cap never does.
func (s *Search) enterBroadScan(noRecurrence bool) {
	horizon := s.plan.broadHorizon
	if noRecurrence {
		horizon = math.Max(horizon, s.plan.fallback)
	}

	s.stab = stability{}
	s.cursor = s.origin
	s.span = span{active: true, end: s.origin + s.sign*horizon, cap: s.plan.broadCap}
	s.setPhase(PhaseBroadScan)
}

func (s *Search) broadStep() bool {
	if s.stab.active {
		s.confirmStep()
		return true
	}
	if s.span.iter >= s.span.cap || s.sign*(s.cursor-s.span.end) > 0 {
		s.setPhase(PhaseExhausted)
		return false
	}
	s.scanStep()
	return true
}

// scanStep evaluates the cursor and starts a stability check on a hit.
func (s *Search) scanStep() {
	o := s.evaluate(s.cursor)
	s.span.iter++
	if o.Met {
		s.stab = stability{active: true, hit: s.cursor, outcome: o}
		if s.plan.stabilitySteps == 0 {
			s.found()
			return
		}
	}
	s.cursor += s.sign * s.plan.stepHours
}

// confirmStep extends a stability check by one step. On a break scanning
// resumes after the breakage point.
func (s *Search) confirmStep() {
	o := s.evaluate(s.cursor)
	s.span.iter++
	s.cursor += s.sign * s.plan.stepHours
	if !o.Met {
		s.stab = stability{}
		return
	}
	s.stab.confirmed++
	if s.stab.confirmed >= s.plan.stabilitySteps {
		s.found()
	}
}

func (s *Search) found() {
	s.result = &Result{
		FoundHours:       s.stab.hit,
		ViewingLatitude:  s.stab.outcome.ViewingLatitude,
		ViewingLongitude: s.stab.outcome.ViewingLongitude,
	}
	s.stab = stability{}
	s.setPhase(PhaseFound)
}

func (s *Search) evaluate(hours float64) events.Outcome {
	snap, ok := s.cache.Get(hours)
	if !ok {
		snap = propagation.PositionsAt(hours, s.req.System)
		s.cache.Put(hours, snap)
	}
	s.iterations++
	if s.req.RequireSunSeparation {
		return events.EvaluateWithSunSeparation(s.req.Event, snap, s.req.System)
	}
	return events.Evaluate(s.req.Event, snap, s.req.System)
}
