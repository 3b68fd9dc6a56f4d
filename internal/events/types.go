// Package events defines the celestial events that can be searched for, the
// predicate deciding whether an event is in progress, and the estimate of
// how often it can recur.
package events

import (
	"errors"
	"fmt"
	"sort"
)

// Type is the geometric family of an event.
type Type string

const (
	TypeConjunction Type = "conjunction"
	TypeCluster     Type = "cluster"
	TypeTriangle    Type = "triangle"
	TypeOccultation Type = "occultation"
	TypeDominance   Type = "dominance"
)

// Valid reports whether t is a known event type.
func (t Type) Valid() bool {
	switch t {
	case TypeConjunction, TypeCluster, TypeTriangle, TypeOccultation, TypeDominance:
		return true
	}
	return false
}

// Rule is the predicate variant an event is evaluated with.
type Rule int

const (
	// RuleByType dispatches on the event Type.
	RuleByType Rule = iota
	// RuleRelaxedSpread only requires all primaries to lie within
	// max(tolerance, relaxedSpreadFloor) of each other.
	RuleRelaxedSpread
)

const (
	greatConjunction   = "Great Conjunction"
	relaxedSpreadFloor = 15.0
)

// ErrUnknownEvent is returned when a name does not match a defined event.
var ErrUnknownEvent = errors.New("unknown event")

// Definition is a configured event as read from the catalog file.
type Definition struct {
	Name                    string   `mapstructure:"name" json:"name"`
	Description             string   `mapstructure:"description" json:"description,omitempty"`
	Type                    Type     `mapstructure:"type" json:"type"`
	PrimaryBodies           []string `mapstructure:"primary_bodies" json:"primary_bodies"`
	SecondaryBodies         []string `mapstructure:"secondary_bodies" json:"secondary_bodies,omitempty"`
	LongitudeTolerance      float64  `mapstructure:"longitude_tolerance" json:"longitude_tolerance"`
	MinSeparation           *float64 `mapstructure:"min_separation" json:"min_separation,omitempty"`
	OverlapThreshold        *float64 `mapstructure:"overlap_threshold" json:"overlap_threshold,omitempty"`
	SunSeparationMultiplier *float64 `mapstructure:"sun_separation_multiplier" json:"sun_separation_multiplier,omitempty"`
	ViewingLongitude        float64  `mapstructure:"viewing_longitude" json:"viewing_longitude"`
	VisibilityCondition     string   `mapstructure:"visibility_condition" json:"visibility_condition,omitempty"`
	RelaxedSpread           bool     `mapstructure:"relaxed_spread" json:"relaxed_spread,omitempty"`
}

// Validate checks the definition's own fields. Body names are resolved
// against a catalog only at evaluation time.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errors.New("event with empty name")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("event %q: unknown type %q", d.Name, d.Type)
	}
	if len(d.PrimaryBodies) == 0 {
		return fmt.Errorf("event %q: no primary bodies", d.Name)
	}
	if d.LongitudeTolerance < 0 {
		return fmt.Errorf("event %q: negative longitude tolerance", d.Name)
	}
	if d.OverlapThreshold != nil && (*d.OverlapThreshold < 0 || *d.OverlapThreshold > 1) {
		return fmt.Errorf("event %q: overlap threshold %g outside [0,1]", d.Name, *d.OverlapThreshold)
	}
	return nil
}

// Event is a validated definition with its rule resolved.
type Event struct {
	Definition
	Rule Rule
}

// Compile validates a definition and resolves its rule.
func Compile(d Definition) (Event, error) {
	if err := d.Validate(); err != nil {
		return Event{}, err
	}
	ev := Event{Definition: d, Rule: RuleByType}
	if d.RelaxedSpread || d.Name == greatConjunction {
		ev.Rule = RuleRelaxedSpread
	}
	return ev, nil
}

// SunMultiplier returns the sun-separation multiplier, 1 when unset.
func (e Event) SunMultiplier() float64 {
	if e.SunSeparationMultiplier == nil {
		return 1
	}
	return *e.SunSeparationMultiplier
}

// Overlap returns the occultation overlap threshold, 0 when unset.
func (e Event) Overlap() float64 {
	if e.OverlapThreshold == nil {
		return 0
	}
	return *e.OverlapThreshold
}

// Registry is an immutable, name-indexed set of compiled events that keeps
// the configured order.
type Registry struct {
	events []Event
	byName map[string]int
}

// NewRegistry compiles every definition. Names must be unique.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{
		events: make([]Event, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		ev, err := Compile(d)
		if err != nil {
			return nil, err
		}
		if _, dup := r.byName[ev.Name]; dup {
			return nil, fmt.Errorf("duplicate event name %q", ev.Name)
		}
		r.byName[ev.Name] = len(r.events)
		r.events = append(r.events, ev)
	}
	return r, nil
}

// Get returns the named event.
func (r *Registry) Get(name string) (Event, error) {
	i, ok := r.byName[name]
	if !ok {
		return Event{}, fmt.Errorf("%q: %w", name, ErrUnknownEvent)
	}
	return r.events[i], nil
}

// All returns the events in configured order.
func (r *Registry) All() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the event names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		names = append(names, ev.Name)
	}
	sort.Strings(names)
	return names
}

// Select returns the named events in the order given. An empty list selects
// every event in configured order.
func (r *Registry) Select(names []string) ([]Event, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	out := make([]Event, 0, len(names))
	for _, n := range names {
		ev, err := r.Get(n)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
