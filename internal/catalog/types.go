// Package catalog holds the immutable body catalog of the simulated star
// system and the derived, preprocessed form consumed by the orbital model.
package catalog

import (
	"errors"
	"fmt"
	"math"
)

// DefaultObserver is the body the sky is observed from when a catalog does
// not name one.
const DefaultObserver = "Sebaka"

var (
	// ErrUnknownBody is returned when a name does not resolve to a catalog body.
	ErrUnknownBody = errors.New("unknown body")
	// ErrNoCatalog is returned by a Store that has not been given a catalog.
	ErrNoCatalog = errors.New("no catalog loaded")
)

// Kind classifies a catalog body.
type Kind string

const (
	KindStar   Kind = "star"
	KindPlanet Kind = "planet"
)

// CelestialBody is one immutable catalog entry.
type CelestialBody struct {
	Name            string   `mapstructure:"name" json:"name"`
	Kind            Kind     `mapstructure:"-" json:"kind"`
	Size            float64  `mapstructure:"size" json:"size"`
	OrbitRadius     *float64 `mapstructure:"orbit_radius" json:"orbit_radius,omitempty"`
	OrbitPeriodDays *float64 `mapstructure:"orbit_period_days" json:"orbit_period_days,omitempty"`
	InitialPhase    float64  `mapstructure:"initial_phase" json:"initial_phase"` // degrees at t=0
	Eccentric       bool     `mapstructure:"eccentric" json:"eccentric"`
	Eccentricity    float64  `mapstructure:"eccentricity" json:"eccentricity,omitempty"`
	AxialTilt       float64  `mapstructure:"axial_tilt" json:"axial_tilt"` // degrees
	Orbits          string   `mapstructure:"orbits" json:"orbits,omitempty"`
}

// HasFinitePeriod reports whether the body completes an orbit in finite time.
func (b CelestialBody) HasFinitePeriod() bool {
	return b.OrbitPeriodDays != nil && *b.OrbitPeriodDays > 0
}

// BinaryPair designates two stars sharing a mirrored co-orbit around their
// common centre.
type BinaryPair struct {
	Primary    string  `mapstructure:"primary" json:"primary"`
	Secondary  string  `mapstructure:"secondary" json:"secondary"`
	Separation float64 `mapstructure:"separation" json:"separation"`
}

// TimeScale converts simulated hours into days and years.
type TimeScale struct {
	HoursPerDay float64 `mapstructure:"hours_per_day" json:"hours_per_day"`
	DaysPerYear float64 `mapstructure:"days_per_year" json:"days_per_year"`
}

// DefaultTimeScale returns the 24-hour day, 365-day year scale.
func DefaultTimeScale() TimeScale {
	return TimeScale{HoursPerDay: 24, DaysPerYear: 365}
}

// Days converts days to simulated hours.
func (ts TimeScale) Days(d float64) float64 { return d * ts.HoursPerDay }

// Years converts years to simulated hours.
func (ts TimeScale) Years(y float64) float64 { return y * ts.DaysPerYear * ts.HoursPerDay }

// Calendar splits simulated hours into a year number and a day of that year,
// both counted from zero. Negative hours fall in negative years.
func (ts TimeScale) Calendar(hours float64) (year, day int64) {
	d := math.Floor(hours / ts.HoursPerDay)
	dayOfYear := math.Mod(d, ts.DaysPerYear)
	if dayOfYear < 0 {
		dayOfYear += ts.DaysPerYear
	}
	return int64(math.Floor(hours / ts.Years(1))), int64(dayOfYear)
}

// Catalog is the full body catalog. Stars and planets keep their configured
// order; that order is the evaluation order for bodies at the same nesting depth.
type Catalog struct {
	Stars    []CelestialBody `json:"stars"`
	Planets  []CelestialBody `json:"planets"`
	Binary   *BinaryPair     `json:"binary,omitempty"`
	Observer string          `json:"observer"`
	Time     TimeScale       `json:"time"`
}

// Bodies returns stars followed by planets with Kind filled in.
func (c Catalog) Bodies() []CelestialBody {
	out := make([]CelestialBody, 0, len(c.Stars)+len(c.Planets))
	for _, s := range c.Stars {
		s.Kind = KindStar
		out = append(out, s)
	}
	for _, p := range c.Planets {
		p.Kind = KindPlanet
		out = append(out, p)
	}
	return out
}

// ObserverName returns the configured observer or DefaultObserver.
func (c Catalog) ObserverName() string {
	if c.Observer == "" {
		return DefaultObserver
	}
	return c.Observer
}

// Validate checks the structural invariants of the catalog.
func (c Catalog) Validate() error {
	if c.Time.HoursPerDay <= 0 {
		return fmt.Errorf("hours_per_day must be positive, got %g", c.Time.HoursPerDay)
	}
	if c.Time.DaysPerYear <= 0 {
		return fmt.Errorf("days_per_year must be positive, got %g", c.Time.DaysPerYear)
	}

	bodies := c.Bodies()
	byName := make(map[string]CelestialBody, len(bodies))
	for _, b := range bodies {
		if b.Name == "" {
			return errors.New("body with empty name")
		}
		if _, dup := byName[b.Name]; dup {
			return fmt.Errorf("duplicate body name %q", b.Name)
		}
		byName[b.Name] = b
	}

	for _, b := range bodies {
		if b.Size < 0 {
			return fmt.Errorf("body %q: negative size %g", b.Name, b.Size)
		}
		if b.Eccentricity < 0 || b.Eccentricity >= 1 {
			return fmt.Errorf("body %q: eccentricity %g outside [0,1)", b.Name, b.Eccentricity)
		}
		if b.Orbits == "" {
			continue
		}
		if b.Orbits == b.Name {
			return fmt.Errorf("body %q orbits itself", b.Name)
		}
		parent, ok := byName[b.Orbits]
		if !ok {
			return fmt.Errorf("body %q orbits %q: %w", b.Name, b.Orbits, ErrUnknownBody)
		}
		if parent.Orbits != "" {
			return fmt.Errorf("body %q orbits %q which itself orbits %q: only one level of nesting is supported",
				b.Name, parent.Name, parent.Orbits)
		}
	}

	if c.Binary != nil {
		for _, name := range []string{c.Binary.Primary, c.Binary.Secondary} {
			b, ok := byName[name]
			if !ok {
				return fmt.Errorf("binary member %q: %w", name, ErrUnknownBody)
			}
			if b.Kind != KindStar {
				return fmt.Errorf("binary member %q is not a star", name)
			}
		}
		if c.Binary.Primary == c.Binary.Secondary {
			return fmt.Errorf("binary pair needs two distinct stars, got %q twice", c.Binary.Primary)
		}
		if c.Binary.Separation <= 0 {
			return fmt.Errorf("binary separation must be positive, got %g", c.Binary.Separation)
		}
	}

	return nil
}
