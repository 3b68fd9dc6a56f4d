package events

import (
	"math"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
)

// SynodicPeriod returns the time between successive alignments of two
// bodies with the given periods, in the same unit. It is +Inf when the
// periods are equal or either is not positive.
func SynodicPeriod(p1, p2 float64) float64 {
	if p1 <= 0 || p2 <= 0 || p1 == p2 {
		return math.Inf(1)
	}
	return math.Abs(1 / (1/p1 - 1/p2))
}

// EstimateRecurrenceDays estimates how often the whole configuration of the
// event's primaries can repeat: the slowest finite pairwise synodic period
// among primary planets with finite orbits. ok is false when fewer than two
// such planets exist or no finite period results.
func EstimateRecurrenceDays(ev Event, sys *catalog.System) (days float64, ok bool) {
	if sys == nil {
		return 0, false
	}

	var periods []float64
	for _, name := range ev.PrimaryBodies {
		b, found := sys.Body(name)
		if !found || b.Kind != catalog.KindPlanet || !b.HasFinitePeriod() {
			continue
		}
		periods = append(periods, *b.OrbitPeriodDays)
	}
	if len(periods) < 2 {
		return 0, false
	}

	var max float64
	for i := 0; i < len(periods); i++ {
		for j := i + 1; j < len(periods); j++ {
			s := SynodicPeriod(periods[i], periods[j])
			if !math.IsInf(s, 0) && s > max {
				max = s
			}
		}
	}
	if max == 0 || math.IsInf(max, 0) {
		return 0, false
	}
	return max, true
}
