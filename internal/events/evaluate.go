package events

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/geometry"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/propagation"
)

// secondarySpreadFactor widens the tolerance for cluster and triangle
// secondaries relative to the primaries' mean direction.
const secondarySpreadFactor = 3

// Outcome is the result of evaluating an event at one instant.
type Outcome struct {
	Met              bool    `json:"met"`
	ViewingLatitude  float64 `json:"viewing_latitude"`
	ViewingLongitude float64 `json:"viewing_longitude"`
	Viewpoint        r3.Vec  `json:"-"`
}

type sight struct {
	index  int
	dir    r3.Vec
	dist   float64
	radius float64 // apparent radius
}

// scene is the resolved geometry of one evaluation.
type scene struct {
	view        r3.Vec
	primaries   []sight
	secondaries []sight
}

// Evaluate reports whether ev is in progress at the snapshot's time, as seen
// from the observer body at the event's viewing longitude and the latitude
// that best centres the primaries. Unresolvable bodies make it fail closed.
func Evaluate(ev Event, snap propagation.Snapshot, sys *catalog.System) Outcome {
	out := Outcome{ViewingLongitude: ev.ViewingLongitude}
	sc, ok := buildScene(ev, snap, sys)
	if !ok {
		return out
	}
	out.ViewingLatitude = sc.latitude
	out.Viewpoint = sc.view
	out.Met = ev.met(sc.scene)
	return out
}

// EvaluateWithSunSeparation is Evaluate plus the requirement that no primary
// sits too close to a sun.
func EvaluateWithSunSeparation(ev Event, snap propagation.Snapshot, sys *catalog.System) Outcome {
	out := Evaluate(ev, snap, sys)
	if out.Met && !SunSeparated(ev, snap, sys, out.Viewpoint) {
		out.Met = false
	}
	return out
}

// SunSeparated reports whether every primary is at least
// (primary radius + sun radius) * multiplier degrees from every sun, seen
// from view. Suns that are themselves primaries of the event are part of the
// alignment and are not checked.
func SunSeparated(ev Event, snap propagation.Snapshot, sys *catalog.System, view r3.Vec) bool {
	prims, ok := resolveSights(ev.PrimaryBodies, view, snap, sys)
	if !ok {
		return false
	}
	primary := make(map[int]bool, len(prims))
	for _, p := range prims {
		primary[p.index] = true
	}
	mult := ev.SunMultiplier()
	for _, s := range sys.Suns {
		if s >= snap.Len() {
			return false
		}
		if primary[s] {
			continue
		}
		sun := geometry.Look(view, snap.At(s))
		sunRadius := geometry.ApparentRadius(sys.Bodies[s].Size, sun.Distance)
		for _, p := range prims {
			required := (p.radius + sunRadius) * mult
			if geometry.AngularSeparation(p.dir, sun.Direction) < required {
				return false
			}
		}
	}
	return true
}

type resolvedScene struct {
	scene
	latitude float64
}

func buildScene(ev Event, snap propagation.Snapshot, sys *catalog.System) (resolvedScene, bool) {
	if sys == nil || sys.Observer < 0 || sys.Observer >= snap.Len() {
		return resolvedScene{}, false
	}
	obs := sys.Bodies[sys.Observer]
	obsPos := snap.At(sys.Observer)

	// First pass at the equator to find the latitude that centres the primaries.
	rough := geometry.SurfacePoint(obsPos, obs.Size, obs.AxialTilt, 0, ev.ViewingLongitude)
	first, ok := resolveSights(ev.PrimaryBodies, rough, snap, sys)
	if !ok {
		return resolvedScene{}, false
	}
	ys := make([]float64, len(first))
	for i, s := range first {
		ys[i] = s.dir.Y
	}
	lat := math.Asin(math.Max(-1, math.Min(1, stat.Mean(ys, nil)))) * 180 / math.Pi

	view := geometry.SurfacePoint(obsPos, obs.Size, obs.AxialTilt, lat, ev.ViewingLongitude)
	prims, ok := resolveSights(ev.PrimaryBodies, view, snap, sys)
	if !ok {
		return resolvedScene{}, false
	}
	secs, ok := resolveSights(ev.SecondaryBodies, view, snap, sys)
	if !ok {
		return resolvedScene{}, false
	}
	return resolvedScene{
		scene:    scene{view: view, primaries: prims, secondaries: secs},
		latitude: lat,
	}, true
}

func resolveSights(names []string, view r3.Vec, snap propagation.Snapshot, sys *catalog.System) ([]sight, bool) {
	out := make([]sight, 0, len(names))
	for _, n := range names {
		i, ok := sys.Index(n)
		if !ok || i >= snap.Len() {
			return nil, false
		}
		s := geometry.Look(view, snap.At(i))
		out = append(out, sight{
			index:  i,
			dir:    s.Direction,
			dist:   s.Distance,
			radius: geometry.ApparentRadius(sys.Bodies[i].Size, s.Distance),
		})
	}
	return out, true
}

func (e Event) met(sc scene) bool {
	if len(sc.primaries) == 0 {
		return false
	}
	if e.Rule == RuleRelaxedSpread {
		return withinSpread(sc.primaries, math.Max(e.LongitudeTolerance, relaxedSpreadFloor))
	}

	switch e.Type {
	case TypeConjunction:
		if !withinSpread(sc.primaries, e.LongitudeTolerance) {
			return false
		}
		if e.MinSeparation != nil {
			for i := 0; i < len(sc.primaries); i++ {
				for j := i + 1; j < len(sc.primaries); j++ {
					if geometry.AngularSeparation(sc.primaries[i].dir, sc.primaries[j].dir) < *e.MinSeparation {
						return false
					}
				}
			}
		}
		return true

	case TypeCluster, TypeTriangle:
		if !withinSpread(sc.primaries, e.LongitudeTolerance) {
			return false
		}
		if len(sc.secondaries) > 0 {
			mean := meanOf(sc.primaries)
			limit := secondarySpreadFactor * e.LongitudeTolerance
			for _, s := range sc.secondaries {
				if geometry.AngularSeparation(s.dir, mean) > limit {
					return false
				}
			}
		}
		return true

	case TypeOccultation:
		return occulted(sc.primaries, e.Overlap()) && withinSpread(sc.primaries, e.LongitudeTolerance)

	case TypeDominance:
		var minSep float64
		if e.MinSeparation != nil {
			minSep = *e.MinSeparation
		}
		lead := sc.primaries[0]
		for _, s := range sc.secondaries {
			if geometry.AngularSeparation(lead.dir, s.dir) < minSep {
				return false
			}
		}
		return true
	}

	return false
}

// occulted checks each adjacent foreground/background pair, nearest first.
// Only consecutive pairs are compared.
func occulted(prims []sight, overlap float64) bool {
	sorted := make([]sight, len(prims))
	copy(sorted, prims)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].dist < sorted[j].dist })

	for i := 0; i+1 < len(sorted); i++ {
		fg, bg := sorted[i], sorted[i+1]
		allowed := fg.radius + bg.radius*(1-overlap)
		if geometry.AngularSeparation(fg.dir, bg.dir) > allowed {
			return false
		}
	}
	return true
}

func meanOf(sights []sight) r3.Vec {
	dirs := make([]r3.Vec, len(sights))
	for i, s := range sights {
		dirs[i] = s.dir
	}
	return geometry.MeanDirection(dirs)
}

// withinSpread reports whether every sight lies within tol of the mean direction.
func withinSpread(sights []sight, tol float64) bool {
	mean := meanOf(sights)
	for _, s := range sights {
		if geometry.AngularSeparation(s.dir, mean) > tol {
			return false
		}
	}
	return true
}
