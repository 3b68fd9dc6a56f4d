package propagation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
)

// Snapshot is the position of every body at one simulated time, indexed
// parallel to System.Bodies.
type Snapshot struct {
	Hours     float64
	Positions []r3.Vec
	sys       *catalog.System
}

// Len returns the number of positioned bodies.
func (s Snapshot) Len() int { return len(s.Positions) }

// At returns the position of body i.
func (s Snapshot) At(i int) r3.Vec { return s.Positions[i] }

// Lookup returns the position of the named body.
func (s Snapshot) Lookup(name string) (r3.Vec, bool) {
	if s.sys == nil {
		return r3.Vec{}, false
	}
	i, ok := s.sys.Index(name)
	if !ok || i >= len(s.Positions) {
		return r3.Vec{}, false
	}
	return s.Positions[i], true
}

// PositionsAt computes every body's position at the given simulated hours.
// It is pure: identical inputs give identical outputs, and no state carries
// over between calls.
func PositionsAt(hours float64, sys *catalog.System) Snapshot {
	positions := make([]r3.Vec, len(sys.Bodies))

	for i := range sys.Bodies {
		b := &sys.Bodies[i]

		var center r3.Vec
		if b.Center.Kind == catalog.CenterBody {
			// Parents precede satellites, so this is already computed.
			center = positions[b.Center.Parent]
		}

		switch b.Role {
		case catalog.RoleStatic:
			positions[i] = center
		case catalog.RoleBinary:
			src := &sys.Bodies[b.PhaseSource]
			angle := src.InitialPhaseRad + hours*src.RadsPerHour
			r := b.BinarySign * b.HalfSeparation
			positions[i] = r3.Vec{
				X: center.X + r*math.Cos(angle),
				Y: center.Y,
				Z: center.Z + r*math.Sin(angle),
			}
		case catalog.RoleEccentric:
			angle := b.InitialPhaseRad + hours*b.RadsPerHour
			a := b.SemiMajorAxis
			positions[i] = r3.Vec{
				X: center.X + a*b.Eccentricity + a*math.Cos(angle),
				Y: center.Y,
				Z: center.Z + b.SemiMinorAxis*math.Sin(angle),
			}
		default:
			angle := b.InitialPhaseRad + hours*b.RadsPerHour
			r := *b.OrbitRadius
			positions[i] = r3.Vec{
				X: center.X + r*math.Cos(angle),
				Y: center.Y,
				Z: center.Z + r*math.Sin(angle),
			}
		}
	}

	return Snapshot{Hours: hours, Positions: positions, sys: sys}
}

// KeyframeAt converts a snapshot into an exportable keyframe.
func KeyframeAt(hours float64, sys *catalog.System, revision uint64) *Keyframe {
	snap := PositionsAt(hours, sys)
	bodies := make([]BodyPosition, len(sys.Bodies))
	for i, b := range sys.Bodies {
		p := snap.At(i)
		bodies[i] = BodyPosition{
			Name:     b.Name,
			Kind:     b.Kind,
			Position: [3]float64{p.X, p.Y, p.Z},
		}
	}
	return &Keyframe{Hours: hours, Revision: revision, Bodies: bodies}
}
