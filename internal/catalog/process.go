package catalog

import (
	"fmt"
	"math"
)

// Role is the motion model resolved for a body during preprocessing.
type Role int

const (
	// RoleStatic bodies have no orbit radius and sit at their centre.
	RoleStatic Role = iota
	RoleCircular
	RoleEccentric
	// RoleBinary bodies mirror their pair partner across the pair centre.
	RoleBinary
)

func (r Role) String() string {
	switch r {
	case RoleStatic:
		return "static"
	case RoleCircular:
		return "circular"
	case RoleEccentric:
		return "eccentric"
	case RoleBinary:
		return "binary"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// CenterKind selects what a body orbits.
type CenterKind int

const (
	CenterOrigin CenterKind = iota
	CenterBody
)

// Center is the resolved orbit centre. Parent is an index into System.Bodies
// and is only meaningful for CenterBody.
type Center struct {
	Kind   CenterKind
	Parent int
}

// ProcessedBody is a catalog body with its derived motion parameters.
type ProcessedBody struct {
	CelestialBody

	RadsPerHour     float64
	InitialPhaseRad float64
	Role            Role
	Center          Center

	// Eccentric orbits.
	SemiMajorAxis float64
	SemiMinorAxis float64

	// Binary members take their angle from PhaseSource.
	BinarySign     float64
	HalfSeparation float64
	PhaseSource    int
}

// System is the immutable, preprocessed catalog. Bodies are ordered so that
// every parent precedes its satellites.
type System struct {
	Bodies   []ProcessedBody
	Observer int // -1 when the catalog has no observer body
	Suns     []int
	Time     TimeScale

	index map[string]int
}

// Index returns the position of the named body in Bodies.
func (s *System) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Body returns the named processed body.
func (s *System) Body(name string) (*ProcessedBody, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Bodies[i], true
}

// Names returns body names in evaluation order.
func (s *System) Names() []string {
	names := make([]string, len(s.Bodies))
	for i, b := range s.Bodies {
		names[i] = b.Name
	}
	return names
}

// Preprocess validates the catalog and resolves every body's motion role and
// orbit centre. It does not modify c.
func Preprocess(c Catalog) (*System, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	raw := c.Bodies()

	// Top-level bodies first, satellites after, each group in catalog order.
	ordered := make([]CelestialBody, 0, len(raw))
	for _, b := range raw {
		if b.Orbits == "" {
			ordered = append(ordered, b)
		}
	}
	for _, b := range raw {
		if b.Orbits != "" {
			ordered = append(ordered, b)
		}
	}

	sys := &System{
		Bodies:   make([]ProcessedBody, len(ordered)),
		Observer: -1,
		Time:     c.Time,
		index:    make(map[string]int, len(ordered)),
	}
	for i, b := range ordered {
		sys.index[b.Name] = i
	}

	for i, b := range ordered {
		pb := ProcessedBody{
			CelestialBody:   b,
			InitialPhaseRad: b.InitialPhase * math.Pi / 180,
			PhaseSource:     i,
		}
		if b.HasFinitePeriod() {
			pb.RadsPerHour = 2 * math.Pi / (*b.OrbitPeriodDays * c.Time.HoursPerDay)
		}
		if b.Orbits != "" {
			pb.Center = Center{Kind: CenterBody, Parent: sys.index[b.Orbits]}
		}

		switch {
		case c.Binary != nil && (b.Name == c.Binary.Primary || b.Name == c.Binary.Secondary):
			pb.Role = RoleBinary
			pb.HalfSeparation = c.Binary.Separation / 2
			pb.BinarySign = 1
			if b.Name == c.Binary.Secondary {
				pb.BinarySign = -1
			}
			pb.PhaseSource = sys.index[c.Binary.Primary]
		case b.OrbitRadius == nil:
			pb.Role = RoleStatic
		case b.Kind == KindPlanet && b.Eccentric && b.Eccentricity > 0:
			pb.Role = RoleEccentric
			pb.SemiMajorAxis = *b.OrbitRadius
			pb.SemiMinorAxis = *b.OrbitRadius * math.Sqrt(1-b.Eccentricity*b.Eccentricity)
		default:
			pb.Role = RoleCircular
		}

		if b.Kind == KindStar {
			sys.Suns = append(sys.Suns, i)
		}
		sys.Bodies[i] = pb
	}

	if i, ok := sys.index[c.ObserverName()]; ok {
		sys.Observer = i
	}

	return sys, nil
}
