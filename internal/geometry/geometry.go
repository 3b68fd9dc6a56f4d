// Package geometry provides the angular primitives used by event predicates:
// apparent size, surface viewpoints, lines of sight and angular separation.
// All angles are in degrees.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// orbitalNormal is the axis a planet's axial tilt rotates about.
var orbitalNormal = r3.Vec{Y: 1}

// Sight is the line of sight from a viewpoint to a body.
type Sight struct {
	Direction r3.Vec // unit vector; zero when the body sits on the viewpoint
	Distance  float64
}

// ApparentRadius returns the angular radius of a sphere of the given size
// seen from distance. A viewpoint on or inside the body sees 90 degrees.
func ApparentRadius(size, distance float64) float64 {
	if distance <= 0 {
		return 90
	}
	return math.Atan(size/distance) * radToDeg
}

// SurfacePoint returns the scene position of a point on a planet's surface.
// The point is placed at (lat, lon) on a sphere of the given radius, tilted
// about the orbital-plane normal by tilt, then offset by the planet position.
func SurfacePoint(planet r3.Vec, radius, tilt, lat, lon float64) r3.Vec {
	latR := lat * degToRad
	lonR := lon * degToRad
	local := r3.Vec{
		X: radius * math.Cos(latR) * math.Sin(lonR),
		Y: radius * math.Sin(latR),
		Z: radius * math.Cos(latR) * math.Cos(lonR),
	}
	if tilt != 0 {
		local = r3.Rotate(local, tilt*degToRad, orbitalNormal)
	}
	return r3.Add(planet, local)
}

// Look returns the line of sight from one point to another.
func Look(from, to r3.Vec) Sight {
	d := r3.Sub(to, from)
	n := r3.Norm(d)
	if n == 0 {
		return Sight{}
	}
	return Sight{Direction: r3.Scale(1/n, d), Distance: n}
}

// AngularSeparation returns the angle between two directions in [0, 180].
// A zero-length input has no direction and is treated as maximally separated.
func AngularSeparation(a, b r3.Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 180
	}
	cos := r3.Dot(a, b) / (na * nb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * radToDeg
}

// MeanDirection returns the normalized sum of the given directions, or the
// zero vector when they cancel out or none are given.
func MeanDirection(dirs []r3.Vec) r3.Vec {
	var sum r3.Vec
	for _, d := range dirs {
		sum = r3.Add(sum, d)
	}
	n := r3.Norm(sum)
	if n < 1e-12 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, sum)
}

// MaxSeparation returns the largest pairwise angular separation among dirs.
func MaxSeparation(dirs []r3.Vec) float64 {
	var max float64
	for i := 0; i < len(dirs); i++ {
		for j := i + 1; j < len(dirs); j++ {
			if s := AngularSeparation(dirs[i], dirs[j]); s > max {
				max = s
			}
		}
	}
	return max
}
