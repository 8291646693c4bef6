package path

import (
	"errors"
	"math"

	lateral "github.com/milosgajdos/go-lateral"
)

// ErrEmptyPath is returned when the reference trajectory contains no points
var ErrEmptyPath = errors.New("path: empty reference trajectory")

// NormalizeAngle wraps angle a to [-pi, pi]
func NormalizeAngle(a float64) float64 {
	return math.Atan2(math.Sin(a), math.Cos(a))
}

// Unwrap removes 2*pi jumps between consecutive angles in a.
// It returns a new slice and leaves a unmodified.
func Unwrap(a []float64) []float64 {
	out := make([]float64, len(a))
	if len(a) == 0 {
		return out
	}

	out[0] = a[0]
	for i := 1; i < len(a); i++ {
		out[i] = out[i-1] + NormalizeAngle(a[i]-a[i-1])
	}

	return out
}

// Locate finds the trajectory point closest to the position (x, y).
// It returns the index of the closest point and the Euclidean distance to it.
// When several points are equally close the first one wins.
// It returns ErrEmptyPath if traj has no points.
func Locate(traj lateral.Trajectory, x, y float64) (int, float64, error) {
	if len(traj) == 0 {
		return 0, 0, ErrEmptyPath
	}

	idx, minDist := 0, math.Inf(1)
	for i, p := range traj {
		d := math.Hypot(x-p.X, y-p.Y)
		if d < minDist {
			idx, minDist = i, d
		}
	}

	return idx, minDist, nil
}

// Errors returns the lateral and heading error of vehicle state s relative to the point p.
//
// Lateral error is the projection of the vehicle offset on the path left normal
// n = (-sin(yaw), cos(yaw)) where yaw is the path heading at p: it is positive
// when the vehicle is to the left of the path.
// Heading error is the vehicle yaw minus the path yaw, wrapped to [-pi, pi].
func Errors(p lateral.Point, s lateral.VehicleState) (lat, head float64) {
	yaw := p.Yaw()
	dx, dy := s.X-p.X, s.Y-p.Y
	lat = -dx*math.Sin(yaw) + dy*math.Cos(yaw)
	head = NormalizeAngle(s.Yaw - yaw)

	return lat, head
}
