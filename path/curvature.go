package path

import (
	"fmt"
	"math"

	lateral "github.com/milosgajdos/go-lateral"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// DefaultStep is the arc length step used to differentiate yaw [m]
const DefaultStep = 0.1

// Sampler extracts curvature feedforward profiles from reference trajectories
type Sampler struct {
	// n is the number of samples
	n int
	// dt is the time step between samples
	dt float64
	// step is the finite difference arc length step
	step float64
}

// NewSampler creates new Sampler and returns it.
// It accepts the following parameters:
//   - n:    number of curvature samples (prediction horizon)
//   - dt:   time between two consecutive samples
//   - step: arc length step used to estimate curvature; DefaultStep is used if step <= 0
//
// It returns error if n is not positive or dt is not positive.
func NewSampler(n int, dt, step float64) (*Sampler, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples: %d", n)
	}

	if dt <= 0 {
		return nil, fmt.Errorf("invalid sample time: %v", dt)
	}

	if step <= 0 {
		step = DefaultStep
	}

	return &Sampler{n: n, dt: dt, step: step}, nil
}

// Len returns the number of samples in each profile
func (s *Sampler) Len() int {
	return s.n
}

// ArcLength returns the cumulative Euclidean distance along traj with s[0] = 0
func ArcLength(traj lateral.Trajectory) []float64 {
	if len(traj) == 0 {
		return nil
	}

	seg := make([]float64, len(traj))
	for i := 1; i < len(traj); i++ {
		seg[i] = math.Hypot(traj[i].X-traj[i-1].X, traj[i].Y-traj[i-1].Y)
	}

	return floats.CumSum(make([]float64, len(seg)), seg)
}

// Curvature returns the curvature profile of traj ahead of the point at index idx.
//
// The i-th sample is taken at arc length s(idx) + i*v*dt, clamped to the path length,
// and estimated as the change of unwrapped path yaw over a short arc length step.
// Velocity v is floored to lateral.MinVelocity. The profile always has Len() samples;
// all of them are zero if the path has zero length.
func (s *Sampler) Curvature(traj lateral.Trajectory, idx int, v float64) []float64 {
	kappa := make([]float64, s.n)

	arc := ArcLength(traj)
	if len(arc) == 0 {
		return kappa
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(arc) {
		idx = len(arc) - 1
	}

	yaw := make([]float64, len(traj))
	for i, p := range traj {
		yaw[i] = p.Yaw()
	}
	yaw = Unwrap(yaw)

	// interpolation requires strictly increasing arc length
	xs, ys := []float64{arc[0]}, []float64{yaw[0]}
	for i := 1; i < len(arc); i++ {
		if arc[i] > xs[len(xs)-1] {
			xs = append(xs, arc[i])
			ys = append(ys, yaw[i])
		}
	}
	if len(xs) < 2 {
		return kappa
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return kappa
	}

	sMax := xs[len(xs)-1]
	ds := math.Max(v, lateral.MinVelocity) * s.dt
	for i := range kappa {
		a := clamp(arc[idx]+float64(i)*ds, 0, sMax)
		b := a + s.step
		if b > sMax {
			b, a = sMax, math.Max(sMax-s.step, 0)
		}
		kappa[i] = (pl.Predict(b) - pl.Predict(a)) / (b - a)
	}

	return kappa
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(x, hi))
}
