package path

import (
	"math"
	"testing"

	lateral "github.com/milosgajdos/go-lateral"
	"github.com/stretchr/testify/assert"
)

func straight(n int, step, yaw float64) lateral.Trajectory {
	traj := make(lateral.Trajectory, n)
	for i := range traj {
		d := float64(i) * step
		traj[i] = lateral.NewPoint(d*math.Cos(yaw), d*math.Sin(yaw), yaw, 5.0)
	}
	return traj
}

// circle returns a counter clockwise circle of radius r starting at angle th0
func circle(n int, r, th0, span float64) lateral.Trajectory {
	traj := make(lateral.Trajectory, n)
	for i := range traj {
		th := th0 + span*float64(i)/float64(n-1)
		traj[i] = lateral.NewPoint(r*math.Cos(th), r*math.Sin(th), th+math.Pi/2, 5.0)
	}
	return traj
}

func TestNormalizeAngle(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(0.0, NormalizeAngle(2*math.Pi), 1e-12)
	assert.InDelta(-math.Pi/2, NormalizeAngle(3*math.Pi/2), 1e-12)
	assert.InDelta(0.5, NormalizeAngle(0.5-4*math.Pi), 1e-12)
}

func TestUnwrap(t *testing.T) {
	assert := assert.New(t)

	in := []float64{3.0, -3.0, -2.5}
	out := Unwrap(in)
	assert.InDelta(3.0, out[0], 1e-12)
	assert.InDelta(2*math.Pi-3.0, out[1], 1e-12)
	assert.InDelta(2*math.Pi-2.5, out[2], 1e-12)
	// input is left untouched
	assert.Equal(-3.0, in[1])

	assert.Empty(Unwrap(nil))
}

func TestLocate(t *testing.T) {
	assert := assert.New(t)

	idx, d, err := Locate(nil, 0, 0)
	assert.ErrorIs(err, ErrEmptyPath)
	assert.Equal(0, idx)
	assert.Equal(0.0, d)

	traj := straight(10, 1.0, 0)
	idx, d, err = Locate(traj, 3.2, 1.0)
	assert.NoError(err)
	assert.Equal(3, idx)
	assert.InDelta(math.Hypot(0.2, 1.0), d, 1e-12)

	// equidistant from points 2 and 3: the first one wins
	idx, _, err = Locate(traj, 2.5, 0)
	assert.NoError(err)
	assert.Equal(2, idx)
}

func TestErrors(t *testing.T) {
	assert := assert.New(t)

	p := lateral.NewPoint(0, 0, 0, 5.0)

	// left of an eastbound path
	lat, head := Errors(p, lateral.VehicleState{X: 0, Y: 1})
	assert.InDelta(1.0, lat, 1e-12)
	assert.InDelta(0.0, head, 1e-12)

	// right of an eastbound path, heading to the left
	lat, head = Errors(p, lateral.VehicleState{X: 2, Y: -0.5, Yaw: 0.2})
	assert.InDelta(-0.5, lat, 1e-12)
	assert.InDelta(0.2, head, 1e-12)

	// northbound path: left is towards negative x
	p = lateral.NewPoint(1, 1, math.Pi/2, 5.0)
	lat, head = Errors(p, lateral.VehicleState{X: 0, Y: 3, Yaw: -math.Pi})
	assert.InDelta(1.0, lat, 1e-12)
	assert.InDelta(math.Pi/2, head, 1e-12)
}

func TestNewSampler(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSampler(0, 0.1, 0.1)
	assert.Nil(s)
	assert.Error(err)

	s, err = NewSampler(10, 0, 0.1)
	assert.Nil(s)
	assert.Error(err)

	s, err = NewSampler(10, 0.1, 0)
	assert.NoError(err)
	assert.Equal(10, s.Len())
	assert.Equal(DefaultStep, s.step)
}

func TestArcLength(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(ArcLength(nil))

	traj := lateral.Trajectory{
		lateral.NewPoint(0, 0, 0, 0),
		lateral.NewPoint(3, 4, 0, 0),
		lateral.NewPoint(3, 4, 0, 0),
		lateral.NewPoint(3, 5, 0, 0),
	}
	assert.InDeltaSlice([]float64{0, 5, 5, 6}, ArcLength(traj), 1e-12)
}

func TestCurvatureStraight(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSampler(20, 0.05, DefaultStep)
	assert.NoError(err)

	for _, yaw := range []float64{0, 1.0, -2.5, math.Pi} {
		kappa := s.Curvature(straight(100, 0.5, yaw), 10, 5.0)
		assert.Len(kappa, 20)
		for _, k := range kappa {
			assert.InDelta(0.0, k, 1e-9)
		}
	}
}

func TestCurvatureLeftTurn(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSampler(20, 0.05, DefaultStep)
	assert.NoError(err)

	// the path heading crosses +-pi halfway around the circle
	r := 20.0
	traj := circle(400, r, 0, 2*math.Pi)
	for _, idx := range []int{0, 95, 100, 105, 250} {
		kappa := s.Curvature(traj, idx, 5.0)
		assert.Len(kappa, 20)
		for _, k := range kappa {
			assert.Greater(k, 0.0)
			assert.InDelta(1/r, k, 1e-3)
		}
	}

	// clockwise circle curves right
	for i := range traj {
		traj[i].Y = -traj[i].Y
		traj[i].Orientation = lateral.QuaternionFromYaw(-traj[i].Yaw())
	}
	for _, k := range s.Curvature(traj, 50, 5.0) {
		assert.Less(k, 0.0)
	}
}

func TestCurvatureShortPath(t *testing.T) {
	assert := assert.New(t)

	s, err := NewSampler(30, 0.1, DefaultStep)
	assert.NoError(err)

	// empty path
	kappa := s.Curvature(nil, 0, 5.0)
	assert.Len(kappa, 30)
	assert.Equal(make([]float64, 30), kappa)

	// zero length path
	p := lateral.NewPoint(1, 1, 0.3, 5.0)
	kappa = s.Curvature(lateral.Trajectory{p, p, p}, 1, 5.0)
	assert.Equal(make([]float64, 30), kappa)

	// path shorter than the horizon: samples past the end repeat the last value
	r := 10.0
	traj := circle(20, r, 0, 0.5)
	kappa = s.Curvature(traj, 0, 10.0)
	assert.Len(kappa, 30)
	last := kappa[len(kappa)-1]
	assert.InDelta(1/r, last, 1e-2)
	for _, k := range kappa[10:] {
		assert.Equal(last, k)
	}

	// out of range index is clamped
	kappa = s.Curvature(traj, 100, 0)
	assert.Len(kappa, 30)
}
