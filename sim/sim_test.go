package sim

import (
	"math"
	"os"
	"testing"

	lateral "github.com/milosgajdos/go-lateral"
	"github.com/milosgajdos/go-lateral/config"
	"github.com/milosgajdos/go-lateral/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var (
	act      ActuatorConfig
	cfg      config.Config
	straight lateral.Trajectory
)

func setup() {
	act = ActuatorConfig{
		Gain:      1.0,
		Zeta:      0.7,
		OmegaN:    5.0,
		DelayTime: 0.1,
		MaxAngle:  0.6,
		MaxRate:   2.0,
	}

	cfg = config.Default()
	cfg.Vehicle.Wheelbase = 2.7
	cfg.MPC = config.MPC{
		PredictionHorizon:  20,
		ControlHorizon:     5,
		DT:                 0.05,
		WeightLateralError: 1.0,
		WeightHeadingError: 1.0,
		WeightSteering:     0.1,
		WeightSteeringRate: 0.1,
		MaxSteeringAngle:   0.5,
		MaxSteeringRate:    1.0,
		SteerDelayTime:     0.1,
		SteerGain:          1.0,
		SteerZeta:          0.7,
		SteerOmegaN:        5.0,
		PredictionVelocity: 5.0,
	}
	cfg.Longitudinal = config.Longitudinal{Kp: 1.0, Ki: 0.1, UMin: -3.0, UMax: 2.0}

	// due east along y = 0
	straight = make(lateral.Trajectory, 0, 241)
	for i := 0; i <= 240; i++ {
		straight = append(straight, lateral.NewPoint(-10+0.5*float64(i), 0, 0, 5.0))
	}
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestNewActuator(t *testing.T) {
	assert := assert.New(t)

	a, err := NewActuator(act, 0.05)
	assert.NotNil(a)
	assert.NoError(err)

	a, err = NewActuator(act, 0)
	assert.Nil(a)
	assert.Error(err)

	invalid := []func(*ActuatorConfig){
		func(c *ActuatorConfig) { c.OmegaN = 0 },
		func(c *ActuatorConfig) { c.Zeta = -0.1 },
		func(c *ActuatorConfig) { c.DelayTime = -0.1 },
		func(c *ActuatorConfig) { c.MaxAngle = -1 },
		func(c *ActuatorConfig) { c.MaxRate = -1 },
	}
	for _, f := range invalid {
		c := act
		f(&c)
		a, err := NewActuator(c, 0.05)
		assert.Nil(a)
		assert.Error(err)
	}
}

func TestActuatorStep(t *testing.T) {
	assert := assert.New(t)

	c := act
	c.Gain = 0.9
	c.MaxAngle, c.MaxRate = 0, 0

	a, err := NewActuator(c, 0.05)
	assert.NoError(err)

	// dead time holds the previous input for two steps
	for i := 0; i < 2; i++ {
		angle, rate := a.Step(0.2)
		assert.Equal(0.0, angle)
		assert.Equal(0.0, rate)
	}
	angle, _ := a.Step(0.2)
	assert.Greater(angle, 0.0)

	// settles at the static gain
	for i := 0; i < 400; i++ {
		a.Step(0.2)
	}
	angle, rate := a.State()
	assert.InDelta(0.18, angle, 1e-6)
	assert.InDelta(0.0, rate, 1e-6)

	a.Reset(-0.1, 0)
	angle, rate = a.State()
	assert.Equal(-0.1, angle)
	assert.Equal(0.0, rate)
	// queue is refilled with the reset angle
	angle, _ = a.Step(0.3)
	assert.InDelta(-0.1, angle, 1e-3)
	assert.Less(angle, 0.0)
}

func TestActuatorLimits(t *testing.T) {
	assert := assert.New(t)

	c := act
	c.DelayTime = 0
	c.MaxAngle = 0.1
	c.MaxRate = 0.5

	a, err := NewActuator(c, 0.05)
	assert.NoError(err)

	for i := 0; i < 100; i++ {
		angle, rate := a.Step(1.0)
		assert.LessOrEqual(math.Abs(angle), c.MaxAngle)
		assert.LessOrEqual(math.Abs(rate), c.MaxRate)
	}
	angle, _ := a.State()
	assert.Equal(c.MaxAngle, angle)
}

func TestVehicle(t *testing.T) {
	assert := assert.New(t)

	v, err := NewVehicle(0, 0, 0, 0, 0)
	assert.Nil(v)
	assert.Error(err)

	v, err = NewVehicle(0, 0, 0, 1.0, 2.0)
	assert.NoError(err)
	for i := 0; i < 10; i++ {
		v.Step(0, 0, 0.1)
	}
	assert.InDelta(1.0, v.X, 1e-12)
	assert.InDelta(0.0, v.Y, 1e-12)
	assert.InDelta(0.0, v.Yaw, 1e-12)

	// left turn
	v, err = NewVehicle(0, 0, 0, 5.0, 2.7)
	assert.NoError(err)
	for i := 0; i < 20; i++ {
		v.Step(0.2, 0, 0.05)
	}
	assert.InDelta(20*0.05*5.0/2.7*math.Tan(0.2), v.Yaw, 1e-12)
	assert.Greater(v.Y, 0.0)

	// velocity stays non-negative
	v.Step(0, -1000, 0.05)
	assert.Equal(0.0, v.Velocity)
}

func TestNoise(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(3, []float64{
		0.01, 0, 0,
		0, 0.01, 0,
		0, 0, 0.001,
	})

	n1, err := NewNoise(cov, 42)
	assert.NoError(err)
	n2, err := NewNoise(cov, 42)
	assert.NoError(err)

	for i := 0; i < 5; i++ {
		s := n1.Sample()
		assert.Len(s, 3)
		assert.Equal(s, n2.Sample())
	}
	assert.True(mat.Equal(cov, n1.Cov()))
	assert.NotEmpty(n1.String())

	n, err := NewNoise(mat.NewSymDense(2, nil), 1)
	assert.Nil(n)
	assert.Error(err)

	n, err = NewNoise(mat.NewSymDense(3, []float64{
		-1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}), 1)
	assert.Nil(n)
	assert.Error(err)

	n, err = NewNoise(nil, 1)
	assert.Nil(n)
	assert.Error(err)
}

func TestNewSim(t *testing.T) {
	assert := assert.New(t)

	v, err := NewVehicle(1, 2, 0.5, 3.0, 2.7)
	assert.NoError(err)

	s, err := New(Config{DT: 0.05, Actuator: act}, nil)
	assert.Nil(s)
	assert.Error(err)

	s, err = New(Config{DT: 0, Actuator: act}, v)
	assert.Nil(s)
	assert.Error(err)

	s, err = New(Config{DT: 0.05, Actuator: act}, v)
	assert.NoError(err)

	assert.Equal(lateral.VehicleState{X: 1, Y: 2, Yaw: 0.5, Velocity: 3.0}, s.State())

	s.Step(lateral.Command{Steering: 0.1, Acceleration: 1.0})
	assert.InDelta(0.05, s.Time(), 1e-12)
	assert.InDelta(3.05, s.Vehicle().Velocity, 1e-12)
	assert.InDelta(0.05, s.State().Time, 1e-12)

	// measurement noise perturbs the pose only
	noise, err := NewNoise(mat.NewSymDense(3, []float64{
		0.01, 0, 0,
		0, 0.01, 0,
		0, 0, 0.001,
	}), 7)
	assert.NoError(err)

	v, err = NewVehicle(1, 2, 0.5, 3.0, 2.7)
	assert.NoError(err)
	s, err = New(Config{DT: 0.05, Actuator: act, Noise: noise}, v)
	assert.NoError(err)

	st := s.State()
	assert.NotEqual(1.0, st.X)
	assert.NotEqual(2.0, st.Y)
	assert.Equal(3.0, st.Velocity)
	assert.Equal(1.0, s.Vehicle().X)
}

type constController struct {
	cmd lateral.Command
}

func (c constController) Control(lateral.Trajectory, lateral.VehicleState) lateral.Command {
	return c.cmd
}

func TestRun(t *testing.T) {
	assert := assert.New(t)

	v, err := NewVehicle(0, 1, 0, 5.0, 2.7)
	assert.NoError(err)
	s, err := New(Config{DT: 0.05, Actuator: act}, v)
	assert.NoError(err)

	log, err := Run(constController{}, s, straight, 0)
	assert.Nil(log)
	assert.Error(err)

	log, err = Run(constController{}, s, straight, 10)
	assert.NoError(err)

	r, c := log.Path.Dims()
	assert.Equal(11, r)
	assert.Equal(2, c)
	r, c = log.Steering.Dims()
	assert.Equal(10, r)
	assert.Equal(3, c)
	assert.Len(log.LateralError, 11)

	assert.InDelta(2.5, log.Path.At(10, 0), 1e-9)
	for _, e := range log.LateralError {
		assert.InDelta(1.0, e, 1e-9)
	}
	assert.InDelta(0.45, log.Steering.At(9, 0), 1e-9)

	// empty path has no lateral error
	log, err = Run(constController{}, s, nil, 1)
	assert.NoError(err)
	assert.True(math.IsNaN(log.LateralError[0]))
}

func TestClosedLoop(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctrl, err := controller.New(cfg)
	require.NoError(err)

	v, err := NewVehicle(0, 2, 0, 5.0, cfg.Vehicle.Wheelbase)
	require.NoError(err)
	s, err := New(Config{DT: cfg.MPC.DT, Actuator: act}, v)
	require.NoError(err)

	steps := 200
	log, err := Run(ctrl, s, straight, steps)
	require.NoError(err)

	for i := 0; i < steps; i++ {
		cmd := log.Steering.At(i, 1)
		assert.False(math.IsNaN(cmd))
		assert.LessOrEqual(math.Abs(cmd), cfg.MPC.MaxSteeringAngle)
	}
	for _, e := range log.LateralError {
		assert.False(math.IsNaN(e))
	}

	assert.InDelta(2.0, log.LateralError[0], 1e-9)
	assert.Less(math.Abs(log.LateralError[steps]), 0.25)
	assert.InDelta(5.0, s.Vehicle().Velocity, 0.1)

	plt, err := NewTrackingPlot(straight, log.Path)
	assert.NotNil(plt)
	assert.NoError(err)
}
