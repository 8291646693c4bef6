// Package sim simulates a vehicle tracking a reference trajectory in closed loop.
package sim

import (
	"fmt"
	"math"

	lateral "github.com/milosgajdos/go-lateral"
	"github.com/milosgajdos/go-lateral/path"
	"gonum.org/v1/gonum/mat"
)

// Config configures the simulated plant
type Config struct {
	// DT is the simulation and control time step [s]
	DT float64
	// Actuator configures the steering actuator
	Actuator ActuatorConfig
	// Noise is the optional pose measurement noise
	Noise *Noise
}

// Sim is a closed-loop plant: a kinematic bicycle steered through a second order actuator
type Sim struct {
	dt      float64
	t       float64
	vehicle *Vehicle
	act     *Actuator
	noise   *Noise
}

// New creates new Sim starting from vehicle v and returns it.
// It returns error if the configuration is invalid.
func New(c Config, v *Vehicle) (*Sim, error) {
	if v == nil {
		return nil, fmt.Errorf("invalid vehicle: nil")
	}

	act, err := NewActuator(c.Actuator, c.DT)
	if err != nil {
		return nil, err
	}

	return &Sim{
		dt:      c.DT,
		vehicle: v,
		act:     act,
		noise:   c.Noise,
	}, nil
}

// Time returns simulation time [s]
func (s *Sim) Time() float64 {
	return s.t
}

// Vehicle returns the true vehicle state
func (s *Sim) Vehicle() Vehicle {
	return *s.vehicle
}

// State returns the measured vehicle state.
// Pose is perturbed by measurement noise if configured.
func (s *Sim) State() lateral.VehicleState {
	angle, rate := s.act.State()
	st := lateral.VehicleState{
		X:            s.vehicle.X,
		Y:            s.vehicle.Y,
		Yaw:          s.vehicle.Yaw,
		Velocity:     s.vehicle.Velocity,
		Steering:     angle,
		SteeringRate: rate,
		Time:         s.t,
	}

	if s.noise != nil {
		n := s.noise.Sample()
		st.X += n[0]
		st.Y += n[1]
		st.Yaw = path.NormalizeAngle(st.Yaw + n[2])
	}

	return st
}

// Step applies cmd for one time step
func (s *Sim) Step(cmd lateral.Command) {
	angle, _ := s.act.Step(cmd.Steering)
	s.vehicle.Step(angle, cmd.Acceleration, s.dt)
	s.t += s.dt
}

// Log is a closed-loop simulation record
type Log struct {
	// Path holds true [x, y] positions, one row per step
	Path *mat.Dense
	// Steering holds [time, command, tire angle], one row per step
	Steering *mat.Dense
	// LateralError holds true lateral errors, one per step
	LateralError []float64
}

// Run drives s with ctrl along traj for the given number of steps and records the result.
// It returns error if steps is not positive.
func Run(ctrl lateral.Controller, s *Sim, traj lateral.Trajectory, steps int) (*Log, error) {
	if steps < 1 {
		return nil, fmt.Errorf("invalid number of steps: %d", steps)
	}

	log := &Log{
		Path:         mat.NewDense(steps+1, 2, nil),
		Steering:     mat.NewDense(steps, 3, nil),
		LateralError: make([]float64, steps+1),
	}
	record := func(i int) {
		v := s.vehicle
		log.Path.SetRow(i, []float64{v.X, v.Y})
		log.LateralError[i] = trueLateralError(traj, v)
	}

	record(0)
	for i := 0; i < steps; i++ {
		cmd := ctrl.Control(traj, s.State())
		t := s.t
		s.Step(cmd)
		angle, _ := s.act.State()
		log.Steering.SetRow(i, []float64{t, cmd.Steering, angle})
		record(i + 1)
	}

	return log, nil
}

func trueLateralError(traj lateral.Trajectory, v *Vehicle) float64 {
	st := lateral.VehicleState{X: v.X, Y: v.Y, Yaw: v.Yaw}
	idx, _, err := path.Locate(traj, st.X, st.Y)
	if err != nil {
		return math.NaN()
	}
	lat, _ := path.Errors(traj[idx], st)

	return lat
}
