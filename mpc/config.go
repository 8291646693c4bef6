package mpc

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-lateral/qp"
)

// SlackPenalty weighs squared slack of the soft steering constraints
const SlackPenalty = 1000.0

// Config configures the lateral MPC problem
type Config struct {
	// PredictionHorizon is the number of predicted steps N
	PredictionHorizon int
	// ControlHorizon is the number of free control inputs M <= N
	ControlHorizon int
	// DT is the discretization time step [s]
	DT float64
	// WeightLateralError weighs squared lateral error
	WeightLateralError float64
	// WeightHeadingError weighs squared heading error
	WeightHeadingError float64
	// WeightSteering weighs squared steering state and command
	WeightSteering float64
	// WeightSteeringRate weighs squared command increments
	WeightSteeringRate float64
	// MaxSteeringAngle is the steering angle limit [rad]
	MaxSteeringAngle float64
	// MaxSteeringRate is the steering rate limit [rad/s]
	MaxSteeringRate float64
	// SteerDelayTime is the actuator dead time [s]
	SteerDelayTime float64
	// SteerGain is the actuator static gain
	SteerGain float64
	// SteerZeta is the actuator damping ratio
	SteerZeta float64
	// SteerOmegaN is the actuator natural frequency [rad/s]
	SteerOmegaN float64
	// PredictionVelocity is the velocity used to space curvature samples [m/s]
	PredictionVelocity float64
	// Wheelbase is the vehicle wheelbase [m]
	Wheelbase float64
	// Solver configures the QP solver
	Solver qp.Settings
}

// DelaySteps returns the actuator dead time in whole time steps
func (c Config) DelaySteps() int {
	return int(math.RoundToEven(c.SteerDelayTime / c.DT))
}

// Validate returns error if the configuration can not produce a well posed problem
func (c Config) Validate() error {
	if c.PredictionHorizon < 1 {
		return fmt.Errorf("invalid prediction horizon: %d", c.PredictionHorizon)
	}

	if c.ControlHorizon < 1 || c.ControlHorizon > c.PredictionHorizon {
		return fmt.Errorf("invalid control horizon: %d, prediction horizon: %d", c.ControlHorizon, c.PredictionHorizon)
	}

	if !(c.DT > 0) {
		return fmt.Errorf("invalid time step: %v", c.DT)
	}

	weights := []float64{c.WeightLateralError, c.WeightHeadingError, c.WeightSteering, c.WeightSteeringRate}
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("invalid cost weights: %v", weights)
		}
	}

	if !(c.MaxSteeringAngle > 0) || !(c.MaxSteeringRate > 0) {
		return fmt.Errorf("invalid steering limits: angle %v, rate %v", c.MaxSteeringAngle, c.MaxSteeringRate)
	}

	if c.SteerDelayTime < 0 {
		return fmt.Errorf("invalid steering delay: %v", c.SteerDelayTime)
	}

	if d := c.DelaySteps(); d >= c.PredictionHorizon {
		return fmt.Errorf("steering delay of %d steps exceeds prediction horizon %d", d, c.PredictionHorizon)
	}

	if c.SteerGain == 0 || c.SteerZeta < 0 || !(c.SteerOmegaN > 0) {
		return fmt.Errorf("invalid steering dynamics: gain %v, zeta %v, omega_n %v", c.SteerGain, c.SteerZeta, c.SteerOmegaN)
	}

	if c.PredictionVelocity < 0 {
		return fmt.Errorf("invalid prediction velocity: %v", c.PredictionVelocity)
	}

	if !(c.Wheelbase > 0) {
		return fmt.Errorf("invalid wheelbase: %v", c.Wheelbase)
	}

	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("invalid solver settings: %w", err)
	}

	return nil
}
