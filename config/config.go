// Package config loads controller configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/milosgajdos/go-lateral/mpc"
	"github.com/milosgajdos/go-lateral/pid"
	"github.com/milosgajdos/go-lateral/qp"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when configuration fails validation
var ErrInvalid = errors.New("invalid configuration")

// Vehicle holds vehicle geometry
type Vehicle struct {
	// Wheelbase is the distance between axles [m]
	Wheelbase float64 `yaml:"wheelbase"`
}

// MPC holds lateral MPC parameters
type MPC struct {
	PredictionHorizon  int     `yaml:"prediction_horizon"`
	ControlHorizon     int     `yaml:"control_horizon"`
	DT                 float64 `yaml:"dt"`
	WeightLateralError float64 `yaml:"weight_lateral_error"`
	WeightHeadingError float64 `yaml:"weight_heading_error"`
	WeightSteering     float64 `yaml:"weight_steering"`
	WeightSteeringRate float64 `yaml:"weight_steering_rate"`
	MaxSteeringAngle   float64 `yaml:"max_steering_angle"`
	MaxSteeringRate    float64 `yaml:"max_steering_rate"`
	SteerDelayTime     float64 `yaml:"steer_delay_time"`
	SteerGain          float64 `yaml:"steer_gain"`
	SteerZeta          float64 `yaml:"steer_zeta"`
	SteerOmegaN        float64 `yaml:"steer_omega_n"`
	PredictionVelocity float64 `yaml:"prediction_velocity"`
}

// Solver holds QP solver tuning
type Solver struct {
	MaxIter     int           `yaml:"max_iter"`
	EpsAbs      float64       `yaml:"eps_abs"`
	EpsRel      float64       `yaml:"eps_rel"`
	EpsPrimInf  float64       `yaml:"eps_prim_inf"`
	EpsDualInf  float64       `yaml:"eps_dual_inf"`
	AdaptiveRho bool          `yaml:"adaptive_rho"`
	ScalingIter int           `yaml:"scaling_iter"`
	TimeLimit   time.Duration `yaml:"time_limit"`
	Verbose     bool          `yaml:"verbose"`
}

// Longitudinal holds velocity PID parameters
type Longitudinal struct {
	Kp   float64 `yaml:"kp"`
	Ki   float64 `yaml:"ki"`
	Kd   float64 `yaml:"kd"`
	UMin float64 `yaml:"u_min"`
	UMax float64 `yaml:"u_max"`
}

// Config is the controller configuration
type Config struct {
	Vehicle      Vehicle      `yaml:"vehicle_params"`
	MPC          MPC          `yaml:"mpc_lateral"`
	Solver       Solver       `yaml:"solver"`
	Longitudinal Longitudinal `yaml:"longitudinal"`
}

// Default returns configuration with default solver settings.
// All other options have no defaults and must be set explicitly.
func Default() Config {
	s := qp.DefaultSettings()

	return Config{
		Solver: Solver{
			MaxIter:     s.MaxIter,
			EpsAbs:      s.EpsAbs,
			EpsRel:      s.EpsRel,
			EpsPrimInf:  s.EpsPrimInf,
			EpsDualInf:  s.EpsDualInf,
			AdaptiveRho: s.AdaptiveRho,
			ScalingIter: s.ScalingIter,
			TimeLimit:   s.TimeLimit,
			Verbose:     s.Verbose,
		},
	}
}

// Load reads configuration from the YAML file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML data on top of Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate returns ErrInvalid wrapped with the reason if c is invalid
func (c Config) Validate() error {
	if c.Solver.MaxIter < 1 {
		return fmt.Errorf("%w: max_iter must be positive: %d", ErrInvalid, c.Solver.MaxIter)
	}

	if err := c.MPCConfig().Validate(); err != nil {
		return fmt.Errorf("%w: mpc_lateral: %v", ErrInvalid, err)
	}

	if err := c.PIDConfig().Validate(); err != nil {
		return fmt.Errorf("%w: longitudinal: %v", ErrInvalid, err)
	}

	return nil
}

// SolverSettings returns QP solver settings
func (c Config) SolverSettings() qp.Settings {
	s := qp.DefaultSettings()
	s.MaxIter = c.Solver.MaxIter
	s.EpsAbs = c.Solver.EpsAbs
	s.EpsRel = c.Solver.EpsRel
	s.EpsPrimInf = c.Solver.EpsPrimInf
	s.EpsDualInf = c.Solver.EpsDualInf
	s.AdaptiveRho = c.Solver.AdaptiveRho
	s.ScalingIter = c.Solver.ScalingIter
	s.TimeLimit = c.Solver.TimeLimit
	s.Verbose = c.Solver.Verbose

	return s
}

// MPCConfig returns lateral MPC configuration
func (c Config) MPCConfig() mpc.Config {
	m := c.MPC

	return mpc.Config{
		PredictionHorizon:  m.PredictionHorizon,
		ControlHorizon:     m.ControlHorizon,
		DT:                 m.DT,
		WeightLateralError: m.WeightLateralError,
		WeightHeadingError: m.WeightHeadingError,
		WeightSteering:     m.WeightSteering,
		WeightSteeringRate: m.WeightSteeringRate,
		MaxSteeringAngle:   m.MaxSteeringAngle,
		MaxSteeringRate:    m.MaxSteeringRate,
		SteerDelayTime:     m.SteerDelayTime,
		SteerGain:          m.SteerGain,
		SteerZeta:          m.SteerZeta,
		SteerOmegaN:        m.SteerOmegaN,
		PredictionVelocity: m.PredictionVelocity,
		Wheelbase:          c.Vehicle.Wheelbase,
		Solver:             c.SolverSettings(),
	}
}

// PIDConfig returns longitudinal PID configuration
func (c Config) PIDConfig() pid.Config {
	return pid.Config{
		Kp:   c.Longitudinal.Kp,
		Ki:   c.Longitudinal.Ki,
		Kd:   c.Longitudinal.Kd,
		UMin: c.Longitudinal.UMin,
		UMax: c.Longitudinal.UMax,
	}
}
