// Package controller implements MPC lateral path tracking with PID longitudinal control.
package controller

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	lateral "github.com/milosgajdos/go-lateral"
	"github.com/milosgajdos/go-lateral/config"
	"github.com/milosgajdos/go-lateral/mpc"
	"github.com/milosgajdos/go-lateral/path"
	"github.com/milosgajdos/go-lateral/pid"
	"github.com/milosgajdos/go-lateral/qp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gonum.org/v1/gonum/mat"
)

// WarnInterval is the minimum interval between repeated solver failure warnings
const WarnInterval = 5 * time.Second

// Diagnostics describe the last control tick
type Diagnostics struct {
	// ClosestIndex is the index of the closest reference point
	ClosestIndex int
	// Distance is the distance to the closest reference point [m]
	Distance float64
	// LateralError is the signed lateral error [m]
	LateralError float64
	// HeadingError is the heading error [rad]
	HeadingError float64
	// Curvature is the curvature feedforward profile [1/m]
	Curvature []float64
	// Status is the solver status
	Status qp.Status
	// Iter is the number of solver iterations
	Iter int
	// Elapsed is the solve wall clock time
	Elapsed time.Duration
	// Fallback is true if the measured steering was commanded
	Fallback bool
	// RawCommand is the steering command before clamping [rad]
	RawCommand float64
	// Costs is the cost breakdown of a successful solve
	Costs mpc.Costs
	// States is the predicted state trajectory of a successful solve
	States *mat.Dense
	// Controls is the control sequence of a successful solve
	Controls *mat.Dense
}

// Option configures Controller
type Option func(*Controller)

// WithLogger sets controller logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets controller metrics
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLongitudinal replaces the configured velocity PID
func WithLongitudinal(l lateral.Longitudinal) Option {
	return func(c *Controller) {
		c.lon = l
	}
}

// Controller tracks a reference trajectory with lateral MPC.
//
// The MPC problem, steering history and warm start cache are owned by the
// controller and mutated only by Control, which must not be called concurrently.
type Controller struct {
	id       string
	maxSteer float64
	pv       float64
	sampler  *path.Sampler
	problem  *mpc.Problem
	history  *mpc.History
	cache    *mpc.WarmStart
	lon      lateral.Longitudinal
	diag     Diagnostics
	failures int
	warn     rate.Sometimes
	log      *zap.Logger
	metrics  *Metrics
}

var _ lateral.Controller = (*Controller)(nil)

// New creates new Controller and returns it.
// It returns error if c is invalid.
func New(c config.Config, opts ...Option) (*Controller, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	mc := c.MPCConfig()

	problem, err := mpc.New(mc)
	if err != nil {
		return nil, err
	}

	sampler, err := path.NewSampler(mc.PredictionHorizon, mc.DT, path.DefaultStep)
	if err != nil {
		return nil, err
	}

	lon, err := pid.New(c.PIDConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create longitudinal controller: %w", err)
	}

	ctrl := &Controller{
		id:       uuid.New().String(),
		maxSteer: mc.MaxSteeringAngle,
		pv:       mc.PredictionVelocity,
		sampler:  sampler,
		problem:  problem,
		history:  mpc.NewHistory(problem.DelaySteps()),
		lon:      lon,
		warn:     rate.Sometimes{First: 1, Interval: WarnInterval},
		log:      zap.NewNop(),
	}

	for _, apply := range opts {
		apply(ctrl)
	}

	ctrl.log = ctrl.log.With(zap.String("controller", ctrl.id))
	problem.SetLogger(ctrl.log)

	ctrl.log.Info("controller_created",
		zap.Int("prediction_horizon", mc.PredictionHorizon),
		zap.Int("control_horizon", mc.ControlHorizon),
		zap.Float64("dt", mc.DT),
		zap.Int("delay_steps", problem.DelaySteps()),
	)

	return ctrl, nil
}

// ID returns controller instance id
func (c *Controller) ID() string {
	return c.id
}

// Diagnostics returns diagnostics of the last tick
func (c *Controller) Diagnostics() Diagnostics {
	d := c.diag
	d.Curvature = append([]float64(nil), c.diag.Curvature...)

	return d
}

// WarmStart returns a copy of the last successful solution used to seed solves.
// It returns nil before the first successful solve.
func (c *Controller) WarmStart() *mpc.WarmStart {
	return c.cache.Clone()
}

// History returns the commanded steering history, oldest first
func (c *Controller) History() []float64 {
	return c.history.Values()
}

// UpdateSolverSettings replaces QP solver settings used from the next tick
func (c *Controller) UpdateSolverSettings(s qp.Settings) error {
	return c.problem.UpdateSettings(s)
}

// Control computes steering and acceleration command for vehicle state s tracking traj.
// Empty traj produces a zero command and resets the longitudinal controller.
// Solver failures fall back to the measured steering angle.
// The steering command is always within the steering angle limit.
func (c *Controller) Control(traj lateral.Trajectory, s lateral.VehicleState) lateral.Command {
	idx, dist, err := path.Locate(traj, s.X, s.Y)
	if err != nil {
		c.diag = Diagnostics{}
		if c.lon != nil {
			c.lon.Reset()
		}
		c.log.Debug("empty_trajectory")
		return lateral.Command{Time: s.Time}
	}

	lat, head := path.Errors(traj[idx], s)
	kappa := c.sampler.Curvature(traj, idx, c.pv)

	sol := c.solve(mpc.Params{
		LateralError: lat,
		HeadingError: head,
		Steering:     s.Steering,
		SteeringRate: s.SteeringRate,
		Velocity:     s.Velocity,
		Curvature:    kappa,
		History:      c.history.Values(),
	})

	raw := s.Steering
	if sol.OK() {
		raw = sol.Command
		c.cache = sol.WarmStart()
	} else {
		if math.IsNaN(raw) {
			raw = 0
		}
		c.failures++
		c.warn.Do(func() {
			c.log.Warn("mpc_solve_failed",
				zap.Stringer("status", sol.Status),
				zap.Int("iter", sol.Iter),
				zap.Int("failures", c.failures),
				zap.Float64("fallback_steering", raw),
			)
		})
	}
	c.history.Push(raw)

	steer := clamp(raw, c.maxSteer)

	accel := 0.0
	if c.lon != nil {
		accel = c.lon.Accel(traj[idx].Velocity, s.Velocity, s.Time)
	}

	c.diag = Diagnostics{
		ClosestIndex: idx,
		Distance:     dist,
		LateralError: lat,
		HeadingError: head,
		Curvature:    kappa,
		Status:       sol.Status,
		Iter:         sol.Iter,
		Elapsed:      sol.Elapsed,
		Fallback:     !sol.OK(),
		RawCommand:   raw,
		Costs:        sol.Costs,
		States:       sol.States,
		Controls:     sol.Controls,
	}
	c.metrics.observe(c.id, sol)

	c.log.Debug("control_tick",
		zap.Int("closest_index", idx),
		zap.Float64("distance", dist),
		zap.Float64("lateral_error", lat),
		zap.Float64("heading_error", head),
		zap.Float64s("curvature_head", kappa[:min(3, len(kappa))]),
		zap.Stringer("status", sol.Status),
		zap.Float64("steering", steer),
		zap.Float64("acceleration", accel),
	)

	return lateral.Command{
		Steering:     steer,
		Acceleration: accel,
		Time:         s.Time,
	}
}

func (c *Controller) solve(prm mpc.Params) *mpc.Solution {
	if err := c.problem.SetParams(prm); err != nil {
		c.log.Debug("mpc_params_rejected", zap.Error(err))
		return &mpc.Solution{Status: qp.NumericalError}
	}

	return c.problem.Solve(mpc.Shift(c.cache))
}

// clamp limits v to [-limit, limit]; NaN maps to zero
func clamp(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return math.Max(-limit, math.Min(v, limit))
}
