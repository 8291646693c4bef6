package mpc

import (
	"fmt"
	"math"

	lateral "github.com/milosgajdos/go-lateral"
	"github.com/milosgajdos/go-lateral/qp"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// state vector layout
const (
	nx     = 4
	iLat   = 0
	iHead  = 1
	iSteer = 2
	iRate  = 3
)

// Params are the numeric parameters of a single solve
type Params struct {
	// LateralError is the measured lateral error [m]
	LateralError float64
	// HeadingError is the measured heading error [rad]
	HeadingError float64
	// Steering is the measured steering angle [rad]
	Steering float64
	// SteeringRate is the measured steering rate [rad/s]
	SteeringRate float64
	// Velocity is the vehicle velocity [m/s]
	Velocity float64
	// Curvature is the reference curvature profile [1/m]
	Curvature []float64
	// History holds past steering commands, oldest first
	History []float64
}

// Problem is the lateral MPC quadratic program.
//
// The decision vector stacks N+1 states, M controls, N steering rate slacks
// and N+1 steering angle slacks. Cost and constraint structure are built once
// in New; SetParams only rewrites constraint bounds and, when the velocity
// changes, the velocity dependent entries of the constraint matrix.
type Problem struct {
	cfg   Config
	n, m  int
	delay int
	nv    int
	nc    int
	a     *mat.Dense
	l, u  []float64
	// velocity currently encoded in a
	velocity float64
	solver   *qp.Solver
	// dual of the last successful solve
	dual []float64
}

// New creates new Problem for the given configuration and returns it.
// It returns error if the configuration is invalid or the QP can not be set up.
func New(c Config) (*Problem, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := &Problem{
		cfg:   c,
		n:     c.PredictionHorizon,
		m:     c.ControlHorizon,
		delay: c.DelaySteps(),
	}
	p.nv = nx*(p.n+1) + p.m + p.n + (p.n + 1)
	p.nc = p.rowU(p.m) + p.n + (p.n + 1)

	p.a = mat.NewDense(p.nc, p.nv, nil)
	p.l = make([]float64, p.nc)
	p.u = make([]float64, p.nc)

	p.buildConstraints()
	p.setVelocity(math.Max(c.PredictionVelocity, lateral.MinVelocity))

	solver, err := qp.New(qp.Problem{
		P: p.cost(),
		A: p.a,
		L: p.l,
		U: p.u,
	}, c.Solver)
	if err != nil {
		return nil, fmt.Errorf("failed to set up QP: %w", err)
	}
	p.solver = solver

	return p, nil
}

// SetLogger sets the logger used by the solver in verbose mode
func (p *Problem) SetLogger(l *zap.Logger) {
	p.solver.SetLogger(l)
}

// Config returns problem configuration
func (p *Problem) Config() Config {
	return p.cfg
}

// Dims returns the number of decision variables and constraints
func (p *Problem) Dims() (nv, nc int) {
	return p.nv, p.nc
}

// DelaySteps returns the actuator dead time in time steps
func (p *Problem) DelaySteps() int {
	return p.delay
}

// UpdateSettings replaces QP solver settings
func (p *Problem) UpdateSettings(s qp.Settings) error {
	if err := p.solver.UpdateSettings(s); err != nil {
		return err
	}
	p.cfg.Solver = s

	return nil
}

// variable indices
func (p *Problem) xi(k, i int) int { return nx*k + i }
func (p *Problem) ui(j int) int    { return nx*(p.n+1) + j }
func (p *Problem) sri(k int) int   { return p.ui(p.m) + k }
func (p *Problem) ssi(k int) int   { return p.sri(p.n) + k }

// constraint row indices
func (p *Problem) rowDyn(k, i int) int { return nx + nx*k + i }
func (p *Problem) rowRate(k int) int   { return nx + nx*p.n + 2*(k-1) }
func (p *Problem) rowSteer(k int) int  { return nx + nx*p.n + 2*p.n + 2*k }
func (p *Problem) rowU(j int) int      { return p.rowSteer(p.n+1) + j }
func (p *Problem) rowSlack(i int) int  { return p.rowU(p.m) + i }

// cost builds the quadratic cost matrix
func (p *Problem) cost() *mat.SymDense {
	c := p.cfg
	h := mat.NewSymDense(p.nv, nil)

	for k := 0; k < p.n; k++ {
		h.SetSym(p.xi(k, iLat), p.xi(k, iLat), 2*c.WeightLateralError)
		h.SetSym(p.xi(k, iHead), p.xi(k, iHead), 2*c.WeightHeadingError)
		h.SetSym(p.xi(k, iSteer), p.xi(k, iSteer), 2*c.WeightSteering)
	}

	for j := 0; j < p.m; j++ {
		h.SetSym(p.ui(j), p.ui(j), 2*c.WeightSteering)
	}
	// w_rate * sum (u[j+1] - u[j])^2
	for j := 0; j+1 < p.m; j++ {
		a, b := p.ui(j), p.ui(j+1)
		h.SetSym(a, a, h.At(a, a)+2*c.WeightSteeringRate)
		h.SetSym(b, b, h.At(b, b)+2*c.WeightSteeringRate)
		h.SetSym(a, b, h.At(a, b)-2*c.WeightSteeringRate)
	}

	for k := 0; k < p.n; k++ {
		h.SetSym(p.sri(k), p.sri(k), 2*SlackPenalty)
	}
	for k := 0; k <= p.n; k++ {
		h.SetSym(p.ssi(k), p.ssi(k), 2*SlackPenalty)
	}

	return h
}

// buildConstraints fills velocity independent constraint structure and static bounds
func (p *Problem) buildConstraints() {
	c := p.cfg
	dt := c.DT
	wn2 := c.SteerOmegaN * c.SteerOmegaN
	inf := math.Inf(1)

	// initial condition
	for i := 0; i < nx; i++ {
		p.a.Set(i, p.xi(0, i), 1)
	}

	for k := 0; k < p.n; k++ {
		// delta_dot[k+1] = (1-2*zeta*wn*dt)*delta_dot[k] - dt*wn^2*delta[k] + dt*wn^2*gain*u_eff[k]
		r := p.rowDyn(k, iRate)
		p.a.Set(r, p.xi(k+1, iRate), 1)
		p.a.Set(r, p.xi(k, iRate), -(1 - 2*c.SteerZeta*c.SteerOmegaN*dt))
		p.a.Set(r, p.xi(k, iSteer), dt*wn2)
		if k >= p.delay {
			p.a.Set(r, p.ui(p.effective(k)), -dt*wn2*c.SteerGain)
		}

		// delta[k+1] = delta[k] + dt*delta_dot[k+1]
		r = p.rowDyn(k, iSteer)
		p.a.Set(r, p.xi(k+1, iSteer), 1)
		p.a.Set(r, p.xi(k, iSteer), -1)
		p.a.Set(r, p.xi(k+1, iRate), -dt)

		// e_psi[k+1] = e_psi[k] + dt*v/L*delta[k+1] - dt*ref_yaw_rate[k]
		r = p.rowDyn(k, iHead)
		p.a.Set(r, p.xi(k+1, iHead), 1)
		p.a.Set(r, p.xi(k, iHead), -1)

		// e_y[k+1] = e_y[k] + dt*v*e_psi[k+1]
		r = p.rowDyn(k, iLat)
		p.a.Set(r, p.xi(k+1, iLat), 1)
		p.a.Set(r, p.xi(k, iLat), -1)
	}

	// |delta_dot[k]| <= max_rate + slack_rate[k-1]
	for k := 1; k <= p.n; k++ {
		r := p.rowRate(k)
		p.a.Set(r, p.xi(k, iRate), 1)
		p.a.Set(r, p.sri(k-1), -1)
		p.l[r], p.u[r] = -inf, c.MaxSteeringRate

		p.a.Set(r+1, p.xi(k, iRate), 1)
		p.a.Set(r+1, p.sri(k-1), 1)
		p.l[r+1], p.u[r+1] = -c.MaxSteeringRate, inf
	}

	// |delta[k]| <= max_angle + slack_steering[k]
	for k := 0; k <= p.n; k++ {
		r := p.rowSteer(k)
		p.a.Set(r, p.xi(k, iSteer), 1)
		p.a.Set(r, p.ssi(k), -1)
		p.l[r], p.u[r] = -inf, c.MaxSteeringAngle

		p.a.Set(r+1, p.xi(k, iSteer), 1)
		p.a.Set(r+1, p.ssi(k), 1)
		p.l[r+1], p.u[r+1] = -c.MaxSteeringAngle, inf
	}

	// |u[j]| <= max_angle
	for j := 0; j < p.m; j++ {
		r := p.rowU(j)
		p.a.Set(r, p.ui(j), 1)
		p.l[r], p.u[r] = -c.MaxSteeringAngle, c.MaxSteeringAngle
	}

	// slack >= 0
	for i := 0; i < 2*p.n+1; i++ {
		r := p.rowSlack(i)
		p.a.Set(r, p.sri(0)+i, 1)
		p.l[r], p.u[r] = 0, inf
	}
}

// effective returns the control index applied at step k >= delay
func (p *Problem) effective(k int) int {
	j := k - p.delay
	if j > p.m-1 {
		j = p.m - 1
	}

	return j
}

// setVelocity writes velocity dependent constraint matrix entries
func (p *Problem) setVelocity(v float64) {
	dt := p.cfg.DT
	for k := 0; k < p.n; k++ {
		p.a.Set(p.rowDyn(k, iHead), p.xi(k+1, iSteer), -dt*v/p.cfg.Wheelbase)
		p.a.Set(p.rowDyn(k, iLat), p.xi(k+1, iHead), -dt*v)
	}
	p.velocity = v
}

// SetParams updates the problem parameters for the next solve.
//
// Velocity is floored to lateral.MinVelocity. Curvature is truncated or padded
// with its last sample to the prediction horizon; an empty profile means a
// straight path. History shorter than the actuator delay is discarded and the
// measured steering angle is used for every delayed step.
func (p *Problem) SetParams(prm Params) error {
	scalars := []float64{prm.LateralError, prm.HeadingError, prm.Steering, prm.SteeringRate, prm.Velocity}
	if floats.HasNaN(scalars) || floats.HasNaN(prm.Curvature) || floats.HasNaN(prm.History) {
		return fmt.Errorf("invalid parameters: NaN value")
	}

	v := math.Max(math.Abs(prm.Velocity), lateral.MinVelocity)
	if v != p.velocity {
		p.setVelocity(v)
		if err := p.solver.UpdateConstraintMatrix(p.a); err != nil {
			return err
		}
	}

	p.l[0], p.u[0] = prm.LateralError, prm.LateralError
	p.l[1], p.u[1] = prm.HeadingError, prm.HeadingError
	p.l[2], p.u[2] = prm.Steering, prm.Steering
	p.l[3], p.u[3] = prm.SteeringRate, prm.SteeringRate

	hist := prm.History
	if len(hist) < p.delay {
		hist = nil
	}

	c := p.cfg
	gain := c.DT * c.SteerOmegaN * c.SteerOmegaN * c.SteerGain
	for k := 0; k < p.n; k++ {
		r := p.rowDyn(k, iRate)
		rhs := 0.0
		if k < p.delay {
			h := prm.Steering
			if hist != nil {
				h = hist[k]
			}
			rhs = gain * h
		}
		p.l[r], p.u[r] = rhs, rhs

		// ref_yaw_rate = v * curvature
		r = p.rowDyn(k, iHead)
		yr := v * sample(prm.Curvature, k)
		p.l[r], p.u[r] = -c.DT*yr, -c.DT*yr
	}

	return p.solver.UpdateVectors(nil, p.l, p.u)
}

func sample(c []float64, k int) float64 {
	switch {
	case len(c) == 0:
		return 0
	case k < len(c):
		return c[k]
	default:
		return c[len(c)-1]
	}
}

// Solve solves the problem with the current parameters.
// Non-empty guess seeds the solver, otherwise the solve starts cold.
// Trajectories of the returned Solution are set only if the solve succeeded.
func (p *Problem) Solve(guess *WarmStart) *Solution {
	if x, ok := p.primal(guess); ok {
		if err := p.solver.WarmStart(x, p.dual); err != nil {
			p.solver.ColdStart()
		}
	} else {
		p.solver.ColdStart()
	}

	res := p.solver.Solve()
	sol := &Solution{
		Status:  res.Status,
		Iter:    res.Iter,
		Elapsed: res.Elapsed,
	}
	if !res.Status.OK() {
		return sol
	}

	p.extract(res.X, sol)
	p.dual = append(p.dual[:0], res.Y...)

	return sol
}

// primal flattens guess into a decision vector
func (p *Problem) primal(guess *WarmStart) ([]float64, bool) {
	if guess.Empty() {
		return nil, false
	}

	if r, c := guess.States.Dims(); r != nx || c != p.n+1 {
		return nil, false
	}
	if r, c := guess.Controls.Dims(); r != 1 || c != p.m {
		return nil, false
	}

	x := make([]float64, p.nv)
	for k := 0; k <= p.n; k++ {
		for i := 0; i < nx; i++ {
			x[p.xi(k, i)] = guess.States.At(i, k)
		}
	}
	for j := 0; j < p.m; j++ {
		x[p.ui(j)] = guess.Controls.At(0, j)
	}
	if guess.SlackRate != nil {
		if _, c := guess.SlackRate.Dims(); c == p.n {
			for k := 0; k < p.n; k++ {
				x[p.sri(k)] = guess.SlackRate.At(0, k)
			}
		}
	}
	if guess.SlackSteering != nil {
		if _, c := guess.SlackSteering.Dims(); c == p.n+1 {
			for k := 0; k <= p.n; k++ {
				x[p.ssi(k)] = guess.SlackSteering.At(0, k)
			}
		}
	}

	return x, true
}

// extract unpacks decision vector x into sol and evaluates cost terms
func (p *Problem) extract(x []float64, sol *Solution) {
	c := p.cfg

	sol.States = mat.NewDense(nx, p.n+1, nil)
	for k := 0; k <= p.n; k++ {
		for i := 0; i < nx; i++ {
			sol.States.Set(i, k, x[p.xi(k, i)])
		}
	}

	u := make([]float64, p.m)
	copy(u, x[p.ui(0):p.ui(p.m)])
	sol.Controls = mat.NewDense(1, p.m, u)
	sol.Command = u[0]

	sr := make([]float64, p.n)
	copy(sr, x[p.sri(0):p.sri(p.n)])
	sol.SlackRate = mat.NewDense(1, p.n, sr)

	ss := make([]float64, p.n+1)
	copy(ss, x[p.ssi(0):p.ssi(p.n+1)])
	sol.SlackSteering = mat.NewDense(1, p.n+1, ss)

	lat, head, steer := sol.States.RawRowView(iLat), sol.States.RawRowView(iHead), sol.States.RawRowView(iSteer)
	sol.Costs.LateralError = c.WeightLateralError * floats.Dot(lat[:p.n], lat[:p.n])
	sol.Costs.HeadingError = c.WeightHeadingError * floats.Dot(head[:p.n], head[:p.n])
	sol.Costs.Steering = c.WeightSteering * (floats.Dot(steer[:p.n], steer[:p.n]) + floats.Dot(u, u))
	for j := 0; j+1 < p.m; j++ {
		d := u[j+1] - u[j]
		sol.Costs.SteeringRate += c.WeightSteeringRate * d * d
	}
	sol.Costs.Slack = SlackPenalty * (floats.Dot(sr, sr) + floats.Dot(ss, ss))
	sol.Costs.Total = sol.Costs.LateralError + sol.Costs.HeadingError + sol.Costs.Steering +
		sol.Costs.SteeringRate + sol.Costs.Slack
}
