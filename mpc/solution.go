package mpc

import (
	"time"

	"github.com/milosgajdos/go-lateral/qp"
	"gonum.org/v1/gonum/mat"
)

// Costs is the cost breakdown of a solution
type Costs struct {
	LateralError float64
	HeadingError float64
	Steering     float64
	SteeringRate float64
	// Slack is the soft constraint penalty
	Slack float64
	// Total is the sum of all cost terms
	Total float64
}

// Solution is the outcome of Problem.Solve
type Solution struct {
	// Status is the QP solver status
	Status qp.Status
	// Iter is the number of solver iterations
	Iter int
	// Elapsed is the solve wall clock time
	Elapsed time.Duration
	// Command is the first control input
	Command float64
	// States is the 4 x N+1 predicted state trajectory
	States *mat.Dense
	// Controls is the 1 x M control sequence
	Controls *mat.Dense
	// SlackRate is the 1 x N steering rate slack
	SlackRate *mat.Dense
	// SlackSteering is the 1 x N+1 steering angle slack
	SlackSteering *mat.Dense
	// Costs is the cost breakdown
	Costs Costs
}

// OK returns true if the solve succeeded and the trajectories can be trusted
func (s *Solution) OK() bool {
	return s != nil && s.Status.OK() && s.States != nil
}

// WarmStart returns a copy of the solution trajectories.
// It returns nil if the solve failed.
func (s *Solution) WarmStart() *WarmStart {
	if !s.OK() {
		return nil
	}

	w := &WarmStart{
		States:        s.States,
		Controls:      s.Controls,
		SlackRate:     s.SlackRate,
		SlackSteering: s.SlackSteering,
	}

	return w.Clone()
}
