package qp

import (
	"fmt"
	"time"
)

// Status is the outcome of a QP solve
type Status int

const (
	// Unsolved means Solve has not been called or did not start
	Unsolved Status = iota
	// Solved means the solution satisfies the primal and dual tolerances
	Solved
	// MaxIterReached means the iteration budget ran out before convergence
	MaxIterReached
	// TimeLimitReached means the time budget ran out before convergence
	TimeLimitReached
	// PrimalInfeasible means a certificate of primal infeasibility was found
	PrimalInfeasible
	// DualInfeasible means a certificate of dual infeasibility was found
	DualInfeasible
	// NumericalError means factorization failed or iterates diverged
	NumericalError
)

// String implements the Stringer interface.
func (s Status) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Solved:
		return "solved"
	case MaxIterReached:
		return "max_iter_reached"
	case TimeLimitReached:
		return "time_limit_reached"
	case PrimalInfeasible:
		return "primal_infeasible"
	case DualInfeasible:
		return "dual_infeasible"
	case NumericalError:
		return "numerical_error"
	default:
		return "unknown"
	}
}

// OK returns true if the solve converged
func (s Status) OK() bool {
	return s == Solved
}

// Settings configure the ADMM solver
type Settings struct {
	// MaxIter is the maximum number of ADMM iterations; 0 performs none
	MaxIter int
	// EpsAbs is the absolute convergence tolerance
	EpsAbs float64
	// EpsRel is the relative convergence tolerance
	EpsRel float64
	// EpsPrimInf is the primal infeasibility tolerance
	EpsPrimInf float64
	// EpsDualInf is the dual infeasibility tolerance
	EpsDualInf float64
	// Rho is the initial ADMM step size
	Rho float64
	// Sigma is the primal regularization
	Sigma float64
	// Alpha is the over-relaxation parameter in (0, 2)
	Alpha float64
	// AdaptiveRho enables step size adaptation
	AdaptiveRho bool
	// AdaptiveRhoInterval is the number of iterations between step size updates
	AdaptiveRhoInterval int
	// CheckInterval is the number of iterations between termination checks
	CheckInterval int
	// ScalingIter is the number of Ruiz equilibration passes
	ScalingIter int
	// TimeLimit bounds a single Solve call; 0 disables it
	TimeLimit time.Duration
	// Verbose enables solver progress logging
	Verbose bool
}

// DefaultSettings returns default solver settings
func DefaultSettings() Settings {
	return Settings{
		MaxIter:             10000,
		EpsAbs:              1e-3,
		EpsRel:              1e-3,
		EpsPrimInf:          1e-4,
		EpsDualInf:          1e-4,
		Rho:                 0.1,
		Sigma:               1e-6,
		Alpha:               1.6,
		AdaptiveRho:         true,
		AdaptiveRhoInterval: 25,
		CheckInterval:       25,
		ScalingIter:         10,
	}
}

// Validate returns error if any of the settings is out of its valid range
func (s Settings) Validate() error {
	if s.MaxIter < 0 {
		return fmt.Errorf("invalid max iterations: %d", s.MaxIter)
	}

	if s.EpsAbs < 0 || s.EpsRel < 0 || (s.EpsAbs == 0 && s.EpsRel == 0) {
		return fmt.Errorf("invalid tolerances: abs %v, rel %v", s.EpsAbs, s.EpsRel)
	}

	if s.EpsPrimInf <= 0 || s.EpsDualInf <= 0 {
		return fmt.Errorf("invalid infeasibility tolerances: primal %v, dual %v", s.EpsPrimInf, s.EpsDualInf)
	}

	if s.Rho <= 0 || s.Sigma <= 0 {
		return fmt.Errorf("invalid step sizes: rho %v, sigma %v", s.Rho, s.Sigma)
	}

	if s.Alpha <= 0 || s.Alpha >= 2 {
		return fmt.Errorf("invalid relaxation parameter: %v", s.Alpha)
	}

	if s.AdaptiveRho && s.AdaptiveRhoInterval <= 0 {
		return fmt.Errorf("invalid adaptive rho interval: %d", s.AdaptiveRhoInterval)
	}

	if s.CheckInterval <= 0 {
		return fmt.Errorf("invalid termination check interval: %d", s.CheckInterval)
	}

	if s.ScalingIter < 0 {
		return fmt.Errorf("invalid scaling iterations: %d", s.ScalingIter)
	}

	if s.TimeLimit < 0 {
		return fmt.Errorf("invalid time limit: %v", s.TimeLimit)
	}

	return nil
}
