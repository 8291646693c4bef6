package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Discrete is a linear, discrete-time, dynamical system
type Discrete struct {
	System
}

// NewDiscrete creates a linear discrete-time model based on the control theory equations.
//
//	x[n+1] = A*x[n] + B*u[n]
//	y[n] = C*x[n] + D*u[n]
func NewDiscrete(A, B, C, D *mat.Dense) (*Discrete, error) {
	sys, err := newSystem(A, B, C, D)
	if err != nil {
		return nil, err
	}

	return &Discrete{System: sys}, nil
}

// Propagate returns the next internal state given state x and input vector u.
func (dt *Discrete) Propagate(x, u mat.Vector) (mat.Vector, error) {
	nx, nu, _ := dt.SystemDims()
	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := new(mat.Dense)
	out.Mul(dt.A, x)
	if u != nil && dt.B != nil {
		outU := new(mat.Dense)
		outU.Mul(dt.B, u)

		out.Add(out, outU)
	}

	return out.ColView(0), nil
}
