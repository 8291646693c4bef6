package sim

import (
	"gonum.org/v1/gonum/mat"

	mx "github.com/milosgajdos/matrix"
)

// c2dSteps is the number of integration steps used for singular system matrices
const c2dSteps = 100

// Continuous is a linear, continuous-time, dynamical system
type Continuous struct {
	System
}

// NewContinuous creates a linear continuous-time model based on the control theory equations.
//
//	dx/dt = A*x + B*u
//	y = C*x + D*u
func NewContinuous(A, B, C, D *mat.Dense) (*Continuous, error) {
	sys, err := newSystem(A, B, C, D)
	if err != nil {
		return nil, err
	}

	return &Continuous{System: sys}, nil
}

// ToDiscrete creates a discrete-time model from a continuous time model
// using ts as the sampling time and zero order hold on the input.
//
//	Ad = exp(A*ts)
//	Bd = integrate(exp(A*t)dt, 0, ts) * B
func (ct *Continuous) ToDiscrete(ts float64) (*Discrete, error) {
	nx, _, _ := ct.SystemDims()

	at := new(mat.Dense)
	at.Scale(ts, ct.A)
	Ad := new(mat.Dense)
	Ad.Exp(at)

	dsys, err := newSystem(Ad, ct.B, ct.C, ct.D)
	if err != nil {
		return nil, err
	}
	if ct.B == nil {
		return &Discrete{System: dsys}, nil
	}

	eye, err := mx.NewDenseValIdentity(nx, 1.0)
	if err != nil {
		return nil, err
	}

	Aaux := mat.NewDense(nx, nx, nil)
	Ainv := mat.NewDense(nx, nx, nil)
	if err := Ainv.Inverse(ct.A); err == nil {
		// Bd = (exp(A*ts) - I)*inv(A)*B
		Aaux.Sub(Ad, eye)
		Asum := new(mat.Dense)
		Asum.Mul(Aaux, Ainv)
		dsys.B.Mul(Asum, ct.B)
		return &Discrete{System: dsys}, nil
	}

	// singular A: trapezoidal integration of exp(A*t) over [0, ts]
	Asum := mat.NewDense(nx, nx, nil)
	Aexp := new(mat.Dense)
	dt := ts / float64(c2dSteps)
	for i := 0; i <= c2dSteps; i++ {
		w := dt
		if i == 0 || i == c2dSteps {
			w = dt / 2
		}
		Aaux.Scale(dt*float64(i), ct.A)
		Aexp.Exp(Aaux)
		Aaux.Scale(w, Aexp)
		Asum.Add(Asum, Aaux)
	}
	dsys.B.Mul(Asum, ct.B)

	return &Discrete{System: dsys}, nil
}
