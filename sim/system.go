package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// System defines a linear model of a plant using
// traditional matrices of modern control theory.
//
// It contains the System (A), input (B), Observation/Output (C)
// and Feedthrough (D) matrices.
type System struct {
	// System/State matrix A
	A *mat.Dense
	// Control/Input Matrix B
	B *mat.Dense
	// Observation/Output Matrix C
	C *mat.Dense
	// Feedthrough matrix D
	D *mat.Dense
}

func newSystem(A, B, C, D *mat.Dense) (System, error) {
	if A == nil {
		return System{}, fmt.Errorf("system matrix must be defined for a model")
	}

	r, c := A.Dims()
	if r != c {
		return System{}, fmt.Errorf("invalid system matrix dimensions: [%d x %d]", r, c)
	}

	sys := System{A: mat.DenseCopyOf(A)}
	if B != nil {
		if br, _ := B.Dims(); br != r {
			return System{}, fmt.Errorf("invalid input matrix rows: %d != %d", br, r)
		}
		sys.B = mat.DenseCopyOf(B)
	}
	if C != nil {
		if _, cc := C.Dims(); cc != r {
			return System{}, fmt.Errorf("invalid output matrix columns: %d != %d", cc, r)
		}
		sys.C = mat.DenseCopyOf(C)
	}
	if D != nil {
		sys.D = mat.DenseCopyOf(D)
	}

	return sys, nil
}

// SystemDims returns internal state length (nx), input vector length (nu)
// and output state length (ny).
func (s System) SystemDims() (nx, nu, ny int) {
	nx, _ = s.A.Dims()
	if s.B != nil {
		_, nu = s.B.Dims()
	}
	if s.C != nil {
		ny, _ = s.C.Dims()
	}
	return nx, nu, ny
}

// Observe returns output of the system given internal state x and input u.
func (s System) Observe(x, u mat.Vector) (mat.Vector, error) {
	nx, nu, _ := s.SystemDims()
	if s.C == nil {
		return nil, fmt.Errorf("output matrix not defined")
	}

	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := new(mat.Dense)
	out.Mul(s.C, x)

	if u != nil && s.D != nil {
		outU := new(mat.Dense)
		outU.Mul(s.D, u)

		out.Add(out, outU)
	}

	return out.ColView(0), nil
}
