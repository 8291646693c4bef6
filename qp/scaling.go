package qp

import (
	"math"

	"github.com/milosgajdos/go-lateral/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	minScaling = 1e-4
	maxScaling = 1e4
)

// scaling holds Ruiz equilibration factors.
//
//	P~ = c*D*P*D, q~ = c*D*q, A~ = E*A*D, l~ = E*l, u~ = E*u
type scaling struct {
	d []float64
	e []float64
	c float64
}

func limitScaling(v float64) float64 {
	if v < minScaling {
		return 1.0
	}
	if v > maxScaling {
		return maxScaling
	}
	return v
}

// equilibrate computes scaling factors of P and A and returns the scaled matrices.
func equilibrate(p mat.Symmetric, a mat.Matrix, q []float64, iters int) (*scaling, *mat.Dense, *mat.Dense) {
	n := p.SymmetricDim()
	m, _ := a.Dims()

	ps := mat.DenseCopyOf(p)
	as := mat.DenseCopyOf(a)

	sc := &scaling{d: make([]float64, n), e: make([]float64, m), c: 1.0}
	for i := range sc.d {
		sc.d[i] = 1.0
	}
	for i := range sc.e {
		sc.e[i] = 1.0
	}

	dd := make([]float64, n)
	de := make([]float64, m)
	qs := make([]float64, n)
	for k := 0; k < iters; k++ {
		pn := matrix.ColInfNorms(ps)
		an := matrix.ColInfNorms(as)
		for j := range dd {
			dd[j] = 1 / math.Sqrt(limitScaling(math.Max(pn[j], an[j])))
		}
		if m > 0 {
			for i, r := range matrix.RowInfNorms(as) {
				de[i] = 1 / math.Sqrt(limitScaling(r))
			}
		}

		scaleRowsCols(ps, dd, dd)
		scaleRowsCols(as, de, dd)
		floats.Mul(sc.d, dd)
		floats.Mul(sc.e, de)

		// cost scaling
		for j := range qs {
			qs[j] = sc.c * sc.d[j] * q[j]
		}
		pMean := floats.Sum(matrix.ColInfNorms(ps)) / float64(n)
		gamma := 1 / limitScaling(math.Max(pMean, floats.Norm(qs, math.Inf(1))))
		ps.Scale(gamma, ps)
		sc.c *= gamma
	}

	return sc, ps, as
}

// scaleRowsCols computes m = diag(r) * m * diag(c) in place
func scaleRowsCols(m *mat.Dense, r, c []float64) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := 0; j < cols; j++ {
			row[j] *= r[i] * c[j]
		}
	}
}
