package matrix

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ShiftCols returns a copy of m with every column moved one place to the left
// and the last column duplicated: out[:, j] = m[:, j+1] for j < cols-1 and
// out[:, cols-1] = m[:, cols-1].
// It panics if m is nil.
func ShiftCols(m mat.Matrix) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)

	for j := 0; j < cols; j++ {
		src := j + 1
		if src == cols {
			src = cols - 1
		}
		for i := 0; i < rows; i++ {
			out.Set(i, j, m.At(i, src))
		}
	}

	return out
}

// VecInfNorm returns the infinity norm of v.
// It returns 0 for a zero length vector.
func VecInfNorm(v mat.Vector) float64 {
	n := 0.0
	for i := 0; i < v.Len(); i++ {
		n = math.Max(n, math.Abs(v.AtVec(i)))
	}

	return n
}

// ColInfNorms returns the infinity norms of m columns.
func ColInfNorms(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	norms := make([]float64, cols)

	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			norms[j] = math.Max(norms[j], math.Abs(m.At(i, j)))
		}
	}

	return norms
}

// RowInfNorms returns the infinity norms of m rows.
func RowInfNorms(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	norms := make([]float64, rows)

	for i := 0; i < rows; i++ {
		norms[i] = floats.Norm(m.RawRowView(i), math.Inf(1))
	}

	return norms
}
