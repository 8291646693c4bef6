package sim

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Noise is zero mean Gaussian noise added to pose measurements [x, y, yaw]
type Noise struct {
	dist *distmv.Normal
	cov  mat.Symmetric
}

// NewNoise creates new pose measurement Noise with covariance cov drawn from a source seeded with seed.
// It returns error if cov is not 3x3 or not positive definite.
func NewNoise(cov mat.Symmetric, seed uint64) (*Noise, error) {
	if cov == nil || cov.SymmetricDim() != 3 {
		return nil, fmt.Errorf("invalid noise covariance: expected 3x3 matrix")
	}

	src := rand.New(rand.NewSource(seed))
	dist, ok := distmv.NewNormal(make([]float64, 3), cov, src)
	if !ok {
		return nil, fmt.Errorf("failed to create Gaussian noise: covariance not positive definite")
	}

	return &Noise{dist: dist, cov: cov}, nil
}

// Sample returns a [x, y, yaw] noise sample
func (n *Noise) Sample() []float64 {
	return n.dist.Rand(nil)
}

// Cov returns noise covariance
func (n *Noise) Cov() mat.Symmetric {
	return n.cov
}

// String implements the Stringer interface.
func (n *Noise) String() string {
	return fmt.Sprintf("Noise{\nCov=%v\n}", mat.Formatted(n.cov, mat.Prefix("    "), mat.Squeeze()))
}
