package mpc

import (
	"github.com/milosgajdos/go-lateral/matrix"
	"gonum.org/v1/gonum/mat"
)

// WarmStart is a solution of a previous solve used to seed the next one
type WarmStart struct {
	// States is the 4 x N+1 predicted state trajectory
	States *mat.Dense
	// Controls is the 1 x M control sequence
	Controls *mat.Dense
	// SlackRate is the 1 x N steering rate slack
	SlackRate *mat.Dense
	// SlackSteering is the 1 x N+1 steering angle slack
	SlackSteering *mat.Dense
}

// Empty returns true if w holds no trajectories
func (w *WarmStart) Empty() bool {
	return w == nil || w.States == nil || w.Controls == nil
}

// Clone returns a deep copy of w
func (w *WarmStart) Clone() *WarmStart {
	if w == nil {
		return nil
	}

	return &WarmStart{
		States:        cloneDense(w.States),
		Controls:      cloneDense(w.Controls),
		SlackRate:     cloneDense(w.SlackRate),
		SlackSteering: cloneDense(w.SlackSteering),
	}
}

// Shift advances prev by one time step: every trajectory drops its first
// column and repeats its last one. It returns nil if prev is empty.
func Shift(prev *WarmStart) *WarmStart {
	if prev.Empty() {
		return nil
	}

	guess := &WarmStart{
		States:   matrix.ShiftCols(prev.States),
		Controls: matrix.ShiftCols(prev.Controls),
	}
	if prev.SlackRate != nil {
		guess.SlackRate = matrix.ShiftCols(prev.SlackRate)
	}
	if prev.SlackSteering != nil {
		guess.SlackSteering = matrix.ShiftCols(prev.SlackSteering)
	}

	return guess
}

func cloneDense(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}

	return mat.DenseCopyOf(m)
}
