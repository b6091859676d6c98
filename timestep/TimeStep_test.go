package timestep

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestSetEnd(t *testing.T) {
	obs := mat.NewVecDense(2, []float64{1, 2})

	terminal := New(Mid, 1.0, 0.99, obs, 3)
	terminal.SetEnd(TerminalStateReached)
	if terminal.Discount != 0.0 {
		t.Errorf("terminal discount: got %v, want 0", terminal.Discount)
	}
	if terminal.EndType() != TerminalStateReached {
		t.Errorf("end type: got %v, want %v", terminal.EndType(),
			TerminalStateReached)
	}

	timeout := New(Mid, 1.0, 0.99, obs, 3)
	timeout.SetEnd(Timeout)
	if timeout.Discount != 0.99 {
		t.Errorf("timeout discount: got %v, want 0.99", timeout.Discount)
	}
}

func TestNewTransition(t *testing.T) {
	s := New(First, 0, 1, mat.NewVecDense(1, []float64{0}), 0)
	next := New(Mid, 2.5, 0.5, mat.NewVecDense(1, []float64{1}), 1)

	tr := NewTransition(s, 1, next)
	if tr.Reward != 2.5 || tr.Discount != 0.5 || tr.Action != 1 {
		t.Errorf("unexpected transition %v", tr)
	}
	if tr.NextState.AtVec(0) != 1 || tr.State.AtVec(0) != 0 {
		t.Errorf("unexpected states in transition %v", tr)
	}
}
