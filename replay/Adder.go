package replay

import (
	"fmt"

	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Inserter inserts prioritized transitions into a replay table
type Inserter interface {
	Insert(t ts.Transition, priority float64) (uint64, error)
}

// step is a single environment step waiting to be folded into an
// n-step transition
type step struct {
	state     *mat.VecDense
	action    int
	reward    float64
	discount  float64
	nextState *mat.VecDense
}

// NStepAdder turns a stream of timesteps into n-step transitions
// (s_t, a_t, R, D, s_{t+k}) with
//
//	R = r_1 + γ d_1 r_2 + γ² d_1 d_2 r_3 + ...
//	D = d_1 γ d_2 γ ... d_k = γ^(k-1) d_1 ... d_k
//
// where k = n except at the end of an episode, when the remaining
// partial windows are flushed with k < n. The bootstrap discount γ
// of the final step is applied by the learner.
type NStepAdder struct {
	inserter Inserter
	n        int
	discount float64
	priority float64

	buffer  []step
	prev    *mat.VecDense
	started bool
}

// NewNStepAdder returns a new NStepAdder which writes to inserter
func NewNStepAdder(inserter Inserter, n int,
	discount float64) (*NStepAdder, error) {
	if n < 1 {
		return nil, fmt.Errorf("newNStepAdder: n must be positive but got %v",
			n)
	}
	if discount < 0 || discount > 1 {
		return nil, fmt.Errorf("newNStepAdder: discount must be in [0, 1] "+
			"but got %v", discount)
	}

	return &NStepAdder{
		inserter: inserter,
		n:        n,
		discount: discount,
		priority: DefaultPriority,
		buffer:   make([]step, 0, n),
	}, nil
}

// AddFirst records the first timestep of an episode. Any partial
// windows of a previous episode are discarded.
func (a *NStepAdder) AddFirst(t ts.TimeStep) error {
	if !t.First() {
		return fmt.Errorf("addFirst: timestep should have type First but "+
			"got %v", t.StepType)
	}
	a.Reset()
	a.prev = mat.VecDenseCopyOf(t.Observation)
	a.started = true
	return nil
}

// Add records the action taken in the previous timestep and the
// timestep it led to, writing any completed transitions
func (a *NStepAdder) Add(action int, next ts.TimeStep) error {
	if !a.started {
		return fmt.Errorf("add: AddFirst must be called at the start of " +
			"an episode")
	}

	nextState := mat.VecDenseCopyOf(next.Observation)
	a.buffer = append(a.buffer, step{
		state:     a.prev,
		action:    action,
		reward:    next.Reward,
		discount:  next.Discount,
		nextState: nextState,
	})
	a.prev = nextState

	if len(a.buffer) == a.n {
		if err := a.write(); err != nil {
			return fmt.Errorf("add: %v", err)
		}
	}

	if next.Last() {
		for len(a.buffer) > 0 {
			if err := a.write(); err != nil {
				return fmt.Errorf("add: %v", err)
			}
		}
		a.Reset()
	}
	return nil
}

// write inserts the transition starting at the oldest buffered step
// and drops that step
func (a *NStepAdder) write() error {
	first := a.buffer[0]
	last := a.buffer[len(a.buffer)-1]

	reward := first.reward
	discount := first.discount
	for _, s := range a.buffer[1:] {
		discount *= a.discount
		reward += discount * s.reward
		discount *= s.discount
	}

	transition := ts.Transition{
		State:     first.state,
		Action:    first.action,
		Reward:    reward,
		Discount:  discount,
		NextState: last.nextState,
	}
	if _, err := a.inserter.Insert(transition, a.priority); err != nil {
		return err
	}

	a.buffer = a.buffer[1:]
	return nil
}

// Reset discards all partial windows
func (a *NStepAdder) Reset() {
	a.buffer = a.buffer[:0]
	a.prev = nil
	a.started = false
}
