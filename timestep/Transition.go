package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is an (s, a, R, D, s') tuple. For n-step transitions the
// Reward is the discounted sum of rewards over the window and Discount
// is the product of the discounts that bootstrap from NextState.
type Transition struct {
	State     *mat.VecDense
	Action    int
	Reward    float64
	Discount  float64
	NextState *mat.VecDense
}

// NewTransition returns a one-step transition between two consecutive
// timesteps
func NewTransition(step TimeStep, action int, nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  nextStep.Discount,
		NextState: nextStep.Observation,
	}
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.2f  |  "+
		"Discount: %.2f", t.Action, t.Reward, t.Discount)
}
