package cartpole

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/godqn/environment"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	FailAngle float64 = 12 * 2 * math.Pi / 360
)

// Balance implements the classic control Cartpole Balance task. In this
// Task, the goal of the agent is to balance the pole on the cart in
// an upright position for as long as possible.
//
// The rewards are +1 for every timestep and -1 when the pole has fallen
// below some set angle threshold θ or the cart leaves the track.
//
// Episodes end after a step limit, after the pole has fallen below
// some angle threshold θ or after the cart hits the track boundary.
type Balance struct {
	env.Starter
	stepLimiter     *env.StepLimit
	angleLimiter    *env.IntervalLimit
	positionLimiter *env.IntervalLimit
	failAngle       float64
}

// NewBalance creates and returns a new Balance task
func NewBalance(s env.Starter, episodeSteps int,
	failAngle float64) (*Balance, error) {
	stepLimiter := env.NewStepLimit(episodeSteps)

	legalAngles := []r1.Interval{{Min: -failAngle, Max: failAngle}}
	angleLimiter, err := env.NewIntervalLimit(legalAngles, []int{2},
		ts.TerminalStateReached)
	if err != nil {
		return nil, fmt.Errorf("newBalance: %v", err)
	}

	// The cart position is clipped to the bounds, so any position at
	// the boundary fails
	eps := 1e-8
	legalPositions := []r1.Interval{{Min: -PositionBounds + eps,
		Max: PositionBounds - eps}}
	positionLimiter, err := env.NewIntervalLimit(legalPositions, []int{0},
		ts.TerminalStateReached)
	if err != nil {
		return nil, fmt.Errorf("newBalance: %v", err)
	}

	return &Balance{s, stepLimiter, angleLimiter, positionLimiter,
		failAngle}, nil
}

// End checks if a TimeStep is the last in an episode. If so, it adjusts
// the TimeStep's StepType to timestep.Last and returns true. Otherwise,
// the function does not adjust the TimeStep and returns false.
func (b *Balance) End(t *ts.TimeStep) bool {
	if end := b.angleLimiter.End(t); end {
		return true
	}
	if end := b.positionLimiter.End(t); end {
		return true
	}
	return b.stepLimiter.End(t)
}

// GetReward returns the reward for an action taken in some state,
// resulting in a transition to the next state nextState.
func (b *Balance) GetReward(_, _, nextState mat.Vector) float64 {
	angle := math.Abs(nextState.AtVec(2))
	position := math.Abs(nextState.AtVec(0))

	// Angle of 0 is pointing straight up, so we want angles to be
	// less than the failAngle
	if angle < b.failAngle && position < PositionBounds {
		return 1.0
	}
	return -1.0
}

// AtGoal returns whether or not the goal position has been reached.
func (b *Balance) AtGoal(state mat.Matrix) bool {
	return math.Abs(state.At(2, 0)) < b.failAngle
}

// Min returns the minimum possible reward that can be received in the
// environment
func (b *Balance) Min() float64 {
	return -1.0
}

// Max returns the maximum possible reward that can be received in the
// environment
func (b *Balance) Max() float64 {
	return 1.0
}

// RewardSpec returns the reward specification for the environment
func (b *Balance) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{b.Min()})
	upperBound := mat.NewVecDense(1, []float64{b.Max()})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Continuous)
}
