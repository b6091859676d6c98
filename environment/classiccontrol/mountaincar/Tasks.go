package mountaincar

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/godqn/environment"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	// Commonly used goal position
	GoalPosition float64 = 0.45
)

// Goal implements the classic control task of reaching a goal on
// Mountain Car. Since the car is underpowered, it must rock back and
// forth from hill to hill until it reaches the goal.
//
// Rewards are -1 on each timestep and 0 for the action which
// transitions the car to the goal.
//
// Episodes end after a step limit or when the car reaches the goal
// state.
type Goal struct {
	env.Starter
	goalEnder *env.IntervalLimit
	stepEnder *env.StepLimit
	goalX     float64
}

// NewGoal creates and returns a new Goal task given a Starter, which
// determines the starting states, the maximum number of episode
// steps and the goal x position
func NewGoal(s env.Starter, episodeSteps int, goalX float64) (*Goal,
	error) {
	interval := []r1.Interval{{Min: math.Inf(-1), Max: goalX}}
	goalEnder, err := env.NewIntervalLimit(interval, []int{0},
		ts.TerminalStateReached)
	if err != nil {
		return nil, fmt.Errorf("newGoal: %v", err)
	}

	return &Goal{s, goalEnder, env.NewStepLimit(episodeSteps), goalX}, nil
}

// AtGoal returns whether or not the argument state is the goal state
func (g *Goal) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) >= g.goalX
}

// GetReward returns -1 for all actions except one which leads to the
// goal state, which results in a reward of 0
func (g *Goal) GetReward(_, _, nextState mat.Vector) float64 {
	if nextState.AtVec(0) >= g.goalX {
		return 0.0
	}
	return -1.0
}

// Min returns the minimum attainable reward over all timesteps
func (g *Goal) Min() float64 { return -1.0 }

// Max returns the maximum attainable reward over all timesteps
func (g *Goal) Max() float64 { return 0.0 }

// RewardSpec returns the reward specification of the Task
func (g *Goal) RewardSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{g.Min()})
	upperBound := mat.NewVecDense(1, []float64{g.Max()})

	return env.NewSpec(shape, env.Reward, lowerBound, upperBound,
		env.Discrete)
}

// End determines if a timestep is the last in the episode, either
// because the goal was reached or the step limit was hit
func (g *Goal) End(t *ts.TimeStep) bool {
	if end := g.goalEnder.End(t); end {
		return true
	}
	return g.stepEnder.End(t)
}
