// Package agent implements a generic agent which combines an actor
// interacting with an environment and a learner updating the actor's
// parameters
package agent

import (
	"context"
	"fmt"
	"math"

	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Actor selects actions and records the consequences of those actions
type Actor interface {
	// SelectAction returns the action to take given an observation
	SelectAction(obs *mat.VecDense) (int, error)

	// ObserveFirst records the first timestep in an episode
	ObserveFirst(t ts.TimeStep) error

	// Observe records that an action lead to some timestep
	Observe(action int, next ts.TimeStep) error

	// Update fetches the latest parameters of the actor
	Update() error
}

// VariableSource provides copies of the current parameters of a model
type VariableSource interface {
	Variables() ([]*tensor.Dense, error)
}

// Learner implements a learning algorithm that defines how parameters
// are updated
type Learner interface {
	VariableSource

	// Step performs a single update to the learner
	Step(ctx context.Context) error
}

// Readier is implemented by learners which may not yet have data to
// learn from, for example while their replay table is filling
type Readier interface {
	Ready() bool
}

// Adder records the timesteps of an actor, usually into a replay
// table
type Adder interface {
	AddFirst(t ts.TimeStep) error
	Add(action int, next ts.TimeStep) error
	Reset()
}

// Agent combines an Actor and a Learner. Observations are passed to
// the Actor and the Learner is stepped according to the number of
// observations seen so far.
//
// No learning takes place until minObservations observations have been
// made. Afterwards, observationsPerStep determines the ratio of
// observations to learner steps. If observationsPerStep > 1, then the
// learner takes a single step every observationsPerStep observations.
// Otherwise, the learner takes 1/observationsPerStep steps after each
// observation.
type Agent struct {
	actor   Actor
	learner Learner

	minObservations     int
	observationsPerStep float64
	observations        int
}

// New returns a new Agent
func New(actor Actor, learner Learner, minObservations int,
	observationsPerStep float64) (*Agent, error) {
	if actor == nil || learner == nil {
		return nil, fmt.Errorf("new: actor and learner cannot be nil")
	}
	if observationsPerStep <= 0 || math.IsInf(observationsPerStep, 1) ||
		math.IsNaN(observationsPerStep) {
		return nil, fmt.Errorf("new: observations per step must be "+
			"positive and finite but got %v", observationsPerStep)
	}

	return &Agent{
		actor:               actor,
		learner:             learner,
		minObservations:     minObservations,
		observationsPerStep: observationsPerStep,
	}, nil
}

// SelectAction selects an action using the Actor
func (a *Agent) SelectAction(obs *mat.VecDense) (int, error) {
	return a.actor.SelectAction(obs)
}

// ObserveFirst records the first timestep in an episode
func (a *Agent) ObserveFirst(t ts.TimeStep) error {
	return a.actor.ObserveFirst(t)
}

// Observe records that an action lead to some timestep
func (a *Agent) Observe(action int, next ts.TimeStep) error {
	a.observations++
	return a.actor.Observe(action, next)
}

// Update steps the learner as many times as required by the number
// of observations made so far. If the learner took any steps, the
// actor's parameters are updated.
//
// If the learner implements Readier, steps are skipped while it is not
// ready rather than blocking on data the actor has not yet produced.
func (a *Agent) Update(ctx context.Context) error {
	steps := a.numLearnerSteps()
	taken := 0
	for ; taken < steps; taken++ {
		if r, ok := a.learner.(Readier); ok && !r.Ready() {
			break
		}
		if err := a.learner.Step(ctx); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}

	if taken > 0 {
		if err := a.actor.Update(); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}
	return nil
}

// numLearnerSteps returns the number of learner steps to take after
// the latest observation
func (a *Agent) numLearnerSteps() int {
	n := a.observations - a.minObservations
	if n < 0 {
		return 0
	}

	if a.observationsPerStep > 1 {
		if n%int(a.observationsPerStep) == 0 {
			return 1
		}
		return 0
	}
	return int(1 / a.observationsPerStep)
}

// MinObservations returns the number of observations made before
// learning starts
func (a *Agent) MinObservations() int {
	return a.minObservations
}

// ObservationsPerStep returns the ratio of observations to learner
// steps
func (a *Agent) ObservationsPerStep() float64 {
	return a.observationsPerStep
}

// Observations returns the number of observations made so far
func (a *Agent) Observations() int {
	return a.observations
}
