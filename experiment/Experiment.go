// Package experiment implements functionality for running an experiment
package experiment

import (
	"context"

	"github.com/samuelfneumann/godqn/experiment/tracker"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
)

// Agent is an agent that can be run in an experiment. Agents select
// discrete actions, observe the consequences of those actions and
// update themselves after each observation.
type Agent interface {
	SelectAction(obs *mat.VecDense) (int, error)
	ObserveFirst(t ts.TimeStep) error
	Observe(action int, next ts.TimeStep) error
	Update(ctx context.Context) error
}

// Interface Experiment outlines structs that can run experiments.
// Experiments will track environment TimeSteps, caching each TimeStep
// in RAM to be later saved to disk. The Save() function
// will then take all cached data and save it to disk. This is usually
// performed after an experiment has been run. The Run() method will
// run all episodes util the maximum timestep limit is reached or the
// context is cancelled. The RunEpisode() function will run a single
// episode.
//
// In order to save data, Experiments use Trackers. Trackers determine
// which data generated during the experiment is saved. New Trackers
// can be registered with an Experiment through the constructor or
// through an Experiment's Register() function.
type Experiment interface {
	Run(ctx context.Context) error

	// Returns whether or not the step limit has been reached
	RunEpisode(ctx context.Context) (bool, error)

	// Save all tracked data to disk
	Save() error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)
}
