package experiment

import (
	"context"
	"fmt"
	"io"

	"github.com/aunum/log"
	env "github.com/samuelfneumann/godqn/environment"
	"github.com/samuelfneumann/godqn/experiment/checkpointer"
	"github.com/samuelfneumann/godqn/experiment/tracker"
	ts "github.com/samuelfneumann/godqn/timestep"
	"github.com/samuelfneumann/godqn/utils/progressbar"
	"gonum.org/v1/gonum/mat"
)

// Online is an Experiment that runs an agent online only. No offline
// evaluation is performed.
type Online struct {
	environment   env.Environment
	agent         Agent
	maxSteps      int
	currentSteps  int
	episodes      int
	trackers      []tracker.Tracker
	checkpointers []checkpointer.Checkpointer
	progress      *progressbar.ManualProgressBar
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The steps parameter determines how
// many timesteps the experiment is run for, and the t parameter
// is a slice of tracker.Tracker which determine what data is saved.
func NewOnline(e env.Environment, a Agent, steps int,
	t []tracker.Tracker, c []checkpointer.Checkpointer) (*Online, error) {
	if e == nil || a == nil {
		return nil, fmt.Errorf("newOnline: environment and agent cannot " +
			"be nil")
	}
	if steps <= 0 {
		return nil, fmt.Errorf("newOnline: steps must be positive but "+
			"got %v", steps)
	}

	return &Online{
		environment:   e,
		agent:         a,
		maxSteps:      steps,
		trackers:      t,
		checkpointers: c,
	}, nil
}

// ShowProgress displays a progress bar on out while the experiment
// runs
func (o *Online) ShowProgress(out io.Writer) {
	o.progress = progressbar.NewManualProgressBar(out, 50, o.maxSteps)
	o.progress.Add(o.currentSteps)
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.trackers = append(o.trackers, t)
}

// RunEpisode runs a single episode of the experiment
func (o *Online) RunEpisode(ctx context.Context) (bool, error) {
	step, err := o.environment.Reset()
	if err != nil {
		return false, fmt.Errorf("runEpisode: could not reset: %v", err)
	}
	if err := o.agent.ObserveFirst(step); err != nil {
		return false, fmt.Errorf("runEpisode: %v", err)
	}
	if err := o.track(step); err != nil {
		return false, err
	}

	// Run the next timestep
	for !step.Last() && o.currentSteps < o.maxSteps {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		o.currentSteps++

		// Select action, step in environment
		action, err := o.agent.SelectAction(step.Observation)
		if err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		step, _, err = o.environment.Step(mat.NewVecDense(1,
			[]float64{float64(action)}))
		if err != nil {
			return false, fmt.Errorf("runEpisode: could not step: %v", err)
		}

		// Cache the environment step in each Tracker
		if err := o.track(step); err != nil {
			return false, err
		}

		// Observe the timestep and update the agent
		if err := o.agent.Observe(action, step); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}
		if err := o.agent.Update(ctx); err != nil {
			return false, fmt.Errorf("runEpisode: %v", err)
		}

		if o.progress != nil {
			o.progress.Increment()
			o.progress.Display()
		}
	}

	o.episodes++
	log.Debugf("experiment: episode %v finished after %v total steps",
		o.episodes, o.currentSteps)

	// Return whether or not the max timestep limit has been reached
	return o.currentSteps >= o.maxSteps, nil
}

// Run runs the entire experiment for all timesteps
func (o *Online) Run(ctx context.Context) error {
	ended := false
	for !ended {
		var err error
		if ended, err = o.RunEpisode(ctx); err != nil {
			return err
		}
	}

	if o.progress != nil {
		o.progress.Done()
	}
	log.Infof("experiment: finished %v steps over %v episodes",
		o.currentSteps, o.episodes)
	return nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %v", err)
		}
	}
	return nil
}

// Steps returns the number of environment steps taken so far
func (o *Online) Steps() int {
	return o.currentSteps
}

// Episodes returns the number of episodes run so far
func (o *Online) Episodes() int {
	return o.episodes
}

// track tracks the current timestep by caching its data in each
// tracker and checkpointing if needed
func (o *Online) track(t ts.TimeStep) error {
	for _, tr := range o.trackers {
		tr.Track(t)
	}
	for _, c := range o.checkpointers {
		if err := c.Checkpoint(t); err != nil {
			return fmt.Errorf("track: %v", err)
		}
	}
	return nil
}
