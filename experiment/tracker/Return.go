package tracker

import (
	ts "github.com/samuelfneumann/godqn/timestep"
)

// Return tracks and saves the episodic return in an experiment. When
// an environment returns a TimeStep, this Tracker will extract the
// reward and accumulate the return for each episode in the experiment.
// Returns are saved with gob and can be read back with LoadData.
type Return struct {
	episodes
	filename string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) *Return {
	return &Return{newEpisodes(), filename}
}

// Track tracks the rewards seen on a timestep
func (r *Return) Track(step ts.TimeStep) {
	r.track(step)
}

// Save saves the episodic returns to disk
func (r *Return) Save() error {
	return save(r.filename, r.returns)
}

// Returns returns the returns of all finished episodes
func (r *Return) Returns() []float64 {
	return append([]float64(nil), r.returns...)
}
