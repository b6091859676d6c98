package tracker

import "github.com/samuelfneumann/godqn/timestep"

// EpisodeLength tracks and saves the lengths of episodes in an
// experiment
type EpisodeLength struct {
	episodes
	filename string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which will save
// its data at the specified location filename
func NewEpisodeLength(filename string) *EpisodeLength {
	return &EpisodeLength{newEpisodes(), filename}
}

// Track caches the length of an episode when the last timestep of the
// episode is tracked
func (e *EpisodeLength) Track(t timestep.TimeStep) {
	e.track(t)
}

// Save saves the episode lengths to disk
func (e *EpisodeLength) Save() error {
	return save(e.filename, e.lengths)
}
