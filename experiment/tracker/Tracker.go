// Package tracker implements Trackers, which track and save data in an
// experiment
package tracker

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/aunum/log"
	ts "github.com/samuelfneumann/godqn/timestep"
)

// Tracker keeps track of experiment data and saves the data after the
// experiment has finished
type Tracker interface {
	Track(t ts.TimeStep)
	Save() error
}

// episodes accumulates the return and length of each episode seen.
//
// An episode must finish for its data to be recorded. If the last
// episode in an experiment does not finish, its data is dropped.
type episodes struct {
	lastTimeStep  int
	currentReturn float64
	returns       []float64
	lengths       []float64
}

func newEpisodes() episodes {
	return episodes{lastTimeStep: -1}
}

// track records the reward of a timestep. Timesteps of an episode must
// be tracked sequentially.
func (e *episodes) track(step ts.TimeStep) {
	if step.First() {
		e.currentReturn = 0.0
		e.lastTimeStep = step.Number
		return
	}

	if e.lastTimeStep+1 != step.Number {
		log.Warningf("tracker: last two timesteps tracked are not "+
			"sequential: timestep %v --> timestep %v were tracked",
			e.lastTimeStep, step.Number)
	}

	e.currentReturn += step.Reward
	e.lastTimeStep = step.Number

	if step.Last() {
		e.returns = append(e.returns, e.currentReturn)
		e.lengths = append(e.lengths, float64(step.Number))
		e.currentReturn = 0.0
		e.lastTimeStep = -1
	}
}

// save gob encodes data to filename
func save(filename string, data []float64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		return fmt.Errorf("save: could not encode data: %v", err)
	}
	return nil
}

// LoadData loads and returns the data saved by a Return or
// EpisodeLength Tracker
func LoadData(filename string) ([]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %v", err)
	}
	defer file.Close()

	var data []float64
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %v", err)
	}
	return data, nil
}
