// Package checkpointer implements Checkpointers, which periodically
// save objects during an experiment
package checkpointer

import (
	ts "github.com/samuelfneumann/godqn/timestep"
)

// Saver is an object that can be saved to and loaded from a file
type Saver interface {
	Save(filename string) error
	Load(filename string) error
}

// Checkpointer checkpoints/saves objects based on timestep.TimeSteps
type Checkpointer interface {
	Checkpoint(ts.TimeStep) error
}
