package checkpointer

import (
	"fmt"

	"github.com/aunum/log"
	ts "github.com/samuelfneumann/godqn/timestep"
)

// nStep implements checkpointing every N environment steps
type nStep struct {
	interval int
	steps    int
	object   Saver

	// filename returns the filename to save the object in.
	//
	// If each checkpoint should be saved in a separate file with an
	// incremented number as a suffix (e.g. file1.bin, file2.bin, ...,
	// fileK.bin), then use FilenameEnumerator. If the filename does not
	// matter, use FileTimer. Overwrite keeps only the latest checkpoint.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n environment
// steps. The first timestep of each episode is not counted as a step.
func NewNStep(n int, object Saver,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newNStep: interval must be positive but "+
			"got %v", n)
	}
	if object == nil || filename == nil {
		return nil, fmt.Errorf("newNStep: object and filename cannot be nil")
	}

	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the Checkpointer's object by calling its Save()
// method if n steps have passed since the last checkpoint
func (n *nStep) Checkpoint(t ts.TimeStep) error {
	if t.First() {
		return nil
	}

	n.steps++
	if n.steps%n.interval != 0 {
		return nil
	}

	filename := n.filename()
	if err := n.object.Save(filename); err != nil {
		return fmt.Errorf("checkpoint: %v", err)
	}
	log.Debugf("checkpointer: saved checkpoint %v after %v steps",
		filename, n.steps)
	return nil
}
