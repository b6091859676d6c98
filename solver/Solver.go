// Package solver implements functionality to create validated
// Gorgonia Solvers from their hyperparameters, as well as gradient
// transformations that run before a Solver step.
package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Solver wraps a Gorgonia Solver together with the configuration it
// was created from
type Solver struct {
	G.Solver
	Config
}

// newSolver returns a new solver with the given configuration
func newSolver(c Config) (*Solver, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newSolver: %v", err)
	}
	return &Solver{Solver: c.Create(), Config: c}, nil
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// Validate returns an error if the hyperparameters are illegal
	Validate() error
}

func validateStepSize(stepSize float64, batch int) error {
	if stepSize <= 0 {
		return fmt.Errorf("validate: step size must be positive but got %v",
			stepSize)
	}
	if batch < 1 {
		return fmt.Errorf("validate: batch size must be positive but got %v",
			batch)
	}
	return nil
}
