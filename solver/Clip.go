package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Transform modifies the gradients of a model in place before a
// Solver step is taken
type Transform interface {
	Apply(model []G.ValueGrad) error
}

// globalNormClip rescales gradients whose global norm exceeds maxNorm
type globalNormClip struct {
	maxNorm float64
}

// ClipByGlobalNorm returns a Transform which scales all gradients by
// maxNorm / ‖g‖ whenever the global L2 norm ‖g‖ of all gradients
// exceeds maxNorm. A maxNorm of +Inf disables clipping.
func ClipByGlobalNorm(maxNorm float64) (Transform, error) {
	if maxNorm <= 0 || math.IsNaN(maxNorm) {
		return nil, fmt.Errorf("clipByGlobalNorm: maximum norm must be "+
			"positive but got %v", maxNorm)
	}
	return globalNormClip{maxNorm}, nil
}

// Apply implements the Transform interface
func (c globalNormClip) Apply(model []G.ValueGrad) error {
	if math.IsInf(c.maxNorm, 1) {
		return nil
	}

	grads := make([][]float64, len(model))
	var sumSquares float64
	for i, node := range model {
		grad, err := node.Grad()
		if err != nil {
			return fmt.Errorf("apply: could not get gradient %v: %v", i, err)
		}

		dense, ok := grad.(*tensor.Dense)
		if !ok {
			return fmt.Errorf("apply: gradient %v should be *tensor.Dense "+
				"but got %T", i, grad)
		}
		data, ok := dense.Data().([]float64)
		if !ok {
			return fmt.Errorf("apply: gradient %v should have float64 "+
				"data but got %T", i, dense.Data())
		}

		grads[i] = data
		sumSquares += floats.Dot(data, data)
	}

	norm := math.Sqrt(sumSquares)
	if norm <= c.maxNorm {
		return nil
	}

	scale := c.maxNorm / norm
	for _, data := range grads {
		floats.Scale(scale, data)
	}
	return nil
}

// chain runs a sequence of Transforms before stepping a Solver
type chain struct {
	transforms []Transform
	solver     G.Solver
}

// Chain returns a Solver which applies each Transform in order to the
// gradients and then steps s
func Chain(s G.Solver, transforms ...Transform) G.Solver {
	return &chain{transforms, s}
}

// Step implements the gorgonia.Solver interface
func (c *chain) Step(model []G.ValueGrad) error {
	for i, t := range c.transforms {
		if err := t.Apply(model); err != nil {
			return fmt.Errorf("step: transform %v: %v", i, err)
		}
	}
	return c.solver.Step(model)
}
