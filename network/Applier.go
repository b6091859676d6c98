package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Applier runs the forward pass of a NeuralNet on concrete inputs
type Applier struct {
	net NeuralNet
	vm  G.VM
}

// NewApplier returns a new Applier for net. The Applier owns a tape
// machine compiled from the network's graph, which is released by
// Close.
func NewApplier(net NeuralNet) *Applier {
	return &Applier{
		net: net,
		vm:  G.NewTapeMachine(net.Graph()),
	}
}

// Apply returns the network outputs for a batch of inputs, stored
// row-major with one row per sample
func (a *Applier) Apply(input []float64) ([]float64, error) {
	if err := a.net.SetInput(input); err != nil {
		return nil, fmt.Errorf("apply: %v", err)
	}

	defer a.vm.Reset()
	if err := a.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("apply: could not run forward pass: %v", err)
	}

	out, ok := a.net.Output().Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("apply: output should have type []float64 "+
			"but got %T", a.net.Output().Data())
	}
	return append([]float64(nil), out...), nil
}

// SetWeights sets the weights of the underlying network
func (a *Applier) SetWeights(weights []*tensor.Dense) error {
	return a.net.SetWeights(weights)
}

// Network returns the underlying network
func (a *Applier) Network() NeuralNet {
	return a.net
}

// Close releases the tape machine
func (a *Applier) Close() error {
	return a.vm.Close()
}
