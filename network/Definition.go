package network

import (
	"fmt"

	"github.com/samuelfneumann/godqn/initwfn"
	G "gorgonia.org/gorgonia"
)

// MLP describes a multi-layered perceptron with one output head per
// predicted value. MLP implements the Definition interface.
type MLP struct {
	HiddenSizes []int
	Biases      []bool
	Activations []*Activation

	// InitWFn initializes the weights. If nil, Glorot uniform
	// initialization with a gain of 1 is used.
	InitWFn *initwfn.InitWFn
}

// NewMLP returns an MLP with biases on every hidden layer and the
// same activation after each hidden layer
func NewMLP(hiddenSizes []int, activation func() *Activation,
	init *initwfn.InitWFn) MLP {
	biases := make([]bool, len(hiddenSizes))
	activations := make([]*Activation, len(hiddenSizes))
	for i := range hiddenSizes {
		biases[i] = true
		activations[i] = activation()
	}
	return MLP{hiddenSizes, biases, activations, init}
}

// Init builds the MLP on a new computational graph
func (m MLP) Init(features, outputs, batch int) (NeuralNet, error) {
	var init G.InitWFn
	if m.InitWFn != nil {
		init = m.InitWFn.InitWFn()
	} else {
		i, err := initwfn.NewGlorotU(1.0, 0)
		if err != nil {
			return nil, fmt.Errorf("init: %v", err)
		}
		init = i.InitWFn()
	}

	net, err := NewMultiHeadMLP(features, batch, outputs, G.NewGraph(),
		m.HiddenSizes, m.Biases, init, m.Activations)
	if err != nil {
		return nil, fmt.Errorf("init: %v", err)
	}
	return net, nil
}
