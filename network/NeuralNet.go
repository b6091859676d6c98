// Package network implements neural networks on Gorgonia computational
// graphs
package network

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// NeuralNet implements a neural network whose forward pass is stored
// on a Gorgonia computational graph
type NeuralNet interface {
	Graph() *G.ExprGraph
	Clone() (NeuralNet, error)
	CloneWithBatch(int) (NeuralNet, error)
	BatchSize() int
	Features() int
	Outputs() int
	SetInput([]float64) error
	Set(NeuralNet) error
	Learnables() G.Nodes
	Model() []G.ValueGrad

	// Weights returns copies of the current values of the learnables
	Weights() []*tensor.Dense

	// SetWeights sets the learnables to copies of weights
	SetWeights([]*tensor.Dense) error

	Output() G.Value
	Prediction() *G.Node
}

// Definition describes a network architecture which can be built on
// a fresh computational graph
type Definition interface {
	Init(features, outputs, batch int) (NeuralNet, error)
}
