// Package policy implements action selection over action values
package policy

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/godqn/utils/floatutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// EpsilonGreedy is an epsilon greedy distribution over a discrete set
// of actions. With probability 1-ε the action of maximum value is
// selected, ties being broken uniformly at random. With probability ε
// an action is selected uniformly at random.
type EpsilonGreedy struct {
	epsilon float64
}

// NewEpsilonGreedy returns a new EpsilonGreedy distribution. Epsilon
// must be in [0, 1].
func NewEpsilonGreedy(epsilon float64) (EpsilonGreedy, error) {
	if epsilon < 0 || epsilon > 1 || math.IsNaN(epsilon) {
		return EpsilonGreedy{}, fmt.Errorf("newEpsilonGreedy: epsilon "+
			"must be in [0, 1] but got %v", epsilon)
	}
	return EpsilonGreedy{epsilon}, nil
}

// Epsilon returns the exploration rate
func (e EpsilonGreedy) Epsilon() float64 {
	return e.epsilon
}

// Probs returns the probability of selecting each action given the
// action values
func (e EpsilonGreedy) Probs(values []float64) ([]float64, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("probs: no action values")
	}

	_, maxIndices := floatutils.MaxSlice(values)
	greedy := (1 - e.epsilon) / float64(len(maxIndices))
	uniform := e.epsilon / float64(len(values))

	probs := make([]float64, len(values))
	for i := range probs {
		probs[i] = uniform
	}
	for _, i := range maxIndices {
		probs[i] += greedy
	}
	return probs, nil
}

// Sample samples an action given the action values
func (e EpsilonGreedy) Sample(rng *rand.Rand, values []float64) (int,
	error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("sample: no action values")
	}

	if e.epsilon == 0 {
		_, maxIndices := floatutils.MaxSlice(values)
		return maxIndices[rng.Intn(len(maxIndices))], nil
	}

	probs, err := e.Probs(values)
	if err != nil {
		return 0, fmt.Errorf("sample: %v", err)
	}

	action := int(distuv.NewCategorical(probs, rng).Rand())
	return action, nil
}
