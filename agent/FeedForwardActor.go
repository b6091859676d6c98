package agent

import (
	"fmt"

	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// PolicyFunc maps an observation to an action
type PolicyFunc func(obs *mat.VecDense) (int, error)

// WeightSetter is a model whose parameters can be set, such as the
// network that a PolicyFunc applies
type WeightSetter interface {
	SetWeights([]*tensor.Dense) error
}

// FeedForwardActor selects actions with a stateless policy. The
// parameters of the policy are pulled from a learner through a
// VariableClient, and observed timesteps are written to an Adder.
type FeedForwardActor struct {
	policy PolicyFunc
	model  WeightSetter
	client *VariableClient
	adder  Adder
}

// NewFeedForwardActor returns a new FeedForwardActor. The parameters
// of model are immediately synchronized through client. If adder is
// nil, observations are not recorded.
func NewFeedForwardActor(policy PolicyFunc, model WeightSetter,
	client *VariableClient, adder Adder) (*FeedForwardActor, error) {
	if policy == nil {
		return nil, fmt.Errorf("newFeedForwardActor: policy cannot be nil")
	}
	if model == nil || client == nil {
		return nil, fmt.Errorf("newFeedForwardActor: model and variable " +
			"client cannot be nil")
	}

	a := &FeedForwardActor{
		policy: policy,
		model:  model,
		client: client,
		adder:  adder,
	}

	if err := client.UpdateAndWait(); err != nil {
		return nil, fmt.Errorf("newFeedForwardActor: %v", err)
	}
	if err := a.model.SetWeights(client.Params()); err != nil {
		return nil, fmt.Errorf("newFeedForwardActor: %v", err)
	}

	return a, nil
}

// SelectAction implements the Actor interface
func (a *FeedForwardActor) SelectAction(obs *mat.VecDense) (int, error) {
	action, err := a.policy(obs)
	if err != nil {
		return 0, fmt.Errorf("selectAction: %v", err)
	}
	return action, nil
}

// ObserveFirst implements the Actor interface
func (a *FeedForwardActor) ObserveFirst(t ts.TimeStep) error {
	if a.adder == nil {
		return nil
	}
	if err := a.adder.AddFirst(t); err != nil {
		return fmt.Errorf("observeFirst: %v", err)
	}
	return nil
}

// Observe implements the Actor interface
func (a *FeedForwardActor) Observe(action int, next ts.TimeStep) error {
	if a.adder == nil {
		return nil
	}
	if err := a.adder.Add(action, next); err != nil {
		return fmt.Errorf("observe: %v", err)
	}
	return nil
}

// Update implements the Actor interface
func (a *FeedForwardActor) Update() error {
	fetched, err := a.client.Update()
	if err != nil {
		return fmt.Errorf("update: %v", err)
	}
	if !fetched {
		return nil
	}

	if err := a.model.SetWeights(a.client.Params()); err != nil {
		return fmt.Errorf("update: %v", err)
	}
	return nil
}

// Adder returns the adder the actor records timesteps with, or nil
// if it records nothing
func (a *FeedForwardActor) Adder() Adder {
	return a.adder
}
