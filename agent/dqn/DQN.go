// Package dqn implements a DQN agent built from a prioritized n-step
// replay table, a double Q-learning learner and an epsilon greedy
// actor
package dqn

import (
	"fmt"

	"github.com/aunum/log"
	"github.com/samuelfneumann/godqn/agent"
	env "github.com/samuelfneumann/godqn/environment"
	"github.com/samuelfneumann/godqn/network"
	"github.com/samuelfneumann/godqn/policy"
	"github.com/samuelfneumann/godqn/replay"
	"github.com/samuelfneumann/godqn/solver"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// DQN is a single-process DQN agent. The actor and learner share a
// single replay table, which is closed with the agent.
type DQN struct {
	*agent.Agent

	config  Config
	learner *Learner
	actor   *agent.FeedForwardActor
	replay  *replay.Replay
	applier *network.Applier
}

// New creates a new DQN agent from the default configuration modified
// by opts
func New(spec env.EnvironmentSpec, net network.Definition,
	opts ...Option) (*DQN, error) {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return NewFromConfig(spec, net, c)
}

// NewFromConfig creates a new DQN agent for an environment with the
// given specification. The agent learns action values with a network
// described by net.
func NewFromConfig(spec env.EnvironmentSpec, net network.Definition,
	c Config) (*DQN, error) {
	// Replay table, adder and iterator
	r, err := replay.MakePrioritizedNStepReplay(spec, replayConfig(c))
	if err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	d, err := newOnReplay(spec, net, r, c)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("new: %v", err)
	}
	return d, nil
}

// NewFromTable creates a new DQN agent which writes to and learns
// from an existing replay table, such as a remote table reached
// through package rpc. The capacity bounds and priority exponent of c
// are ignored in favour of those of the table. Closing the agent does
// not close the table.
func NewFromTable(spec env.EnvironmentSpec, net network.Definition,
	table replay.Table, c Config) (*DQN, error) {
	r, err := replay.MakeNStepReplay(table, replayConfig(c))
	if err != nil {
		return nil, fmt.Errorf("newFromTable: %v", err)
	}

	d, err := newOnReplay(spec, net, r, c)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("newFromTable: %v", err)
	}
	return d, nil
}

func replayConfig(c Config) replay.Config {
	return replay.Config{
		NStep:            c.NStep,
		BatchSize:        c.BatchSize,
		MinReplaySize:    c.MinReplaySize,
		MaxReplaySize:    c.MaxReplaySize,
		PriorityExponent: c.PriorityExponent,
		Discount:         c.Discount,
		PrefetchSize:     c.PrefetchSize,
		Seed:             c.Seed,
	}
}

func newOnReplay(spec env.EnvironmentSpec, net network.Definition,
	r *replay.Replay, c Config) (*DQN, error) {
	numActions, err := spec.Actions.NumActions()
	if err != nil {
		return nil, err
	}

	d, err := build(spec, net, numActions, r, c)
	if err != nil {
		return nil, err
	}

	log.Debugf("dqn: created agent with %v actions, min observations %v, "+
		"observations per step %v", numActions, d.MinObservations(),
		d.ObservationsPerStep())
	return d, nil
}

// build creates the learner and actor on the replay r
func build(spec env.EnvironmentSpec, def network.Definition,
	numActions int, r *replay.Replay, c Config) (*DQN, error) {
	if def == nil {
		return nil, fmt.Errorf("network definition cannot be nil")
	}
	net, err := def.Init(spec.Features(), numActions, 1)
	if err != nil {
		return nil, err
	}

	// Gradient clipping followed by Adam. The loss is a mean over the
	// batch, so the solver uses a batch size of 1.
	clip, err := solver.ClipByGlobalNorm(c.MaxGradientNorm)
	if err != nil {
		return nil, err
	}
	adam, err := solver.NewDefaultAdam(c.LearningRate, 1)
	if err != nil {
		return nil, err
	}
	optimizer := solver.Chain(adam, clip)

	learner, err := NewLearner(net, optimizer, c.Discount,
		c.ImportanceSamplingExponent, c.TargetUpdatePeriod, r.Iterator,
		r.Client)
	if err != nil {
		return nil, err
	}

	// Epsilon greedy policy over the actor's copy of the network
	eGreedy, err := policy.NewEpsilonGreedy(c.Epsilon)
	if err != nil {
		learner.Close()
		return nil, err
	}
	applier := network.NewApplier(net)
	rng := rand.New(rand.NewSource(c.Seed))
	policyFn := func(obs *mat.VecDense) (int, error) {
		values, err := applier.Apply(mat.Col(nil, 0, obs))
		if err != nil {
			return 0, err
		}
		return eGreedy.Sample(rng, values)
	}

	client, err := agent.NewVariableClient(learner, 1)
	if err != nil {
		applier.Close()
		learner.Close()
		return nil, err
	}
	actor, err := agent.NewFeedForwardActor(policyFn, applier, client,
		r.Adder)
	if err != nil {
		applier.Close()
		learner.Close()
		return nil, err
	}

	a, err := agent.New(actor, learner, c.MinObservations(),
		c.ObservationsPerStep())
	if err != nil {
		applier.Close()
		learner.Close()
		return nil, err
	}

	return &DQN{
		Agent:   a,
		config:  c,
		learner: learner,
		actor:   actor,
		replay:  r,
		applier: applier,
	}, nil
}

// Config returns the configuration of the agent
func (d *DQN) Config() Config {
	return d.config
}

// Learner returns the agent's learner
func (d *DQN) Learner() *Learner {
	return d.learner
}

// Actor returns the agent's actor
func (d *DQN) Actor() *agent.FeedForwardActor {
	return d.actor
}

// Replay returns the replay shared by the actor and learner. Its
// Server is nil if the agent was created with NewFromTable.
func (d *DQN) Replay() *replay.Replay {
	return d.replay
}

// Close closes the replay table and releases the VMs of the agent
func (d *DQN) Close() error {
	if err := d.replay.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	if err := d.applier.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	if err := d.learner.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return nil
}
