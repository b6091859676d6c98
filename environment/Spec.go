package environment

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an acion, an observation, a discount, or a reward
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
	Reward
)

func (s SpecType) String() string {
	switch s {
	case Action:
		return "Action"
	case Observation:
		return "Observation"
	case Discount:
		return "Discount"
	default:
		return "Reward"
	}
}

// Cardinality determines the cardinality of a number (discrete or continuous)
type Cardinality string

const (
	Continuous Cardinality = "Continuous"
	Discrete   Cardinality = "Discrete"
)

// Spec implements an environment specification, which tells the type,
// shape, and bounds of an action, observation, discount, or reward in
// an environment
type Spec struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
	Cardinality
}

// NewSpec constructs a new environment specification
// The shape argument outlines the shape of the data described by the
// specification. The argument t outlines what the specification is
// describing (e.g. actions, observations, etc.). The cardinality
// arguments describes whether the values that the spec describes are
// continuous or discrete.
func NewSpec(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector, cardinality Cardinality) Spec {
	if shape.Len() != lowerBound.Len() {
		panic(fmt.Sprintf("shape length %v must match lower bounds length %v",
			shape.Len(), lowerBound.Len()))
	}
	if shape.Len() != upperBound.Len() {
		panic(fmt.Sprintf("shape length %v must match upper bounds length %v",
			shape.Len(), upperBound.Len()))
	}
	return Spec{shape, t, lowerBound, upperBound, cardinality}
}

// NumActions returns the number of actions described by a discrete
// action specification. Actions must be 1-dimensional and enumerated
// from 0.
func (s Spec) NumActions() (int, error) {
	if s.Cardinality != Discrete {
		return 0, fmt.Errorf("numActions: cannot use non-discrete actions")
	}
	if s.LowerBound.Len() != 1 {
		return 0, fmt.Errorf("numActions: actions must be 1-dimensional")
	}
	if s.LowerBound.AtVec(0) != 0.0 {
		return 0, fmt.Errorf("numActions: actions must be enumerated " +
			"starting from 0")
	}
	return int(s.UpperBound.AtVec(0)) + 1, nil
}

// EnvironmentSpec collects the specifications of an environment
type EnvironmentSpec struct {
	Observations Spec
	Actions      Spec
	Rewards      Spec
	Discounts    Spec
}

// MakeEnvironmentSpec returns the specification of an environment
func MakeEnvironmentSpec(env Environment) EnvironmentSpec {
	return EnvironmentSpec{
		Observations: env.ObservationSpec(),
		Actions:      env.ActionSpec(),
		Rewards:      env.RewardSpec(),
		Discounts:    env.DiscountSpec(),
	}
}

// Features returns the number of observation features
func (e EnvironmentSpec) Features() int {
	return e.Observations.Shape.Len()
}
