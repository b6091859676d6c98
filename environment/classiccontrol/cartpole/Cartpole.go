// Package cartpole implements the Cartpole classic control environment
package cartpole

import (
	"fmt"
	"math"

	env "github.com/samuelfneumann/godqn/environment"
	ts "github.com/samuelfneumann/godqn/timestep"
	"github.com/samuelfneumann/godqn/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

const (
	// Physical constants
	Gravity        float64 = 9.8
	CartMass       float64 = 1.0
	PoleMass       float64 = 0.1
	HalfPoleLength float64 = 0.5  // half of pole length
	ForceMag       float64 = 10.0 // Magnification of force applied
	Dt             float64 = 0.02 // seconds between state updates

	// Bounds (+/-) on state variabels
	PositionBounds        float64 = 2.4
	SpeedBounds           float64 = math.MaxFloat64
	AngleBounds           float64 = math.Pi
	AngularVelocityBounds float64 = math.MaxFloat64

	ObservationDims int = 4
	ActionDims      int = 1
)

// base implements the physics shared by all Cartpole environments. In
// this environment, a pole is attached to a cart, which can move
// horizontally. The agent must keep the pole upright for as long as
// possible.
//
// The state features are continuous and consist of the cart's x
// position and speed, as well as the pole's angle from the positive
// y-axis and the pole's angular velocity.
type base struct {
	env.Task
	lastStep              ts.TimeStep
	discount              float64
	positionBounds        r1.Interval
	speedBounds           r1.Interval
	angleBounds           r1.Interval
	angularVelocityBounds r1.Interval
}

func newBase(t env.Task, discount float64) (*base, ts.TimeStep, error) {
	b := &base{
		Task:           t,
		discount:       discount,
		positionBounds: r1.Interval{Min: -PositionBounds, Max: PositionBounds},
		speedBounds:    r1.Interval{Min: -SpeedBounds, Max: SpeedBounds},
		angleBounds:    r1.Interval{Min: -AngleBounds, Max: AngleBounds},
		angularVelocityBounds: r1.Interval{Min: -AngularVelocityBounds,
			Max: AngularVelocityBounds},
	}

	firstStep, err := b.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("newBase: %v", err)
	}
	return b, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn from
// the environment Starter
func (b *base) Reset() (ts.TimeStep, error) {
	state := b.Start()
	if err := b.validateState(state); err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: %v", err)
	}

	startStep := ts.New(ts.First, 0, b.discount, state, 0)
	b.lastStep = startStep

	return startStep, nil
}

// ObservationSpec returns the observation specification of the
// environment
func (b *base) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(ObservationDims, nil)

	lower := []float64{b.positionBounds.Min, b.speedBounds.Min,
		b.angleBounds.Min, b.angularVelocityBounds.Min}
	lowerBound := mat.NewVecDense(ObservationDims, lower)

	upper := []float64{b.positionBounds.Max, b.speedBounds.Max,
		b.angleBounds.Max, b.angularVelocityBounds.Max}
	upperBound := mat.NewVecDense(ObservationDims, upper)

	return env.NewSpec(shape, env.Observation, lowerBound,
		upperBound, env.Continuous)
}

// DiscountSpec returns the discounting specification of the environment
func (b *base) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{b.discount})
	upperBound := mat.NewVecDense(1, []float64{b.discount})

	return env.NewSpec(shape, env.Discount, lowerBound,
		upperBound, env.Continuous)
}

// nextState computes the next state of the environment given a
// horizontal force direction in [-1, 1]
func (b *base) nextState(direction float64) *mat.VecDense {
	state := b.lastStep.Observation
	x, xDot := state.AtVec(0), state.AtVec(1)
	th, thDot := state.AtVec(2), state.AtVec(3)

	force := direction * ForceMag

	cosTheta := math.Cos(th)
	sinTheta := math.Sin(th)

	totalMass := PoleMass + CartMass
	poleMassLength := PoleMass * HalfPoleLength

	temp := (force + poleMassLength*thDot*thDot*sinTheta) / totalMass
	thAcc := (Gravity*sinTheta - cosTheta*temp) / (HalfPoleLength *
		(4.0/3.0 - PoleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thAcc*cosTheta/totalMass

	// Euler kinematic integration
	x += (Dt * xDot)
	xDot += (Dt * xAcc)
	th += (Dt * thDot)
	thDot += (Dt * thAcc)

	// The cart stops at the position boundaries
	if x < b.positionBounds.Min || x > b.positionBounds.Max {
		xDot = 0.0
	}
	x = floatutils.Clip(x, b.positionBounds.Min, b.positionBounds.Max)
	xDot = floatutils.Clip(xDot, b.speedBounds.Min, b.speedBounds.Max)
	th = normalizeAngle(th, b.angleBounds)
	thDot = floatutils.Clip(thDot, b.angularVelocityBounds.Min,
		b.angularVelocityBounds.Max)

	return mat.NewVecDense(ObservationDims, []float64{x, xDot, th, thDot})
}

// update constructs the next timestep, checks whether the episode
// ends and records the timestep as the last one seen
func (b *base) update(a, nextState *mat.VecDense) (ts.TimeStep, bool, error) {
	reward := b.GetReward(b.lastStep.Observation, a, nextState)
	nextStep := ts.New(ts.Mid, reward, b.discount, nextState,
		b.lastStep.Number+1)

	b.End(&nextStep)

	b.lastStep = nextStep
	return nextStep, nextStep.Last(), nil
}

// validateState ensures that a state observation is valid and between
// the physical bounds of the Cartpole environment
func (b *base) validateState(obs mat.Vector) error {
	if obs.Len() != ObservationDims {
		return fmt.Errorf("validateState: state should have %v features "+
			"but got %v", ObservationDims, obs.Len())
	}

	bounds := []r1.Interval{b.positionBounds, b.speedBounds, b.angleBounds,
		b.angularVelocityBounds}
	names := []string{"position", "speed", "angle", "angular velocity"}
	for i := range bounds {
		if obs.AtVec(i) > bounds[i].Max || obs.AtVec(i) < bounds[i].Min {
			return fmt.Errorf("validateState: %v is not within bounds %v",
				names[i], bounds[i])
		}
	}
	return nil
}

func (b *base) String() string {
	msg := "Cartpole  |  Position: %v  | Speed: %v  |  Angle: %v" +
		"  |  Angular Velocity: %v"

	state := b.lastStep.Observation
	position, speed := state.AtVec(0), state.AtVec(1)
	angle, velocity := state.AtVec(2), state.AtVec(3)

	return fmt.Sprintf(msg, position, speed, angle, velocity)
}

// normalizeAngle normalizes the pole angle to (-π, π]
func normalizeAngle(th float64, angleBounds r1.Interval) float64 {
	if th > angleBounds.Max {
		divisor := int(th / angleBounds.Max)
		return -math.Pi + th - (angleBounds.Max * float64(divisor))
	} else if th < angleBounds.Min {
		divisor := int(th / angleBounds.Min)
		return math.Pi + th - (angleBounds.Min * float64(divisor))
	}
	return th
}
