package mountaincar

import (
	"testing"

	env "github.com/samuelfneumann/godqn/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func newEnv(t *testing.T, start []r1.Interval, episodeSteps int) *Discrete {
	task, err := NewGoal(env.NewUniformStarter(start, 1), episodeSteps,
		GoalPosition)
	if err != nil {
		t.Fatal(err)
	}
	m, first, err := NewDiscrete(task, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !first.First() {
		t.Errorf("first timestep should have type First, got %v",
			first.StepType)
	}
	return m
}

func TestStepLimit(t *testing.T) {
	m := newEnv(t, []r1.Interval{{Min: -0.6, Max: -0.4}, {}}, 10)
	spec := env.MakeEnvironmentSpec(m)
	if spec.Features() != ObservationDims {
		t.Errorf("features: got %v, want %v", spec.Features(),
			ObservationDims)
	}

	steps := 0
	action := mat.NewVecDense(1, []float64{2})
	for last := false; !last; steps++ {
		step, end, err := m.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		if step.Reward != -1 {
			t.Errorf("reward: got %v, want -1", step.Reward)
		}
		last = end
	}
	if steps != 10 {
		t.Errorf("episode length: got %v, want 10", steps)
	}
}

func TestReachGoal(t *testing.T) {
	// Start next to the goal with maximum speed
	m := newEnv(t, []r1.Interval{
		{Min: GoalPosition - 0.01, Max: GoalPosition - 0.01},
		{Min: MaxSpeed, Max: MaxSpeed},
	}, 100)

	step, last, err := m.Step(mat.NewVecDense(1, []float64{2}))
	if err != nil {
		t.Fatal(err)
	}
	if !last || step.Reward != 0 {
		t.Errorf("goal step: last %v reward %v, want true and 0", last,
			step.Reward)
	}
}

func TestIllegal(t *testing.T) {
	m := newEnv(t, []r1.Interval{{Min: -0.6, Max: -0.4}, {}}, 10)
	if _, _, err := m.Step(mat.NewVecDense(1, []float64{3})); err == nil {
		t.Error("expected error for illegal action")
	}

	task, _ := NewGoal(env.NewUniformStarter([]r1.Interval{{Min: 5,
		Max: 6}, {}}, 1), 10, GoalPosition)
	if _, _, err := NewDiscrete(task, 1.0); err == nil {
		t.Error("expected error for illegal starting position")
	}
}
