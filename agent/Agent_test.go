package agent

import (
	"context"
	"errors"
	"testing"

	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

type countingLearner struct {
	steps     int
	variables int
	err       error
}

func (l *countingLearner) Step(ctx context.Context) error {
	l.steps++
	return l.err
}

func (l *countingLearner) Variables() ([]*tensor.Dense, error) {
	l.variables++
	w := tensor.New(tensor.WithShape(1), tensor.WithBacking(
		[]float64{float64(l.steps)}))
	return []*tensor.Dense{w}, nil
}

type countingActor struct {
	updates int
	actions []int
}

func (a *countingActor) SelectAction(*mat.VecDense) (int, error) {
	return 0, nil
}
func (a *countingActor) ObserveFirst(ts.TimeStep) error { return nil }
func (a *countingActor) Observe(action int, next ts.TimeStep) error {
	a.actions = append(a.actions, action)
	return nil
}
func (a *countingActor) Update() error {
	a.updates++
	return nil
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(nil, &countingLearner{}, 1, 1); err == nil {
		t.Error("expected error for nil actor")
	}
	if _, err := New(&countingActor{}, &countingLearner{}, 1, 0); err == nil {
		t.Error("expected error for non-positive observations per step")
	}
}

func TestLearnerSteps(t *testing.T) {
	tests := []struct {
		name                string
		minObservations     int
		observationsPerStep float64
		observations        int
		wantSteps           int
		wantUpdates         int
	}{
		// Steps on observations 3, 5, 7, 9
		{"every other", 3, 2, 10, 4, 4},
		// n = observations - minObservations is never reached
		{"before minimum", 20, 1, 10, 0, 0},
		// 4 steps on each of observations 2, 3, 4, 5
		{"several per observation", 2, 0.25, 5, 16, 4},
		{"one per observation", 0, 1, 6, 6, 6},
		// Truncated to every 2 observations
		{"fractional ratio", 1, 2.5, 6, 3, 3},
	}

	for _, test := range tests {
		actor := &countingActor{}
		learner := &countingLearner{}
		a, err := New(actor, learner, test.minObservations,
			test.observationsPerStep)
		if err != nil {
			t.Fatal(err)
		}

		for i := 0; i < test.observations; i++ {
			if err := a.Observe(i, ts.TimeStep{}); err != nil {
				t.Fatal(err)
			}
			if err := a.Update(context.Background()); err != nil {
				t.Fatal(err)
			}
		}

		if learner.steps != test.wantSteps {
			t.Errorf("%v: learner steps got %v, want %v", test.name,
				learner.steps, test.wantSteps)
		}
		if actor.updates != test.wantUpdates {
			t.Errorf("%v: actor updates got %v, want %v", test.name,
				actor.updates, test.wantUpdates)
		}
		if a.Observations() != test.observations {
			t.Errorf("%v: observations got %v, want %v", test.name,
				a.Observations(), test.observations)
		}
	}
}

// readyLearner becomes ready after readyAfter calls to Ready
type readyLearner struct {
	countingLearner
	calls      int
	readyAfter int
}

func (l *readyLearner) Ready() bool {
	l.calls++
	return l.calls > l.readyAfter
}

func TestUpdateSkipsUnreadyLearner(t *testing.T) {
	actor := &countingActor{}
	learner := &readyLearner{readyAfter: 3}
	a, err := New(actor, learner, 0, 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		a.Observe(i, ts.TimeStep{})
		if err := a.Update(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	// The first three updates find the learner without data
	if learner.steps != 2 {
		t.Errorf("learner steps got %v, want 2", learner.steps)
	}
	if actor.updates != 2 {
		t.Errorf("actor updates got %v, want 2", actor.updates)
	}
}

func TestUpdateReturnsLearnerError(t *testing.T) {
	sentinel := errors.New("sentinel")
	a, err := New(&countingActor{}, &countingLearner{err: sentinel}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	a.Observe(0, ts.TimeStep{})

	if err := a.Update(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped learner error, got %v", err)
	}
}

func TestVariableClientPeriod(t *testing.T) {
	source := &countingLearner{}
	client, err := NewVariableClient(source, 3)
	if err != nil {
		t.Fatal(err)
	}
	if client.Params() != nil {
		t.Error("params should be nil before the first fetch")
	}

	var fetches int
	for i := 0; i < 9; i++ {
		fetched, err := client.Update()
		if err != nil {
			t.Fatal(err)
		}
		if fetched {
			fetches++
		}
	}
	if fetches != 3 || source.variables != 3 {
		t.Errorf("fetches got %v (source %v), want 3", fetches,
			source.variables)
	}

	if _, err := NewVariableClient(source, 0); err == nil {
		t.Error("expected error for non-positive period")
	}
}

type recordingModel struct {
	weights []*tensor.Dense
	sets    int
}

func (m *recordingModel) SetWeights(w []*tensor.Dense) error {
	m.weights = w
	m.sets++
	return nil
}

type recordingAdder struct {
	first   int
	actions []int
}

func (r *recordingAdder) AddFirst(ts.TimeStep) error {
	r.first++
	return nil
}

func (r *recordingAdder) Add(action int, next ts.TimeStep) error {
	r.actions = append(r.actions, action)
	return nil
}

func (r *recordingAdder) Reset() {}

func TestFeedForwardActor(t *testing.T) {
	source := &countingLearner{steps: 7}
	client, _ := NewVariableClient(source, 2)
	model := &recordingModel{}
	adder := &recordingAdder{}
	policy := func(obs *mat.VecDense) (int, error) {
		return int(obs.AtVec(0)), nil
	}

	actor, err := NewFeedForwardActor(policy, model, client, adder)
	if err != nil {
		t.Fatal(err)
	}
	if model.sets != 1 || model.weights[0].Data().([]float64)[0] != 7 {
		t.Fatalf("actor should synchronize weights on creation")
	}

	action, err := actor.SelectAction(mat.NewVecDense(2, []float64{2, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if action != 2 {
		t.Errorf("action got %v, want 2", action)
	}

	actor.ObserveFirst(ts.TimeStep{StepType: ts.First})
	actor.Observe(1, ts.TimeStep{StepType: ts.Mid})
	actor.Observe(0, ts.TimeStep{StepType: ts.Last})
	if adder.first != 1 || len(adder.actions) != 2 {
		t.Errorf("adder got %v first and %v actions", adder.first,
			adder.actions)
	}

	// Weights are only refreshed every second update
	source.steps = 8
	actor.Update()
	if model.sets != 1 {
		t.Errorf("weights set %v times, want 1", model.sets)
	}
	actor.Update()
	if model.sets != 2 || model.weights[0].Data().([]float64)[0] != 8 {
		t.Errorf("weights not refreshed after period updates")
	}
}

func TestFeedForwardActorWithoutAdder(t *testing.T) {
	client, _ := NewVariableClient(&countingLearner{}, 1)
	actor, err := NewFeedForwardActor(func(*mat.VecDense) (int, error) {
		return 0, nil
	}, &recordingModel{}, client, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := actor.ObserveFirst(ts.TimeStep{StepType: ts.First}); err != nil {
		t.Error(err)
	}
	if err := actor.Observe(0, ts.TimeStep{}); err != nil {
		t.Error(err)
	}
}
