package experiment

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	env "github.com/samuelfneumann/godqn/environment"
	"github.com/samuelfneumann/godqn/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/godqn/experiment/checkpointer"
	"github.com/samuelfneumann/godqn/experiment/tracker"
	ts "github.com/samuelfneumann/godqn/timestep"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// countingAgent never pushes the cart and counts its calls
type countingAgent struct {
	firsts, observations, updates int
	err                           error
}

func (c *countingAgent) SelectAction(*mat.VecDense) (int, error) {
	return 1, nil
}

func (c *countingAgent) ObserveFirst(ts.TimeStep) error {
	c.firsts++
	return nil
}

func (c *countingAgent) Observe(int, ts.TimeStep) error {
	c.observations++
	return nil
}

func (c *countingAgent) Update(context.Context) error {
	c.updates++
	return c.err
}

type recordingSaver struct {
	saves int
}

func (r *recordingSaver) Save(string) error {
	r.saves++
	return nil
}

func (r *recordingSaver) Load(string) error { return nil }

func newCartpole(t *testing.T, episodeSteps int) env.Environment {
	bounds := []r1.Interval{
		{Min: -0.01, Max: 0.01},
		{Min: -0.01, Max: 0.01},
		{Min: -0.01, Max: 0.01},
		{Min: -0.01, Max: 0.01},
	}
	task, err := cartpole.NewBalance(env.NewUniformStarter(bounds, 3),
		episodeSteps, cartpole.FailAngle)
	if err != nil {
		t.Fatal(err)
	}
	e, _, err := cartpole.NewDiscrete(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestOnlineRun(t *testing.T) {
	dir := t.TempDir()
	lengths := tracker.NewEpisodeLength(filepath.Join(dir, "lengths.bin"))
	returns := tracker.NewReturn(filepath.Join(dir, "returns.bin"))

	saver := &recordingSaver{}
	check, err := checkpointer.NewNStep(4, saver,
		checkpointer.Overwrite(filepath.Join(dir, "agent.bin")))
	if err != nil {
		t.Fatal(err)
	}

	a := &countingAgent{}
	o, err := NewOnline(newCartpole(t, 5), a, 12,
		[]tracker.Tracker{lengths}, []checkpointer.Checkpointer{check})
	if err != nil {
		t.Fatal(err)
	}
	o.Register(returns)

	var out bytes.Buffer
	o.ShowProgress(&out)
	if err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if o.Steps() != 12 || a.observations != 12 || a.updates != 12 {
		t.Errorf("steps %v, observations %v, updates %v: want 12",
			o.Steps(), a.observations, a.updates)
	}
	if o.Episodes() != 3 || a.firsts != 3 {
		t.Errorf("episodes %v, first observations %v: want 3", o.Episodes(),
			a.firsts)
	}
	if saver.saves != 3 {
		t.Errorf("checkpoints: got %v, want 3", saver.saves)
	}
	if !strings.Contains(out.String(), "100.00%") {
		t.Error("progress bar should be full")
	}

	if err := o.Save(); err != nil {
		t.Fatal(err)
	}
	data, err := tracker.LoadData(filepath.Join(dir, "lengths.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data[0] != 5 || data[1] != 5 {
		t.Errorf("episode lengths: got %v, want [5 5]", data)
	}
	data, err = tracker.LoadData(filepath.Join(dir, "returns.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data[0] != 5 || data[1] != 5 {
		t.Errorf("returns: got %v, want [5 5]", data)
	}
}

func TestOnlineErrors(t *testing.T) {
	if _, err := NewOnline(newCartpole(t, 5), &countingAgent{}, 0, nil,
		nil); err == nil {
		t.Error("expected error for non-positive steps")
	}
	if _, err := NewOnline(nil, &countingAgent{}, 1, nil, nil); err == nil {
		t.Error("expected error for nil environment")
	}

	updateErr := errors.New("learner failed")
	o, err := NewOnline(newCartpole(t, 5), &countingAgent{err: updateErr},
		10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Run(context.Background()); err == nil ||
		!strings.Contains(err.Error(), "learner failed") {
		t.Errorf("expected update error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o, err = NewOnline(newCartpole(t, 5), &countingAgent{}, 10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
