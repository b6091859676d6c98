package dqn

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/samuelfneumann/godqn/agent"
	env "github.com/samuelfneumann/godqn/environment"
	"github.com/samuelfneumann/godqn/environment/classiccontrol/cartpole"
	"github.com/samuelfneumann/godqn/network"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

func discreteSpec(features, actions int) env.EnvironmentSpec {
	vec := func(n int, v float64) *mat.VecDense {
		data := make([]float64, n)
		for i := range data {
			data[i] = v
		}
		return mat.NewVecDense(n, data)
	}

	return env.EnvironmentSpec{
		Observations: env.NewSpec(vec(features, 0), env.Observation,
			vec(features, -1), vec(features, 1), env.Continuous),
		Actions: env.NewSpec(vec(1, 0), env.Action, vec(1, 0),
			vec(1, float64(actions-1)), env.Discrete),
		Rewards: env.NewSpec(vec(1, 0), env.Reward, vec(1, -1), vec(1, 1),
			env.Continuous),
		Discounts: env.NewSpec(vec(1, 0), env.Discount, vec(1, 0),
			vec(1, 1), env.Continuous),
	}
}

func smallConfig() Config {
	c := DefaultConfig()
	c.BatchSize = 4
	c.MinReplaySize = 10
	c.MaxReplaySize = 100
	c.PrefetchSize = 2
	c.NStep = 2
	c.TargetUpdatePeriod = 5
	return c
}

func newAgent(t *testing.T, c Config) *DQN {
	d, err := NewFromConfig(discreteSpec(4, 3),
		network.NewMLP([]int{8}, network.ReLU, nil), c)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.BatchSize != 256 || c.MinReplaySize != 1000 ||
		c.MaxReplaySize != 1_000_000 || c.NStep != 5 ||
		c.TargetUpdatePeriod != 100 || !math.IsInf(c.MaxGradientNorm, 1) {
		t.Errorf("unexpected defaults %+v", c)
	}
}

func TestMinObservations(t *testing.T) {
	tests := []struct {
		batchSize, minReplaySize, want int
	}{
		{32, 1000, 1000},
		{256, 100, 256},
		{64, 64, 64},
	}

	for _, test := range tests {
		c := smallConfig()
		c.BatchSize = test.batchSize
		c.MinReplaySize = test.minReplaySize
		c.MaxReplaySize = 2000
		d := newAgent(t, c)

		if got := d.MinObservations(); got != test.want {
			t.Errorf("batch %v, min replay %v: min observations %v, want %v",
				test.batchSize, test.minReplaySize, got, test.want)
		}
	}
}

func TestObservationsPerStep(t *testing.T) {
	tests := []struct {
		batchSize        int
		samplesPerInsert float64
		want             float64
	}{
		{256, 0.5, 512},
		{32, 8, 4},
		{4, 16, 0.25},
	}

	for _, test := range tests {
		c := smallConfig()
		c.BatchSize = test.batchSize
		c.SamplesPerInsert = test.samplesPerInsert
		d := newAgent(t, c)

		if got := d.ObservationsPerStep(); got != test.want {
			t.Errorf("batch %v, samples per insert %v: observations per "+
				"step %v, want %v", test.batchSize, test.samplesPerInsert,
				got, test.want)
		}
	}
}

func TestSharedReplay(t *testing.T) {
	d := newAgent(t, smallConfig())

	if d.Learner() == nil || d.Actor() == nil {
		t.Fatal("learner and actor should not be nil")
	}
	if d.Learner().iterator != d.Replay().Iterator {
		t.Error("learner should read from the agent's replay iterator")
	}
	if d.Learner().client != d.Replay().Client {
		t.Error("learner should update priorities through the agent's " +
			"replay client")
	}
	if d.Actor().Adder() != agent.Adder(d.Replay().Adder) {
		t.Error("actor should write through the agent's replay adder")
	}

	info, err := d.Replay().Client.ServerInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.MinSize != smallConfig().MinReplaySize ||
		info.MaxSize != smallConfig().MaxReplaySize {
		t.Errorf("replay bounds %v, %v, want %v, %v", info.MinSize,
			info.MaxSize, smallConfig().MinReplaySize,
			smallConfig().MaxReplaySize)
	}
}

func TestOptionsMatchConfig(t *testing.T) {
	c := Config{
		Epsilon:                    0.1,
		SamplesPerInsert:           2,
		Seed:                       42,
		LearningRate:               3e-4,
		Discount:                   0.95,
		NStep:                      3,
		TargetUpdatePeriod:         10,
		MaxGradientNorm:            math.Inf(1),
		BatchSize:                  8,
		MinReplaySize:              20,
		MaxReplaySize:              500,
		ImportanceSamplingExponent: 0.4,
		PriorityExponent:           0.7,
		PrefetchSize:               1,
	}

	net := network.NewMLP([]int{4}, network.TanH, nil)
	d, err := New(discreteSpec(2, 2), net,
		WithEpsilon(c.Epsilon),
		WithSamplesPerInsert(c.SamplesPerInsert),
		WithSeed(c.Seed),
		WithLearningRate(c.LearningRate),
		WithDiscount(c.Discount),
		WithNStep(c.NStep),
		WithTargetUpdatePeriod(c.TargetUpdatePeriod),
		WithBatchSize(c.BatchSize),
		WithMinReplaySize(c.MinReplaySize),
		WithMaxReplaySize(c.MaxReplaySize),
		WithImportanceSamplingExponent(c.ImportanceSamplingExponent),
		WithPriorityExponent(c.PriorityExponent),
		WithPrefetchSize(c.PrefetchSize),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if !reflect.DeepEqual(d.Config(), c) {
		t.Errorf("options produced %+v, want %+v", d.Config(), c)
	}

	e, err := NewFromConfig(discreteSpec(2, 2), net, c)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if d.MinObservations() != e.MinObservations() ||
		d.ObservationsPerStep() != e.ObservationsPerStep() {
		t.Error("options and config agents schedule learning differently")
	}
}

func TestNewInvalid(t *testing.T) {
	net := network.NewMLP([]int{4}, network.ReLU, nil)

	tests := map[string]func(*Config){
		"batch size":         func(c *Config) { c.BatchSize = 0 },
		"epsilon":            func(c *Config) { c.Epsilon = 1.5 },
		"gradient norm":      func(c *Config) { c.MaxGradientNorm = 0 },
		"learning rate":      func(c *Config) { c.LearningRate = -1 },
		"n-step":             func(c *Config) { c.NStep = 0 },
		"target period":      func(c *Config) { c.TargetUpdatePeriod = 0 },
		"samples per insert": func(c *Config) { c.SamplesPerInsert = 0 },
	}

	for name, modify := range tests {
		c := smallConfig()
		modify(&c)
		if d, err := NewFromConfig(discreteSpec(4, 3), net, c); err == nil {
			d.Close()
			t.Errorf("%v: expected error", name)
		}
	}

	continuous := discreteSpec(4, 3)
	continuous.Actions.Cardinality = env.Continuous
	if _, err := NewFromConfig(continuous, net, smallConfig()); err == nil {
		t.Error("expected error for continuous actions")
	}
}

func TestZeroEpsilonActsGreedily(t *testing.T) {
	c := smallConfig()
	c.Epsilon = 0
	d := newAgent(t, c)

	obs := mat.NewVecDense(4, []float64{0.3, -0.2, 0.9, 0.1})
	values, err := d.applier.Apply(obs.RawVector().Data)
	if err != nil {
		t.Fatal(err)
	}
	best := 0
	for i := range values {
		if values[i] > values[best] {
			best = i
		}
	}

	for i := 0; i < 20; i++ {
		action, err := d.SelectAction(obs)
		if err != nil {
			t.Fatal(err)
		}
		if action != best {
			t.Fatalf("action %v, want argmax %v of %v", action, best, values)
		}
	}
}

func TestTrainOnCartpole(t *testing.T) {
	bounds := []r1.Interval{
		{Min: -0.05, Max: 0.05},
		{Min: -0.05, Max: 0.05},
		{Min: -0.05, Max: 0.05},
		{Min: -0.05, Max: 0.05},
	}
	task, err := cartpole.NewBalance(env.NewUniformStarter(bounds, 1), 50,
		cartpole.FailAngle)
	if err != nil {
		t.Fatal(err)
	}
	e, _, err := cartpole.NewDiscrete(task, 0.99)
	if err != nil {
		t.Fatal(err)
	}

	c := smallConfig()
	c.SamplesPerInsert = 4
	d, err := NewFromConfig(env.MakeEnvironmentSpec(e),
		network.NewMLP([]int{16}, network.ReLU, nil), c)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	observations := 0
	for observations < 60 {
		step, err := e.Reset()
		if err != nil {
			t.Fatal(err)
		}
		if err := d.ObserveFirst(step); err != nil {
			t.Fatal(err)
		}

		for !step.Last() {
			action, err := d.SelectAction(step.Observation)
			if err != nil {
				t.Fatal(err)
			}
			step, _, err = e.Step(mat.NewVecDense(1,
				[]float64{float64(action)}))
			if err != nil {
				t.Fatal(err)
			}
			if err := d.Observe(action, step); err != nil {
				t.Fatal(err)
			}
			if err := d.Update(ctx); err != nil {
				t.Fatal(err)
			}
			observations++
		}
	}

	// One learner step per observation after the first 10. The 2-step
	// adder may hold back the tenth item for one more observation.
	most := observations - c.MinObservations() + 1
	if steps := d.Learner().Steps(); steps < most-1 || steps > most {
		t.Errorf("learner steps %v, want %v or %v", steps, most-1, most)
	}

	info, err := d.Replay().Client.ServerInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size == 0 || info.Samples == 0 {
		t.Errorf("replay should have been written and sampled: %+v", info)
	}
}
