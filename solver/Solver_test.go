package solver

import (
	"math"
	"testing"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

type param struct {
	value, grad *tensor.Dense
}

func (p param) Value() G.Value         { return p.value }
func (p param) Grad() (G.Value, error) { return p.grad, nil }

func newParam(grad ...float64) param {
	return param{
		value: tensor.New(tensor.WithShape(len(grad)),
			tensor.WithBacking(make([]float64, len(grad)))),
		grad: tensor.New(tensor.WithShape(len(grad)),
			tensor.WithBacking(grad)),
	}
}

type recorder struct {
	steps int
	norm  float64
}

func (r *recorder) Step(model []G.ValueGrad) error {
	r.steps++
	var sq float64
	for _, p := range model {
		g, _ := p.Grad()
		for _, v := range g.Data().([]float64) {
			sq += v * v
		}
	}
	r.norm = math.Sqrt(sq)
	return nil
}

func TestClipByGlobalNorm(t *testing.T) {
	tests := []struct {
		name    string
		maxNorm float64
		grads   [][]float64
		want    float64
	}{
		{"scaled", 1.0, [][]float64{{3}, {4}}, 1.0},
		{"unchanged", 10.0, [][]float64{{3}, {4}}, 5.0},
		{"disabled", math.Inf(1), [][]float64{{30}, {40}}, 50.0},
	}

	for _, test := range tests {
		clip, err := ClipByGlobalNorm(test.maxNorm)
		if err != nil {
			t.Fatal(err)
		}

		model := make([]G.ValueGrad, len(test.grads))
		for i, g := range test.grads {
			model[i] = newParam(g...)
		}

		r := &recorder{}
		if err := Chain(r, clip).Step(model); err != nil {
			t.Fatal(err)
		}
		if r.steps != 1 {
			t.Errorf("%v: solver stepped %v times, want 1", test.name,
				r.steps)
		}
		if math.Abs(r.norm-test.want) > 1e-9 {
			t.Errorf("%v: norm got %v, want %v", test.name, r.norm, test.want)
		}
	}
}

func TestClipDirectionPreserved(t *testing.T) {
	clip, _ := ClipByGlobalNorm(1.0)
	p := newParam(3, 4)
	if err := clip.Apply([]G.ValueGrad{p}); err != nil {
		t.Fatal(err)
	}

	got := p.grad.Data().([]float64)
	if math.Abs(got[0]-0.6) > 1e-9 || math.Abs(got[1]-0.8) > 1e-9 {
		t.Errorf("clipped gradient: got %v, want [0.6 0.8]", got)
	}
}

func TestClipInvalidNorm(t *testing.T) {
	for _, norm := range []float64{0, -1, math.NaN()} {
		if _, err := ClipByGlobalNorm(norm); err == nil {
			t.Errorf("expected error for max norm %v", norm)
		}
	}
}

func TestNewDefaultAdam(t *testing.T) {
	adam, err := NewDefaultAdam(1e-3, 1)
	if err != nil {
		t.Fatal(err)
	}
	if adam.Solver == nil {
		t.Fatal("solver was not created")
	}

	want := AdamConfig{StepSize: 1e-3, Epsilon: 1e-8, Beta1: 0.9,
		Beta2: 0.999, Batch: 1}
	if adam.Config.(AdamConfig) != want {
		t.Errorf("config: got %+v, want %+v", adam.Config, want)
	}

	// The wrapped solver steps a model
	p := newParam(1, -1)
	if err := adam.Step([]G.ValueGrad{p}); err != nil {
		t.Fatal(err)
	}
	got := p.value.Data().([]float64)
	if got[0] >= 0 || got[1] <= 0 {
		t.Errorf("adam should step against the gradient, got %v", got)
	}
}

func TestInvalidSolvers(t *testing.T) {
	if _, err := NewDefaultAdam(0, 1); err == nil {
		t.Errorf("expected error for zero learning rate")
	}
	if _, err := NewDefaultAdam(1e-3, 0); err == nil {
		t.Errorf("expected error for zero batch size")
	}
	if _, err := NewAdam(1e-3, 1e-8, 1.5, 0.999, 1); err == nil {
		t.Errorf("expected error for beta1 > 1")
	}
	if _, err := NewAdam(1e-3, 0, 0.9, 0.999, 1); err == nil {
		t.Errorf("expected error for zero epsilon")
	}
}
