package network

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/samuelfneumann/godqn/initwfn"
	"gorgonia.org/tensor"
)

func linearNet(t *testing.T, batch int) NeuralNet {
	init, err := initwfn.NewConstant(0.5)
	if err != nil {
		t.Fatal(err)
	}
	def := MLP{InitWFn: init}
	net, err := def.Init(2, 3, batch)
	if err != nil {
		t.Fatal(err)
	}
	return net
}

func TestApplyLinear(t *testing.T) {
	net := linearNet(t, 2)
	a := NewApplier(net)
	defer a.Close()

	out, err := a.Apply([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}

	// Weights are all 0.5 and biases start at 0
	want := []float64{1.5, 1.5, 1.5, 3.5, 3.5, 3.5}
	if len(out) != len(want) {
		t.Fatalf("output length: got %v, want %v", len(out), len(want))
	}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("output %v: got %v, want %v", i, out[i], want[i])
		}
	}
}

func TestApplyWrongInput(t *testing.T) {
	a := NewApplier(linearNet(t, 1))
	defer a.Close()

	if _, err := a.Apply([]float64{1, 2, 3}); err == nil {
		t.Errorf("expected error for wrong number of inputs")
	}
}

func TestCloneWithBatchCopiesWeights(t *testing.T) {
	def := NewMLP([]int{4}, ReLU, nil)
	net, err := def.Init(2, 3, 8)
	if err != nil {
		t.Fatal(err)
	}

	clone, err := net.CloneWithBatch(1)
	if err != nil {
		t.Fatal(err)
	}
	if clone.BatchSize() != 1 || clone.Features() != 2 || clone.Outputs() != 3 {
		t.Errorf("unexpected clone dimensions (%v, %v, %v)",
			clone.BatchSize(), clone.Features(), clone.Outputs())
	}

	original := net.Weights()
	cloned := clone.Weights()
	if len(original) != len(cloned) {
		t.Fatalf("number of weights: got %v, want %v", len(cloned),
			len(original))
	}
	for i := range original {
		a := original[i].Data().([]float64)
		b := cloned[i].Data().([]float64)
		for j := range a {
			if a[j] != b[j] {
				t.Errorf("weight %v differs at %v: %v != %v", i, j, a[j],
					b[j])
			}
		}
	}
}

func TestSetWeightsCopies(t *testing.T) {
	net := linearNet(t, 1)
	weights := net.Weights()

	// Mutating the copies must not change the network
	weights[0].Data().([]float64)[0] = 100
	if net.Weights()[0].Data().([]float64)[0] == 100 {
		t.Errorf("Weights should return copies")
	}

	if err := net.SetWeights(weights); err != nil {
		t.Fatal(err)
	}
	if got := net.Weights()[0].Data().([]float64)[0]; got != 100 {
		t.Errorf("SetWeights: got %v, want 100", got)
	}

	bad := []*tensor.Dense{tensor.New(tensor.WithShape(1, 1),
		tensor.WithBacking([]float64{0}))}
	if err := net.SetWeights(bad); err == nil {
		t.Errorf("expected error for mismatched weights")
	}
}

func TestInvalidDefinition(t *testing.T) {
	def := MLP{HiddenSizes: []int{4}, Biases: []bool{true}}
	if _, err := def.Init(2, 3, 1); err == nil {
		t.Errorf("expected error for missing activations")
	}
}

func TestActivationJSON(t *testing.T) {
	acts := []*Activation{ReLU(), TanH(), Identity()}
	data, err := json.Marshal(acts)
	if err != nil {
		t.Fatal(err)
	}

	var decoded []*Activation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	for i := range acts {
		if decoded[i].String() != acts[i].String() {
			t.Errorf("activation %v: got %v, want %v", i, decoded[i],
				acts[i])
		}
	}

	if _, err := ActivationByName("softmax"); err == nil {
		t.Errorf("expected error for unknown activation")
	}
}
