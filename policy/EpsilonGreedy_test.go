package policy

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func TestNewEpsilonGreedyInvalid(t *testing.T) {
	for _, eps := range []float64{-0.1, 1.1, math.NaN()} {
		if _, err := NewEpsilonGreedy(eps); err == nil {
			t.Errorf("epsilon %v: expected error", eps)
		}
	}
}

func TestProbs(t *testing.T) {
	tests := []struct {
		epsilon float64
		values  []float64
		want    []float64
	}{
		{0, []float64{1, 3, 2}, []float64{0, 1, 0}},
		{1, []float64{1, 3, 2, 0}, []float64{0.25, 0.25, 0.25, 0.25}},
		{0.3, []float64{1, 3, 2}, []float64{0.1, 0.8, 0.1}},
		{0.4, []float64{5, 1, 5, 0}, []float64{0.4, 0.1, 0.4, 0.1}},
	}

	for _, test := range tests {
		e, err := NewEpsilonGreedy(test.epsilon)
		if err != nil {
			t.Fatal(err)
		}
		probs, err := e.Probs(test.values)
		if err != nil {
			t.Fatal(err)
		}

		var sum float64
		for i := range probs {
			sum += probs[i]
			if math.Abs(probs[i]-test.want[i]) > 1e-12 {
				t.Errorf("ε=%v values=%v: got %v, want %v", test.epsilon,
					test.values, probs, test.want)
				break
			}
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("ε=%v: probabilities sum to %v", test.epsilon, sum)
		}
	}
}

func TestZeroEpsilonSelectsArgmax(t *testing.T) {
	e, err := NewEpsilonGreedy(0)
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		values := make([]float64, 5)
		for j := range values {
			values[j] = rng.NormFloat64()
		}
		best := 0
		for j := range values {
			if values[j] > values[best] {
				best = j
			}
		}

		action, err := e.Sample(rng, values)
		if err != nil {
			t.Fatal(err)
		}
		if action != best {
			t.Fatalf("values %v: got action %v, want %v", values, action,
				best)
		}
	}
}

func TestZeroEpsilonBreaksTies(t *testing.T) {
	e, _ := NewEpsilonGreedy(0)
	rng := rand.New(rand.NewSource(3))

	counts := make([]int, 3)
	for i := 0; i < 1000; i++ {
		action, err := e.Sample(rng, []float64{2, 1, 2})
		if err != nil {
			t.Fatal(err)
		}
		counts[action]++
	}

	if counts[1] != 0 {
		t.Errorf("selected non-greedy action %v times", counts[1])
	}
	if counts[0] == 0 || counts[2] == 0 {
		t.Errorf("ties not broken randomly: %v", counts)
	}
}

func TestSampleFrequencies(t *testing.T) {
	e, _ := NewEpsilonGreedy(0.3)
	rng := rand.New(rand.NewSource(7))

	const n = 20000
	counts := make([]float64, 3)
	for i := 0; i < n; i++ {
		action, err := e.Sample(rng, []float64{0, 1, -1})
		if err != nil {
			t.Fatal(err)
		}
		counts[action]++
	}

	want := []float64{0.1, 0.8, 0.1}
	for i := range counts {
		if got := counts[i] / n; math.Abs(got-want[i]) > 0.02 {
			t.Errorf("action %v: frequency %v, want %v", i, got, want[i])
		}
	}
}

func TestSampleEmpty(t *testing.T) {
	e, _ := NewEpsilonGreedy(0.1)
	if _, err := e.Sample(rand.New(rand.NewSource(1)), nil); err == nil {
		t.Error("expected error for empty action values")
	}
}
