package initwfn

import (
	"encoding/json"
	"reflect"
	"testing"

	"gorgonia.org/tensor"
)

func TestJSONRoundTrip(t *testing.T) {
	init, err := NewGlorotU(1.0, 7)
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(init)
	if err != nil {
		t.Fatal(err)
	}

	var decoded InitWFn
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != GlorotU {
		t.Errorf("type: got %v, want %v", decoded.Type, GlorotU)
	}
	if !reflect.DeepEqual(decoded.Config, init.Config) {
		t.Errorf("config: got %v, want %v", decoded.Config, init.Config)
	}
}

func TestUnmarshalUnknownType(t *testing.T) {
	var decoded InitWFn
	err := json.Unmarshal([]byte(`{"Type": "Nope", "Config": {}}`), &decoded)
	if err == nil {
		t.Errorf("expected error for unknown type")
	}
}

func TestSeededGlorotIsReproducible(t *testing.T) {
	first, _ := NewGlorotU(1.0, 42)
	second, _ := NewGlorotU(1.0, 42)

	a := first.InitWFn()(tensor.Float64, 3, 4).([]float64)
	b := second.InitWFn()(tensor.Float64, 3, 4).([]float64)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("seeded initializers differ: %v != %v", a, b)
	}

	limit := 1.0 * 1.0690449676496976 // sqrt(6 / 7) * gain
	for _, w := range a {
		if w < -limit || w > limit {
			t.Errorf("weight %v outside of [%v, %v]", w, -limit, limit)
		}
	}
}

func TestInvalidGain(t *testing.T) {
	if _, err := NewHeU(0); err == nil {
		t.Errorf("expected error for zero gain")
	}
}
