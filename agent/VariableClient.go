package agent

import (
	"fmt"

	"gorgonia.org/tensor"
)

// VariableClient keeps a local copy of the parameters of a
// VariableSource, refreshed every period calls to Update
type VariableClient struct {
	source VariableSource
	period int
	calls  int
	params []*tensor.Dense
}

// NewVariableClient returns a new VariableClient. The parameters are
// not fetched until the first call to Update or UpdateAndWait.
func NewVariableClient(source VariableSource,
	period int) (*VariableClient, error) {
	if source == nil {
		return nil, fmt.Errorf("newVariableClient: source cannot be nil")
	}
	if period < 1 {
		return nil, fmt.Errorf("newVariableClient: update period must be "+
			"positive but got %v", period)
	}
	return &VariableClient{source: source, period: period}, nil
}

// Update counts a call and fetches the parameters if period calls have
// been made since the last fetch. The returned bool reports whether the
// parameters were fetched.
func (v *VariableClient) Update() (bool, error) {
	v.calls++
	if v.calls < v.period {
		return false, nil
	}

	if err := v.UpdateAndWait(); err != nil {
		return false, fmt.Errorf("update: %v", err)
	}
	return true, nil
}

// UpdateAndWait fetches the parameters immediately
func (v *VariableClient) UpdateAndWait() error {
	params, err := v.source.Variables()
	if err != nil {
		return fmt.Errorf("updateAndWait: could not fetch variables: %v",
			err)
	}
	v.params = params
	v.calls = 0
	return nil
}

// Params returns the last fetched parameters
func (v *VariableClient) Params() []*tensor.Dense {
	return v.params
}
