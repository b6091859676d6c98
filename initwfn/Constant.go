package initwfn

import G "gorgonia.org/gorgonia"

// ConstantConfig implements a configuration of a weight initializer
// that initializes all weights to a constant value. A constant of 0
// gives a network whose outputs are all 0.
type ConstantConfig struct {
	Value float64
}

// NewConstant returns a new constant weight intializer
func NewConstant(value float64) (*InitWFn, error) {
	return newInitWFn(ConstantConfig{value})
}

// Type returns the type of the weight initializer
func (c ConstantConfig) Type() Type {
	return Constant
}

// Validate implements the Config interface
func (c ConstantConfig) Validate() error { return nil }

// Create creates the Gorgonia weight initializer
func (c ConstantConfig) Create() G.InitWFn {
	return G.ValuesOf(c.Value)
}
