package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// GlorotUConfig implements a configuration of the Glorot Uniform
// initialization algorithm. A non-zero Seed makes the drawn weights
// reproducible.
type GlorotUConfig struct {
	Gain float64
	Seed uint64
}

// NewGlorotU returns a new Glorot Uniform weight initializer
func NewGlorotU(gain float64, seed uint64) (*InitWFn, error) {
	return newInitWFn(GlorotUConfig{Gain: gain, Seed: seed})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GlorotUConfig) Type() Type {
	return GlorotU
}

// Validate implements the Config interface
func (g GlorotUConfig) Validate() error {
	if g.Gain <= 0 {
		return fmt.Errorf("validate: gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotUConfig) Create() G.InitWFn {
	if g.Seed == 0 {
		return G.GlorotU(g.Gain)
	}

	src := rand.NewSource(g.Seed)
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s...)
		limit := g.Gain * math.Sqrt(6.0/float64(fanIn+fanOut))
		dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}
		return draw(dt, dist.Rand, s...)
	}
}

// GlorotNConfig implements a configuration of the Glorot Normal
// initialization algorithm.
type GlorotNConfig struct {
	Gain float64
	Seed uint64
}

// NewGlorotN returns a new Glorot Normal weight initializer.
func NewGlorotN(gain float64, seed uint64) (*InitWFn, error) {
	return newInitWFn(GlorotNConfig{Gain: gain, Seed: seed})
}

// Type returns the type of initialization algorithm described by the
// configuration.
func (g GlorotNConfig) Type() Type {
	return GlorotN
}

// Validate implements the Config interface
func (g GlorotNConfig) Validate() error {
	if g.Gain <= 0 {
		return fmt.Errorf("validate: gain must be positive")
	}
	return nil
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GlorotNConfig) Create() G.InitWFn {
	if g.Seed == 0 {
		return G.GlorotN(g.Gain)
	}

	src := rand.NewSource(g.Seed)
	return func(dt tensor.Dtype, s ...int) interface{} {
		fanIn, fanOut := fans(s...)
		stddev := g.Gain * math.Sqrt(2.0/float64(fanIn+fanOut))
		dist := distuv.Normal{Mu: 0, Sigma: stddev, Src: src}
		return draw(dt, dist.Rand, s...)
	}
}

// fans returns the fan in and fan out of a weight tensor with shape s
func fans(s ...int) (int, int) {
	switch len(s) {
	case 0:
		return 1, 1
	case 1:
		return s[0], s[0]
	default:
		receptive := 1
		for _, dim := range s[2:] {
			receptive *= dim
		}
		return s[0] * receptive, s[1] * receptive
	}
}

// draw fills a backing slice for a tensor of shape s
func draw(dt tensor.Dtype, sample func() float64, s ...int) interface{} {
	size := tensor.Shape(s).TotalSize()
	switch dt {
	case tensor.Float32:
		backing := make([]float32, size)
		for i := range backing {
			backing[i] = float32(sample())
		}
		return backing
	default:
		backing := make([]float64, size)
		for i := range backing {
			backing[i] = sample()
		}
		return backing
	}
}
