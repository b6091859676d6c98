package dqn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the hyperparameters of a DQN agent
type Config struct {
	Epsilon          float64 `json:"epsilon" yaml:"epsilon"`
	SamplesPerInsert float64 `json:"samples_per_insert" yaml:"samples_per_insert"`
	Seed             uint64  `json:"seed" yaml:"seed"`
	LearningRate     float64 `json:"learning_rate" yaml:"learning_rate"`
	Discount         float64 `json:"discount" yaml:"discount"`
	NStep            int     `json:"n_step" yaml:"n_step"`

	// TargetUpdatePeriod is the number of learner steps between
	// target network updates
	TargetUpdatePeriod int `json:"target_update_period" yaml:"target_update_period"`

	// MaxGradientNorm is the maximum global norm of the gradients. A
	// value of +Inf disables clipping.
	MaxGradientNorm float64 `json:"max_gradient_norm" yaml:"max_gradient_norm"`

	// Replay options
	BatchSize                  int     `json:"batch_size" yaml:"batch_size"`
	MinReplaySize              int     `json:"min_replay_size" yaml:"min_replay_size"`
	MaxReplaySize              int     `json:"max_replay_size" yaml:"max_replay_size"`
	ImportanceSamplingExponent float64 `json:"importance_sampling_exponent" yaml:"importance_sampling_exponent"`
	PriorityExponent           float64 `json:"priority_exponent" yaml:"priority_exponent"`
	PrefetchSize               int     `json:"prefetch_size" yaml:"prefetch_size"`
}

// DefaultConfig returns the default DQN configuration
func DefaultConfig() Config {
	return Config{
		Epsilon:                    0.05,
		SamplesPerInsert:           0.5,
		Seed:                       1,
		LearningRate:               1e-3,
		Discount:                   0.99,
		NStep:                      5,
		TargetUpdatePeriod:         100,
		MaxGradientNorm:            math.Inf(1),
		BatchSize:                  256,
		MinReplaySize:              1000,
		MaxReplaySize:              1_000_000,
		ImportanceSamplingExponent: 0.2,
		PriorityExponent:           0.6,
		PrefetchSize:               4,
	}
}

// MinObservations returns the number of observations an agent built
// with the configuration makes before learning
func (c Config) MinObservations() int {
	if c.BatchSize > c.MinReplaySize {
		return c.BatchSize
	}
	return c.MinReplaySize
}

// ObservationsPerStep returns the ratio of observations to learner
// steps of an agent built with the configuration
func (c Config) ObservationsPerStep() float64 {
	return float64(c.BatchSize) / c.SamplesPerInsert
}

// MarshalJSON implements the json.Marshaler interface. Infinite
// gradient norms are written as the strings "inf" and "-inf".
func (c Config) MarshalJSON() ([]byte, error) {
	type config Config

	var norm interface{} = c.MaxGradientNorm
	if math.IsInf(c.MaxGradientNorm, 0) {
		norm = strconv.FormatFloat(c.MaxGradientNorm, 'g', -1, 64)
	}

	return json.Marshal(struct {
		config
		MaxGradientNorm interface{} `json:"max_gradient_norm"`
	}{config(c), norm})
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (c *Config) UnmarshalJSON(data []byte) error {
	type config Config
	aux := struct {
		*config
		MaxGradientNorm json.RawMessage `json:"max_gradient_norm"`
	}{config: (*config)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("unmarshalJSON: %v", err)
	}
	if len(aux.MaxGradientNorm) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(aux.MaxGradientNorm, &s); err == nil {
		norm, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("unmarshalJSON: invalid max gradient norm "+
				"%q", s)
		}
		c.MaxGradientNorm = norm
		return nil
	}

	if err := json.Unmarshal(aux.MaxGradientNorm,
		&c.MaxGradientNorm); err != nil {
		return fmt.Errorf("unmarshalJSON: invalid max gradient norm: %v",
			err)
	}
	return nil
}

// LoadConfig reads a configuration from a JSON (.json) or YAML (.yaml,
// .yml) file. Fields missing from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("loadConfig: %v", err)
	}

	c := DefaultConfig()
	switch ext := filepath.Ext(path); ext {
	case ".json":
		err = json.Unmarshal(data, &c)

	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&c)

	default:
		return Config{}, fmt.Errorf("loadConfig: unknown config file "+
			"extension %q", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("loadConfig: could not decode %v: %v",
			path, err)
	}

	return c, nil
}
