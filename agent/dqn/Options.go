package dqn

// Option sets a single hyperparameter of a Config
type Option func(*Config)

// WithBatchSize sets the number of transitions in each learner batch
func WithBatchSize(batchSize int) Option {
	return func(c *Config) {
		c.BatchSize = batchSize
	}
}

// WithPrefetchSize sets the number of batches sampled ahead of the
// learner
func WithPrefetchSize(prefetchSize int) Option {
	return func(c *Config) {
		c.PrefetchSize = prefetchSize
	}
}

// WithTargetUpdatePeriod sets the number of learner steps between
// target network updates
func WithTargetUpdatePeriod(period int) Option {
	return func(c *Config) {
		c.TargetUpdatePeriod = period
	}
}

// WithSamplesPerInsert sets the ratio of sampled to inserted
// transitions
func WithSamplesPerInsert(samplesPerInsert float64) Option {
	return func(c *Config) {
		c.SamplesPerInsert = samplesPerInsert
	}
}

// WithMinReplaySize sets the number of items the replay table holds
// before it can be sampled, which also delays learning by at least
// that many observations
func WithMinReplaySize(size int) Option {
	return func(c *Config) {
		c.MinReplaySize = size
	}
}

// WithMaxReplaySize sets the capacity of the replay table
func WithMaxReplaySize(size int) Option {
	return func(c *Config) {
		c.MaxReplaySize = size
	}
}

// WithImportanceSamplingExponent sets the exponent of the importance
// sampling weights
func WithImportanceSamplingExponent(exponent float64) Option {
	return func(c *Config) {
		c.ImportanceSamplingExponent = exponent
	}
}

// WithPriorityExponent sets the exponent applied to priorities when
// sampling
func WithPriorityExponent(exponent float64) Option {
	return func(c *Config) {
		c.PriorityExponent = exponent
	}
}

// WithNStep sets the number of steps in each transition
func WithNStep(n int) Option {
	return func(c *Config) {
		c.NStep = n
	}
}

// WithEpsilon sets the probability of the actor taking a random action
func WithEpsilon(epsilon float64) Option {
	return func(c *Config) {
		c.Epsilon = epsilon
	}
}

// WithLearningRate sets the step size of the Adam optimizer
func WithLearningRate(learningRate float64) Option {
	return func(c *Config) {
		c.LearningRate = learningRate
	}
}

// WithDiscount sets the discount factor of the n-step returns and
// bootstrapped targets
func WithDiscount(discount float64) Option {
	return func(c *Config) {
		c.Discount = discount
	}
}

// WithSeed sets the seed of the actor and replay sampling
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}
