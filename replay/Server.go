package replay

import (
	"context"
	"fmt"
	"math"
	"sync"

	ts "github.com/samuelfneumann/godqn/timestep"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

const (
	// DefaultPriority is the priority of newly inserted items
	DefaultPriority = 1.0

	// MaxBatchSize is the largest batch a Server will sample
	MaxBatchSize = 1 << 20

	// minWeight is the smallest sampling weight of an item. Items with
	// zero priority keep this weight so that the table can always be
	// sampled.
	minWeight = 1e-8
)

// ServerConfig describes a prioritized replay table
type ServerConfig struct {
	Features         int
	MinSize          int
	MaxSize          int
	PriorityExponent float64
	Seed             uint64
}

// Validate returns an error if the configuration is illegal
func (c ServerConfig) Validate() error {
	if c.Features < 1 {
		return fmt.Errorf("validate: features must be positive but got %v",
			c.Features)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("validate: max size must be positive but got %v",
			c.MaxSize)
	}
	if c.MinSize < 1 || c.MinSize > c.MaxSize {
		return fmt.Errorf("validate: min size must be in [1, %v] but got %v",
			c.MaxSize, c.MinSize)
	}
	if c.PriorityExponent < 0 || math.IsNaN(c.PriorityExponent) {
		return fmt.Errorf("validate: priority exponent must be "+
			"non-negative but got %v", c.PriorityExponent)
	}
	return nil
}

// Info describes the state of a Server
type Info struct {
	Size             int     `json:"size"`
	MinSize          int     `json:"min_size"`
	MaxSize          int     `json:"max_size"`
	Inserts          uint64  `json:"inserts"`
	Samples          uint64  `json:"samples"`
	PriorityExponent float64 `json:"priority_exponent"`
}

// Batch is a batch of transitions sampled from a Server. States and
// NextStates are stored row-major with one row per transition.
type Batch struct {
	Keys          []uint64
	Probabilities []float64
	States        []float64
	Actions       []int
	Rewards       []float64
	Discounts     []float64
	NextStates    []float64
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Keys)
}

type item struct {
	key       uint64
	state     []float64
	action    int
	reward    float64
	discount  float64
	nextState []float64
}

// Server implements a prioritized replay table. Items are sampled with
// replacement with probability proportional to priority^α and the
// oldest item is removed once the table holds MaxSize items. Server is
// safe for concurrent use.
type Server struct {
	mu               sync.Mutex
	features         int
	minSize          int
	maxSize          int
	priorityExponent float64

	// Ring buffer of items, slots index into it
	items []*item
	next  int
	size  int
	slots map[uint64]int

	// Sampling weights per slot. totalWeight is maintained incrementally
	// and recomputed after every len(weights) updates.
	weights     []float64
	totalWeight float64
	updates     int
	sampler     sampleuv.Weighted

	nextKey uint64
	inserts uint64
	samples uint64

	// grown is closed and replaced on every insert to wake waiting
	// samplers
	grown  chan struct{}
	done   chan struct{}
	closed bool
}

// NewServer returns a new, empty Server
func NewServer(c ServerConfig) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newServer: %v", err)
	}

	weights := make([]float64, c.MaxSize)
	src := rand.NewSource(c.Seed)

	return &Server{
		features:         c.Features,
		minSize:          c.MinSize,
		maxSize:          c.MaxSize,
		priorityExponent: c.PriorityExponent,
		items:            make([]*item, c.MaxSize),
		slots:            make(map[uint64]int),
		weights:          weights,
		sampler:          sampleuv.NewWeighted(weights, src),
		grown:            make(chan struct{}),
		done:             make(chan struct{}),
	}, nil
}

// Features returns the number of features in each stored state
func (s *Server) Features() int {
	return s.features
}

// Insert adds a transition with the given priority to the table and
// returns its key
func (s *Server) Insert(t ts.Transition, priority float64) (uint64, error) {
	if t.State == nil || t.NextState == nil {
		return 0, &Error{"insert", fmt.Errorf("transition is missing states")}
	}
	if t.State.Len() != s.features || t.NextState.Len() != s.features {
		return 0, &Error{"insert", fmt.Errorf("states should have %v "+
			"features", s.features)}
	}
	if err := validatePriority(priority); err != nil {
		return 0, &Error{"insert", err}
	}

	state := make([]float64, s.features)
	nextState := make([]float64, s.features)
	for i := 0; i < s.features; i++ {
		state[i] = t.State.AtVec(i)
		nextState[i] = t.NextState.AtVec(i)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &Error{"insert", ErrClosed}
	}

	slot := s.next
	if old := s.items[slot]; old != nil {
		delete(s.slots, old.key)
	} else {
		s.size++
	}

	key := s.nextKey
	s.nextKey++
	s.items[slot] = &item{
		key:       key,
		state:     state,
		action:    t.Action,
		reward:    t.Reward,
		discount:  t.Discount,
		nextState: nextState,
	}
	s.slots[key] = slot
	s.setPriority(slot, priority)

	s.next = (s.next + 1) % s.maxSize
	s.inserts++

	close(s.grown)
	s.grown = make(chan struct{})

	return key, nil
}

// Sample samples n transitions with replacement. If the table holds
// fewer than its minimum size, an error satisfying
// IsInsufficientSamples is returned.
func (s *Server) Sample(n int) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample(n)
}

// Ready returns whether the table holds at least its minimum size, so
// that Sample would not report insufficient samples
func (s *Server) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.size >= s.minSize
}

// SampleWait is like Sample but blocks until the table holds its
// minimum size, the context is done or the server is closed
func (s *Server) SampleWait(ctx context.Context, n int) (Batch, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return Batch{}, &Error{"sampleWait", ErrClosed}
		}
		if s.size >= s.minSize {
			b, err := s.sample(n)
			s.mu.Unlock()
			return b, err
		}
		grown := s.grown
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Batch{}, ctx.Err()
		case <-s.done:
		case <-grown:
		}
	}
}

// sample samples n transitions. The caller must hold the lock.
func (s *Server) sample(n int) (Batch, error) {
	if s.closed {
		return Batch{}, &Error{"sample", ErrClosed}
	}
	if n < 1 || n > MaxBatchSize {
		return Batch{}, &Error{"sample", fmt.Errorf("cannot sample %v items, "+
			"batch size must be in [1, %v]", n, MaxBatchSize)}
	}
	if s.size < s.minSize {
		return Batch{}, &Error{"sample", ErrInsufficientSamples}
	}
	if s.totalWeight <= 0 {
		return Batch{}, &Error{"sample", ErrZeroPriorities}
	}

	b := Batch{
		Keys:          make([]uint64, n),
		Probabilities: make([]float64, n),
		States:        make([]float64, 0, n*s.features),
		Actions:       make([]int, n),
		Rewards:       make([]float64, n),
		Discounts:     make([]float64, n),
		NextStates:    make([]float64, 0, n*s.features),
	}

	for i := 0; i < n; i++ {
		slot, ok := s.sampler.Take()
		if !ok {
			return Batch{}, &Error{"sample", ErrZeroPriorities}
		}
		// Sampling is with replacement
		s.sampler.Reweight(slot, s.weights[slot])

		it := s.items[slot]
		b.Keys[i] = it.key
		b.Probabilities[i] = s.weights[slot] / s.totalWeight
		b.States = append(b.States, it.state...)
		b.Actions[i] = it.action
		b.Rewards[i] = it.reward
		b.Discounts[i] = it.discount
		b.NextStates = append(b.NextStates, it.nextState...)
	}
	s.samples += uint64(n)

	return b, nil
}

// MutatePriorities sets the priorities of the items with the given
// keys. Keys of items that have been removed are ignored.
func (s *Server) MutatePriorities(keys []uint64, priorities []float64) error {
	if len(keys) != len(priorities) {
		return &Error{"mutatePriorities", fmt.Errorf("got %v keys but %v "+
			"priorities", len(keys), len(priorities))}
	}
	for _, p := range priorities {
		if err := validatePriority(p); err != nil {
			return &Error{"mutatePriorities", err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Error{"mutatePriorities", ErrClosed}
	}

	for i, key := range keys {
		if slot, ok := s.slots[key]; ok {
			s.setPriority(slot, priorities[i])
		}
	}
	return nil
}

// setPriority sets the sampling weight of a slot. The caller must hold
// the lock.
func (s *Server) setPriority(slot int, priority float64) {
	w := math.Max(math.Pow(priority, s.priorityExponent), minWeight)

	s.totalWeight += w - s.weights[slot]
	s.weights[slot] = w
	s.sampler.Reweight(slot, w)

	s.updates++
	if s.updates >= len(s.weights) {
		s.totalWeight = 0
		for _, weight := range s.weights {
			s.totalWeight += weight
		}
		s.updates = 0
	}
}

// Info returns the current state of the table
func (s *Server) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Info{
		Size:             s.size,
		MinSize:          s.minSize,
		MaxSize:          s.maxSize,
		Inserts:          s.inserts,
		Samples:          s.samples,
		PriorityExponent: s.priorityExponent,
	}
}

// Close closes the server and wakes any waiting samplers. Close may
// be called more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

func validatePriority(p float64) error {
	if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("illegal priority %v", p)
	}
	return nil
}
