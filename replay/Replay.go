// Package replay implements a prioritized replay table together with
// the adder, client and iterator used to write to and read from it
package replay

import (
	"fmt"

	env "github.com/samuelfneumann/godqn/environment"
)

// Config describes a prioritized n-step replay
type Config struct {
	NStep            int
	BatchSize        int
	MinReplaySize    int
	MaxReplaySize    int
	PriorityExponent float64
	Discount         float64
	PrefetchSize     int
	Seed             uint64
}

// Replay bundles the handles of a single replay table
type Replay struct {
	Server   *Server
	Client   Client
	Adder    *NStepAdder
	Iterator *Iterator
}

// MakePrioritizedNStepReplay creates a prioritized replay table for
// n-step transitions of the given environment, along with an adder
// writing to it, a client and an iterator producing batches.
//
// The table cannot be sampled until it holds MinReplaySize items. A
// MinReplaySize below 1 is treated as 1.
func MakePrioritizedNStepReplay(spec env.EnvironmentSpec,
	c Config) (*Replay, error) {
	minSize := c.MinReplaySize
	if minSize < 1 {
		minSize = 1
	}

	server, err := NewServer(ServerConfig{
		Features:         spec.Features(),
		MinSize:          minSize,
		MaxSize:          c.MaxReplaySize,
		PriorityExponent: c.PriorityExponent,
		Seed:             c.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("makePrioritizedNStepReplay: %v", err)
	}

	r, err := MakeNStepReplay(NewTable(server), c)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("makePrioritizedNStepReplay: %v", err)
	}
	r.Server = server
	return r, nil
}

// MakeNStepReplay creates an n-step adder and an iterator on an
// existing table. The returned Replay has a nil Server and does not
// own the table: closing it only stops the iterator.
//
// Only the NStep, BatchSize, Discount and PrefetchSize fields of c are
// used. The capacity bounds and priority exponent belong to whoever
// created the table.
func MakeNStepReplay(table Table, c Config) (*Replay, error) {
	if table == nil {
		return nil, fmt.Errorf("makeNStepReplay: table cannot be nil")
	}
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return nil, fmt.Errorf("makeNStepReplay: batch size must be in "+
			"[1, %v] but got %v", MaxBatchSize, c.BatchSize)
	}
	if c.PrefetchSize < 0 {
		return nil, fmt.Errorf("makeNStepReplay: prefetch size "+
			"must be non-negative but got %v", c.PrefetchSize)
	}

	adder, err := NewNStepAdder(table, c.NStep, c.Discount)
	if err != nil {
		return nil, fmt.Errorf("makeNStepReplay: %v", err)
	}

	return &Replay{
		Client:   table,
		Adder:    adder,
		Iterator: NewIterator(table, c.BatchSize, c.PrefetchSize),
	}, nil
}

// Close stops the iterator and closes the server, if the replay owns
// one
func (r *Replay) Close() error {
	// Closing the server first wakes a prefetcher waiting on it
	if r.Server != nil {
		if err := r.Server.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return r.Iterator.Close()
}
