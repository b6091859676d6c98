package replay

import (
	"context"
	"sync"
)

// Sampler samples batches from a replay table, blocking until the
// table can be sampled
type Sampler interface {
	SampleWait(ctx context.Context, n int) (Batch, error)

	// Ready returns whether SampleWait would return without waiting
	// for more items
	Ready() bool
}

type result struct {
	batch Batch
	err   error
}

// Iterator produces batches of a fixed size from a Sampler. With a
// positive prefetch size, a goroutine keeps up to that many batches
// ready ahead of calls to Next.
type Iterator struct {
	sampler   Sampler
	batchSize int

	results chan result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

// NewIterator returns a new Iterator. Close must be called to stop
// the prefetching goroutine.
func NewIterator(sampler Sampler, batchSize, prefetch int) *Iterator {
	it := &Iterator{
		sampler:   sampler,
		batchSize: batchSize,
	}
	if prefetch < 1 {
		return it
	}

	ctx, cancel := context.WithCancel(context.Background())
	it.cancel = cancel
	it.results = make(chan result, prefetch)

	it.wg.Add(1)
	go it.prefetch(ctx)

	return it
}

func (it *Iterator) prefetch(ctx context.Context) {
	defer it.wg.Done()
	defer close(it.results)

	for {
		b, err := it.sampler.SampleWait(ctx, it.batchSize)
		if ctx.Err() != nil {
			return
		}

		select {
		case it.results <- result{b, err}:
		case <-ctx.Done():
			return
		}

		if IsClosed(err) {
			return
		}
	}
}

// Next returns the next batch
func (it *Iterator) Next(ctx context.Context) (Batch, error) {
	if it.results == nil {
		return it.sampler.SampleWait(ctx, it.batchSize)
	}

	select {
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	case r, ok := <-it.results:
		if !ok {
			return Batch{}, &Error{"next", ErrClosed}
		}
		return r.batch, r.err
	}
}

// Ready returns whether a call to Next would return a batch without
// waiting for the table to grow
func (it *Iterator) Ready() bool {
	if it.results != nil && len(it.results) > 0 {
		return true
	}
	return it.sampler.Ready()
}

// BatchSize returns the size of batches produced by the iterator
func (it *Iterator) BatchSize() int {
	return it.batchSize
}

// Close stops prefetching and waits for the prefetching goroutine to
// exit
func (it *Iterator) Close() error {
	it.once.Do(func() {
		if it.cancel != nil {
			it.cancel()
			it.wg.Wait()
		}
	})
	return nil
}
