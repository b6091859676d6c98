package replay

import "errors"

// Error implements errors unique to a replay table
type Error struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrInsufficientSamples is returned when sampling a table that
	// holds fewer items than its minimum size
	ErrInsufficientSamples = errors.New("minimum size not yet reached")

	// ErrZeroPriorities is returned when the total sampling weight of
	// a table vanishes. Zero priorities are floored to a small weight,
	// so this only happens if that floor underflows.
	ErrZeroPriorities = errors.New("all priorities are zero")

	// ErrClosed is returned by operations on a closed server or
	// iterator
	ErrClosed = errors.New("replay closed")
)

// IsInsufficientSamples returns whether or not an error reports that
// there are insufficient items in the table to sample from it.
//
// A table has too few items to sample if its current size is less
// than its minimum size.
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, ErrInsufficientSamples)
}

// IsZeroPriorities returns whether or not an error reports that every
// item in the table has zero priority
func IsZeroPriorities(err error) bool {
	return errors.Is(err, ErrZeroPriorities)
}

// IsClosed returns whether or not an error reports a closed replay
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
