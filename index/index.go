package index

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/lsh"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotFitted is returned when a query runs before the data was loaded.
	ErrNotFitted = errors.New("index has not been fitted")

	// ErrAlreadyFitted is returned when data is loaded into an index twice.
	ErrAlreadyFitted = errors.New("index has already been fitted")
)

// ErrVectorTooLong is returned when a vector exceeds the configured dimension.
type ErrVectorTooLong = lsh.ErrVectorTooLong

// ErrConfig is a named error type for invalid or inconsistent configuration.
type ErrConfig struct {
	Param  string // Offending parameter or derived quantity
	Value  any    // Offending value
	Reason string
}

// Error returns the error message for the configuration error.
func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Param, e.Value, e.Reason)
}

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the position of the point in the fitted dataset.
	ID uint32

	// Vector is the stored point.
	Vector bitvec.Vector

	// Distance is the exact Hamming distance between the query and the point.
	Distance int
}

// Stats describes bucket occupancy of one or more stores.
type Stats struct {
	// Points is the number of vectors offered for insertion.
	Points int

	// Stored is the number of band insertions that landed in a bucket.
	Stored int

	// Dropped is the number of band insertions lost to full buckets.
	Dropped int

	// Buckets is the number of buckets across all stores.
	Buckets int

	// NonEmptyBuckets is the number of buckets holding at least one point.
	NonEmptyBuckets int

	// MaxOccupancy is the largest bucket size observed.
	MaxOccupancy int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Points += o.Points
	s.Stored += o.Stored
	s.Dropped += o.Dropped
	s.Buckets += o.Buckets
	s.NonEmptyBuckets += o.NonEmptyBuckets
	s.MaxOccupancy = max(s.MaxOccupancy, o.MaxOccupancy)
}
