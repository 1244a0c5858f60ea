package hamlsh

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hamlsh/index"
	"github.com/hupe1980/hamlsh/internal/resource"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrNotFitted is returned when a query runs before Fit completed.
	ErrNotFitted = errors.New("index has not been fitted")

	// ErrAlreadyFitted is returned when Fit is called on a loaded index.
	ErrAlreadyFitted = errors.New("index has already been fitted")

	// ErrMutuallyExclusive is returned when two options that exclude each
	// other are both supplied.
	ErrMutuallyExclusive = errors.New("mutually exclusive options")

	// ErrMissingOption is returned when neither of two alternative required
	// options is supplied.
	ErrMissingOption = errors.New("missing required option")

	// ErrRateLimited is returned by KNeighbours when the query rate limit is
	// exhausted and WithQueryRejection is set.
	ErrRateLimited = errors.New("query rate limit exceeded")

	// ErrMemoryLimitExceeded is returned when bucket memory exceeds the
	// configured limit during Fit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ErrConfig indicates an invalid or inconsistent configuration, including
// derived parameters that fall outside their usable range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrConfig struct {
	Param  string
	Value  any
	Reason string
	cause  error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Param, e.Value, e.Reason)
}

func (e *ErrConfig) Unwrap() error { return e.cause }

// ErrVectorTooLong indicates a vector longer than the index dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrVectorTooLong struct {
	Dimension int
	Length    int
	cause     error
}

func (e *ErrVectorTooLong) Error() string {
	return fmt.Sprintf("vector too long: length %d exceeds dimension %d", e.Length, e.Dimension)
}

func (e *ErrVectorTooLong) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var ce *index.ErrConfig
	if errors.As(err, &ce) {
		return &ErrConfig{Param: ce.Param, Value: ce.Value, Reason: ce.Reason, cause: err}
	}
	var tl *index.ErrVectorTooLong
	if errors.As(err, &tl) {
		return &ErrVectorTooLong{Dimension: tl.Dimension, Length: tl.Length, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, index.ErrNotFitted) {
		return fmt.Errorf("%w: %w", ErrNotFitted, err)
	}
	if errors.Is(err, index.ErrAlreadyFitted) {
		return fmt.Errorf("%w: %w", ErrAlreadyFitted, err)
	}

	return err
}
