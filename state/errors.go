package state

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTimeRange = errors.New("please enter start and end time")
	ErrInvalidTimeRange = errors.New("start time must be before end time")
)

// ParseError reports a fragment that cannot be turned into a query state.
// Callers treat it as "nothing to execute".
type ParseError struct {
	Fragment string
	Reason   string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse state: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse state: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reason identifies which validation rule rejected a state.
type Reason int

const (
	TooManyBuckets Reason = iota + 1
	MissingDimensions
)

func (r Reason) String() string {
	switch r {
	case TooManyBuckets:
		return "too_many_buckets"
	case MissingDimensions:
		return "missing_dimensions"
	}
	return "unknown"
}

// ValidationError is returned by Validate. Buckets is set for TooManyBuckets.
type ValidationError struct {
	Reason  Reason
	Buckets float64
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case TooManyBuckets:
		return fmt.Sprintf("Too many data points to return %v, please increase window granularity.", e.Buckets)
	case MissingDimensions:
		return "Please specify dimensions for samples"
	}
	return "invalid query"
}
