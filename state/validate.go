package state

import "github.com/gigapi/gigapi-explorer/core"

// MaxBuckets caps the number of time windows a timeline may request.
const MaxBuckets = 1000

// Validate rejects obviously bad states before any network use.
// Rules run in order and stop at the first failure.
func Validate(s *QueryState) error {
	if s.Display == core.DisplayTimeline && s.Window > 0 {
		rangeSeconds := float64(s.End-s.Start) / 1000
		buckets := rangeSeconds / float64(s.Window)
		if buckets > MaxBuckets {
			return &ValidationError{Reason: TooManyBuckets, Buckets: buckets}
		}
	}

	if s.Display == core.DisplaySamples && len(s.Keys) == 0 {
		return &ValidationError{Reason: MissingDimensions}
	}

	return nil
}

// CheckTimeRange enforces that both ends of the range are set and ordered.
func CheckTimeRange(s *QueryState) error {
	if s.Start == 0 || s.End == 0 {
		return ErrMissingTimeRange
	}
	if s.Start >= s.End {
		return ErrInvalidTimeRange
	}
	return nil
}
