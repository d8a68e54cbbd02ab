package gaze

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedSample is returned for samples with missing or non-finite
// coordinates. Rejected samples never mutate tracker state.
var ErrMalformedSample = errors.New("malformed gaze sample")

// Sample is a single gaze point reported by the eye tracker.
type Sample struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	TimestampMs float64 `json:"timestamp"`
	// Attention is false when the tracker reports that no gaze was detected
	// (the Tobii bridge then sends 0,0). Such samples carry no position.
	Attention bool `json:"attention"`
}

// Validate reports ErrMalformedSample when any coordinate is NaN or infinite.
func (s Sample) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"x", s.X},
		{"y", s.Y},
		{"timestamp", s.TimestampMs},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite (%v)", ErrMalformedSample, f.name, f.v)
		}
	}
	return nil
}

func (s Sample) String() string {
	return fmt.Sprintf("(%.1f, %.1f) @%.0fms", s.X, s.Y, s.TimestampMs)
}
