package saccade

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrAlreadyCalibrated is returned when the boundary has already been computed.
var ErrAlreadyCalibrated = errors.New("calibration already computed")

// ErrPhaseOpen is returned when a phase is started while another is open.
var ErrPhaseOpen = errors.New("calibration phase already open")

// ErrNoPhaseOpen is returned when ending a phase that was never started.
var ErrNoPhaseOpen = errors.New("no calibration phase open")

// Phase identifies a calibration text.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseFast       // skim the calibration text
	PhaseSlow       // read the calibration text
)

func (p Phase) String() string {
	switch p {
	case PhaseFast:
		return "fast"
	case PhaseSlow:
		return "slow"
	default:
		return "none"
	}
}

// Calibration is the outcome of ComputeBoundary.
type Calibration struct {
	Boundary float64 `json:"boundary"`
	AvgFast  float64 `json:"avg_fast"`
	AvgSlow  float64 `json:"avg_slow"`
	FastN    int     `json:"fast_n"`
	SlowN    int     `json:"slow_n"`
	// Warning is set when the samples were degenerate and a fallback was used.
	Warning string `json:"warning,omitempty"`
}

// Calibrator collects forward saccade lengths during a fast and a slow
// reading phase and derives a personal read/skim boundary from them.
type Calibrator struct {
	defaultBoundary float64

	active     Phase
	fast, slow []float64
	fastDone   bool
	slowDone   bool
	result     *Calibration
}

// NewCalibrator creates a calibrator that falls back to defaultBoundary.
func NewCalibrator(defaultBoundary float64) *Calibrator {
	return &Calibrator{defaultBoundary: defaultBoundary}
}

// BeginPhase opens a phase. Samples are recorded until EndPhase.
func (c *Calibrator) BeginPhase(fast bool) error {
	if c.active != PhaseNone {
		return fmt.Errorf("%w: %s", ErrPhaseOpen, c.active)
	}
	if fast {
		c.active = PhaseFast
	} else {
		c.active = PhaseSlow
	}
	return nil
}

// EndPhase closes the open phase and returns it.
func (c *Calibrator) EndPhase() (Phase, error) {
	p := c.active
	switch p {
	case PhaseFast:
		c.fastDone = true
	case PhaseSlow:
		c.slowDone = true
	default:
		return PhaseNone, ErrNoPhaseOpen
	}
	c.active = PhaseNone
	return p, nil
}

// Active returns the open phase.
func (c *Calibrator) Active() Phase { return c.active }

// Ready reports whether both phases have completed and the boundary has
// not been computed yet.
func (c *Calibrator) Ready() bool {
	return c.fastDone && c.slowDone && c.result == nil
}

// Record appends a forward saccade length to the open phase. It is a no-op
// when no phase is open or cs is not positive.
func (c *Calibrator) Record(cs float64) {
	if cs <= 0 {
		return
	}
	switch c.active {
	case PhaseFast:
		c.fast = append(c.fast, cs)
	case PhaseSlow:
		c.slow = append(c.slow, cs)
	}
}

// Samples returns copies of the recorded fast and slow sequences.
func (c *Calibrator) Samples() (fast, slow []float64) {
	return append([]float64(nil), c.fast...), append([]float64(nil), c.slow...)
}

// ComputeBoundary derives the boundary from the recorded samples. It runs
// once; later calls return ErrAlreadyCalibrated with the first result.
func (c *Calibrator) ComputeBoundary() (Calibration, error) {
	if c.result != nil {
		return *c.result, ErrAlreadyCalibrated
	}

	res := Calibration{FastN: len(c.fast), SlowN: len(c.slow)}
	switch {
	case len(c.fast) == 0 || len(c.slow) == 0:
		res.Boundary = c.defaultBoundary
		res.Warning = fmt.Sprintf("calibration missing samples (fast=%d slow=%d), using default boundary %.2f",
			len(c.fast), len(c.slow), c.defaultBoundary)
	default:
		res.AvgFast = stat.Mean(c.fast, nil)
		res.AvgSlow = stat.Mean(c.slow, nil)
		if res.AvgSlow+1 <= res.AvgFast {
			res.Boundary = (res.AvgFast + res.AvgSlow) / 2
		} else {
			res.Boundary = res.AvgSlow + 0.5
			res.Warning = fmt.Sprintf("fast (%.2f) and slow (%.2f) averages did not separate, using slow+0.5",
				res.AvgFast, res.AvgSlow)
		}
	}

	c.result = &res
	return res, nil
}

// Result returns the computed calibration, or nil before ComputeBoundary.
func (c *Calibrator) Result() *Calibration { return c.result }
