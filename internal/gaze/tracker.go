package gaze

import (
	"math"

	"github.com/banshee-data/reading.mode/internal/config"
)

// TrackerConfig holds the fixation extraction parameters.
type TrackerConfig struct {
	NewFixationPx     float64 // max window box width/height to open a fixation
	CurrentFixationPx float64 // candidate box width/height must stay below this to grow
	WindowSize        int     // samples in the point window
}

// DefaultTrackerConfig returns tracker configuration loaded from the
// canonical tuning defaults file. Panics if the file cannot be found.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfigFromTuning(config.MustLoadDefaultConfig())
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded TuningConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	return TrackerConfig{
		NewFixationPx:     cfg.GetNewFixationPx(),
		CurrentFixationPx: cfg.GetCurrentFixationPx(),
		WindowSize:        cfg.GetWindowSize(),
	}
}

// Tracker extracts fixations from a stream of gaze samples.
//
// Tracker is not safe for concurrent use. A session serialises all calls.
type Tracker struct {
	Config TrackerConfig

	window  *PointWindow
	current *Fixation
	last    *Fixation
	lockout int

	// Outliers counts samples ignored while a fixation was open.
	Outliers int64
}

// NewTracker creates a tracker with an empty window.
func NewTracker(cfg TrackerConfig) *Tracker {
	return &Tracker{
		Config: cfg,
		window: NewPointWindow(cfg.WindowSize),
	}
}

// Observe feeds one gaze sample to the tracker. It returns the fixation that
// was opened by this sample, or nil when no new fixation started.
func (t *Tracker) Observe(s Sample) *Fixation {
	// Step 1: a suspended tracker discards samples.
	if t.lockout > 0 {
		t.lockout--
		if t.current != nil {
			t.closeCurrent()
		}
		return nil
	}

	// Step 2: slide the window.
	p := Point{X: s.X, Y: s.Y}
	t.window.Push(p)

	// Step 4: extend, ignore or end the open fixation.
	if t.current != nil {
		if t.acceptable(p) {
			t.current.grow(p, s.TimestampMs)
			return nil
		}

		outlier := false
		t.window.Each(func(q Point) bool {
			outlier = t.acceptable(q)
			return !outlier
		})
		if outlier {
			t.Outliers++
			return nil
		}

		t.closeCurrent()
	}

	// Step 3: open a fixation once the whole window is tight.
	return t.tryOpen(s.TimestampMs)
}

func (t *Tracker) acceptable(p Point) bool {
	c := t.current.Box.Union(p)
	return c.Width() < t.Config.CurrentFixationPx && c.Height() < t.Config.CurrentFixationPx
}

func (t *Tracker) tryOpen(ts float64) *Fixation {
	if !t.window.Full() {
		return nil
	}
	b := t.window.Bounds()
	if b.Width() > t.Config.NewFixationPx || b.Height() > t.Config.NewFixationPx {
		return nil
	}

	f := &Fixation{
		Box:     b,
		StartMs: ts,
		EndMs:   ts,
		Samples: t.window.Len(),
	}
	if t.last != nil {
		from, to := t.last.Center(), b.Center()
		f.Change = &Displacement{X: to.X - from.X, Y: to.Y - from.Y}
	}
	t.current = f
	return f
}

func (t *Tracker) closeCurrent() {
	if t.current == nil {
		panic("gaze: closing a fixation that was never opened")
	}
	t.last = t.current
	t.current = nil
}

// Suspend discards the next ticks samples. The open fixation is closed and
// the chain is broken, so the first fixation after the lockout carries no
// displacement. Used for scroll events, where pixel positions before and
// after are not comparable.
func (t *Tracker) Suspend(ticks int) {
	t.ForceClose(true)
	if ticks > t.lockout {
		t.lockout = ticks
	}
}

// ForceClose ends any open fixation. With breakChain the last fixation and
// the window are also cleared, so no displacement is computed across the
// boundary.
func (t *Tracker) ForceClose(breakChain bool) {
	if t.current != nil {
		t.closeCurrent()
	}
	if breakChain {
		t.last = nil
		t.window.Clear()
	}
}

// Reset returns the tracker to its initial state.
func (t *Tracker) Reset() {
	t.window = NewPointWindow(t.Config.WindowSize)
	t.current = nil
	t.last = nil
	t.lockout = 0
	t.Outliers = 0
}

// Current returns the open fixation, or nil.
func (t *Tracker) Current() *Fixation { return t.current }

// Last returns the most recently closed fixation, or nil.
func (t *Tracker) Last() *Fixation { return t.last }

// Lockout returns the number of samples still to be discarded.
func (t *Tracker) Lockout() int { return t.lockout }

// LockoutTicks converts a sample rate and divisor into a lockout length.
func LockoutTicks(sampleRateHz, divisor float64) int {
	if divisor <= 0 {
		return 0
	}
	return int(math.Floor(sampleRateHz / divisor))
}
