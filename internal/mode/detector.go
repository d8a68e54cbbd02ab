package mode

import (
	"math"

	"github.com/banshee-data/reading.mode/internal/config"
	"github.com/banshee-data/reading.mode/internal/monitoring"
	"github.com/banshee-data/reading.mode/internal/saccade"
)

// DetectorConfig holds the score dynamics.
type DetectorConfig struct {
	DecayFactor     float64 // applied to every score once per gaze sample
	HysteresisBonus float64 // margin a challenger must strictly exceed
	MomentumFactor  float64 // multiplier for the winner of a switch

	ScrollScoreDivisor float64 // scanning += |Δpx| / divisor
	ScrollScoreCap     float64 // no scroll evidence once scanning reaches this

	VerticalScanScale   float64 // scanning += min(|ls|*scale, cap) on a vertical jump
	VerticalScanCap     float64
	VerticalReadPenalty float64
	VerticalSkimPenalty float64

	// Table holds the fixed per-transition deltas. VerticalJump is computed
	// from the line-space distance and ignores this table.
	Table map[saccade.TransitionType]Delta
}

// DefaultScoreTable returns the built-in delta table.
func DefaultScoreTable() map[saccade.TransitionType]Delta {
	return map[saccade.TransitionType]Delta{
		saccade.ReadForward:      {10, 5, 0},
		saccade.SkimForward:      {5, 10, 0},
		saccade.LongSkimJump:     {-5, 8, 2},
		saccade.ShortRegression:  {-5, -5, -8},
		saccade.LongRegression:   {-5, -3, -4},
		saccade.ResetJump:        {5, 5, -4},
		saccade.UnclassifiedMove: {0, 0, 0},
		saccade.NoTransition:     {0, 0, 0},
	}
}

// DefaultDetectorConfig returns detector configuration loaded from the
// canonical tuning defaults file. Panics if the file cannot be found.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfigFromTuning(config.MustLoadDefaultConfig())
}

// DetectorConfigFromTuning builds a DetectorConfig from a loaded TuningConfig.
// score_table entries override the built-in table per transition; unknown
// keys are logged and ignored.
func DetectorConfigFromTuning(cfg *config.TuningConfig) DetectorConfig {
	table := DefaultScoreTable()
	for key, d := range cfg.GetScoreTable() {
		tt, err := saccade.ParseTransitionType(key)
		if err != nil || tt == saccade.VerticalJump {
			monitoring.Logf("[mode] ignoring score_table entry %q", key)
			continue
		}
		table[tt] = Delta(d)
	}

	return DetectorConfig{
		DecayFactor:         cfg.GetDecayFactor(),
		HysteresisBonus:     cfg.GetHysteresisBonus(),
		MomentumFactor:      cfg.GetMomentumFactor(),
		ScrollScoreDivisor:  cfg.GetScrollScoreDivisor(),
		ScrollScoreCap:      cfg.GetScrollScoreCap(),
		VerticalScanScale:   cfg.GetVerticalScanScale(),
		VerticalScanCap:     cfg.GetVerticalScanCap(),
		VerticalReadPenalty: cfg.GetVerticalReadPenalty(),
		VerticalSkimPenalty: cfg.GetVerticalSkimPenalty(),
		Table:               table,
	}
}

// challengers lists, per current mode, the order in which the other modes
// are tested for a switch.
var challengers = map[Mode][2]Mode{
	Reading:  {Skimming, Scanning},
	Skimming: {Reading, Scanning},
	Scanning: {Reading, Skimming},
}

// Detector turns classified transitions into a mode decision using
// decaying scores with hysteresis and momentum.
//
// Detector is not safe for concurrent use. A session serialises all calls.
type Detector struct {
	Config DetectorConfig

	scores  Scores
	current Mode
	manual  bool
}

// NewDetector creates a detector in Reading with zero scores.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{Config: cfg, current: Reading}
}

// Mode returns the current mode.
func (d *Detector) Mode() Mode { return d.current }

// Scores returns a copy of the current scores.
func (d *Detector) Scores() Scores { return d.scores }

// Manual reports whether a manual override is active.
func (d *Detector) Manual() bool { return d.manual }

// Decay multiplies every score by the decay factor.
func (d *Detector) Decay() {
	d.scores = d.scores.Scale(d.Config.DecayFactor)
}

// DeltaFor returns the score change for a classified transition.
func (d *Detector) DeltaFor(tr saccade.Transition) Delta {
	if tr.Type == saccade.VerticalJump {
		scan := math.Min(math.Abs(tr.LineSpaces)*d.Config.VerticalScanScale, d.Config.VerticalScanCap)
		return Delta{d.Config.VerticalReadPenalty, d.Config.VerticalSkimPenalty, scan}
	}
	return d.Config.Table[tr.Type]
}

// Update applies a transition to the scores and runs the switch check. It
// returns the new mode and true when the mode changed.
func (d *Detector) Update(tr saccade.Transition) (Mode, bool) {
	d.scores = d.scores.Add(d.DeltaFor(tr))
	return d.evaluate()
}

// Scroll adds scroll evidence to the scanning score and runs the switch
// check. Evidence stops accumulating once scanning reaches the cap.
func (d *Detector) Scroll(deltaPx float64) (Mode, bool) {
	if d.scores.Scanning < d.Config.ScrollScoreCap {
		d.scores = d.scores.Add(Delta{0, 0, math.Abs(deltaPx) / d.Config.ScrollScoreDivisor})
	}
	return d.evaluate()
}

func (d *Detector) evaluate() (Mode, bool) {
	if d.manual {
		return d.current, false
	}

	threshold := d.scores.Get(d.current) + d.Config.HysteresisBonus
	for _, c := range challengers[d.current] {
		if s := d.scores.Get(c); s > threshold {
			d.scores.set(c, s*d.Config.MomentumFactor)
			d.current = c
			return c, true
		}
	}
	return d.current, false
}

// SetManual forces m and disables automatic switching until SetAutomatic.
// Scores keep updating. It reports whether the mode changed.
func (d *Detector) SetManual(m Mode) bool {
	changed := d.current != m
	d.current = m
	d.manual = true
	return changed
}

// SetAutomatic releases a manual override. The current mode is kept until
// the scores unseat it.
func (d *Detector) SetAutomatic() {
	d.manual = false
}

// ResetScores zeroes all scores. The current mode is unchanged.
func (d *Detector) ResetScores() {
	d.scores = Scores{}
}

// Reset zeroes the scores and returns to automatic Reading.
func (d *Detector) Reset() {
	d.scores = Scores{}
	d.current = Reading
	d.manual = false
}
