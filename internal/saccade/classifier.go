package saccade

import (
	"math"

	"github.com/banshee-data/reading.mode/internal/config"
	"github.com/banshee-data/reading.mode/internal/gaze"
)

// ClassifierConfig holds the saccade band limits. All char limits are in
// character spaces, line limits in line spaces.
type ClassifierConfig struct {
	CharacterWidth float64 // px
	LineHeight     float64 // px

	VerticalJumpLines float64 // |ls| above this is a vertical jump
	// VerticalJumpSuppressChars demotes a vertical jump with |cs| above it
	// to UnclassifiedMove. Zero disables the policy.
	VerticalJumpSuppressChars float64

	DefaultBoundary      float64 // read/skim boundary before calibration
	SkimForwardMaxChars  float64
	LongSkimMaxChars     float64
	ShortRegressionChars float64
	LongRegressionChars  float64
	ResetJumpLines       float64
}

// DefaultClassifierConfig returns classifier configuration loaded from the
// canonical tuning defaults file. Panics if the file cannot be found.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfigFromTuning(config.MustLoadDefaultConfig())
}

// ClassifierConfigFromTuning builds a ClassifierConfig from a loaded TuningConfig.
func ClassifierConfigFromTuning(cfg *config.TuningConfig) ClassifierConfig {
	return ClassifierConfig{
		CharacterWidth:            cfg.GetCharacterWidth(),
		LineHeight:                cfg.GetLineHeight(),
		VerticalJumpLines:         cfg.GetVerticalJumpLines(),
		VerticalJumpSuppressChars: cfg.GetVerticalJumpSuppressChars(),
		DefaultBoundary:           cfg.GetDefaultSkimBoundary(),
		SkimForwardMaxChars:       cfg.GetSkimForwardMaxChars(),
		LongSkimMaxChars:          cfg.GetLongSkimMaxChars(),
		ShortRegressionChars:      cfg.GetShortRegressionChars(),
		LongRegressionChars:       cfg.GetLongRegressionChars(),
		ResetJumpLines:            cfg.GetResetJumpLines(),
	}
}

// Classifier maps fixation displacements to transition types. The only
// mutable state is the read/skim boundary, replaced once by calibration.
type Classifier struct {
	Config     ClassifierConfig
	Calibrator *Calibrator

	boundary float64
}

// NewClassifier creates a classifier using the default boundary.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{
		Config:     cfg,
		Calibrator: NewCalibrator(cfg.DefaultBoundary),
		boundary:   cfg.DefaultBoundary,
	}
}

// Boundary returns the current read/skim boundary in character spaces.
func (c *Classifier) Boundary() float64 { return c.boundary }

// SetBoundary replaces the read/skim boundary.
func (c *Classifier) SetBoundary(b float64) { c.boundary = b }

// Measure normalises a displacement into character and line spaces.
func (c *Classifier) Measure(d gaze.Displacement) (cs, ls float64) {
	return d.X / c.Config.CharacterWidth, d.Y / c.Config.LineHeight
}

// Classify returns the transition type for d. It has no side effects.
// A nil displacement is NoTransition.
func (c *Classifier) Classify(d *gaze.Displacement) TransitionType {
	if d == nil {
		return NoTransition
	}
	cs, ls := c.Measure(*d)
	return c.classify(cs, ls)
}

func (c *Classifier) classify(cs, ls float64) TransitionType {
	cfg := c.Config
	switch {
	case math.Abs(ls) > cfg.VerticalJumpLines:
		if c.suppressed(cs) {
			return UnclassifiedMove
		}
		return VerticalJump
	case cs > 0 && cs <= c.boundary:
		return ReadForward
	case cs > 0 && cs <= cfg.SkimForwardMaxChars:
		return SkimForward
	case cs > 0 && cs <= cfg.LongSkimMaxChars:
		return LongSkimJump
	case cs < 0 && cs >= -cfg.ShortRegressionChars:
		return ShortRegression
	case cs < 0 && cs >= -cfg.LongRegressionChars:
		return LongRegression
	case cs < -cfg.LongRegressionChars && ls > cfg.ResetJumpLines:
		return ResetJump
	default:
		return UnclassifiedMove
	}
}

func (c *Classifier) suppressed(cs float64) bool {
	return c.Config.VerticalJumpSuppressChars > 0 && math.Abs(cs) > c.Config.VerticalJumpSuppressChars
}

// Observe classifies d and, while a calibration phase is open, records
// forward saccades into the calibrator. Vertical jumps are never recorded.
func (c *Classifier) Observe(d *gaze.Displacement) Transition {
	if d == nil {
		return Transition{Type: NoTransition}
	}
	cs, ls := c.Measure(*d)
	tr := Transition{Type: c.classify(cs, ls), CharSpaces: cs, LineSpaces: ls}

	if math.Abs(ls) <= c.Config.VerticalJumpLines && cs > 0 {
		c.Calibrator.Record(cs)
	}
	return tr
}
