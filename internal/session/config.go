package session

import (
	"time"

	"github.com/banshee-data/reading.mode/internal/config"
	"github.com/banshee-data/reading.mode/internal/gaze"
	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/saccade"
)

// Config bundles the per-component configurations.
type Config struct {
	Tracker    gaze.TrackerConfig
	Classifier saccade.ClassifierConfig
	Detector   mode.DetectorConfig

	// LockoutTicks is the number of samples discarded after a scroll.
	LockoutTicks int
	// TaskTimeout is the default task time limit. Zero disables it.
	TaskTimeout time.Duration
}

// DefaultConfig returns session configuration loaded from the canonical
// tuning defaults file. Panics if the file cannot be found.
func DefaultConfig() Config {
	return ConfigFromTuning(config.MustLoadDefaultConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Tracker:      gaze.TrackerConfigFromTuning(cfg),
		Classifier:   saccade.ClassifierConfigFromTuning(cfg),
		Detector:     mode.DetectorConfigFromTuning(cfg),
		LockoutTicks: gaze.LockoutTicks(cfg.GetSampleRateHz(), cfg.GetScrollLockoutDivisor()),
		TaskTimeout:  cfg.GetTaskTimeout(),
	}
}
