package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for detector tuning.
// The schema matches the /api/config endpoint so the same JSON can be used
// for both startup configuration and inspection at runtime.
//
// Every field is optional. Omitted fields fall back to the defaults returned
// by the Get* accessors, so partial files are safe.
type TuningConfig struct {
	// Screen geometry
	CharacterWidth *float64 `json:"character_width,omitempty"` // px per average character
	LineHeight     *float64 `json:"line_height,omitempty"`     // px per text line

	// Fixation tracker
	NewFixationPx     *float64 `json:"new_fixation_px,omitempty"`
	CurrentFixationPx *float64 `json:"current_fixation_px,omitempty"`
	WindowSize        *int     `json:"window_size,omitempty"`
	SampleRateHz      *float64 `json:"sample_rate_hz,omitempty"`

	// Saccade classifier
	VerticalJumpLines         *float64 `json:"vertical_jump_lines,omitempty"`
	VerticalJumpSuppressChars *float64 `json:"vertical_jump_suppress_chars,omitempty"` // 0 disables
	DefaultSkimBoundary       *float64 `json:"default_skim_boundary,omitempty"`
	SkimForwardMaxChars       *float64 `json:"skim_forward_max_chars,omitempty"`
	LongSkimMaxChars          *float64 `json:"long_skim_max_chars,omitempty"`
	ShortRegressionChars      *float64 `json:"short_regression_chars,omitempty"`
	LongRegressionChars       *float64 `json:"long_regression_chars,omitempty"`
	ResetJumpLines            *float64 `json:"reset_jump_lines,omitempty"`

	// Mode detector
	DecayFactor          *float64 `json:"decay_factor,omitempty"`
	HysteresisBonus      *float64 `json:"hysteresis_bonus,omitempty"`
	MomentumFactor       *float64 `json:"momentum_factor,omitempty"`
	ScrollScoreDivisor   *float64 `json:"scroll_score_divisor,omitempty"`
	ScrollScoreCap       *float64 `json:"scroll_score_cap,omitempty"`
	ScrollLockoutDivisor *float64 `json:"scroll_lockout_divisor,omitempty"`
	VerticalScanScale    *float64 `json:"vertical_scan_scale,omitempty"`
	VerticalScanCap      *float64 `json:"vertical_scan_cap,omitempty"`
	VerticalReadPenalty  *float64 `json:"vertical_read_penalty,omitempty"`
	VerticalSkimPenalty  *float64 `json:"vertical_skim_penalty,omitempty"`

	// ScoreTable overrides the per-transition [reading, skimming, scanning]
	// deltas. Keys are transition names such as "read_forward".
	ScoreTable map[string][3]float64 `json:"score_table,omitempty"`

	// Session
	TaskTimeout *string `json:"task_timeout,omitempty"` // duration string like "90s", "0s" disables
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults. It is what the service uses when no file is given.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		CharacterWidth:            ptrFloat64(e.GetCharacterWidth()),
		LineHeight:                ptrFloat64(e.GetLineHeight()),
		NewFixationPx:             ptrFloat64(e.GetNewFixationPx()),
		CurrentFixationPx:         ptrFloat64(e.GetCurrentFixationPx()),
		WindowSize:                ptrInt(e.GetWindowSize()),
		SampleRateHz:              ptrFloat64(e.GetSampleRateHz()),
		VerticalJumpLines:         ptrFloat64(e.GetVerticalJumpLines()),
		VerticalJumpSuppressChars: ptrFloat64(e.GetVerticalJumpSuppressChars()),
		DefaultSkimBoundary:       ptrFloat64(e.GetDefaultSkimBoundary()),
		SkimForwardMaxChars:       ptrFloat64(e.GetSkimForwardMaxChars()),
		LongSkimMaxChars:          ptrFloat64(e.GetLongSkimMaxChars()),
		ShortRegressionChars:      ptrFloat64(e.GetShortRegressionChars()),
		LongRegressionChars:       ptrFloat64(e.GetLongRegressionChars()),
		ResetJumpLines:            ptrFloat64(e.GetResetJumpLines()),
		DecayFactor:               ptrFloat64(e.GetDecayFactor()),
		HysteresisBonus:           ptrFloat64(e.GetHysteresisBonus()),
		MomentumFactor:            ptrFloat64(e.GetMomentumFactor()),
		ScrollScoreDivisor:        ptrFloat64(e.GetScrollScoreDivisor()),
		ScrollScoreCap:            ptrFloat64(e.GetScrollScoreCap()),
		ScrollLockoutDivisor:      ptrFloat64(e.GetScrollLockoutDivisor()),
		VerticalScanScale:         ptrFloat64(e.GetVerticalScanScale()),
		VerticalScanCap:           ptrFloat64(e.GetVerticalScanCap()),
		VerticalReadPenalty:       ptrFloat64(e.GetVerticalReadPenalty()),
		VerticalSkimPenalty:       ptrFloat64(e.GetVerticalSkimPenalty()),
		TaskTimeout:               ptrString("0s"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/tools/<tool>/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	positive := []struct {
		name string
		v    *float64
	}{
		{"character_width", c.CharacterWidth},
		{"line_height", c.LineHeight},
		{"new_fixation_px", c.NewFixationPx},
		{"current_fixation_px", c.CurrentFixationPx},
		{"sample_rate_hz", c.SampleRateHz},
		{"vertical_jump_lines", c.VerticalJumpLines},
		{"default_skim_boundary", c.DefaultSkimBoundary},
		{"scroll_score_divisor", c.ScrollScoreDivisor},
		{"scroll_lockout_divisor", c.ScrollLockoutDivisor},
		{"momentum_factor", c.MomentumFactor},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", p.name, *p.v)
		}
	}

	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}

	if c.DecayFactor != nil {
		if *c.DecayFactor <= 0 || *c.DecayFactor > 1 {
			return fmt.Errorf("decay_factor must be in (0, 1], got %f", *c.DecayFactor)
		}
	}

	if c.HysteresisBonus != nil && *c.HysteresisBonus < 0 {
		return fmt.Errorf("hysteresis_bonus must be non-negative, got %f", *c.HysteresisBonus)
	}

	if c.VerticalJumpSuppressChars != nil && *c.VerticalJumpSuppressChars < 0 {
		return fmt.Errorf("vertical_jump_suppress_chars must be non-negative, got %f", *c.VerticalJumpSuppressChars)
	}

	// The classifier bands must nest: boundary <= skim max <= long skim max.
	if c.GetDefaultSkimBoundary() > c.GetSkimForwardMaxChars() {
		return fmt.Errorf("default_skim_boundary (%f) exceeds skim_forward_max_chars (%f)",
			c.GetDefaultSkimBoundary(), c.GetSkimForwardMaxChars())
	}
	if c.GetSkimForwardMaxChars() > c.GetLongSkimMaxChars() {
		return fmt.Errorf("skim_forward_max_chars (%f) exceeds long_skim_max_chars (%f)",
			c.GetSkimForwardMaxChars(), c.GetLongSkimMaxChars())
	}
	if c.GetShortRegressionChars() > c.GetLongRegressionChars() {
		return fmt.Errorf("short_regression_chars (%f) exceeds long_regression_chars (%f)",
			c.GetShortRegressionChars(), c.GetLongRegressionChars())
	}

	if c.TaskTimeout != nil && *c.TaskTimeout != "" {
		d, err := time.ParseDuration(*c.TaskTimeout)
		if err != nil {
			return fmt.Errorf("invalid task_timeout '%s': %w", *c.TaskTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("task_timeout must be non-negative, got %s", d)
		}
	}

	return nil
}

// GetCharacterWidth returns the character_width value or the default.
func (c *TuningConfig) GetCharacterWidth() float64 {
	if c.CharacterWidth == nil {
		return 12.0
	}
	return *c.CharacterWidth
}

// GetLineHeight returns the line_height value or the default.
func (c *TuningConfig) GetLineHeight() float64 {
	if c.LineHeight == nil {
		return 15.0
	}
	return *c.LineHeight
}

// GetNewFixationPx returns the new_fixation_px value or the default.
func (c *TuningConfig) GetNewFixationPx() float64 {
	if c.NewFixationPx == nil {
		return 30.0
	}
	return *c.NewFixationPx
}

// GetCurrentFixationPx returns the current_fixation_px value or the default.
func (c *TuningConfig) GetCurrentFixationPx() float64 {
	if c.CurrentFixationPx == nil {
		return 50.0
	}
	return *c.CurrentFixationPx
}

// GetWindowSize returns the window_size value or the default.
// At ~33 Hz a window of 3 samples spans roughly 90 ms.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 3
	}
	return *c.WindowSize
}

// GetSampleRateHz returns the sample_rate_hz value or the default.
func (c *TuningConfig) GetSampleRateHz() float64 {
	if c.SampleRateHz == nil {
		return 33.0
	}
	return *c.SampleRateHz
}

// GetVerticalJumpLines returns the vertical_jump_lines value or the default.
func (c *TuningConfig) GetVerticalJumpLines() float64 {
	if c.VerticalJumpLines == nil {
		return 2.5
	}
	return *c.VerticalJumpLines
}

// GetVerticalJumpSuppressChars returns the vertical_jump_suppress_chars value
// or the default (0, suppression disabled).
func (c *TuningConfig) GetVerticalJumpSuppressChars() float64 {
	if c.VerticalJumpSuppressChars == nil {
		return 0
	}
	return *c.VerticalJumpSuppressChars
}

// GetDefaultSkimBoundary returns the default_skim_boundary value or the default.
func (c *TuningConfig) GetDefaultSkimBoundary() float64 {
	if c.DefaultSkimBoundary == nil {
		return 8.0
	}
	return *c.DefaultSkimBoundary
}

// GetSkimForwardMaxChars returns the skim_forward_max_chars value or the default.
func (c *TuningConfig) GetSkimForwardMaxChars() float64 {
	if c.SkimForwardMaxChars == nil {
		return 21.0
	}
	return *c.SkimForwardMaxChars
}

// GetLongSkimMaxChars returns the long_skim_max_chars value or the default.
func (c *TuningConfig) GetLongSkimMaxChars() float64 {
	if c.LongSkimMaxChars == nil {
		return 66.0
	}
	return *c.LongSkimMaxChars
}

// GetShortRegressionChars returns the short_regression_chars value or the default.
func (c *TuningConfig) GetShortRegressionChars() float64 {
	if c.ShortRegressionChars == nil {
		return 6.0
	}
	return *c.ShortRegressionChars
}

// GetLongRegressionChars returns the long_regression_chars value or the default.
func (c *TuningConfig) GetLongRegressionChars() float64 {
	if c.LongRegressionChars == nil {
		return 16.0
	}
	return *c.LongRegressionChars
}

// GetResetJumpLines returns the reset_jump_lines value or the default.
func (c *TuningConfig) GetResetJumpLines() float64 {
	if c.ResetJumpLines == nil {
		return 0.6
	}
	return *c.ResetJumpLines
}

// GetDecayFactor returns the decay_factor value or the default.
// 0.99 per sample at 33 Hz loses about 28% of a score per second.
func (c *TuningConfig) GetDecayFactor() float64 {
	if c.DecayFactor == nil {
		return 0.99
	}
	return *c.DecayFactor
}

// GetHysteresisBonus returns the hysteresis_bonus value or the default.
func (c *TuningConfig) GetHysteresisBonus() float64 {
	if c.HysteresisBonus == nil {
		return 10.0
	}
	return *c.HysteresisBonus
}

// GetMomentumFactor returns the momentum_factor value or the default.
func (c *TuningConfig) GetMomentumFactor() float64 {
	if c.MomentumFactor == nil {
		return 1.3
	}
	return *c.MomentumFactor
}

// GetScrollScoreDivisor returns the scroll_score_divisor value or the default.
func (c *TuningConfig) GetScrollScoreDivisor() float64 {
	if c.ScrollScoreDivisor == nil {
		return 40.0
	}
	return *c.ScrollScoreDivisor
}

// GetScrollScoreCap returns the scroll_score_cap value or the default.
func (c *TuningConfig) GetScrollScoreCap() float64 {
	if c.ScrollScoreCap == nil {
		return 90.0
	}
	return *c.ScrollScoreCap
}

// GetScrollLockoutDivisor returns the scroll_lockout_divisor value or the default.
func (c *TuningConfig) GetScrollLockoutDivisor() float64 {
	if c.ScrollLockoutDivisor == nil {
		return 5.0
	}
	return *c.ScrollLockoutDivisor
}

// GetVerticalScanScale returns the vertical_scan_scale value or the default.
func (c *TuningConfig) GetVerticalScanScale() float64 {
	if c.VerticalScanScale == nil {
		return 6.0
	}
	return *c.VerticalScanScale
}

// GetVerticalScanCap returns the vertical_scan_cap value or the default.
func (c *TuningConfig) GetVerticalScanCap() float64 {
	if c.VerticalScanCap == nil {
		return 42.0
	}
	return *c.VerticalScanCap
}

// GetVerticalReadPenalty returns the vertical_read_penalty value or the default.
func (c *TuningConfig) GetVerticalReadPenalty() float64 {
	if c.VerticalReadPenalty == nil {
		return -12.0
	}
	return *c.VerticalReadPenalty
}

// GetVerticalSkimPenalty returns the vertical_skim_penalty value or the default.
func (c *TuningConfig) GetVerticalSkimPenalty() float64 {
	if c.VerticalSkimPenalty == nil {
		return -12.0
	}
	return *c.VerticalSkimPenalty
}

// GetScoreTable returns the score_table overrides (may be nil).
func (c *TuningConfig) GetScoreTable() map[string][3]float64 {
	return c.ScoreTable
}

// GetTaskTimeout parses and returns the TaskTimeout as a time.Duration.
// Zero means tasks never time out.
func (c *TuningConfig) GetTaskTimeout() time.Duration {
	if c.TaskTimeout == nil || *c.TaskTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.TaskTimeout)
	if err != nil {
		return 0 // default on parse error
	}
	return d
}
