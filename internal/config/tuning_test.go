package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.CharacterWidth == nil || *cfg.CharacterWidth != 12 {
		t.Errorf("Expected CharacterWidth 12, got %v", cfg.CharacterWidth)
	}
	if cfg.WindowSize == nil || *cfg.WindowSize != 3 {
		t.Errorf("Expected WindowSize 3, got %v", cfg.WindowSize)
	}
	if cfg.TaskTimeout == nil || *cfg.TaskTimeout != "0s" {
		t.Errorf("Expected TaskTimeout '0s', got %v", cfg.TaskTimeout)
	}

	// Test getter methods
	if cfg.GetDecayFactor() != 0.99 {
		t.Errorf("GetDecayFactor() = %f, want 0.99", cfg.GetDecayFactor())
	}
	if cfg.GetHysteresisBonus() != 10 {
		t.Errorf("GetHysteresisBonus() = %f, want 10", cfg.GetHysteresisBonus())
	}
	if cfg.GetMomentumFactor() != 1.3 {
		t.Errorf("GetMomentumFactor() = %f, want 1.3", cfg.GetMomentumFactor())
	}
	if cfg.GetVerticalJumpSuppressChars() != 0 {
		t.Errorf("GetVerticalJumpSuppressChars() = %f, want 0 (disabled)", cfg.GetVerticalJumpSuppressChars())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultTuningConfig() does not validate: %v", err)
	}
}

func TestEmptyTuningConfigGetters(t *testing.T) {
	cfg := EmptyTuningConfig()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"line_height", cfg.GetLineHeight(), 15},
		{"new_fixation_px", cfg.GetNewFixationPx(), 30},
		{"current_fixation_px", cfg.GetCurrentFixationPx(), 50},
		{"sample_rate_hz", cfg.GetSampleRateHz(), 33},
		{"vertical_jump_lines", cfg.GetVerticalJumpLines(), 2.5},
		{"default_skim_boundary", cfg.GetDefaultSkimBoundary(), 8},
		{"skim_forward_max_chars", cfg.GetSkimForwardMaxChars(), 21},
		{"long_skim_max_chars", cfg.GetLongSkimMaxChars(), 66},
		{"short_regression_chars", cfg.GetShortRegressionChars(), 6},
		{"long_regression_chars", cfg.GetLongRegressionChars(), 16},
		{"reset_jump_lines", cfg.GetResetJumpLines(), 0.6},
		{"scroll_score_divisor", cfg.GetScrollScoreDivisor(), 40},
		{"scroll_score_cap", cfg.GetScrollScoreCap(), 90},
		{"scroll_lockout_divisor", cfg.GetScrollLockoutDivisor(), 5},
		{"vertical_scan_scale", cfg.GetVerticalScanScale(), 6},
		{"vertical_scan_cap", cfg.GetVerticalScanCap(), 42},
		{"vertical_read_penalty", cfg.GetVerticalReadPenalty(), -12},
		{"vertical_skim_penalty", cfg.GetVerticalSkimPenalty(), -12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %f, want %f", tt.name, tt.got, tt.want)
			}
		})
	}

	if cfg.GetScoreTable() != nil {
		t.Errorf("GetScoreTable() = %v, want nil", cfg.GetScoreTable())
	}
	if cfg.GetTaskTimeout() != 0 {
		t.Errorf("GetTaskTimeout() = %v, want 0", cfg.GetTaskTimeout())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "character_width": 15,
  "window_size": 4,
  "decay_factor": 0.993,
  "score_table": {"short_regression": [-5, -5, -12]},
  "task_timeout": "90s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetCharacterWidth() != 15 {
		t.Errorf("GetCharacterWidth() = %f, want 15", cfg.GetCharacterWidth())
	}
	if cfg.GetWindowSize() != 4 {
		t.Errorf("GetWindowSize() = %d, want 4", cfg.GetWindowSize())
	}
	if cfg.GetDecayFactor() != 0.993 {
		t.Errorf("GetDecayFactor() = %f, want 0.993", cfg.GetDecayFactor())
	}
	if got := cfg.GetScoreTable()["short_regression"]; got != [3]float64{-5, -5, -12} {
		t.Errorf("score_table[short_regression] = %v, want [-5 -5 -12]", got)
	}
	if cfg.GetTaskTimeout() != 90*time.Second {
		t.Errorf("GetTaskTimeout() = %v, want 90s", cfg.GetTaskTimeout())
	}

	// Unspecified fields keep their defaults
	if cfg.GetLineHeight() != 15 {
		t.Errorf("GetLineHeight() = %f, want default 15", cfg.GetLineHeight())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{not json"), "failed to parse"},
		{"negative window", write("win.json", `{"window_size": 0}`), "window_size"},
		{"decay above one", write("decay.json", `{"decay_factor": 1.5}`), "decay_factor"},
		{"zero char width", write("cw.json", `{"character_width": 0}`), "character_width"},
		{"bad timeout", write("timeout.json", `{"task_timeout": "soon"}`), "task_timeout"},
		{"boundary above skim max", write("bands.json", `{"default_skim_boundary": 30}`), "default_skim_boundary"},
		{"negative suppression", write("sup.json", `{"vertical_jump_suppress_chars": -1}`), "vertical_jump_suppress_chars"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "huge.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(p, big, 0644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := LoadTuningConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetCharacterWidth() != 12 {
		t.Errorf("defaults file character_width = %f, want 12", cfg.GetCharacterWidth())
	}
	if len(cfg.GetScoreTable()) == 0 {
		t.Error("defaults file should carry a score_table")
	}
	if got := cfg.GetScoreTable()["read_forward"]; got != [3]float64{10, 5, 0} {
		t.Errorf("read_forward deltas = %v, want [10 5 0]", got)
	}
}
