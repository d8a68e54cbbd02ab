package mode

import (
	"fmt"
	"strings"
)

// Mode is the reading behaviour the detector believes is active.
type Mode int

const (
	Reading Mode = iota
	Skimming
	Scanning
)

// All lists the modes in declaration order.
var All = []Mode{Reading, Skimming, Scanning}

func (m Mode) String() string {
	switch m {
	case Reading:
		return "reading"
	case Skimming:
		return "skimming"
	case Scanning:
		return "scanning"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the lowercase names returned by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reading":
		return Reading, nil
	case "skimming":
		return Skimming, nil
	case "scanning":
		return Scanning, nil
	}
	return Reading, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler so modes encode as names.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scores holds the evidence accumulated for each mode.
type Scores struct {
	Reading  float64 `json:"reading"`
	Skimming float64 `json:"skimming"`
	Scanning float64 `json:"scanning"`
}

// Get returns the score for m.
func (s Scores) Get(m Mode) float64 {
	switch m {
	case Skimming:
		return s.Skimming
	case Scanning:
		return s.Scanning
	default:
		return s.Reading
	}
}

func (s *Scores) set(m Mode, v float64) {
	switch m {
	case Skimming:
		s.Skimming = v
	case Scanning:
		s.Scanning = v
	default:
		s.Reading = v
	}
}

// Add returns s plus d component-wise.
func (s Scores) Add(d Delta) Scores {
	return Scores{
		Reading:  s.Reading + d[Reading],
		Skimming: s.Skimming + d[Skimming],
		Scanning: s.Scanning + d[Scanning],
	}
}

// Scale returns s with every component multiplied by f.
func (s Scores) Scale(f float64) Scores {
	return Scores{Reading: s.Reading * f, Skimming: s.Skimming * f, Scanning: s.Scanning * f}
}

func (s Scores) String() string {
	return fmt.Sprintf("R=%.2f Sk=%.2f Sc=%.2f", s.Reading, s.Skimming, s.Scanning)
}

// Delta is a score change indexed by Mode: reading, skimming, scanning.
type Delta [3]float64
