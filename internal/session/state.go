package session

import (
	"time"

	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/saccade"
)

// State is a point-in-time copy of the session for inspection.
type State struct {
	ID          string               `json:"id"`
	StartedAt   time.Time            `json:"started_at"`
	Mode        mode.Mode            `json:"mode"`
	Manual      bool                 `json:"manual"`
	Scores      mode.Scores          `json:"scores"`
	Boundary    float64              `json:"boundary"`
	Calibration *saccade.Calibration `json:"calibration,omitempty"`
	Phase       string               `json:"calibration_phase"`
	Lockout     int                  `json:"lockout"`
	Task        *Task                `json:"task,omitempty"`
	Stats       Stats                `json:"stats"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:        s.id,
		StartedAt: s.startedAt,
		Mode:      s.detector.Mode(),
		Manual:    s.detector.Manual(),
		Scores:    s.detector.Scores(),
		Boundary:  s.classifier.Boundary(),
		Phase:     s.classifier.Calibrator.Active().String(),
		Lockout:   s.tracker.Lockout(),
		Stats:     s.stats,
	}
	if c := s.classifier.Calibrator.Result(); c != nil {
		cp := *c
		st.Calibration = &cp
	}
	if s.task != nil {
		t := *s.task
		st.Task = &t
	}
	return st
}

// Mode returns the current mode.
func (s *Session) Mode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.Mode()
}

// Scores returns the current scores.
func (s *Session) Scores() mode.Scores {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detector.Scores()
}
