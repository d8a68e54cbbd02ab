package session

import (
	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/gaze"
	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/saccade"
)

// GazeEvent is emitted for every accepted gaze sample.
type GazeEvent struct {
	SessionID string      `json:"session_id"`
	Sample    gaze.Sample `json:"sample"`
	Mode      mode.Mode   `json:"mode"`
	// Suspended is true while scroll lockout discards samples.
	Suspended bool `json:"suspended"`
}

// FixationEvent is emitted when a new fixation opens.
type FixationEvent struct {
	SessionID  string             `json:"session_id"`
	TaskID     string             `json:"task_id,omitempty"`
	Fixation   gaze.Fixation      `json:"fixation"`
	Transition saccade.Transition `json:"transition"`
	Scores     mode.Scores        `json:"scores"`
	Mode       mode.Mode          `json:"mode"`
}

// Cause names what triggered a mode change.
type Cause string

const (
	CauseTransition Cause = "transition"
	CauseScroll     Cause = "scroll"
	CauseManual     Cause = "manual"
)

// ModeChange is emitted whenever the current mode changes.
type ModeChange struct {
	SessionID   string      `json:"session_id"`
	TaskID      string      `json:"task_id,omitempty"`
	From        mode.Mode   `json:"from"`
	To          mode.Mode   `json:"to"`
	Cause       Cause       `json:"cause"`
	Scores      mode.Scores `json:"scores"`
	TimestampMs int64       `json:"timestamp_ms"`
}

// Observer receives pipeline events.
type Observer interface {
	OnGaze(GazeEvent)
	OnFixation(FixationEvent)
	OnModeChange(ModeChange)
}

// CalibrationObserver is optionally implemented by observers that want the
// calibration result.
type CalibrationObserver interface {
	OnCalibration(sessionID string, c saccade.Calibration)
}

// TaskObserver is optionally implemented by observers that track tasks.
type TaskObserver interface {
	OnTaskStart(Task)
	OnTaskEnd(Task)
}

// EventObserver receives every tagged log entry.
type EventObserver interface {
	OnEvent(eventlog.Entry)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Gaze     func(GazeEvent)
	Fixation func(FixationEvent)
	Mode     func(ModeChange)
}

func (f ObserverFuncs) OnGaze(e GazeEvent) {
	if f.Gaze != nil {
		f.Gaze(e)
	}
}

func (f ObserverFuncs) OnFixation(e FixationEvent) {
	if f.Fixation != nil {
		f.Fixation(e)
	}
}

func (f ObserverFuncs) OnModeChange(e ModeChange) {
	if f.Mode != nil {
		f.Mode(e)
	}
}

// EventFunc adapts a function to EventObserver.
type EventFunc func(eventlog.Entry)

func (f EventFunc) OnEvent(e eventlog.Entry) { f(e) }
