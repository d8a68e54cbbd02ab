package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/session"
)

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Source    string     `json:"source"`
	Fixations int64      `json:"fixations"`
	Switches  int64      `json:"switches"`
}

// TransitionRecord is a stored transition between two fixations.
type TransitionRecord struct {
	FixationID int64                  `json:"fixation_id"`
	TaskID     string                 `json:"task_id,omitempty"`
	Type       saccade.TransitionType `json:"type"`
	DX         float64                `json:"dx"`
	DY         float64                `json:"dy"`
	CharSpaces float64                `json:"char_spaces"`
	LineSpaces float64                `json:"line_spaces"`
	StartMs    float64                `json:"start_ms"`
}

// ModeSwitchRecord is a stored mode switch.
type ModeSwitchRecord struct {
	TaskID      string        `json:"task_id,omitempty"`
	From        mode.Mode     `json:"from"`
	To          mode.Mode     `json:"to"`
	Cause       session.Cause `json:"cause"`
	Scores      mode.Scores   `json:"scores"`
	TimestampMs int64         `json:"timestamp_ms"`
}

// TransitionCount is the number of transitions of one type.
type TransitionCount struct {
	Type  saccade.TransitionType `json:"type"`
	Count int64                  `json:"count"`
}

// ScorePoint is the score vector recorded when a fixation opened.
type ScorePoint struct {
	StartMs float64     `json:"start_ms"`
	Mode    mode.Mode   `json:"mode"`
	Scores  mode.Scores `json:"scores"`
}

// ListSessions returns the most recent sessions first.
func (db *DB) ListSessions(limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT s.session_id, s.started_at, s.ended_at, s.source,
			(SELECT COUNT(*) FROM fixations f WHERE f.session_id = s.session_id),
			(SELECT COUNT(*) FROM mode_switches m WHERE m.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			s       SessionSummary
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &started, &ended, &s.Source, &s.Fixations, &s.Switches); err != nil {
			return nil, err
		}
		s.StartedAt = time.UnixMilli(started).UTC()
		if ended.Valid {
			t := time.UnixMilli(ended.Int64).UTC()
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// LatestSessionID returns the most recently started session.
func (db *DB) LatestSessionID() (string, error) {
	var id string
	err := db.QueryRow(`SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no sessions: %w", ErrNotFound)
	}
	return id, err
}

// SessionTransitions returns a session's transitions in fixation order.
func (db *DB) SessionTransitions(sessionID string) ([]TransitionRecord, error) {
	rows, err := db.Query(`
		SELECT fixation_id, task_id, transition, dx, dy, char_spaces, line_spaces, start_ms
		FROM transitions
		WHERE session_id = ?
		ORDER BY transition_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransitionRecord
	for rows.Next() {
		var (
			r   TransitionRecord
			key string
		)
		if err := rows.Scan(&r.FixationID, &r.TaskID, &key, &r.DX, &r.DY, &r.CharSpaces, &r.LineSpaces, &r.StartMs); err != nil {
			return nil, err
		}
		if r.Type, err = saccade.ParseTransitionType(key); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SessionModeSwitches returns a session's mode switches in time order.
func (db *DB) SessionModeSwitches(sessionID string) ([]ModeSwitchRecord, error) {
	rows, err := db.Query(`
		SELECT task_id, from_mode, to_mode, cause, reading_score, skimming_score, scanning_score, timestamp_ms
		FROM mode_switches
		WHERE session_id = ?
		ORDER BY switch_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ModeSwitchRecord
	for rows.Next() {
		var (
			r        ModeSwitchRecord
			from, to string
			cause    string
		)
		if err := rows.Scan(&r.TaskID, &from, &to, &cause,
			&r.Scores.Reading, &r.Scores.Skimming, &r.Scores.Scanning, &r.TimestampMs); err != nil {
			return nil, err
		}
		if r.From, err = mode.ParseMode(from); err != nil {
			return nil, err
		}
		if r.To, err = mode.ParseMode(to); err != nil {
			return nil, err
		}
		r.Cause = session.Cause(cause)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TransitionCounts returns one count per transition type, in declaration
// order, including zero counts. An empty sessionID counts every session.
func (db *DB) TransitionCounts(sessionID string) ([]TransitionCount, error) {
	query := `SELECT transition, COUNT(*) FROM transitions GROUP BY transition`
	args := []any{}
	if sessionID != "" {
		query = `SELECT transition, COUNT(*) FROM transitions WHERE session_id = ? GROUP BY transition`
		args = append(args, sessionID)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[saccade.TransitionType]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		t, err := saccade.ParseTransitionType(key)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]TransitionCount, 0, len(saccade.AllTransitions))
	for _, t := range saccade.AllTransitions {
		out = append(out, TransitionCount{Type: t, Count: counts[t]})
	}
	return out, nil
}

// ScoreTrajectory returns the score vector at each fixation of a session.
func (db *DB) ScoreTrajectory(sessionID string) ([]ScorePoint, error) {
	rows, err := db.Query(`
		SELECT start_ms, mode, reading_score, skimming_score, scanning_score
		FROM fixations
		WHERE session_id = ?
		ORDER BY fixation_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScorePoint
	for rows.Next() {
		var (
			p ScorePoint
			m string
		)
		if err := rows.Scan(&p.StartMs, &m, &p.Scores.Reading, &p.Scores.Skimming, &p.Scores.Scanning); err != nil {
			return nil, err
		}
		if p.Mode, err = mode.ParseMode(m); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SessionEvents returns a session's event log in insertion order.
func (db *DB) SessionEvents(sessionID string) ([]eventlog.Entry, error) {
	rows, err := db.Query(`
		SELECT timestamp_ms, tag, message FROM event_log
		WHERE session_id = ?
		ORDER BY event_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eventlog.Entry
	for rows.Next() {
		var (
			e   eventlog.Entry
			tag string
		)
		if err := rows.Scan(&e.TimestampMs, &tag, &e.Message); err != nil {
			return nil, err
		}
		if e.Tag, err = eventlog.ParseTag(tag); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SessionCalibrations returns the calibration results stored for a session.
func (db *DB) SessionCalibrations(sessionID string) ([]saccade.Calibration, error) {
	rows, err := db.Query(`
		SELECT boundary, avg_fast, avg_slow, fast_n, slow_n, warning FROM calibrations
		WHERE session_id = ?
		ORDER BY calibration_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []saccade.Calibration
	for rows.Next() {
		var c saccade.Calibration
		if err := rows.Scan(&c.Boundary, &c.AvgFast, &c.AvgSlow, &c.FastN, &c.SlowN, &c.Warning); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
