package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/session"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

func unixMs(t time.Time) int64 { return t.UnixMilli() }

func nullableMs(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// CreateSession inserts a session row. Recreating an existing session is a
// no-op.
func (db *DB) CreateSession(id string, startedAt time.Time, source string) error {
	_, err := db.Exec(
		`INSERT OR IGNORE INTO sessions (session_id, started_at, source) VALUES (?, ?, ?)`,
		id, unixMs(startedAt), source,
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", id, err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(id string, endedAt time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`, unixMs(endedAt), id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordTask inserts or updates a task row.
func (db *DB) RecordTask(sessionID string, t session.Task) error {
	_, err := db.Exec(
		`INSERT INTO tasks (task_id, session_id, name, started_at, ended_at, timeout_ms, end_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			ended_at = excluded.ended_at,
			end_reason = excluded.end_reason`,
		t.ID, sessionID, t.Name, unixMs(t.StartedAt), nullableMs(t.EndedAt),
		t.Timeout.Milliseconds(), sql.NullString{String: string(t.EndReason), Valid: t.EndReason != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to record task %s: %w", t.ID, err)
	}
	return nil
}

// RecordCalibration stores a calibration result.
func (db *DB) RecordCalibration(sessionID string, c saccade.Calibration) error {
	_, err := db.Exec(
		`INSERT INTO calibrations (session_id, boundary, avg_fast, avg_slow, fast_n, slow_n, warning)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, c.Boundary, c.AvgFast, c.AvgSlow, c.FastN, c.SlowN, c.Warning,
	)
	if err != nil {
		return fmt.Errorf("failed to record calibration: %w", err)
	}
	return nil
}

// RecordFixation stores a fixation and, when it follows an earlier one, the
// classified transition into it. It returns the fixation's row ID.
func (db *DB) RecordFixation(e session.FixationEvent) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	f := e.Fixation
	c := f.Center()
	res, err := tx.Exec(
		`INSERT INTO fixations (
			session_id, task_id, start_ms, center_x, center_y, min_x, max_x, min_y, max_y,
			mode, reading_score, skimming_score, scanning_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.TaskID, f.StartMs, c.X, c.Y, f.MinX, f.MaxX, f.MinY, f.MaxY,
		e.Mode.String(), e.Scores.Reading, e.Scores.Skimming, e.Scores.Scanning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fixation: %w", err)
	}
	fixationID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if f.Change != nil {
		_, err = tx.Exec(
			`INSERT INTO transitions (
				session_id, task_id, fixation_id, transition, dx, dy, char_spaces, line_spaces, start_ms
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.SessionID, e.TaskID, fixationID, e.Transition.Type.String(), f.Change.X, f.Change.Y,
			e.Transition.CharSpaces, e.Transition.LineSpaces, f.StartMs,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return fixationID, nil
}

// RecordModeChange stores a mode switch.
func (db *DB) RecordModeChange(e session.ModeChange) error {
	_, err := db.Exec(
		`INSERT INTO mode_switches (
			session_id, task_id, from_mode, to_mode, cause,
			reading_score, skimming_score, scanning_score, timestamp_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.TaskID, e.From.String(), e.To.String(), string(e.Cause),
		e.Scores.Reading, e.Scores.Skimming, e.Scores.Scanning, e.TimestampMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record mode change: %w", err)
	}
	return nil
}

// RecordEvent stores one tagged event log entry.
func (db *DB) RecordEvent(sessionID string, e eventlog.Entry) error {
	_, err := db.Exec(
		`INSERT INTO event_log (session_id, timestamp_ms, tag, message) VALUES (?, ?, ?, ?)`,
		sessionID, e.TimestampMs, e.Tag.String(), e.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}
