package db

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/monitoring"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/session"
)

// RecorderBuffer is the number of pending writes a Recorder queues before it
// starts dropping them.
const RecorderBuffer = 1024

// Recorder persists one session's events. Observer callbacks only enqueue;
// Run performs the writes so the gaze pipeline never waits on SQLite.
type Recorder struct {
	DB        *DB
	SessionID string

	writes  chan func(*DB) error
	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder creates the session row and returns a recorder for it.
func NewRecorder(db *DB, sessionID string, startedAt time.Time, source string) (*Recorder, error) {
	if err := db.CreateSession(sessionID, startedAt, source); err != nil {
		return nil, err
	}
	return &Recorder{
		DB:        db,
		SessionID: sessionID,
		writes:    make(chan func(*DB) error, RecorderBuffer),
	}, nil
}

func (r *Recorder) enqueue(write func(*DB) error) {
	select {
	case r.writes <- write:
	default:
		if r.dropped.Add(1) == 1 {
			monitoring.Logf("[db] recorder queue full for session %s, dropping writes", r.SessionID)
		}
	}
}

// Run applies queued writes until ctx is done, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case write := <-r.writes:
			r.apply(write)
		case <-ctx.Done():
			r.Flush()
			return
		}
	}
}

// Flush applies every queued write without blocking for more.
func (r *Recorder) Flush() {
	for {
		select {
		case write := <-r.writes:
			r.apply(write)
		default:
			return
		}
	}
}

func (r *Recorder) apply(write func(*DB) error) {
	if err := write(r.DB); err != nil {
		monitoring.Logf("[db] recorder write failed: %v", err)
		return
	}
	r.written.Add(1)
}

// Stats returns the number of applied and dropped writes.
func (r *Recorder) Stats() (written, dropped int64) {
	return r.written.Load(), r.dropped.Load()
}

// OnGaze is a no-op; raw samples are not stored.
func (r *Recorder) OnGaze(session.GazeEvent) {}

func (r *Recorder) OnFixation(e session.FixationEvent) {
	r.enqueue(func(db *DB) error {
		_, err := db.RecordFixation(e)
		return err
	})
}

func (r *Recorder) OnModeChange(e session.ModeChange) {
	r.enqueue(func(db *DB) error { return db.RecordModeChange(e) })
}

func (r *Recorder) OnCalibration(sessionID string, c saccade.Calibration) {
	r.enqueue(func(db *DB) error { return db.RecordCalibration(sessionID, c) })
}

func (r *Recorder) OnTaskStart(t session.Task) {
	r.enqueue(func(db *DB) error { return db.RecordTask(r.SessionID, t) })
}

func (r *Recorder) OnTaskEnd(t session.Task) {
	r.enqueue(func(db *DB) error { return db.RecordTask(r.SessionID, t) })
}

func (r *Recorder) OnEvent(e eventlog.Entry) {
	r.enqueue(func(db *DB) error { return db.RecordEvent(r.SessionID, e) })
}
