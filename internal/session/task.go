package session

import (
	"errors"
	"time"

	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/google/uuid"
)

var (
	// ErrNoActiveTask is returned when ending a task while none is running.
	ErrNoActiveTask = errors.New("no active task")
	// ErrTaskActive is returned when starting a task while one is running.
	ErrTaskActive = errors.New("a task is already active")
)

// EndReason records how a task finished.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndForfeit   EndReason = "forfeit"
	EndTimeout   EndReason = "timeout"
)

// Task is one timed reading task within a session.
type Task struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Timeout   time.Duration `json:"timeout"`
	Active    bool          `json:"active"`
	EndReason EndReason     `json:"end_reason,omitempty"`
}

// Elapsed returns the task's running time, up to EndedAt once finished.
func (t Task) Elapsed(now time.Time) time.Duration {
	if !t.Active && !t.EndedAt.IsZero() {
		return t.EndedAt.Sub(t.StartedAt)
	}
	return now.Sub(t.StartedAt)
}

// StartTask begins a task. Scores, the scroll position and the fixation
// chain are reset. A timeout of zero uses the configured default; the task
// then ends with EndTimeout unless it is ended first.
func (s *Session) StartTask(name string, timeout time.Duration) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil && s.task.Active {
		return Task{}, ErrTaskActive
	}
	if timeout <= 0 {
		timeout = s.cfg.TaskTimeout
	}

	s.detector.ResetScores()
	s.scrollOffset = 0
	s.tracker.ForceClose(true)

	s.taskSeq++
	t := &Task{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: s.clock.Now(),
		Timeout:   timeout,
		Active:    true,
	}
	s.task = t
	if timeout > 0 {
		id := t.ID
		s.taskTimer = s.clock.AfterFunc(timeout, func() { s.expireTask(id) })
	}

	s.logf(eventlog.Event, "task %d start %q timeout=%s", s.taskSeq, name, timeout)
	for _, o := range s.taskObs {
		o.OnTaskStart(*t)
	}
	return *t, nil
}

// EndTask finishes the active task with reason (completion or forfeit).
// The open fixation is closed through the same path as scroll lockout.
func (s *Session) EndTask(reason EndReason) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task == nil || !s.task.Active {
		return Task{}, ErrNoActiveTask
	}
	return s.endTaskLocked(reason), nil
}

// ActiveTask returns the running task, if any.
func (s *Session) ActiveTask() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil || !s.task.Active {
		return Task{}, false
	}
	return *s.task, true
}

// expireTask runs on the timer goroutine. A timer that fires after its task
// has ended, or for an older task, does nothing.
func (s *Session) expireTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task == nil || !s.task.Active || s.task.ID != id {
		return
	}
	s.endTaskLocked(EndTimeout)
}

func (s *Session) endTaskLocked(reason EndReason) Task {
	if s.taskTimer != nil {
		s.taskTimer.Stop()
		s.taskTimer = nil
	}
	s.tracker.ForceClose(false)

	t := s.task
	t.Active = false
	t.EndedAt = s.clock.Now()
	t.EndReason = reason

	s.logf(eventlog.Event, "task %d end %q reason=%s elapsed=%s", s.taskSeq, t.Name, reason, t.Elapsed(t.EndedAt))
	for _, o := range s.taskObs {
		o.OnTaskEnd(*t)
	}
	return *t
}

func (s *Session) taskID() string {
	if s.task == nil || !s.task.Active {
		return ""
	}
	return s.task.ID
}
