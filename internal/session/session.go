package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/gaze"
	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/monitoring"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/timeutil"
	"github.com/google/uuid"
)

// ErrInvalidAnnotation is returned by Annotate for tags reserved for the
// pipeline itself.
var ErrInvalidAnnotation = errors.New("tag cannot be used for annotations")

// Stats counts inputs by outcome.
type Stats struct {
	Samples   int64 `json:"samples"`   // accepted gaze samples
	NoGaze    int64 `json:"no_gaze"`   // samples with attention=false
	Malformed int64 `json:"malformed"` // rejected lines and samples
	Suspended int64 `json:"suspended"` // samples discarded by scroll lockout
	Fixations int64 `json:"fixations"`
	Switches  int64 `json:"switches"`
	Scrolls   int64 `json:"scrolls"`
}

// Session is one participant's detector state.
type Session struct {
	mu sync.Mutex

	id        string
	clock     timeutil.Clock
	cfg       Config
	startedAt time.Time

	tracker    *gaze.Tracker
	classifier *saccade.Classifier
	detector   *mode.Detector

	observers    []Observer
	calibObs     []CalibrationObserver
	taskObs      []TaskObserver
	eventObs     []EventObserver
	scrollOffset float64

	task      *Task
	taskTimer timeutil.Timer
	taskSeq   int

	stats Stats
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for timestamps and task timers.
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithID sets the session ID. By default a random UUID is used.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New creates a session in automatic Reading mode with zero scores.
func New(cfg Config, opts ...Option) *Session {
	s := &Session{
		clock:      timeutil.RealClock{},
		cfg:        cfg,
		tracker:    gaze.NewTracker(cfg.Tracker),
		classifier: saccade.NewClassifier(cfg.Classifier),
		detector:   mode.NewDetector(cfg.Detector),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.startedAt = s.clock.Now()
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Config returns the configuration the session was created with.
func (s *Session) Config() Config { return s.cfg }

// AddObserver registers o. Observers that also implement
// CalibrationObserver, TaskObserver or EventObserver receive those events too.
func (s *Session) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
	if c, ok := o.(CalibrationObserver); ok {
		s.calibObs = append(s.calibObs, c)
	}
	if t, ok := o.(TaskObserver); ok {
		s.taskObs = append(s.taskObs, t)
	}
	if e, ok := o.(EventObserver); ok {
		s.eventObs = append(s.eventObs, e)
	}
}

// AddEventObserver registers a sink for tagged log entries only.
func (s *Session) AddEventObserver(o EventObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventObs = append(s.eventObs, o)
}

// HandleLine parses one feed line and dispatches it. Malformed input is
// logged as a warning and returned without touching detector state.
func (s *Session) HandleLine(line string) error {
	msg, err := gaze.ParseMessage(line)
	if err != nil {
		s.mu.Lock()
		s.stats.Malformed++
		s.logf(eventlog.Warning, "rejected input: %v", err)
		s.mu.Unlock()
		return err
	}

	switch msg.Kind {
	case gaze.MessageScroll:
		s.Scroll(msg.ScrollPosition)
		return nil
	default:
		return s.Observe(msg.Sample)
	}
}

// Observe runs one gaze sample through the pipeline.
func (s *Session) Observe(sample gaze.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sample.Validate(); err != nil {
		s.stats.Malformed++
		s.logf(eventlog.Warning, "rejected sample: %v", err)
		return err
	}
	if !sample.Attention {
		s.stats.NoGaze++
		return nil
	}
	s.stats.Samples++

	// Step 1: scores decay once per sample whether or not a fixation opens.
	s.detector.Decay()

	// Step 2: fixation extraction.
	suspended := s.tracker.Lockout() > 0
	if suspended {
		s.stats.Suspended++
	}
	fix := s.tracker.Observe(sample)

	ge := GazeEvent{SessionID: s.id, Sample: sample, Mode: s.detector.Mode(), Suspended: suspended}
	for _, o := range s.observers {
		o.OnGaze(ge)
	}
	if fix == nil {
		return nil
	}
	s.stats.Fixations++

	// Step 3: classify the saccade into this fixation.
	tr := s.classifier.Observe(fix.Change)
	s.logf(eventlog.Fixation, "%s", fix)
	if tr.Type != saccade.NoTransition {
		s.logf(eventlog.Saccade, "%s", tr)
	}

	// Step 4: update scores and run the switch check.
	from := s.detector.Mode()
	to, switched := s.detector.Update(tr)

	fe := FixationEvent{
		SessionID:  s.id,
		TaskID:     s.taskID(),
		Fixation:   *fix,
		Transition: tr,
		Scores:     s.detector.Scores(),
		Mode:       to,
	}
	for _, o := range s.observers {
		o.OnFixation(fe)
	}

	if switched {
		s.emitModeChange(from, to, CauseTransition)
	}
	return nil
}

// Scroll handles an absolute document scroll position. The delta from the
// previous position feeds the scanning score and suspends fixation
// tracking for the configured number of samples. The position starts at
// zero for every session and task.
func (s *Session) Scroll(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := position - s.scrollOffset
	s.scrollOffset = position
	if delta == 0 {
		return
	}
	s.stats.Scrolls++
	s.logf(eventlog.Scroll, "position=%.0f delta=%.0f", position, delta)

	from := s.detector.Mode()
	to, switched := s.detector.Scroll(delta)
	s.tracker.Suspend(s.cfg.LockoutTicks)
	if switched {
		s.emitModeChange(from, to, CauseScroll)
	}
}

// SetManualMode forces m and disables automatic switching.
func (s *Session) SetManualMode(m mode.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.detector.Mode()
	s.logf(eventlog.Event, "manual mode %s", m)
	if s.detector.SetManual(m) {
		s.emitModeChange(from, m, CauseManual)
	}
}

// SetAutomaticMode releases a manual override.
func (s *Session) SetAutomaticMode() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.detector.Manual() {
		return
	}
	s.detector.SetAutomatic()
	s.logf(eventlog.Event, "automatic mode")
}

// ResetScores zeroes the detector scores.
func (s *Session) ResetScores() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detector.ResetScores()
	s.logf(eventlog.Event, "scores reset")
}

// BeginCalibrationPhase opens the fast (skim) or slow (read) phase.
func (s *Session) BeginCalibrationPhase(fast bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.classifier.Calibrator.Result() != nil {
		return saccade.ErrAlreadyCalibrated
	}
	if err := s.classifier.Calibrator.BeginPhase(fast); err != nil {
		return err
	}
	s.logf(eventlog.Event, "calibration %s phase start", s.classifier.Calibrator.Active())
	return nil
}

// EndCalibrationPhase closes the open phase. Once both phases have been
// completed the boundary is computed, installed in the classifier and
// returned; otherwise the result is nil.
func (s *Session) EndCalibrationPhase() (*saccade.Calibration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cal := s.classifier.Calibrator
	phase, err := cal.EndPhase()
	if err != nil {
		return nil, err
	}
	fast, slow := cal.Samples()
	s.logf(eventlog.Event, "calibration %s phase end (fast=%d slow=%d)", phase, len(fast), len(slow))

	if !cal.Ready() {
		return nil, nil
	}
	res, err := cal.ComputeBoundary()
	if err != nil {
		return nil, fmt.Errorf("compute boundary: %w", err)
	}
	if res.Warning != "" {
		s.logf(eventlog.Warning, "%s", res.Warning)
	}
	s.classifier.SetBoundary(res.Boundary)
	s.logf(eventlog.Event, "calibration boundary=%.2f avg_fast=%.2f avg_slow=%.2f", res.Boundary, res.AvgFast, res.AvgSlow)

	for _, o := range s.calibObs {
		o.OnCalibration(s.id, res)
	}
	return &res, nil
}

// Annotate writes an experiment-flow line (question answers, page turns,
// file names, free-form events) into the session log.
func (s *Session) Annotate(tag eventlog.Tag, message string) error {
	switch tag {
	case eventlog.Question, eventlog.Page, eventlog.Filename, eventlog.Event:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidAnnotation, tag)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logf(tag, "%s", message)
	return nil
}

func (s *Session) emitModeChange(from, to mode.Mode, cause Cause) {
	s.stats.Switches++
	s.logf(eventlog.ModeSwitch, "%s -> %s (%s) %s", from, to, cause, s.detector.Scores())

	mc := ModeChange{
		SessionID:   s.id,
		TaskID:      s.taskID(),
		From:        from,
		To:          to,
		Cause:       cause,
		Scores:      s.detector.Scores(),
		TimestampMs: s.clock.Now().UnixMilli(),
	}
	for _, o := range s.observers {
		o.OnModeChange(mc)
	}
}

// logf emits a tagged log entry. Callers hold s.mu.
func (s *Session) logf(tag eventlog.Tag, format string, args ...interface{}) {
	e := eventlog.Entry{
		TimestampMs: s.clock.Now().UnixMilli(),
		Tag:         tag,
		Message:     fmt.Sprintf(format, args...),
	}
	if tag == eventlog.Warning {
		monitoring.Logf("[session %s] warning: %s", s.id, e.Message)
	}
	for _, o := range s.eventObs {
		o.OnEvent(e)
	}
}
