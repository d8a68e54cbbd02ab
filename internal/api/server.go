// Package api serves the HTTP control surface for a reading session: state,
// manual overrides, calibration, tasks, annotations and stored-session
// queries and charts.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/reading.mode/internal/db"
	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/monitoring"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/session"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 * 1024

// Controller is the live session the API drives.
type Controller interface {
	ID() string
	Snapshot() session.State
	Scroll(position float64)
	SetManualMode(mode.Mode)
	SetAutomaticMode()
	ResetScores()
	BeginCalibrationPhase(fast bool) error
	EndCalibrationPhase() (*saccade.Calibration, error)
	StartTask(name string, timeout time.Duration) (session.Task, error)
	EndTask(reason session.EndReason) (session.Task, error)
	Annotate(tag eventlog.Tag, message string) error
}

// Store is the read side of the session database.
type Store interface {
	ListSessions(limit int) ([]db.SessionSummary, error)
	SessionTransitions(sessionID string) ([]db.TransitionRecord, error)
	SessionModeSwitches(sessionID string) ([]db.ModeSwitchRecord, error)
	TransitionCounts(sessionID string) ([]db.TransitionCount, error)
	ScoreTrajectory(sessionID string) ([]db.ScorePoint, error)
}

type Server struct {
	sess  Controller
	store Store
}

// NewServer creates a server. store may be nil when persistence is disabled;
// the session history routes then return 503.
func NewServer(sess Controller, store Store) *Server {
	return &Server{sess: sess, store: store}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lrw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lrw.ResponseWriter
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/mode", s.setMode)
	mux.HandleFunc("/api/scroll", s.scroll)
	mux.HandleFunc("/api/scores/reset", s.resetScores)
	mux.HandleFunc("/api/calibration", s.calibration)
	mux.HandleFunc("/api/task/start", s.startTask)
	mux.HandleFunc("/api/task/end", s.endTask)
	mux.HandleFunc("/api/annotate", s.annotate)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}/transitions", s.sessionTransitions)
	mux.HandleFunc("/api/sessions/{id}/switches", s.sessionSwitches)
	mux.HandleFunc("/charts/transitions", s.transitionChart)
	mux.HandleFunc("/charts/scores", s.scoreChart)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("[api] failed to write response: %v", err)
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// errorStatus maps session errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, saccade.ErrAlreadyCalibrated),
		errors.Is(err, saccade.ErrPhaseOpen),
		errors.Is(err, saccade.ErrNoPhaseOpen),
		errors.Is(err, session.ErrTaskActive),
		errors.Is(err, session.ErrNoActiveTask):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidAnnotation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, s.sess.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode"`
}

// setMode forces a mode, or returns to automatic detection with "auto".
func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req modeRequest
	if err := decode(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Mode == "auto" {
		s.sess.SetAutomaticMode()
		s.writeJSON(w, s.sess.Snapshot())
		return
	}
	m, err := mode.ParseMode(req.Mode)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sess.SetManualMode(m)
	s.writeJSON(w, s.sess.Snapshot())
}

type scrollRequest struct {
	Position *float64 `json:"position"`
}

func (s *Server) scroll(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req scrollRequest
	if err := decode(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Position == nil {
		s.writeJSONError(w, http.StatusBadRequest, "missing 'position'")
		return
	}
	s.sess.Scroll(*req.Position)
	s.writeJSON(w, s.sess.Snapshot())
}

func (s *Server) resetScores(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.sess.ResetScores()
	s.writeJSON(w, s.sess.Snapshot())
}

type calibrationRequest struct {
	Action string `json:"action"` // "begin" or "end"
	Phase  string `json:"phase"`  // "fast" or "slow", for begin
}

type calibrationResponse struct {
	Phase       string               `json:"phase"`
	Calibration *saccade.Calibration `json:"calibration,omitempty"`
}

func (s *Server) calibration(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req calibrationRequest
	if err := decode(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Action {
	case "begin":
		var fast bool
		switch req.Phase {
		case "fast":
			fast = true
		case "slow":
		default:
			s.writeJSONError(w, http.StatusBadRequest, "phase must be 'fast' or 'slow'")
			return
		}
		if err := s.sess.BeginCalibrationPhase(fast); err != nil {
			s.writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		s.writeJSON(w, calibrationResponse{Phase: req.Phase})
	case "end":
		cal, err := s.sess.EndCalibrationPhase()
		if err != nil {
			s.writeJSONError(w, errorStatus(err), err.Error())
			return
		}
		s.writeJSON(w, calibrationResponse{Phase: saccade.PhaseNone.String(), Calibration: cal})
	default:
		s.writeJSONError(w, http.StatusBadRequest, "action must be 'begin' or 'end'")
	}
}

type startTaskRequest struct {
	Name    string `json:"name"`
	Timeout string `json:"timeout"` // Go duration; empty uses the configured default
}

func (s *Server) startTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req startTaskRequest
	if err := decode(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	var timeout time.Duration
	if req.Timeout != "" {
		d, err := time.ParseDuration(req.Timeout)
		if err != nil || d < 0 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'timeout' parameter")
			return
		}
		timeout = d
	}
	task, err := s.sess.StartTask(req.Name, timeout)
	if err != nil {
		s.writeJSONError(w, errorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, task)
}

type endTaskRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) endTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req endTaskRequest
	if err := decode(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	reason := session.EndReason(req.Reason)
	switch reason {
	case "":
		reason = session.EndCompleted
	case session.EndCompleted, session.EndForfeit:
	default:
		s.writeJSONError(w, http.StatusBadRequest, "reason must be 'completed' or 'forfeit'")
		return
	}
	task, err := s.sess.EndTask(reason)
	if err != nil {
		s.writeJSONError(w, errorStatus(err), err.Error())
		return
	}
	s.writeJSON(w, task)
}

type annotateRequest struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func (s *Server) annotate(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req annotateRequest
	if err := decode(r, &req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	tag, err := eventlog.ParseTag(req.Tag)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sess.Annotate(tag, req.Message); err != nil {
		s.writeJSONError(w, errorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "session store disabled")
		return false
	}
	return true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) || !s.requireStore(w) {
		return
	}
	limit := 100 // default value
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	sessions, err := s.store.ListSessions(limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []db.SessionSummary{}
	}
	s.writeJSON(w, sessions)
}

func (s *Server) sessionTransitions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) || !s.requireStore(w) {
		return
	}
	transitions, err := s.store.SessionTransitions(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve transitions: %v", err))
		return
	}
	if transitions == nil {
		transitions = []db.TransitionRecord{}
	}
	s.writeJSON(w, transitions)
}

func (s *Server) sessionSwitches(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) || !s.requireStore(w) {
		return
	}
	switches, err := s.store.SessionModeSwitches(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve mode switches: %v", err))
		return
	}
	if switches == nil {
		switches = []db.ModeSwitchRecord{}
	}
	s.writeJSON(w, switches)
}
