package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/reading.mode/internal/db"
	"github.com/banshee-data/reading.mode/internal/eventlog"
	"github.com/banshee-data/reading.mode/internal/gaze"
	"github.com/banshee-data/reading.mode/internal/mode"
	"github.com/banshee-data/reading.mode/internal/saccade"
	"github.com/banshee-data/reading.mode/internal/session"
	"github.com/banshee-data/reading.mode/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	sess   *session.Session
	events []eventlog.Entry
	mux    *http.ServeMux
	store  *db.DB
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	f := &fixture{}
	f.sess = session.New(session.DefaultConfig(),
		session.WithClock(timeutil.NewMockClock(epoch)), session.WithID("api-test"))
	f.sess.AddEventObserver(session.EventFunc(func(e eventlog.Entry) { f.events = append(f.events, e) }))

	var store Store
	if withStore {
		var err error
		f.store, err = db.NewDB(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { f.store.Close() })
		store = f.store
	}
	f.mux = NewServer(f.sess, store).ServeMux()
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) session.State {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st session.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

func TestState(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	st := decodeState(t, f.do(http.MethodGet, "/api/state", ""))
	assert.Equal(t, "api-test", st.ID)
	assert.Equal(t, mode.Reading, st.Mode)
	assert.False(t, st.Manual)
	assert.Equal(t, 8.0, st.Boundary)

	w := f.do(http.MethodPost, "/api/state", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"Method not allowed"}`, w.Body.String())
}

func TestModeOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	st := decodeState(t, f.do(http.MethodPost, "/api/mode", `{"mode":"scanning"}`))
	assert.Equal(t, mode.Scanning, st.Mode)
	assert.True(t, st.Manual)

	st = decodeState(t, f.do(http.MethodPost, "/api/mode", `{"mode":"auto"}`))
	assert.False(t, st.Manual)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/mode", `{"mode":"daydreaming"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/mode", `{`).Code)
}

func TestScrollAndReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	st := decodeState(t, f.do(http.MethodPost, "/api/scroll", `{"position":400}`))
	assert.Equal(t, 10.0, st.Scores.Scanning)
	assert.Equal(t, int64(1), st.Stats.Scrolls)
	assert.Positive(t, st.Lockout)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/scroll", `{}`).Code)

	st = decodeState(t, f.do(http.MethodPost, "/api/scores/reset", ""))
	assert.Equal(t, mode.Scores{}, st.Scores)
}

func TestCalibrationFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/calibration", `{"action":"begin","phase":"fast"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/calibration", `{"action":"begin","phase":"slow"}`).Code)

	// Forward saccades of 10 characters during the fast phase.
	x := 100.0
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			require.NoError(t, f.sess.Observe(gaze.Sample{X: x, Y: 300, Attention: true}))
		}
		x += 120
	}
	w = f.do(http.MethodPost, "/api/calibration", `{"action":"end"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"phase":"none"}`, w.Body.String())

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/calibration", `{"action":"begin","phase":"slow"}`).Code)
	x = 100
	for i := 0; i < 4; i++ {
		for j := 0; j < 3; j++ {
			require.NoError(t, f.sess.Observe(gaze.Sample{X: x, Y: 600, Attention: true}))
		}
		x += 60
	}
	w = f.do(http.MethodPost, "/api/calibration", `{"action":"end"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp calibrationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Calibration)
	assert.InDelta(t, 7.5, resp.Calibration.Boundary, 1e-9)

	w = f.do(http.MethodPost, "/api/calibration", `{"action":"begin","phase":"fast"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), saccade.ErrAlreadyCalibrated.Error())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/calibration", `{"action":"pause"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/calibration", `{"action":"begin","phase":"medium"}`).Code)
}

func TestTasks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/task/start", `{"name":"passage-2","timeout":"2m"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var task session.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "passage-2", task.Name)
	assert.Equal(t, 2*time.Minute, task.Timeout)
	assert.True(t, task.Active)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/task/start", `{"name":"again"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/task/end", `{"reason":"timeout"}`).Code)

	w = f.do(http.MethodPost, "/api/task/end", `{"reason":"forfeit"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, session.EndForfeit, task.EndReason)
	assert.False(t, task.Active)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/task/end", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/task/start", `{"timeout":"soon"}`).Code)
}

func TestAnnotate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/api/annotate", `{"tag":"QUESTION","message":"q4: what did the author imply?"}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotEmpty(t, f.events)
	last := f.events[len(f.events)-1]
	assert.Equal(t, eventlog.Question, last.Tag)
	assert.Equal(t, "q4: what did the author imply?", last.Message)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/annotate", `{"tag":"MODE_SWITCH","message":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/annotate", `{"tag":"NOPE","message":"x"}`).Code)
}

func TestStoreRoutesDisabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	for _, target := range []string{"/api/sessions", "/api/sessions/x/transitions", "/charts/scores"} {
		assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, target, "").Code, target)
	}
}

func TestStoreRoutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	rec, err := db.NewRecorder(f.store, f.sess.ID(), f.sess.StartedAt(), "test")
	require.NoError(t, err)
	f.sess.AddObserver(rec)

	for _, x := range []float64{100, 160, 400} {
		for j := 0; j < 3; j++ {
			require.NoError(t, f.sess.Observe(gaze.Sample{X: x, Y: 200, Attention: true}))
		}
	}
	f.sess.Scroll(3000)
	rec.Flush()

	w := f.do(http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []db.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(3), sessions[0].Fixations)

	w = f.do(http.MethodGet, "/api/sessions/api-test/transitions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var transitions []db.TransitionRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &transitions))
	require.Len(t, transitions, 2)
	assert.Equal(t, saccade.ReadForward, transitions[0].Type)
	assert.Equal(t, saccade.SkimForward, transitions[1].Type)
	assert.Contains(t, w.Body.String(), `"type":"read_forward"`)

	w = f.do(http.MethodGet, "/api/sessions/api-test/switches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cause":"scroll"`)

	w = f.do(http.MethodGet, "/api/sessions/unknown/transitions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/sessions?limit=0", "").Code)

	w = f.do(http.MethodGet, "/charts/transitions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Saccade transitions")

	w = f.do(http.MethodGet, "/charts/scores", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mode scores per fixation")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/charts/scores?session_id=nobody", "").Code)
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	h := LoggingMiddleware(f.mux)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(404), colorBoldRed)
	assert.Equal(t, "100", statusCodeColor(100))
}
