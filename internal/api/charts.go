package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// chartSessionID returns the session_id query parameter, defaulting to the
// live session. "all" selects every stored session where that makes sense.
func (s *Server) chartSessionID(r *http.Request) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	return s.sess.ID()
}

func (s *Server) renderPage(w http.ResponseWriter, c components.Charter) {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(c)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// transitionChart renders a bar chart of transition counts.
func (s *Server) transitionChart(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) || !s.requireStore(w) {
		return
	}
	sessionID := s.chartSessionID(r)
	query := sessionID
	if query == "all" {
		query = ""
	}
	counts, err := s.store.TransitionCounts(query)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve transition counts: %v", err))
		return
	}

	x := make([]string, 0, len(counts))
	y := make([]opts.BarData, 0, len(counts))
	for _, c := range counts {
		x = append(x, c.Type.String())
		y = append(y, opts.BarData{Value: c.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Transitions", Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Saccade transitions", Subtitle: "session " + sessionID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("count", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	s.renderPage(w, bar)
}

// scoreChart renders the three mode scores at each fixation of a session.
func (s *Server) scoreChart(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) || !s.requireStore(w) {
		return
	}
	sessionID := s.chartSessionID(r)
	points, err := s.store.ScoreTrajectory(sessionID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve score trajectory: %v", err))
		return
	}
	if len(points) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no fixations recorded for session")
		return
	}

	t0 := points[0].StartMs
	x := make([]string, len(points))
	reading := make([]opts.LineData, len(points))
	skimming := make([]opts.LineData, len(points))
	scanning := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = strconv.FormatFloat((p.StartMs-t0)/1000, 'f', 1, 64)
		reading[i] = opts.LineData{Value: p.Scores.Reading}
		skimming[i] = opts.LineData{Value: p.Scores.Skimming}
		scanning[i] = opts.LineData{Value: p.Scores.Scanning}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mode scores", Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Mode scores per fixation", Subtitle: "session " + sessionID}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).
		AddSeries("reading", reading).
		AddSeries("skimming", skimming).
		AddSeries("scanning", scanning)
	s.renderPage(w, line)
}
