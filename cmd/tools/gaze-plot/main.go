// Command gaze-plot renders the mode score trajectory of a recorded
// session to a PNG.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/reading.mode/internal/db"
	"github.com/banshee-data/reading.mode/internal/mode"
)

func main() {
	dbPath := flag.String("db", "gaze_sessions.db", "path to sqlite DB file")
	sessionID := flag.String("session", "", "session to plot (defaults to the most recent)")
	out := flag.String("out", "", "output PNG (defaults to scores_<session>.png)")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("DB path %s not accessible: %v", *dbPath, err)
	}
	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	id := *sessionID
	if id == "" {
		if id, err = store.LatestSessionID(); err != nil {
			log.Fatalf("no session to plot: %v", err)
		}
	}
	points, err := store.ScoreTrajectory(id)
	if err != nil {
		log.Fatalf("failed to load scores: %v", err)
	}
	if len(points) == 0 {
		log.Fatalf("session %s has no fixations", id)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("scores_%s.png", id)
	}
	p, err := scorePlot(id, points)
	if err != nil {
		log.Fatalf("failed to build plot: %v", err)
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}

	for _, m := range mode.All {
		mean, sd := scoreStats(points, m)
		log.Printf("%-8s mean=%.1f sd=%.1f", m, mean, sd)
	}
	log.Printf("wrote %d fixations to %s", len(points), path)
}

var modeColors = map[mode.Mode]color.Color{
	mode.Reading:  color.RGBA{R: 31, G: 119, B: 180, A: 255},
	mode.Skimming: color.RGBA{R: 255, G: 127, B: 14, A: 255},
	mode.Scanning: color.RGBA{R: 44, G: 160, B: 44, A: 255},
}

// scorePlot draws one line per mode against seconds since the first
// fixation.
func scorePlot(sessionID string, points []db.ScorePoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session %s - Mode Scores", sessionID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Score"

	t0 := points[0].StartMs
	for _, m := range mode.All {
		xys := make(plotter.XYs, len(points))
		for i, pt := range points {
			xys[i] = plotter.XY{X: (pt.StartMs - t0) / 1000, Y: pt.Scores.Get(m)}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		line.Color = modeColors[m]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(m.String(), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// scoreStats returns the mean and standard deviation of m's score.
func scoreStats(points []db.ScorePoint, m mode.Mode) (mean, sd float64) {
	vals := make([]float64, len(points))
	for i, pt := range points {
		vals[i] = pt.Scores.Get(m)
	}
	return stat.MeanStdDev(vals, nil)
}
