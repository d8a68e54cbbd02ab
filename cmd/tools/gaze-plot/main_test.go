package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/reading.mode/internal/db"
	"github.com/banshee-data/reading.mode/internal/mode"
)

func testPoints() []db.ScorePoint {
	return []db.ScorePoint{
		{StartMs: 1000, Mode: mode.Reading, Scores: mode.Scores{Reading: 10, Skimming: 5}},
		{StartMs: 1250, Mode: mode.Reading, Scores: mode.Scores{Reading: 20, Skimming: 10}},
		{StartMs: 1500, Mode: mode.Reading, Scores: mode.Scores{Reading: 30, Skimming: 15, Scanning: 3}},
	}
}

func TestScoreStats(t *testing.T) {
	mean, sd := scoreStats(testPoints(), mode.Reading)
	assert.InDelta(t, 20, mean, 1e-9)
	assert.InDelta(t, 10, sd, 1e-9)

	mean, _ = scoreStats(testPoints(), mode.Scanning)
	assert.InDelta(t, 1, mean, 1e-9)
}

func TestScorePlotSaves(t *testing.T) {
	p, err := scorePlot("s1", testPoints())
	require.NoError(t, err)
	assert.Equal(t, "Session s1 - Mode Scores", p.Title.Text)
	assert.InDelta(t, 0.5, p.X.Max, 1e-9)

	out := filepath.Join(t.TempDir(), "scores.png")
	require.NoError(t, p.Save(4*vg.Inch, 3*vg.Inch, out))
	assert.FileExists(t, out)
}
