package saccade

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func calibrate(t *testing.T, fast, slow []float64) Calibration {
	t.Helper()
	c := NewCalibrator(8)

	require.NoError(t, c.BeginPhase(true))
	for _, v := range fast {
		c.Record(v)
	}
	_, err := c.EndPhase()
	require.NoError(t, err)
	assert.False(t, c.Ready())

	require.NoError(t, c.BeginPhase(false))
	for _, v := range slow {
		c.Record(v)
	}
	_, err = c.EndPhase()
	require.NoError(t, err)
	require.True(t, c.Ready())

	res, err := c.ComputeBoundary()
	require.NoError(t, err)
	return res
}

func TestComputeBoundary(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		fast, slow  []float64
		want        float64
		wantWarning bool
	}{
		{"separated speeds", []float64{10, 11, 9}, []float64{5, 6, 7}, 8, false},
		{"exactly one apart", []float64{7}, []float64{6}, 6.5, false},
		{"not separated", []float64{6, 6}, []float64{5.5, 6}, 6.25, true},
		{"fast slower than slow", []float64{3}, []float64{6}, 6.5, true},
		{"no fast samples", nil, []float64{5, 6}, 8, true},
		{"no slow samples", []float64{10}, nil, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := calibrate(t, tt.fast, tt.slow)
			assert.InDelta(t, tt.want, res.Boundary, 1e-9)
			assert.Equal(t, tt.wantWarning, res.Warning != "", "warning: %q", res.Warning)
		})
	}
}

func TestComputeBoundary_Averages(t *testing.T) {
	t.Parallel()
	res := calibrate(t, []float64{10, 11, 9}, []float64{5, 6, 7})
	assert.InDelta(t, 10.0, res.AvgFast, 1e-9)
	assert.InDelta(t, 6.0, res.AvgSlow, 1e-9)
	assert.Equal(t, 3, res.FastN)
	assert.Equal(t, 3, res.SlowN)
}

func TestComputeBoundary_RunsOnce(t *testing.T) {
	t.Parallel()
	c := NewCalibrator(8)
	first, err := c.ComputeBoundary()
	require.NoError(t, err)

	c.Record(100)
	second, err := c.ComputeBoundary()
	assert.True(t, errors.Is(err, ErrAlreadyCalibrated))
	assert.Equal(t, first, second)
	assert.NotNil(t, c.Result())
	assert.False(t, c.Ready())
}

func TestCalibratorPhases(t *testing.T) {
	t.Parallel()
	c := NewCalibrator(8)

	_, err := c.EndPhase()
	assert.ErrorIs(t, err, ErrNoPhaseOpen)

	require.NoError(t, c.BeginPhase(false))
	assert.Equal(t, PhaseSlow, c.Active())
	assert.ErrorIs(t, c.BeginPhase(true), ErrPhaseOpen)

	c.Record(-2)
	c.Record(0)
	c.Record(4)
	p, err := c.EndPhase()
	require.NoError(t, err)
	assert.Equal(t, PhaseSlow, p)

	fast, slow := c.Samples()
	assert.Empty(t, fast)
	assert.Equal(t, []float64{4}, slow)
}
