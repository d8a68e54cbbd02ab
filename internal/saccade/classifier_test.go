package saccade

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/banshee-data/reading.mode/internal/gaze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClassifier() *Classifier {
	return NewClassifier(DefaultClassifierConfig())
}

func disp(x, y float64) *gaze.Displacement {
	return &gaze.Displacement{X: x, Y: y}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	c := testClassifier() // 12px chars, 15px lines, boundary 8

	tests := []struct {
		name string
		d    *gaze.Displacement
		want TransitionType
	}{
		{"nil displacement", nil, NoTransition},
		{"zero displacement", disp(0, 0), UnclassifiedMove},
		{"one char forward", disp(12, 0), ReadForward},
		{"boundary forward", disp(8*12, 0), ReadForward},
		{"just past boundary", disp(8*12+1, 0), SkimForward},
		{"skim max", disp(21*12, 0), SkimForward},
		{"long skim", disp(40*12, 10), LongSkimJump},
		{"long skim max", disp(66*12, 0), LongSkimJump},
		{"beyond long skim", disp(67*12, 0), UnclassifiedMove},
		{"short regression", disp(-3*12, 0), ShortRegression},
		{"short regression edge", disp(-6*12, 0), ShortRegression},
		{"long regression", disp(-10*12, 0), LongRegression},
		{"long regression edge", disp(-16*12, 0), LongRegression},
		{"reset jump", disp(-40*12, 15), ResetJump},
		{"long back on same line", disp(-40*12, 0), UnclassifiedMove},
		{"vertical down", disp(0, 3*15), VerticalJump},
		{"vertical up with forward", disp(50*12, -3*15), VerticalJump},
		{"just under vertical", disp(12, 2.5*15), ReadForward},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.d))
		})
	}
}

func TestClassify_CharacterWidthScaling(t *testing.T) {
	t.Parallel()
	cfg := DefaultClassifierConfig()
	cfg.CharacterWidth = 15
	c := NewClassifier(cfg)

	// 5 character spaces at 15px per character.
	assert.Equal(t, ReadForward, c.Classify(disp(15*5, 0)))
}

func TestClassify_BoundaryContinuity(t *testing.T) {
	t.Parallel()
	c := testClassifier()
	for _, b := range []float64{4, 6.25, 8, 13.5, 21} {
		c.SetBoundary(b)
		px := b * c.Config.CharacterWidth
		assert.Equal(t, ReadForward, c.Classify(disp(px, 0)), "boundary %v", b)
		if b < c.Config.SkimForwardMaxChars {
			assert.Equal(t, SkimForward, c.Classify(disp(px+1e-6, 0)), "boundary %v + eps", b)
		}
	}
}

func TestClassify_PureAndTotal(t *testing.T) {
	t.Parallel()
	c := testClassifier()
	rng := rand.New(rand.NewSource(1))
	valid := map[TransitionType]bool{}
	for _, tt := range AllTransitions {
		valid[tt] = true
	}

	for i := 0; i < 10000; i++ {
		d := disp(rng.Float64()*2000-1000, rng.Float64()*400-200)
		first := c.Classify(d)
		require.True(t, valid[first], "invalid transition %d", first)
		require.Equal(t, first, c.Classify(d), "classification must be repeatable")
	}
	fast, slow := c.Calibrator.Samples()
	assert.Empty(t, fast)
	assert.Empty(t, slow)
}

func TestClassify_VerticalSuppression(t *testing.T) {
	t.Parallel()
	cfg := DefaultClassifierConfig()
	d := disp(40*12, 3*15)

	assert.Equal(t, VerticalJump, NewClassifier(cfg).Classify(d), "disabled by default")

	cfg.VerticalJumpSuppressChars = 34
	c := NewClassifier(cfg)
	assert.Equal(t, UnclassifiedMove, c.Classify(d))
	assert.Equal(t, VerticalJump, c.Classify(disp(10*12, 3*15)))
}

func TestObserve_RecordsDuringCalibration(t *testing.T) {
	t.Parallel()
	c := testClassifier()

	c.Observe(disp(60, 0)) // no phase open
	require.NoError(t, c.Calibrator.BeginPhase(true))
	tr := c.Observe(disp(120, 0))
	assert.Equal(t, SkimForward, tr.Type)
	assert.InDelta(t, 10.0, tr.CharSpaces, 1e-9)
	c.Observe(disp(-36, 0))    // regression, not recorded
	c.Observe(disp(120, 4*15)) // vertical jump, not recorded
	c.Observe(nil)             // first fixation, not recorded
	_, err := c.Calibrator.EndPhase()
	require.NoError(t, err)
	c.Observe(disp(24, 0)) // phase closed

	fast, slow := c.Calibrator.Samples()
	assert.Equal(t, []float64{10}, fast)
	assert.Empty(t, slow)
}

func TestTransitionTypeStrings(t *testing.T) {
	t.Parallel()
	for _, tt := range AllTransitions {
		parsed, err := ParseTransitionType(tt.String())
		require.NoError(t, err)
		assert.Equal(t, tt, parsed)
	}
	_, err := ParseTransitionType("saccade")
	assert.Error(t, err)
	assert.Equal(t, "transition(42)", TransitionType(42).String())
	assert.True(t, LongSkimJump.Forward())
	assert.False(t, ResetJump.Forward())
}

func TestTransitionJSONUsesKeys(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(Transition{Type: ShortRegression, CharSpaces: -3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"short_regression","char_spaces":-3,"line_spaces":0}`, string(b))

	var tr Transition
	assert.Error(t, json.Unmarshal([]byte(`{"type":"sideways"}`), &tr))
}
