package saccade

import "fmt"

// TransitionType classifies the displacement between two fixations.
type TransitionType int

const (
	NoTransition TransitionType = iota
	ReadForward
	SkimForward
	LongSkimJump
	ShortRegression
	LongRegression
	ResetJump
	VerticalJump
	UnclassifiedMove
)

// AllTransitions lists every transition type in declaration order.
var AllTransitions = []TransitionType{
	NoTransition, ReadForward, SkimForward, LongSkimJump, ShortRegression,
	LongRegression, ResetJump, VerticalJump, UnclassifiedMove,
}

var transitionKeys = map[TransitionType]string{
	NoTransition:     "no_transition",
	ReadForward:      "read_forward",
	SkimForward:      "skim_forward",
	LongSkimJump:     "long_skim_jump",
	ShortRegression:  "short_regression",
	LongRegression:   "long_regression",
	ResetJump:        "reset_jump",
	VerticalJump:     "vertical_jump",
	UnclassifiedMove: "unclassified_move",
}

// String returns the snake_case key used in logs, the store and the
// score_table section of the tuning file.
func (t TransitionType) String() string {
	if s, ok := transitionKeys[t]; ok {
		return s
	}
	return fmt.Sprintf("transition(%d)", int(t))
}

// ParseTransitionType is the inverse of String.
func ParseTransitionType(s string) (TransitionType, error) {
	for t, k := range transitionKeys {
		if k == s {
			return t, nil
		}
	}
	return NoTransition, fmt.Errorf("unknown transition type %q", s)
}

func (t TransitionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TransitionType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransitionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Forward reports whether t is a rightward reading-direction saccade.
func (t TransitionType) Forward() bool {
	return t == ReadForward || t == SkimForward || t == LongSkimJump
}

// Transition is a classified saccade.
type Transition struct {
	Type TransitionType `json:"type"`
	// CharSpaces and LineSpaces are the displacement normalised by the
	// character width and line height.
	CharSpaces float64 `json:"char_spaces"`
	LineSpaces float64 `json:"line_spaces"`
}

func (t Transition) String() string {
	return fmt.Sprintf("%s cs=%.2f ls=%.2f", t.Type, t.CharSpaces, t.LineSpaces)
}
