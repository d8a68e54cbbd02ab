package gaze

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownMessage is returned for well-formed JSON with an unrecognised id.
var ErrUnknownMessage = errors.New("unknown message type")

// MessageKind identifies what a feed line carried.
type MessageKind int

const (
	MessageGaze MessageKind = iota
	MessageScroll
)

func (k MessageKind) String() string {
	switch k {
	case MessageGaze:
		return "gaze"
	case MessageScroll:
		return "scroll"
	default:
		return "unknown"
	}
}

// Message ids used by the tracker bridge and the front end.
const (
	MessageIDGaze   = "gaze_data"
	MessageIDScroll = "scroll"
)

// Message is one decoded feed line.
type Message struct {
	Kind   MessageKind
	Sample Sample
	// ScrollPosition is the absolute document scroll offset in pixels.
	ScrollPosition float64
}

// wireMessage mirrors the bridge JSON. Pointer fields let us tell a missing
// coordinate apart from a legitimate zero.
type wireMessage struct {
	ID        string   `json:"id"`
	Attention *bool    `json:"attention"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Timestamp *float64 `json:"timestamp"`
	Position  *float64 `json:"position"`
}

// ParseMessage decodes a single line from a gaze feed. Two encodings are
// accepted:
//
//	{"id":"gaze_data","attention":true,"x":1532.9,"y":263.7,"timestamp":183474646.6}
//	{"id":"scroll","position":1200}
//	1532.9,263.7,183474646.6
//
// The CSV form is used by recorded fixture files.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Message{}, fmt.Errorf("%w: empty line", ErrMalformedSample)
	}

	if strings.HasPrefix(line, "{") {
		return parseJSONMessage(line)
	}
	return parseCSVMessage(line)
}

func parseJSONMessage(line string) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return Message{}, fmt.Errorf("%w: failed to unmarshal JSON: %v", ErrMalformedSample, err)
	}

	switch w.ID {
	case MessageIDGaze, "":
		if w.X == nil || w.Y == nil || w.Timestamp == nil {
			return Message{}, fmt.Errorf("%w: missing x, y or timestamp", ErrMalformedSample)
		}
		s := Sample{X: *w.X, Y: *w.Y, TimestampMs: *w.Timestamp, Attention: true}
		if w.Attention != nil {
			s.Attention = *w.Attention
		}
		if err := s.Validate(); err != nil {
			return Message{}, err
		}
		return Message{Kind: MessageGaze, Sample: s}, nil

	case MessageIDScroll:
		if w.Position == nil {
			return Message{}, fmt.Errorf("%w: scroll message without position", ErrMalformedSample)
		}
		return Message{Kind: MessageScroll, ScrollPosition: *w.Position}, nil

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, w.ID)
	}
}

func parseCSVMessage(line string) (Message, error) {
	segments := strings.Split(line, ",")
	if len(segments) != 3 {
		return Message{}, fmt.Errorf("%w: invalid payload format: %s, expected 3 segments", ErrMalformedSample, line)
	}

	var vals [3]float64
	for i, name := range []string{"x", "y", "timestamp"} {
		v, err := strconv.ParseFloat(strings.TrimSpace(segments[i]), 64)
		if err != nil {
			return Message{}, fmt.Errorf("%w: failed to parse %s: %v", ErrMalformedSample, name, err)
		}
		vals[i] = v
	}

	s := Sample{X: vals[0], Y: vals[1], TimestampMs: vals[2], Attention: true}
	if err := s.Validate(); err != nil {
		return Message{}, err
	}
	return Message{Kind: MessageGaze, Sample: s}, nil
}
