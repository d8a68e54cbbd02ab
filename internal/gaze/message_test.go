package gaze

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Message
		wantErr error
	}{
		{
			name: "bridge gaze datagram",
			line: `{"id":"gaze_data","attention":true,"x":1532.9,"y":263.7,"timestamp":183474646.6}`,
			want: Message{Kind: MessageGaze, Sample: Sample{X: 1532.9, Y: 263.7, TimestampMs: 183474646.6, Attention: true}},
		},
		{
			name: "no attention",
			line: `{"id":"gaze_data","attention":false,"x":0,"y":0,"timestamp":10}`,
			want: Message{Kind: MessageGaze, Sample: Sample{TimestampMs: 10}},
		},
		{
			name: "attention defaults to true",
			line: `{"id":"gaze_data","x":5,"y":6,"timestamp":7}`,
			want: Message{Kind: MessageGaze, Sample: Sample{X: 5, Y: 6, TimestampMs: 7, Attention: true}},
		},
		{
			name: "scroll",
			line: `{"id":"scroll","position":1200}`,
			want: Message{Kind: MessageScroll, ScrollPosition: 1200},
		},
		{
			name: "csv fixture line",
			line: " 100.5, 200,  3000\n",
			want: Message{Kind: MessageGaze, Sample: Sample{X: 100.5, Y: 200, TimestampMs: 3000, Attention: true}},
		},
		{name: "missing y", line: `{"id":"gaze_data","x":1,"timestamp":2}`, wantErr: ErrMalformedSample},
		{name: "scroll without position", line: `{"id":"scroll"}`, wantErr: ErrMalformedSample},
		{name: "unknown id", line: `{"id":"blink"}`, wantErr: ErrUnknownMessage},
		{name: "broken json", line: `{"id":`, wantErr: ErrMalformedSample},
		{name: "csv non numeric", line: "a,b,c", wantErr: ErrMalformedSample},
		{name: "csv short", line: "1,2", wantErr: ErrMalformedSample},
		{name: "csv NaN", line: "NaN,2,3", wantErr: ErrMalformedSample},
		{name: "empty", line: "  ", wantErr: ErrMalformedSample},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage(tt.line)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseMessage(%q) error = %v, want %v", tt.line, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMessage(%q) unexpected error: %v", tt.line, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseMessage(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestSampleValidate(t *testing.T) {
	if err := (Sample{X: 1, Y: 2, TimestampMs: 3}).Validate(); err != nil {
		t.Errorf("valid sample rejected: %v", err)
	}
	for _, s := range []Sample{
		{X: math.NaN()},
		{Y: math.Inf(1)},
		{TimestampMs: math.Inf(-1)},
	} {
		if err := s.Validate(); !errors.Is(err, ErrMalformedSample) {
			t.Errorf("Validate(%v) = %v, want ErrMalformedSample", s, err)
		}
	}
}
