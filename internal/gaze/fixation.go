package gaze

import (
	"fmt"
	"math"
)

// Box is an axis-aligned bounding box in screen pixels.
type Box struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Union returns the smallest box containing both b and p.
func (b Box) Union(p Point) Box {
	return Box{
		MinX: math.Min(b.MinX, p.X),
		MaxX: math.Max(b.MaxX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

func (b Box) Width() float64  { return b.MaxX - b.MinX }
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Center returns the midpoint of the box on each axis.
func (b Box) Center() Point {
	return Point{X: (b.MinX + b.MaxX) / 2, Y: (b.MinY + b.MaxY) / 2}
}

// Displacement is the center-to-center movement between two consecutive
// fixations, in pixels. Positive X is rightward, positive Y is downward.
type Displacement struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (d Displacement) String() string {
	return fmt.Sprintf("dx=%.1f dy=%.1f", d.X, d.Y)
}

// Fixation is a period in which the gaze stayed inside a small box.
type Fixation struct {
	Box
	// Change is the displacement from the previous fixation of the chain.
	// It is nil for the first fixation after a session, task or scroll
	// boundary.
	Change *Displacement `json:"change,omitempty"`

	StartMs float64 `json:"start_ms"`
	EndMs   float64 `json:"end_ms"`
	Samples int     `json:"samples"`
}

// DurationMs returns the time between the first and last accepted sample.
func (f *Fixation) DurationMs() float64 {
	return f.EndMs - f.StartMs
}

func (f *Fixation) String() string {
	s := fmt.Sprintf("box x[%.1f,%.1f] y[%.1f,%.1f]", f.MinX, f.MaxX, f.MinY, f.MaxY)
	if f.Change != nil {
		s += " " + f.Change.String()
	}
	return s
}

// grow extends the fixation to include p. The box never shrinks.
func (f *Fixation) grow(p Point, ts float64) {
	f.Box = f.Box.Union(p)
	f.EndMs = ts
	f.Samples++
	if f.MaxX < f.MinX || f.MaxY < f.MinY {
		panic(fmt.Sprintf("gaze: fixation box inverted after growth: %s", f))
	}
}
