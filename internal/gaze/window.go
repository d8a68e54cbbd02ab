package gaze

import "math"

// Point is a gaze position in screen pixels.
type Point struct {
	X, Y float64
}

// PointWindow is a fixed-capacity ring of the most recent gaze points.
// Pushing into a full window evicts the oldest point.
type PointWindow struct {
	points []Point
	head   int // index of the most recent point
	count  int
}

// NewPointWindow creates a window holding at most capacity points.
// It panics when capacity is less than one.
func NewPointWindow(capacity int) *PointWindow {
	if capacity < 1 {
		panic("gaze: point window capacity must be at least 1")
	}
	return &PointWindow{points: make([]Point, capacity), head: -1}
}

// Push adds p as the most recent point.
func (w *PointWindow) Push(p Point) {
	w.head = (w.head + 1) % len(w.points)
	w.points[w.head] = p
	if w.count < len(w.points) {
		w.count++
	}
}

func (w *PointWindow) Len() int    { return w.count }
func (w *PointWindow) Cap() int    { return len(w.points) }
func (w *PointWindow) Full() bool  { return w.count == len(w.points) }
func (w *PointWindow) Clear()      { w.head, w.count = -1, 0 }
func (w *PointWindow) Empty() bool { return w.count == 0 }

// Points returns the window contents, most recent first.
func (w *PointWindow) Points() []Point {
	out := make([]Point, 0, w.count)
	w.Each(func(p Point) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Each calls fn for each point, most recent first, until fn returns false.
func (w *PointWindow) Each(fn func(Point) bool) {
	n := len(w.points)
	for i := 0; i < w.count; i++ {
		if !fn(w.points[(w.head-i+n)%n]) {
			return
		}
	}
}

// Bounds returns the axis-aligned bounding box of the window.
// The result is meaningless for an empty window.
func (w *PointWindow) Bounds() Box {
	b := Box{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
	w.Each(func(p Point) bool {
		b = b.Union(p)
		return true
	})
	return b
}
