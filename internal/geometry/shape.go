package geometry

import (
	"math"

	"github.com/inamate/sketchboard/internal/element"
)

// DefaultFlattenTolerance is the maximum distance, in scene units, between
// a flattened polyline and the curve it approximates.
const DefaultFlattenTolerance = 0.25

// Shape is the expensive, derived geometry of one element version: the
// drawn outline and its flattened form. Shapes are immutable once built.
type Shape struct {
	Outline   []Segment
	Polylines [][]Point
	Length    float64
	Bounds    Rect
	Tolerance float64
}

// NewShape builds the outline of el and flattens it with tolerance tol.
func NewShape(el element.Element, tol float64) *Shape {
	if tol <= 0 {
		tol = DefaultFlattenTolerance
	}
	outline := Outline(el)
	polys := Flatten(outline, tol)

	s := &Shape{
		Outline:   outline,
		Polylines: polys,
		Tolerance: tol,
	}

	var all []Point
	for _, pl := range polys {
		all = append(all, pl...)
		for i := 1; i < len(pl); i++ {
			s.Length += pl[i].Dist(pl[i-1])
		}
	}
	s.Bounds, _ = RectFromPoints(all...)
	return s
}

// Empty reports whether the shape has no drawable geometry.
func (s *Shape) Empty() bool {
	return s == nil || len(s.Polylines) == 0
}

// Distance is the shortest distance from p to the drawn outline, accurate to
// within s.Tolerance. An empty shape is infinitely far away.
func (s *Shape) Distance(p Point) float64 {
	if s.Empty() {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, pl := range s.Polylines {
		best = math.Min(best, distanceToPolyline(p, pl))
	}
	return best
}

// DistanceAt is Distance measured against curves re-flattened to tol, for
// callers whose threshold is finer than s.Tolerance. Only curves whose
// control box lies within reach of p are re-flattened. A tol that is not
// finer than s.Tolerance falls back to Distance.
func (s *Shape) DistanceAt(p Point, tol float64) float64 {
	coarse := s.Distance(p)
	if s.Empty() || tol <= 0 || tol >= s.Tolerance {
		return coarse
	}
	reach := coarse + s.Tolerance

	best := math.Inf(1)
	var start, current Point
	for _, seg := range s.Outline {
		switch seg.Op {
		case OpMove:
			start, current = seg.Pts[0], seg.Pts[0]
			best = math.Min(best, p.Dist(start))
		case OpLine:
			best = math.Min(best, distanceToSegment(p, current, seg.Pts[0]))
			current = seg.Pts[0]
		case OpCubic:
			box, _ := RectFromPoints(current, seg.Pts[0], seg.Pts[1], seg.Pts[2])
			if box.Expand(reach).Contains(p) {
				pts := flattenCubic([]Point{current}, current, seg.Pts[0], seg.Pts[1], seg.Pts[2], tol, 0)
				best = math.Min(best, distanceToPolyline(p, pts))
			}
			current = seg.Pts[2]
		case OpClose:
			best = math.Min(best, distanceToSegment(p, current, start))
			current = start
		}
	}
	return best
}
