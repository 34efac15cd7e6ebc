package geometry

import (
	"math"

	"github.com/inamate/sketchboard/internal/element"
)

// Intersects reports whether the outlines of a and b cross, or whether one
// element's closed region contains the other.
func Intersects(a, b element.Element) bool {
	return IntersectShapes(a, NewShape(a, 0), b, NewShape(b, 0))
}

// IntersectShapes is Intersects for callers that already hold the shapes
// (typically from the shape cache).
func IntersectShapes(a element.Element, sa *Shape, b element.Element, sb *Shape) bool {
	if sa.Empty() || sb.Empty() {
		return false
	}
	if !sa.Bounds.Intersects(sb.Bounds) {
		return false
	}

	for _, pa := range sa.Polylines {
		for _, pb := range sb.Polylines {
			if polylinesCross(pa, pb) {
				return true
			}
		}
	}

	// No crossing: either disjoint or one nested inside the other.
	return ContainsPoint(a, sb.Polylines[0][0]) || ContainsPoint(b, sa.Polylines[0][0])
}

func polylinesCross(a, b []Point) bool {
	for i := 1; i < len(a); i++ {
		for j := 1; j < len(b); j++ {
			if _, ok := segmentIntersection(a[i-1], a[i], b[j-1], b[j]); ok {
				return true
			}
		}
	}
	return false
}

// segmentIntersection returns the crossing point of segments p1p2 and q1q2.
// Collinear overlapping segments report the first shared end point.
func segmentIntersection(p1, p2, q1, q2 Point) (Point, bool) {
	r := p2.Sub(p1)
	s := q2.Sub(q1)
	denom := r.Cross(s)
	qp := q1.Sub(p1)

	if denom == 0 {
		if qp.Cross(r) != 0 {
			return Point{}, false
		}
		for _, c := range []Point{q1, q2} {
			if distanceToSegment(c, p1, p2) == 0 {
				return c, true
			}
		}
		for _, c := range []Point{p1, p2} {
			if distanceToSegment(c, q1, q2) == 0 {
				return c, true
			}
		}
		return Point{}, false
	}

	t := qp.Cross(s) / denom
	u := qp.Cross(r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point{}, false
	}
	return p1.Add(r.Scale(t)), true
}

// IntersectsRay returns the first point where the ray from origin along dir
// meets the element's outline. A zero direction never hits.
func IntersectsRay(el element.Element, origin, dir Point) (Point, bool) {
	return RayShape(NewShape(el, 0), origin, dir)
}

// RayShape is IntersectsRay against a prebuilt shape.
func RayShape(s *Shape, origin, dir Point) (Point, bool) {
	if s.Empty() || dir.Len() == 0 {
		return Point{}, false
	}

	bestT := math.Inf(1)
	var best Point
	for _, pl := range s.Polylines {
		for i := 1; i < len(pl); i++ {
			t, ok := raySegment(origin, dir, pl[i-1], pl[i])
			if ok && t < bestT {
				bestT = t
				best = origin.Add(dir.Scale(t))
			}
		}
	}
	if math.IsInf(bestT, 1) {
		return Point{}, false
	}
	return best, true
}

// raySegment returns the ray parameter t >= 0 at which origin + t*dir meets
// segment ab.
func raySegment(origin, dir, a, b Point) (float64, bool) {
	s := b.Sub(a)
	denom := dir.Cross(s)
	ao := a.Sub(origin)
	if denom == 0 {
		if ao.Cross(dir) != 0 {
			return 0, false
		}
		// Collinear: nearest end point in front of the origin.
		ta := ao.Dot(dir) / dir.Dot(dir)
		tb := b.Sub(origin).Dot(dir) / dir.Dot(dir)
		switch {
		case ta >= 0 && tb >= 0:
			return math.Min(ta, tb), true
		case ta >= 0 || tb >= 0:
			return 0, true
		}
		return 0, false
	}
	t := ao.Cross(s) / denom
	u := ao.Cross(dir) / denom
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
