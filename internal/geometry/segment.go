package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

type SegmentOp byte

const (
	OpMove SegmentOp = iota
	OpLine
	OpCubic
	OpClose
)

// Segment is one path command. Pts holds the end point in Pts[0] for move
// and line; for a cubic, Pts[0] and Pts[1] are the control points and Pts[2]
// is the end point.
type Segment struct {
	Op  SegmentOp
	Pts [3]Point
}

func MoveTo(p Point) Segment { return Segment{Op: OpMove, Pts: [3]Point{p}} }
func LineTo(p Point) Segment { return Segment{Op: OpLine, Pts: [3]Point{p}} }
func CubicTo(c1, c2, p Point) Segment {
	return Segment{Op: OpCubic, Pts: [3]Point{c1, c2, p}}
}
func ClosePath() Segment { return Segment{Op: OpClose} }

// MarshalJSON encodes the segment the way Canvas2D consumers expect:
// ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], ["Z"].
func (s Segment) MarshalJSON() ([]byte, error) {
	switch s.Op {
	case OpMove:
		return json.Marshal([]any{"M", s.Pts[0].X, s.Pts[0].Y})
	case OpLine:
		return json.Marshal([]any{"L", s.Pts[0].X, s.Pts[0].Y})
	case OpCubic:
		return json.Marshal([]any{"C",
			s.Pts[0].X, s.Pts[0].Y,
			s.Pts[1].X, s.Pts[1].Y,
			s.Pts[2].X, s.Pts[2].Y,
		})
	default:
		return json.Marshal([]any{"Z"})
	}
}

// UnmarshalJSON accepts the form MarshalJSON produces.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("segment: empty command")
	}
	var op string
	if err := json.Unmarshal(raw[0], &op); err != nil {
		return fmt.Errorf("segment: %w", err)
	}
	nums := make([]float64, len(raw)-1)
	for i, r := range raw[1:] {
		if err := json.Unmarshal(r, &nums[i]); err != nil {
			return fmt.Errorf("segment %s: %w", op, err)
		}
	}

	want := map[string]int{"M": 2, "L": 2, "C": 6, "Z": 0}
	n, ok := want[op]
	if !ok {
		return fmt.Errorf("segment: unknown command %q", op)
	}
	if len(nums) != n {
		return fmt.Errorf("segment %s: expected %d numbers, got %d", op, n, len(nums))
	}

	switch op {
	case "M":
		*s = MoveTo(Point{nums[0], nums[1]})
	case "L":
		*s = LineTo(Point{nums[0], nums[1]})
	case "C":
		*s = CubicTo(Point{nums[0], nums[1]}, Point{nums[2], nums[3]}, Point{nums[4], nums[5]})
	default:
		*s = ClosePath()
	}
	return nil
}

// Transform applies m to every point of the path.
func Transform(segs []Segment, m Matrix2D) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		out[i] = s
		n := 1
		if s.Op == OpCubic {
			n = 3
		}
		if s.Op == OpClose {
			n = 0
		}
		for j := 0; j < n; j++ {
			out[i].Pts[j] = m.Apply(s.Pts[j])
		}
	}
	return out
}

// maxFlattenDepth bounds the recursion so pathological control points can
// never blow up the cost of a single query.
const maxFlattenDepth = 16

// Flatten converts a path into polylines, one per subpath. Every point of the
// returned polylines lies within tol of the true curve, and every point of the
// curve lies within tol of a polyline, so distances measured against the
// polylines are off by at most tol. tol <= 0 selects DefaultFlattenTolerance.
func Flatten(segs []Segment, tol float64) [][]Point {
	if tol <= 0 {
		tol = DefaultFlattenTolerance
	}

	var (
		out     [][]Point
		cur     []Point
		start   Point
		current Point
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, cur)
		}
		cur = nil
	}

	for _, s := range segs {
		switch s.Op {
		case OpMove:
			flush()
			start, current = s.Pts[0], s.Pts[0]
			cur = []Point{current}
		case OpLine:
			if cur == nil {
				cur = []Point{current}
			}
			current = s.Pts[0]
			cur = append(cur, current)
		case OpCubic:
			if cur == nil {
				cur = []Point{current}
			}
			cur = flattenCubic(cur, current, s.Pts[0], s.Pts[1], s.Pts[2], tol, 0)
			current = s.Pts[2]
		case OpClose:
			if cur != nil && current != start {
				cur = append(cur, start)
			}
			current = start
			flush()
		}
	}
	flush()
	return out
}

// flattenCubic appends the end points of line segments approximating the
// cubic (p0 is assumed to already be in dst). The flatness test bounds the
// control points' deviation from the chord; a cubic lies inside the convex
// hull of its control points, so the polyline error is below tol.
func flattenCubic(dst []Point, p0, c1, c2, p3 Point, tol float64, depth int) []Point {
	d1 := distanceToSegment(c1, p0, p3)
	d2 := distanceToSegment(c2, p0, p3)
	if math.Max(d1, d2) <= tol || depth >= maxFlattenDepth {
		return append(dst, p3)
	}

	// De Casteljau at t=0.5
	ab := p0.Lerp(c1, 0.5)
	bc := c1.Lerp(c2, 0.5)
	cd := c2.Lerp(p3, 0.5)
	abc := ab.Lerp(bc, 0.5)
	bcd := bc.Lerp(cd, 0.5)
	mid := abc.Lerp(bcd, 0.5)

	dst = flattenCubic(dst, p0, ab, abc, mid, tol, depth+1)
	return flattenCubic(dst, mid, bcd, cd, p3, tol, depth+1)
}

// catmullRom converts a polyline into cubic segments passing through every
// point (tension 0). When closed, the curve wraps back to pts[0].
func catmullRom(pts []Point, closed bool) []Segment {
	n := len(pts)
	if n < 2 {
		return nil
	}
	at := func(i int) Point {
		if closed {
			return pts[((i%n)+n)%n]
		}
		return pts[max(0, min(n-1, i))]
	}

	segs := []Segment{MoveTo(pts[0])}
	last := n - 1
	if closed {
		last = n
	}
	for i := 0; i < last; i++ {
		p0, p1, p2, p3 := at(i-1), at(i), at(i+1), at(i+2)
		c1 := p1.Add(p2.Sub(p0).Scale(1.0 / 6))
		c2 := p2.Sub(p3.Sub(p1).Scale(1.0 / 6))
		segs = append(segs, CubicTo(c1, c2, p2))
	}
	if closed {
		segs = append(segs, ClosePath())
	}
	return segs
}
