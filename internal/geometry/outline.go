package geometry

import (
	"math"

	"github.com/inamate/sketchboard/internal/element"
)

const (
	// ellipseKappa is the bezier control distance approximating a quarter
	// circle: 4 * (sqrt(2) - 1) / 3.
	ellipseKappa = 0.5522847498

	arrowheadLength = 30.0
	arrowheadAngle  = 20 * math.Pi / 180

	roundnessProportional = 2
	roundnessAdaptive     = 3
	adaptiveRadius        = 32.0
)

// localBounds returns the element's unrotated extent relative to (x, y).
// Linear elements are measured from their points, boxes from width/height.
func localBounds(el element.Element) Rect {
	if el.Type.Linear() && len(el.Points) > 0 {
		pts := make([]Point, len(el.Points))
		for i, p := range el.Points {
			pts[i] = Pt(p)
		}
		r, _ := RectFromPoints(pts...)
		return r
	}
	return Rect{Width: el.Width, Height: el.Height}
}

// Center is the rotation pivot in scene coordinates.
func Center(el element.Element) Point {
	c := localBounds(el).Center()
	return Point{el.X + c.X, el.Y + c.Y}
}

// ElementTransform maps element-local coordinates (relative to x, y) into the
// scene, including rotation about the centre.
func ElementTransform(el element.Element) Matrix2D {
	m := Translate(el.X, el.Y)
	if el.Angle == 0 {
		return m
	}
	return RotateAbout(el.Angle, Center(el)).Multiply(m)
}

// cornerRadius returns the rounded-corner radius for a box of the given
// side length, or 0 for sharp corners.
func cornerRadius(el element.Element) float64 {
	if el.Roundness == nil {
		return 0
	}
	side := math.Min(el.Width, el.Height)
	switch el.Roundness.Type {
	case roundnessAdaptive:
		r := adaptiveRadius
		if el.Roundness.Value != nil {
			r = *el.Roundness.Value
		}
		if side < 4*r {
			return side * 0.25
		}
		return r
	case roundnessProportional:
		return side * 0.25
	default:
		return 0
	}
}

func localPoints(el element.Element) []Point {
	pts := make([]Point, len(el.Points))
	for i, p := range el.Points {
		pts[i] = Pt(p)
	}
	return pts
}

// closedLoop reports whether a linear element ends where it starts, which
// makes it a fillable polygon.
func closedLoop(el element.Element) bool {
	if el.Type != element.TypeLine || len(el.Points) < 3 {
		return false
	}
	first, last := Pt(el.Points[0]), Pt(el.Points[len(el.Points)-1])
	return first.Dist(last) <= 1e-6
}

// Outline returns the element's drawn boundary in scene coordinates. The
// result depends only on the seed and the geometric fields.
func Outline(el element.Element) []Segment {
	local := localOutline(el)
	return Transform(local, ElementTransform(el))
}

func localOutline(el element.Element) []Segment {
	w, h := el.Width, el.Height
	g := &rough{rnd: newRandom(el.Seed), roughness: el.Roughness}
	sketchy := el.Roughness > 0

	switch el.Type {
	case element.TypeRectangle:
		if r := cornerRadius(el); r > 0 {
			return roundedRectPath(w, h, r)
		}
		corners := []Point{{0, 0}, {w, 0}, {w, h}, {0, h}}
		if sketchy {
			return g.polyline(corners, true)
		}
		return polygonPath(corners)

	case element.TypeDiamond:
		corners := []Point{{w / 2, 0}, {w, h / 2}, {w / 2, h}, {0, h / 2}}
		if sketchy {
			return g.polyline(corners, true)
		}
		return polygonPath(corners)

	case element.TypeEllipse:
		c := Point{w / 2, h / 2}
		if sketchy {
			return g.ellipse(c, w/2, h/2)
		}
		return ellipsePath(c, w/2, h/2)

	case element.TypeLine, element.TypeArrow:
		pts := localPoints(el)
		var segs []Segment
		switch {
		case el.Roundness != nil:
			segs = catmullRom(pts, closedLoop(el))
		case sketchy:
			segs = g.polyline(pts, false)
		default:
			segs = polylinePath(pts)
		}
		if el.Type == element.TypeArrow {
			segs = append(segs, arrowhead(pts)...)
		}
		return segs

	case element.TypeFreedraw:
		pts := localPoints(el)
		if len(pts) == 1 {
			pts = append(pts, pts[0])
		}
		return polylinePath(pts)

	case element.TypeText, element.TypeImage, element.TypeFrame:
		return polygonPath([]Point{{0, 0}, {w, 0}, {w, h}, {0, h}})
	}
	return nil
}

func polygonPath(pts []Point) []Segment {
	segs := polylinePath(pts)
	if len(segs) > 0 {
		segs = append(segs, ClosePath())
	}
	return segs
}

func polylinePath(pts []Point) []Segment {
	if len(pts) == 0 {
		return nil
	}
	segs := make([]Segment, 0, len(pts))
	segs = append(segs, MoveTo(pts[0]))
	for _, p := range pts[1:] {
		segs = append(segs, LineTo(p))
	}
	return segs
}

// ellipsePath approximates an ellipse with four bezier curves.
func ellipsePath(c Point, rx, ry float64) []Segment {
	kx, ky := rx*ellipseKappa, ry*ellipseKappa
	at := func(x, y float64) Point { return Point{c.X + x, c.Y + y} }
	return []Segment{
		MoveTo(at(rx, 0)),
		CubicTo(at(rx, ky), at(kx, ry), at(0, ry)),
		CubicTo(at(-kx, ry), at(-rx, ky), at(-rx, 0)),
		CubicTo(at(-rx, -ky), at(-kx, -ry), at(0, -ry)),
		CubicTo(at(kx, -ry), at(rx, -ky), at(rx, 0)),
		ClosePath(),
	}
}

func roundedRectPath(w, h, r float64) []Segment {
	k := r * ellipseKappa
	return []Segment{
		MoveTo(Point{r, 0}),
		LineTo(Point{w - r, 0}),
		CubicTo(Point{w - r + k, 0}, Point{w, r - k}, Point{w, r}),
		LineTo(Point{w, h - r}),
		CubicTo(Point{w, h - r + k}, Point{w - r + k, h}, Point{w - r, h}),
		LineTo(Point{r, h}),
		CubicTo(Point{r - k, h}, Point{0, h - r + k}, Point{0, h - r}),
		LineTo(Point{0, r}),
		CubicTo(Point{0, r - k}, Point{r - k, 0}, Point{r, 0}),
		ClosePath(),
	}
}

// arrowhead returns the two wings at the last point, pointing along the
// final segment. The head never exceeds half that segment's length.
func arrowhead(pts []Point) []Segment {
	if len(pts) < 2 {
		return nil
	}
	tip := pts[len(pts)-1]
	var from Point
	found := false
	for i := len(pts) - 2; i >= 0; i-- {
		if pts[i].Dist(tip) > 0 {
			from, found = pts[i], true
			break
		}
	}
	if !found {
		return nil
	}

	dir := tip.Sub(from)
	size := math.Min(arrowheadLength, dir.Len()/2)
	back := dir.Normalize().Scale(-size)

	var segs []Segment
	for _, a := range []float64{arrowheadAngle, -arrowheadAngle} {
		wing := tip.Add(Rotate(a).ApplyVector(back))
		segs = append(segs, MoveTo(tip), LineTo(wing))
	}
	return segs
}
