package geometry

import (
	"math"

	"github.com/inamate/sketchboard/internal/element"
)

// maxEllipseIterations caps the bisection in ellipseDistance. Each step
// halves the bracket, so the cap only matters for tolerances below float
// precision.
const maxEllipseIterations = 128

// SceneTolerance converts a screen-space tolerance in pixels into scene
// units at the given zoom. A non-positive zoom is treated as 1.
func SceneTolerance(px, zoom float64) float64 {
	if zoom <= 0 {
		zoom = 1
	}
	return px / zoom
}

// toLocal maps a scene point into the element's unrotated frame, relative to
// its (x, y) origin.
func toLocal(el element.Element, p Point) Point {
	return ElementTransform(el).Invert().Apply(p)
}

// DistanceToPoint returns the shortest distance from p to the element's exact
// boundary (not the sketchy outline). Rectangles, diamonds and straight
// polylines are solved analytically. Ellipses use bisection and curved
// polylines use flattening; both are accurate to within tol scene units
// (tol <= 0 selects DefaultFlattenTolerance).
func DistanceToPoint(el element.Element, p Point, tol float64) float64 {
	if tol <= 0 {
		tol = DefaultFlattenTolerance
	}
	lp := toLocal(el, p)
	w, h := el.Width, el.Height

	switch el.Type {
	case element.TypeRectangle:
		if cornerRadius(el) > 0 {
			return polylinesDistance(lp, Flatten(localOutline(el), tol))
		}
		return rectBoundaryDistance(lp, w, h)

	case element.TypeText, element.TypeImage, element.TypeFrame:
		return rectBoundaryDistance(lp, w, h)

	case element.TypeDiamond:
		corners := []Point{{w / 2, 0}, {w, h / 2}, {w / 2, h}, {0, h / 2}, {w / 2, 0}}
		return distanceToPolyline(lp, corners)

	case element.TypeEllipse:
		return ellipseDistance(lp.Sub(Point{w / 2, h / 2}), w/2, h/2, tol)

	case element.TypeLine, element.TypeArrow:
		if el.Roundness != nil {
			return polylinesDistance(lp, Flatten(catmullRom(localPoints(el), closedLoop(el)), tol))
		}
		return distanceToPolyline(lp, localPoints(el))

	case element.TypeFreedraw:
		return distanceToPolyline(lp, localPoints(el))
	}
	return math.Inf(1)
}

func polylinesDistance(p Point, polys [][]Point) float64 {
	best := math.Inf(1)
	for _, pl := range polys {
		best = math.Min(best, distanceToPolyline(p, pl))
	}
	return best
}

func rectBoundaryDistance(p Point, w, h float64) float64 {
	if p.X >= 0 && p.X <= w && p.Y >= 0 && p.Y <= h {
		return math.Min(math.Min(p.X, w-p.X), math.Min(p.Y, h-p.Y))
	}
	dx := math.Max(math.Max(-p.X, 0), p.X-w)
	dy := math.Max(math.Max(-p.Y, 0), p.Y-h)
	return math.Hypot(dx, dy)
}

// ellipseDistance is the distance from p (relative to the centre) to the
// ellipse with semi-axes rx, ry. It reduces to the first quadrant, orders
// the axes so the major one comes first, then bisects the parameter of the
// closest-point equation until the bracketed closest points are within tol.
func ellipseDistance(p Point, rx, ry, tol float64) float64 {
	y0, y1 := math.Abs(p.X), math.Abs(p.Y)
	e0, e1 := rx, ry
	if e0 < e1 {
		e0, e1 = e1, e0
		y0, y1 = y1, y0
	}

	switch {
	case e0 == 0:
		return math.Hypot(y0, y1)
	case e1 == 0:
		// Flat ellipse: a segment along the major axis.
		return distanceToSegment(Point{y0, y1}, Point{-e0, 0}, Point{e0, 0})
	}

	if y1 > 0 {
		if y0 > 0 {
			z0, z1 := y0/e0, y1/e1
			g := z0*z0 + z1*z1 - 1
			if g == 0 {
				return 0
			}
			r0 := (e0 / e1) * (e0 / e1)
			closest := func(s float64) Point {
				return Point{r0 * y0 / (s + r0), y1 / (s + 1)}
			}

			n0 := r0 * z0
			s0 := z1 - 1
			s1 := 0.0
			if g > 0 {
				s1 = math.Hypot(n0, z1) - 1
			}
			for i := 0; i < maxEllipseIterations; i++ {
				if closest(s0).Dist(closest(s1)) <= tol {
					break
				}
				s := (s0 + s1) / 2
				if s == s0 || s == s1 {
					break
				}
				r0s, r1s := n0/(s+r0), z1/(s+1)
				switch gs := r0s*r0s + r1s*r1s - 1; {
				case gs > 0:
					s0 = s
				case gs < 0:
					s1 = s
				default:
					s0, s1 = s, s
				}
			}
			return closest((s0 + s1) / 2).Dist(Point{y0, y1})
		}
		return math.Abs(y1 - e1)
	}

	numer := e0 * y0
	denom := e0*e0 - e1*e1
	if numer < denom {
		x := numer / denom
		return Point{e0 * x, e1 * math.Sqrt(1-x*x)}.Dist(Point{y0, y1})
	}
	return math.Abs(y0 - e0)
}

// ContainsPoint reports whether p lies inside the element's closed region.
// Open shapes (lines, freehand strokes) and degenerate boxes contain nothing.
func ContainsPoint(el element.Element, p Point) bool {
	lp := toLocal(el, p)
	w, h := el.Width, el.Height

	switch el.Type {
	case element.TypeRectangle, element.TypeText, element.TypeImage, element.TypeFrame:
		if w <= 0 || h <= 0 {
			return false
		}
		return lp.X >= 0 && lp.X <= w && lp.Y >= 0 && lp.Y <= h

	case element.TypeDiamond:
		if w <= 0 || h <= 0 {
			return false
		}
		return math.Abs(lp.X-w/2)/(w/2)+math.Abs(lp.Y-h/2)/(h/2) <= 1

	case element.TypeEllipse:
		if w <= 0 || h <= 0 {
			return false
		}
		dx, dy := (lp.X-w/2)/(w/2), (lp.Y-h/2)/(h/2)
		return dx*dx+dy*dy <= 1

	case element.TypeLine:
		if !closedLoop(el) {
			return false
		}
		return pointInPolygon(lp, localPoints(el))
	}
	return false
}

// pointInPolygon applies the even-odd rule.
func pointInPolygon(p Point, poly []Point) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}
