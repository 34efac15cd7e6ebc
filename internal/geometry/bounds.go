package geometry

import (
	"math"

	"github.com/inamate/sketchboard/internal/element"
)

// BoundingBox returns the axis-aligned box of the element's exact geometry in
// scene coordinates, accounting for rotation. Degenerate elements yield a
// zero-area box at their origin.
func BoundingBox(el element.Element) Rect {
	m := ElementTransform(el)

	if el.Type.Linear() && el.Roundness != nil && len(el.Points) > 1 {
		var pts []Point
		for _, pl := range Flatten(localOutline(el), DefaultFlattenTolerance) {
			pts = append(pts, pl...)
		}
		for i := range pts {
			pts[i] = m.Apply(pts[i])
		}
		if r, ok := RectFromPoints(pts...); ok {
			return r
		}
	}

	return m.TransformRect(localBounds(el))
}

// Padding is how far outside BoundingBox anything belonging to the element
// may be drawn: stroke width, sketchy jitter and arrowhead wings.
func Padding(el element.Element) float64 {
	lb := localBounds(el)
	pad := el.StrokeWidth/2 + RoughPadding(el.Roughness, math.Max(lb.Width, lb.Height))
	if el.Type == element.TypeArrow {
		pad += arrowheadLength * math.Sin(arrowheadAngle)
	}
	return pad
}
