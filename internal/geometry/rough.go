package geometry

import "math"

// Parameters of the hand-drawn style. These match the values every client
// uses, so the same seed produces the same outline everywhere.
const (
	maxRandomnessOffset = 2.0
	bowing              = 1.0
	curveFitting        = 0.95
	curveStepCount      = 9.0
)

// random is a Park–Miller style generator over a 32-bit state. It must stay
// bit-for-bit stable: outlines are shared visually between collaborators.
type random struct {
	seed int32
}

func newRandom(seed int64) *random {
	s := int32(uint32(seed))
	if s == 0 {
		s = 1
	}
	return &random{seed: s}
}

func (r *random) next() float64 {
	r.seed *= 48271
	return float64(r.seed&math.MaxInt32) / (1 << 31)
}

type rough struct {
	rnd       *random
	roughness float64
}

func (g *rough) offset(lo, hi, gain float64) float64 {
	return g.roughness * gain * (g.rnd.next()*(hi-lo) + lo)
}

func (g *rough) offsetOpt(x, gain float64) float64 {
	return g.offset(-x, x, gain)
}

// line draws a single wobbly stroke from a to b as one cubic.
func (g *rough) line(a, b Point, overlay bool) []Segment {
	lengthSq := (a.X-b.X)*(a.X-b.X) + (a.Y-b.Y)*(a.Y-b.Y)
	length := math.Sqrt(lengthSq)

	gain := 1.0
	switch {
	case length > 500:
		gain = 0.4
	case length >= 200:
		gain = -0.0016668*length + 1.233334
	}

	off := maxRandomnessOffset
	if off*off*100 > lengthSq {
		off = length / 10
	}
	half := off / 2
	diverge := 0.2 + g.rnd.next()*0.2

	midX := bowing * maxRandomnessOffset * (b.Y - a.Y) / 200
	midY := bowing * maxRandomnessOffset * (a.X - b.X) / 200
	midX = g.offsetOpt(midX, gain)
	midY = g.offsetOpt(midY, gain)

	jitter := func() float64 {
		if overlay {
			return g.offsetOpt(half, gain)
		}
		return g.offsetOpt(off, gain)
	}

	start := Point{a.X + jitter(), a.Y + jitter()}
	c1 := Point{
		midX + a.X + (b.X-a.X)*diverge + jitter(),
		midY + a.Y + (b.Y-a.Y)*diverge + jitter(),
	}
	c2 := Point{
		midX + a.X + 2*(b.X-a.X)*diverge + jitter(),
		midY + a.Y + 2*(b.Y-a.Y)*diverge + jitter(),
	}
	end := Point{b.X + jitter(), b.Y + jitter()}
	return []Segment{MoveTo(start), CubicTo(c1, c2, end)}
}

// doubleLine is the signature double stroke of the sketchy style.
func (g *rough) doubleLine(a, b Point) []Segment {
	return append(g.line(a, b, false), g.line(a, b, true)...)
}

// polyline draws consecutive points with double strokes; closed joins the
// last point back to the first.
func (g *rough) polyline(pts []Point, closed bool) []Segment {
	var segs []Segment
	for i := 1; i < len(pts); i++ {
		segs = append(segs, g.doubleLine(pts[i-1], pts[i])...)
	}
	if closed && len(pts) > 2 {
		segs = append(segs, g.doubleLine(pts[len(pts)-1], pts[0])...)
	}
	return segs
}

// ellipse draws two overlapping jittered passes around the ellipse centred
// at c with radii rx, ry.
func (g *rough) ellipse(c Point, rx, ry float64) []Segment {
	psq := math.Sqrt(2 * math.Pi * math.Sqrt((rx*rx+ry*ry)/2))
	steps := math.Ceil(math.Max(curveStepCount, curveStepCount/math.Sqrt(200)*psq))
	increment := 2 * math.Pi / steps

	fit := 1 - curveFitting
	rx += g.offsetOpt(rx*fit, 1)
	ry += g.offsetOpt(ry*fit, 1)

	var segs []Segment
	for _, wobble := range []float64{1, 1.5} {
		start := g.offsetOpt(0.5, 1) - math.Pi/2
		pts := make([]Point, 0, int(steps))
		for i := 0; i < int(steps); i++ {
			a := start + float64(i)*increment
			pts = append(pts, Point{
				c.X + rx*math.Cos(a) + g.offsetOpt(wobble, 1),
				c.Y + ry*math.Sin(a) + g.offsetOpt(wobble, 1),
			})
		}
		segs = append(segs, catmullRom(pts, true)...)
	}
	return segs
}

// RoughPadding bounds how far the hand-drawn outline of an element can stray
// outside its exact geometry. Spatial queries expand by this much so a
// candidate is never missed because of jitter.
func RoughPadding(roughness, longestSide float64) float64 {
	if roughness <= 0 {
		return 0
	}
	return roughness * (2*maxRandomnessOffset + longestSide/20)
}
