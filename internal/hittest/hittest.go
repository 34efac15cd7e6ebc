// Package hittest answers "what is under the pointer" for a scene.
//
// Candidates come from the scene's spatial index. The precise test runs
// against cached shapes, and the results are ordered topmost first.
package hittest

import (
	"math"
	"slices"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
	"github.com/inamate/sketchboard/internal/scene"
	"github.com/inamate/sketchboard/internal/shapecache"
)

const (
	// DefaultTolerancePx is how far, in screen pixels, the pointer may be
	// from an outline and still hit it.
	DefaultTolerancePx = 10.0
	// DefaultMinClickablePx is the narrowest on-screen width a stroke is
	// treated as having, however thin it is drawn.
	DefaultMinClickablePx = 8.0
)

// Mode selects how a region query treats partially covered elements.
type Mode int

const (
	// ModeContain selects elements whose bounds lie entirely in the region.
	ModeContain Mode = iota
	// ModeOverlap selects elements whose geometry touches the region.
	ModeOverlap
)

// Options tune a single query. The zero value is valid.
type Options struct {
	IncludeLocked bool           `json:"includeLocked"`
	Types         []element.Type `json:"types,omitempty"`
	// TolerancePx overrides the tester's default when positive.
	TolerancePx float64 `json:"tolerancePx,omitempty"`
	// Zoom is the view scale; non-positive means 1.
	Zoom float64 `json:"zoom,omitempty"`
}

func (o Options) zoom() float64 {
	if o.Zoom <= 0 || math.IsNaN(o.Zoom) || math.IsInf(o.Zoom, 0) {
		return 1
	}
	return o.Zoom
}

func (o Options) accepts(t element.Type) bool {
	return len(o.Types) == 0 || slices.Contains(o.Types, t)
}

// Tester runs hit tests against one scene and its shape cache.
type Tester struct {
	scene          *scene.Scene
	cache          *shapecache.Cache
	tolerancePx    float64
	minClickablePx float64
	unsubscribe    func()
}

// Option configures a Tester. Non-positive values keep the default.
type Option func(*Tester)

func WithTolerancePx(px float64) Option {
	return func(t *Tester) {
		if px > 0 {
			t.tolerancePx = px
		}
	}
}

func WithMinClickablePx(px float64) Option {
	return func(t *Tester) {
		if px >= 0 {
			t.minClickablePx = px
		}
	}
}

// New creates a tester. It watches the scene so that tombstoned elements
// drop out of the cache right away.
func New(s *scene.Scene, c *shapecache.Cache, opts ...Option) *Tester {
	t := &Tester{
		scene:          s,
		cache:          c,
		tolerancePx:    DefaultTolerancePx,
		minClickablePx: DefaultMinClickablePx,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.unsubscribe = s.Subscribe(t.onChange)
	return t
}

// Close stops watching the scene.
func (t *Tester) Close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
}

func (t *Tester) onChange(c scene.Change) {
	if c.Kind == scene.ChangeAdded {
		return
	}
	for _, id := range c.IDs {
		if el, ok := t.scene.Get(id); ok && el.IsDeleted {
			t.cache.Forget(id)
		}
	}
}

// Threshold is the scene-space distance within which p hits el's outline:
// the larger of the pointer tolerance, half the stroke, and half the minimum
// clickable width, all converted at the query's zoom.
func (t *Tester) Threshold(el element.Element, opts Options) float64 {
	zoom := opts.zoom()
	px := t.tolerancePx
	if opts.TolerancePx > 0 {
		px = opts.TolerancePx
	}
	return math.Max(
		geometry.SceneTolerance(px, zoom),
		math.Max(el.StrokeWidth/2, t.minClickablePx/(2*zoom)),
	)
}

// reach is the largest threshold any element could need, excluding stroke
// width, which the spatial index already pads by.
func (t *Tester) reach(opts Options) float64 {
	return t.Threshold(element.Element{}, opts)
}

// HitTest returns the ids of every element under p, topmost first.
func (t *Tester) HitTest(p geometry.Point, opts Options) []string {
	r := geometry.Rect{X: p.X, Y: p.Y}.Expand(t.reach(opts))
	return t.HitTestCandidates(p, t.scene.Query(r), opts)
}

// HitTestCandidates runs the precise test over an explicit candidate list.
// Results are ordered by the scene's z-order, topmost first; bound text
// reports its container, and every id appears once.
func (t *Tester) HitTestCandidates(p geometry.Point, candidates []element.Element, opts Options) []string {
	ordered := t.topmostFirst(candidates)

	var out []string
	seen := make(map[string]bool)
	for _, el := range ordered {
		target, ok := t.target(el, opts)
		if !ok || seen[target.ID] {
			continue
		}
		if t.hits(el, p, opts) {
			seen[target.ID] = true
			out = append(out, target.ID)
		}
	}
	return out
}

// Topmost returns the single element a click at p selects.
func (t *Tester) Topmost(p geometry.Point, opts Options) (string, bool) {
	hits := t.HitTest(p, opts)
	if len(hits) == 0 {
		return "", false
	}
	return hits[0], true
}

// HitTestRegion returns the elements a marquee over r selects, topmost first.
func (t *Tester) HitTestRegion(r geometry.Rect, mode Mode, opts Options) []string {
	var region element.Element
	var regionShape *geometry.Shape
	if mode == ModeOverlap {
		region = element.New(element.TypeRectangle, r.X, r.Y, r.Width, r.Height)
		region.Roughness = 0
		regionShape = geometry.NewShape(region, 0)
	}

	var out []string
	seen := make(map[string]bool)
	for _, el := range t.topmostFirst(t.scene.Query(r)) {
		// Bound text follows its container in and out of the selection.
		if el.Type == element.TypeText && el.ContainerID != nil {
			if _, ok := t.scene.Resolve(*el.ContainerID); ok {
				continue
			}
		}
		target, ok := t.target(el, opts)
		if !ok || seen[target.ID] {
			continue
		}
		bb := geometry.BoundingBox(el)
		if bb.Degenerate() {
			continue
		}

		hit := r.ContainsRect(bb)
		if !hit && mode == ModeOverlap {
			hit = geometry.IntersectShapes(region, regionShape, el, t.cache.Get(el))
		}
		if hit {
			seen[target.ID] = true
			out = append(out, target.ID)
		}
	}
	return out
}

// target resolves what selecting el means: text bound to a live container
// selects the container. Filters apply to the resolved element.
func (t *Tester) target(el element.Element, opts Options) (element.Element, bool) {
	if el.IsDeleted {
		return element.Element{}, false
	}
	if el.Type == element.TypeText && el.ContainerID != nil {
		if c, ok := t.scene.Resolve(*el.ContainerID); ok {
			el = c
		}
	}
	if el.Locked && !opts.IncludeLocked {
		return element.Element{}, false
	}
	if !opts.accepts(el.Type) {
		return element.Element{}, false
	}
	return el, true
}

// hits is the precise per-element test.
func (t *Tester) hits(el element.Element, p geometry.Point, opts Options) bool {
	if geometry.BoundingBox(el).Degenerate() {
		return false
	}
	threshold := t.Threshold(el, opts)

	switch el.Type {
	case element.TypeFrame:
		// Frames are selected by their border so their children stay clickable.
		return geometry.DistanceToPoint(el, p, t.cache.Tolerance()) <= threshold
	case element.TypeText, element.TypeImage:
		if geometry.ContainsPoint(el, p) {
			return true
		}
	default:
		if el.Filled() && geometry.ContainsPoint(el, p) {
			return true
		}
	}

	shape := t.cache.Get(el)
	if shape.Empty() || !shape.Bounds.Expand(threshold).Contains(p) {
		return false
	}
	d := shape.Distance(p)
	if threshold >= shape.Tolerance {
		return d <= threshold
	}
	// Zoomed in past the cache tolerance: the coarse distance is only good
	// to within shape.Tolerance, so settle close calls at a finer one.
	if d > threshold+shape.Tolerance {
		return false
	}
	fine := threshold / 2
	d = shape.DistanceAt(p, fine)
	if el.Roughness == 0 {
		d = math.Min(d, geometry.DistanceToPoint(el, p, fine))
	}
	return d <= threshold
}

// topmostFirst sorts candidates by descending z-order. Elements the scene
// does not know keep their relative order after the known ones.
func (t *Tester) topmostFirst(candidates []element.Element) []element.Element {
	out := slices.Clone(candidates)
	slices.SortStableFunc(out, func(a, b element.Element) int {
		za, oka := t.scene.ZIndex(a.ID)
		zb, okb := t.scene.ZIndex(b.ID)
		switch {
		case oka && okb:
			return zb - za
		case oka:
			return -1
		case okb:
			return 1
		}
		return 0
	})
	return out
}
