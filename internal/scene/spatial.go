package scene

import (
	"math"

	"github.com/inamate/sketchboard/internal/geometry"
)

// DefaultCellSize is the side of one spatial grid cell in scene units.
const DefaultCellSize = 256.0

// maxCellsPerElement caps how many cells one element is filed under. Larger
// elements go to the oversize list, which every query scans.
const maxCellsPerElement = 1024

type cell struct{ x, y int }

// grid is a uniform bucket index over padded element bounds.
type grid struct {
	size     float64
	cells    map[cell]map[string]struct{}
	spans    map[string][4]int // id -> minX, minY, maxX, maxY cell
	oversize map[string]struct{}
}

func newGrid(size float64) *grid {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		size = DefaultCellSize
	}
	return &grid{
		size:     size,
		cells:    make(map[cell]map[string]struct{}),
		spans:    make(map[string][4]int),
		oversize: make(map[string]struct{}),
	}
}

// maxCellCoord keeps cell arithmetic far away from integer overflow.
const maxCellCoord = 1 << 30

func (g *grid) coord(v float64) int {
	c := math.Floor(v / g.size)
	return int(math.Max(-maxCellCoord, math.Min(maxCellCoord, c)))
}

func (g *grid) span(r geometry.Rect) [4]int {
	return [4]int{
		g.coord(r.X),
		g.coord(r.Y),
		g.coord(r.X + r.Width),
		g.coord(r.Y + r.Height),
	}
}

func cellCount(sp [4]int) int {
	return (sp[2] - sp[0] + 1) * (sp[3] - sp[1] + 1)
}

func (g *grid) insert(id string, r geometry.Rect) {
	g.remove(id)
	sp := g.span(r)
	if cellCount(sp) > maxCellsPerElement {
		g.oversize[id] = struct{}{}
		return
	}
	for x := sp[0]; x <= sp[2]; x++ {
		for y := sp[1]; y <= sp[3]; y++ {
			c := cell{x, y}
			bucket, ok := g.cells[c]
			if !ok {
				bucket = make(map[string]struct{})
				g.cells[c] = bucket
			}
			bucket[id] = struct{}{}
		}
	}
	g.spans[id] = sp
}

func (g *grid) remove(id string) {
	if _, ok := g.oversize[id]; ok {
		delete(g.oversize, id)
		return
	}
	sp, ok := g.spans[id]
	if !ok {
		return
	}
	for x := sp[0]; x <= sp[2]; x++ {
		for y := sp[1]; y <= sp[3]; y++ {
			c := cell{x, y}
			delete(g.cells[c], id)
			if len(g.cells[c]) == 0 {
				delete(g.cells, c)
			}
		}
	}
	delete(g.spans, id)
}

// query returns the ids filed under any cell r touches, plus oversize ids.
func (g *grid) query(r geometry.Rect) map[string]struct{} {
	out := make(map[string]struct{}, len(g.oversize))
	for id := range g.oversize {
		out[id] = struct{}{}
	}
	sp := g.span(r)
	if cellCount(sp) > len(g.cells) {
		// Sparse grid: walking the occupied cells is cheaper.
		for c, bucket := range g.cells {
			if c.x < sp[0] || c.x > sp[2] || c.y < sp[1] || c.y > sp[3] {
				continue
			}
			for id := range bucket {
				out[id] = struct{}{}
			}
		}
		return out
	}
	for x := sp[0]; x <= sp[2]; x++ {
		for y := sp[1]; y <= sp[3]; y++ {
			for id := range g.cells[cell{x, y}] {
				out[id] = struct{}{}
			}
		}
	}
	return out
}
