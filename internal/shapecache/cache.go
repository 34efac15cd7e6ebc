// Package shapecache memoises the derived geometry of element versions.
//
// Entries are keyed by (id, version, fingerprint). A mutation always advances
// the version, so a stale entry is simply never looked up again and ages out
// of the LRU. The fingerprint covers the version nonce and every field the
// outline depends on, which keeps two different records that happen to
// share an id and version (concurrent edits before reconciliation) apart.
package shapecache

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
)

// DefaultSize is the entry capacity used when New is given a non-positive size.
const DefaultSize = 4096

// Key identifies one element version's geometry.
type Key struct {
	ID          string
	Version     int64
	Fingerprint uint64
}

// KeyOf derives the cache key of an element record.
func KeyOf(el element.Element) Key {
	return Key{ID: el.ID, Version: el.Version, Fingerprint: Fingerprint(el)}
}

// Stats reports cache effectiveness.
type Stats struct {
	Len     int
	Size    int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Cache maps element versions to shapes. It belongs to the goroutine that
// owns the scene; only Stats may be called from elsewhere.
type Cache struct {
	lru       *lru.Cache[Key, *geometry.Shape]
	size      int
	tolerance float64

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding up to size shapes flattened with tolerance tol.
func New(size int, tol float64) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if tol <= 0 {
		tol = geometry.DefaultFlattenTolerance
	}
	l, err := lru.New[Key, *geometry.Shape](size)
	if err != nil {
		// Only returned for a non-positive size, ruled out above.
		panic(err)
	}
	return &Cache{lru: l, size: size, tolerance: tol}
}

// Tolerance is the flattening tolerance of every cached shape.
func (c *Cache) Tolerance() float64 {
	return c.tolerance
}

// Get returns the shape for el, computing and storing it on a miss.
func (c *Cache) Get(el element.Element) *geometry.Shape {
	key := KeyOf(el)
	if s, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return s
	}
	c.misses.Add(1)
	s := geometry.NewShape(el, c.tolerance)
	c.lru.Add(key, s)
	return s
}

// Peek reports whether the shape for el is cached without computing it or
// touching recency.
func (c *Cache) Peek(el element.Element) (*geometry.Shape, bool) {
	return c.lru.Peek(KeyOf(el))
}

// Forget drops every cached version of id.
func (c *Cache) Forget(id string) int {
	n := 0
	for _, k := range c.lru.Keys() {
		if k.ID == id {
			c.lru.Remove(k)
			n++
		}
	}
	return n
}

// Purge empties the cache and resets the counters.
func (c *Cache) Purge() {
	c.lru.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Len is the number of cached shapes.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Len:     c.Len(),
		Size:    c.size,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Fingerprint is an FNV-1a hash of the version nonce and the fields the
// outline is built from.
func Fingerprint(el element.Element) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:]) // fnv.Write never returns an error
	}
	writeF := func(f float64) { writeU64(math.Float64bits(f)) }

	writeU64(uint64(el.VersionNonce))
	_, _ = h.Write([]byte(el.Type))
	writeF(el.X)
	writeF(el.Y)
	writeF(el.Width)
	writeF(el.Height)
	writeF(el.Angle)
	writeF(el.StrokeWidth)
	writeF(el.Roughness)
	writeU64(uint64(el.Seed))
	if el.Roundness != nil {
		writeU64(uint64(el.Roundness.Type) + 1)
		if el.Roundness.Value != nil {
			writeF(*el.Roundness.Value)
		}
	} else {
		writeU64(0)
	}
	writeU64(uint64(len(el.Points)))
	for _, p := range el.Points {
		writeF(p.X)
		writeF(p.Y)
	}
	if el.IsDeleted {
		writeU64(1)
	}
	return h.Sum64()
}
