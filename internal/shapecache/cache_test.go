package shapecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
)

func testElement() element.Element {
	el := element.New(element.TypeRectangle, 0, 0, 100, 50)
	el.ID = "a"
	el.Seed = 7
	el.VersionNonce = 11
	return el
}

func TestGetMemoises(t *testing.T) {
	c := New(16, 0)
	el := testElement()

	first := c.Get(el)
	second := c.Get(el)
	assert.Same(t, first, second)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.InDelta(t, 0.5, st.HitRate, 1e-9)
	assert.Equal(t, 1, c.Len())
}

func TestVersionBumpRecomputes(t *testing.T) {
	c := New(16, 0)
	el := testElement()
	old := c.Get(el)

	el.X = 500
	el.Version++
	el.VersionNonce = 99
	fresh := c.Get(el)

	assert.NotSame(t, old, fresh)
	assert.Equal(t, geometry.NewShape(el, 0).Bounds, fresh.Bounds, "cached shape equals recomputation")
}

func TestSameVersionDifferentNonce(t *testing.T) {
	// Two clients bumped the same element to the same version concurrently.
	c := New(16, 0)
	a := testElement()
	a.Version = 2
	a.VersionNonce = 100

	b := a.Clone()
	b.VersionNonce = 200
	b.Width = 300

	sa := c.Get(a)
	sb := c.Get(b)
	assert.NotSame(t, sa, sb)
	assert.NotEqual(t, sa.Bounds, sb.Bounds)
	assert.Equal(t, 2, c.Len())
}

func TestFingerprintIgnoresStyle(t *testing.T) {
	a := testElement()
	b := a.Clone()
	b.StrokeColor = "#ff0000"
	b.Opacity = 30
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	b.Points = []element.Point{{X: 1, Y: 2}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestForget(t *testing.T) {
	c := New(16, 0)
	el := testElement()
	c.Get(el)
	el.Version++
	c.Get(el)

	other := testElement()
	other.ID = "b"
	c.Get(other)

	assert.Equal(t, 2, c.Forget("a"))
	assert.Equal(t, 1, c.Len())
	_, ok := c.Peek(other)
	assert.True(t, ok)
}

func TestEviction(t *testing.T) {
	c := New(2, 0)
	for i, id := range []string{"a", "b", "c"} {
		el := testElement()
		el.ID = id
		el.X = float64(i)
		c.Get(el)
	}
	assert.Equal(t, 2, c.Len())

	first := testElement()
	_, ok := c.Peek(first)
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestPurge(t *testing.T) {
	c := New(0, 0)
	require.Equal(t, DefaultSize, c.Stats().Size)
	c.Get(testElement())
	c.Purge()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Stats().Misses)
}
