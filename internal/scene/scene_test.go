package scene

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScene(t *testing.T) *Scene {
	t.Helper()
	nonce := int64(1000)
	return New(
		WithClock(func() time.Time { return epoch }),
		WithNonceSource(func() int64 { nonce++; return nonce }),
		WithCellSize(50),
	)
}

func rect(id string, x, y, w, h float64) element.Element {
	el := element.New(element.TypeRectangle, x, y, w, h)
	el.ID = id
	el.Roughness = 0
	return el
}

func ids(els []element.Element) []string {
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.ID
	}
	return out
}

func TestInsert(t *testing.T) {
	s := newTestScene(t)
	require.NoError(t, s.Insert(rect("a", 0, 0, 10, 10)))

	err := s.Insert(rect("a", 5, 5, 1, 1))
	assert.ErrorIs(t, err, ErrDuplicateID)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 0.0, got.X, "duplicate insert must not overwrite")

	bad := rect("b", 0, 0, -1, 10)
	assert.ErrorIs(t, s.Insert(bad), element.ErrMalformed)
	assert.Equal(t, 1, s.Len())
}

func TestMutateBumpsVersion(t *testing.T) {
	s := newTestScene(t)
	require.NoError(t, s.Insert(rect("a", 0, 0, 10, 10)))

	before, _ := s.Get("a")
	after, err := s.Mutate("a", element.Patch{X: element.Ptr(42.0)})
	require.NoError(t, err)

	assert.Greater(t, after.Version, before.Version)
	assert.NotEqual(t, before.VersionNonce, after.VersionNonce)
	assert.Equal(t, epoch.UnixMilli(), after.Updated)
	assert.Equal(t, 42.0, after.X)

	// Style-only changes bump too.
	again, err := s.Mutate("a", element.Patch{StrokeColor: element.Ptr("#ff0000")})
	require.NoError(t, err)
	assert.Equal(t, after.Version+1, again.Version)
}

func TestMutateErrors(t *testing.T) {
	s := newTestScene(t)
	_, err := s.Mutate("missing", element.Patch{X: element.Ptr(1.0)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)

	require.NoError(t, s.Insert(rect("a", 0, 0, 10, 10)))
	_, err = s.Mutate("a", element.Patch{Width: element.Ptr(-5.0)})
	assert.ErrorIs(t, err, element.ErrMalformed)

	got, _ := s.Get("a")
	assert.Equal(t, int64(1), got.Version, "refused patch leaves the record untouched")
}

func TestDeleteKeepsTombstone(t *testing.T) {
	s := newTestScene(t)
	require.NoError(t, s.Insert(rect("a", 0, 0, 10, 10)))
	require.NoError(t, s.Insert(rect("b", 20, 0, 10, 10)))

	require.NoError(t, s.Delete("a"))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.True(t, got.IsDeleted)
	assert.Equal(t, int64(2), got.Version)

	assert.Equal(t, []string{"b"}, ids(s.NonDeleted()))
	assert.Equal(t, []string{"a", "b"}, ids(s.Elements()))

	_, ok = s.Resolve("a")
	assert.False(t, ok, "tombstones do not resolve")

	assert.ErrorIs(t, s.Insert(rect("a", 0, 0, 1, 1)), ErrDuplicateID, "ids are never reused")
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := newTestScene(t)
	el := element.New(element.TypeLine, 0, 0, 0, 0)
	el.ID = "l"
	el.Points = []element.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}
	require.NoError(t, s.Insert(el))

	el.Points[1].X = 999
	got, _ := s.Get("l")
	assert.Equal(t, 10.0, got.Points[1].X)

	got.Points[1].X = 555
	again, _ := s.Get("l")
	assert.Equal(t, 10.0, again.Points[1].X)
}

func TestNonDeletedViewIsRebuiltAfterChange(t *testing.T) {
	s := newTestScene(t)
	require.NoError(t, s.Insert(rect("a", 0, 0, 10, 10)))
	assert.Len(t, s.NonDeleted(), 1)

	require.NoError(t, s.Insert(rect("b", 0, 0, 10, 10)))
	assert.Equal(t, []string{"a", "b"}, ids(s.NonDeleted()))

	_, err := s.Mutate("a", element.Patch{Y: element.Ptr(3.0)})
	require.NoError(t, err)
	view := s.NonDeleted()
	assert.Equal(t, 3.0, view[0].Y)
}

func TestSubscribeOrder(t *testing.T) {
	s := newTestScene(t)

	var got []string
	unsubscribe := s.Subscribe(func(c Change) {
		got = append(got, fmt.Sprintf("%s:%v", c.Kind, c.IDs))
		// A subscriber reacting to an insert must not reorder delivery.
		if c.Kind == ChangeAdded && c.IDs[0] == "a" {
			_, err := s.Mutate("a", element.Patch{X: element.Ptr(1.0)})
			require.NoError(t, err)
		}
	})

	var second []uint64
	s.Subscribe(func(c Change) {
		// Observers see the mutation fully applied.
		if c.Kind == ChangeUpdated {
			el, _ := s.Get(c.IDs[0])
			assert.Equal(t, 1.0, el.X)
			require.NotNil(t, c.Patch)
			assert.Equal(t, []string{"x"}, c.Patch.Fields())
		}
		second = append(second, c.Nonce)
	})

	require.NoError(t, s.Insert(rect("a", 0, 0, 10, 10)))
	assert.Equal(t, []string{"added:[a]", "updated:[a]"}, got)
	assert.Equal(t, []uint64{1, 2}, second)

	unsubscribe()
	require.NoError(t, s.Insert(rect("b", 0, 0, 10, 10)))
	assert.Len(t, got, 2)
	assert.Equal(t, []uint64{1, 2, 3}, second)
}

func TestMerge(t *testing.T) {
	s := newTestScene(t)
	local := rect("a", 0, 0, 10, 10)
	local.Version = 3
	local.VersionNonce = 10
	require.NoError(t, s.Insert(local))

	var changes []Change
	s.Subscribe(func(c Change) { changes = append(changes, c) })

	older := local.Clone()
	older.Version = 2
	older.X = 100

	newer := rect("c", 5, 5, 5, 5)

	bad := rect("d", 0, 0, 1, 1)
	bad.Version = 0

	out := s.Merge([]element.Element{older, newer, bad})
	require.Len(t, out, 3)
	assert.Equal(t, MergeSkipped, out[0].Action)
	assert.Equal(t, MergeInserted, out[1].Action)
	assert.Equal(t, MergeRejected, out[2].Action)
	assert.ErrorIs(t, out[2].Err, element.ErrMalformed)

	got, _ := s.Get("a")
	assert.Empty(t, cmp.Diff(local, got))

	require.Len(t, changes, 1, "one notification per batch")
	assert.Equal(t, ChangeMerged, changes[0].Kind)
	assert.Equal(t, []string{"c"}, changes[0].IDs)

	// Nothing new: no notification.
	s.Merge([]element.Element{older})
	assert.Len(t, changes, 1)
}

func TestQuery(t *testing.T) {
	s := newTestScene(t)
	require.NoError(t, s.Insert(rect("far", 1000, 1000, 10, 10)))
	require.NoError(t, s.Insert(rect("near", 0, 0, 10, 10)))
	require.NoError(t, s.Insert(rect("big", -5000, -5000, 100000, 100000)))
	require.NoError(t, s.Insert(rect("over", 5, 5, 10, 10)))

	got := ids(s.Query(geometry.Rect{X: 4, Y: 4, Width: 2, Height: 2}))
	assert.Equal(t, []string{"near", "big", "over"}, got, "candidates come back in z-order")

	require.NoError(t, s.Delete("near"))
	got = ids(s.Query(geometry.Rect{X: 4, Y: 4, Width: 2, Height: 2}))
	assert.Equal(t, []string{"big", "over"}, got)

	_, err := s.Mutate("far", element.Patch{X: element.Ptr(0.0), Y: element.Ptr(0.0)})
	require.NoError(t, err)
	got = ids(s.Query(geometry.Rect{X: 4, Y: 4, Width: 2, Height: 2}))
	assert.Equal(t, []string{"far", "big", "over"}, got)
}

func TestQueryIncludesRotatedBounds(t *testing.T) {
	s := newTestScene(t)
	el := rect("r", 0, 0, 200, 10)
	el.Angle = 1.5707963267948966
	require.NoError(t, s.Insert(el))

	// Rotated a quarter turn the bar stands upright around x = 100.
	got := ids(s.Query(geometry.Rect{X: 100, Y: 80, Width: 1, Height: 1}))
	assert.Equal(t, []string{"r"}, got)
}

func TestIndependentScenes(t *testing.T) {
	a := newTestScene(t)
	b := newTestScene(t)
	require.NoError(t, a.Insert(rect("x", 0, 0, 1, 1)))
	assert.Zero(t, b.Len())
}
