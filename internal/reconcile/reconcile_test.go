package reconcile

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/scene"
)

func record(id string, version, nonce int64) element.Element {
	el := element.New(element.TypeRectangle, float64(version), float64(nonce), 10, 10)
	el.ID = id
	el.Version = version
	el.VersionNonce = nonce
	return el
}

func wire(t *testing.T, els ...element.Element) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(els))
	for i, el := range els {
		raw, err := json.Marshal(el)
		require.NoError(t, err)
		out[i] = raw
	}
	return out
}

func TestStaleRemoteIsNoOp(t *testing.T) {
	s := scene.New()
	require.NoError(t, s.Insert(record("e1", 3, 1)))
	r := New(s)

	res := r.Apply(Batch{Kind: KindDelta, Elements: wire(t, record("e1", 2, 999))})
	assert.Equal(t, []string{"e1"}, res.Skipped)
	assert.Empty(t, res.Changed())

	got, _ := s.Get("e1")
	assert.Equal(t, int64(3), got.Version)
}

func TestEqualVersionHigherNonceWins(t *testing.T) {
	s := scene.New()
	local := record("e1", 2, 100)
	require.NoError(t, s.Insert(local))
	r := New(s)

	remote := record("e1", 2, 500)
	remote.StrokeColor = "#00ff00"
	res := r.ApplyElements(KindDelta, []element.Element{remote})
	assert.Equal(t, []string{"e1"}, res.Updated)

	got, _ := s.Get("e1")
	assert.Equal(t, int64(500), got.VersionNonce)
	assert.Equal(t, "#00ff00", got.StrokeColor)
}

func TestSnapshotNeverDeletesByOmission(t *testing.T) {
	s := scene.New()
	require.NoError(t, s.Insert(record("e1", 1, 1)))
	require.NoError(t, s.Insert(record("e2", 1, 1)))
	require.NoError(t, s.Delete("e1"))
	r := New(s)

	res := r.Apply(Batch{Kind: KindSnapshot, Elements: wire(t, record("e3", 1, 1))})
	assert.Equal(t, []string{"e3"}, res.Inserted)
	assert.Equal(t, 1, res.Retained, "e2 is live and was not mentioned")

	tomb, ok := s.Get("e1")
	require.True(t, ok)
	assert.True(t, tomb.IsDeleted)

	live := s.NonDeleted()
	require.Len(t, live, 2)
	assert.Equal(t, "e2", live[0].ID)
	assert.Equal(t, "e3", live[1].ID)
}

func TestRemoteTombstoneDeletes(t *testing.T) {
	s := scene.New()
	require.NoError(t, s.Insert(record("e1", 1, 1)))
	r := New(s)

	tomb := record("e1", 2, 7)
	tomb.IsDeleted = true
	r.ApplyElements(KindDelta, []element.Element{tomb})

	assert.Empty(t, s.NonDeleted())

	// A late, older live copy cannot resurrect it.
	r.ApplyElements(KindSnapshot, []element.Element{record("e1", 1, 1)})
	assert.Empty(t, s.NonDeleted())
}

func TestMalformedRecordsAreRejectedIndividually(t *testing.T) {
	s := scene.New()
	r := New(s)

	negative := record("neg", 1, 1)
	negative.Width = -4

	raws := wire(t, record("ok1", 1, 1), negative, record("ok2", 1, 1))
	raws = append(raws,
		json.RawMessage(`{"id":"noversion","type":"rectangle","versionNonce":1,"isDeleted":false}`),
		json.RawMessage(`"not an object"`),
		json.RawMessage(`{"id":"weird","type":"hexagon","version":1,"versionNonce":1,"isDeleted":false}`),
	)

	res := r.Apply(Batch{Kind: KindDelta, Elements: raws})
	assert.Equal(t, []string{"ok1", "ok2"}, res.Inserted)
	require.Len(t, res.Rejected, 4)

	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, "neg", res.Rejected[0].ID)
	assert.Equal(t, "noversion", res.Rejected[1].ID)
	assert.Equal(t, "", res.Rejected[2].ID)
	assert.Equal(t, 5, res.Rejected[3].Index)

	err := res.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, element.ErrMalformed))
	assert.Equal(t, 2, s.Len())

	out, err := json.Marshal(res.Rejected[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"error":"malformed element`)
}

func TestCleanBatchHasNoError(t *testing.T) {
	res := New(scene.New()).ApplyElements(KindDelta, []element.Element{record("a", 1, 1)})
	assert.NoError(t, res.Err())
}

func TestDuplicateIDsInBatch(t *testing.T) {
	s := scene.New()
	r := New(s)

	res := r.ApplyElements(KindDelta, []element.Element{
		record("a", 1, 1),
		record("a", 4, 1),
		record("a", 2, 9),
	})
	assert.Equal(t, []string{"a"}, res.Inserted)

	got, _ := s.Get("a")
	assert.Equal(t, int64(4), got.Version)
}

func TestInvalidDuplicateDoesNotDisplaceValidRecord(t *testing.T) {
	s := scene.New()
	r := New(s)

	good := record("a", 2, 1)
	bad := record("a", 3, 1)
	bad.Width = -5

	res := r.ApplyElements(KindSnapshot, []element.Element{good, bad})
	assert.Equal(t, []string{"a"}, res.Inserted)
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Equal(t, "a", res.Rejected[0].ID)
	assert.True(t, errors.Is(res.Rejected[0].Err, element.ErrMalformed))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, 10.0, got.Width)
}

func TestIdempotence(t *testing.T) {
	s := scene.New()
	r := New(s)
	batch := Batch{Kind: KindSnapshot, Elements: wire(t, record("a", 3, 5), record("b", 1, 2))}

	first := r.Apply(batch)
	assert.Len(t, first.Inserted, 2)
	snapshot := s.Elements()

	var notified int
	s.Subscribe(func(scene.Change) { notified++ })
	second := r.Apply(batch)
	assert.Empty(t, second.Changed())
	assert.Zero(t, notified)
	assert.Empty(t, cmp.Diff(snapshot, s.Elements()))
}

// Applying the same records in any order must produce the same scene.
func TestConvergence(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	ids := []string{"a", "b", "c", "d"}

	for round := 0; round < 200; round++ {
		var records []element.Element
		for i := 0; i < 12; i++ {
			el := record(ids[rng.IntN(len(ids))], int64(1+rng.IntN(3)), int64(rng.IntN(3)))
			// Equal merge keys only ever belong to identical records.
			el.IsDeleted = (el.Version+el.VersionNonce)%3 == 0
			records = append(records, el)
		}

		forward := scene.New()
		for _, el := range records {
			New(forward).ApplyElements(KindDelta, []element.Element{el})
		}

		shuffled := append([]element.Element(nil), records...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		backward := scene.New()
		New(backward).ApplyElements(KindSnapshot, shuffled)

		for _, id := range ids {
			f, fok := forward.Get(id)
			b, bok := backward.Get(id)
			require.Equal(t, fok, bok)
			require.Empty(t, cmp.Diff(f, b), "round %d id %s", round, id)
		}
	}
}

func TestReconcileElements(t *testing.T) {
	local := []element.Element{record("a", 2, 1), record("b", 1, 1)}
	remote := []element.Element{record("b", 3, 0), record("c", 1, 1), record("a", 1, 50)}
	bad := record("d", 0, 0)
	remote = append(remote, bad)

	merged := ReconcileElements(local, remote)
	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, int64(2), merged[0].Version)
	assert.Equal(t, "b", merged[1].ID)
	assert.Equal(t, int64(3), merged[1].Version)
	assert.Equal(t, "c", merged[2].ID)

	// Pure: inputs are untouched and commutative per id.
	again := ReconcileElements(remote[:3], local)
	for _, el := range merged {
		for _, other := range again {
			if other.ID == el.ID {
				assert.Empty(t, cmp.Diff(el, other))
			}
		}
	}
}

func TestQueueDrainsInArrivalOrder(t *testing.T) {
	s := scene.New()
	r := New(s)
	q := NewQueue()

	batches := make([]Batch, 8)
	for i := range batches {
		batches[i] = Batch{Kind: KindDelta, Elements: wire(t, record("shared", int64(i+1), 0))}
	}

	var wg sync.WaitGroup
	for _, b := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(b)
		}()
	}
	wg.Wait()

	select {
	case <-q.Ready():
	default:
		t.Fatal("expected a wake-up")
	}
	assert.Equal(t, 8, q.Len())

	results := q.Drain(r)
	assert.Len(t, results, 8)
	assert.Zero(t, q.Len())

	got, _ := s.Get("shared")
	assert.Equal(t, int64(8), got.Version, "the greatest version wins whatever the arrival order")
}
