// Package scene is the authoritative element store of one document.
//
// A Scene is owned by a single goroutine. Every record it holds was validated
// on the way in and is cloned on the way out, so callers can never reach the
// stored slices.
package scene

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
)

var (
	ErrDuplicateID = errors.New("duplicate element id")
	ErrNotFound    = errors.New("element not found")
)

// ChangeKind classifies a change notification.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdated
	ChangeMerged
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeMerged:
		return "merged"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change is delivered to subscribers after a mutation is fully applied.
// Patch is only set for ChangeUpdated.
type Change struct {
	Kind  ChangeKind
	IDs   []string
	Patch *element.Patch
	Nonce uint64
}

// MergeAction is what Merge did with one remote record.
type MergeAction int

const (
	MergeSkipped MergeAction = iota
	MergeInserted
	MergeUpdated
	MergeRejected
)

func (a MergeAction) String() string {
	switch a {
	case MergeSkipped:
		return "skipped"
	case MergeInserted:
		return "inserted"
	case MergeUpdated:
		return "updated"
	case MergeRejected:
		return "rejected"
	}
	return fmt.Sprintf("MergeAction(%d)", int(a))
}

type MergeOutcome struct {
	ID     string
	Action MergeAction
	Err    error
}

type subscriber struct {
	id int
	fn func(Change)
}

// Scene maps element ids to records in z-order (insertion order, later on
// top) and keeps a non-deleted view and a spatial index in step with them.
type Scene struct {
	records map[string]*element.Element
	z       map[string]int
	order   []string

	nonDeleted []element.Element
	viewValid  bool

	grid  *grid
	nonce uint64

	subs      []subscriber
	nextSub   int
	pending   []Change
	notifying bool

	clock    func() time.Time
	nonceSrc func() int64
	cellSize float64
}

// Option configures a Scene.
type Option func(*Scene)

// WithClock sets the time source for the updated field.
func WithClock(clock func() time.Time) Option {
	return func(s *Scene) { s.clock = clock }
}

// WithNonceSource sets the generator for versionNonce values.
func WithNonceSource(fn func() int64) Option {
	return func(s *Scene) { s.nonceSrc = fn }
}

// WithCellSize sets the spatial grid cell size in scene units.
func WithCellSize(size float64) Option {
	return func(s *Scene) { s.cellSize = size }
}

// RandomNonce returns a random non-negative 31-bit integer, the range every
// collaborating client draws nonces from.
func RandomNonce() int64 {
	return int64(rand.Int32())
}

// New creates an empty scene.
func New(opts ...Option) *Scene {
	s := &Scene{
		records:  make(map[string]*element.Element),
		z:        make(map[string]int),
		clock:    time.Now,
		nonceSrc: RandomNonce,
		cellSize: DefaultCellSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grid = newGrid(s.cellSize)
	return s
}

// Len is the number of records, tombstones included.
func (s *Scene) Len() int {
	return len(s.order)
}

// Nonce increases on every applied change. Renderers compare it to decide
// whether anything needs repainting.
func (s *Scene) Nonce() uint64 {
	return s.nonce
}

// Insert adds a new record. It never overwrites: an existing id (live or
// tombstoned) fails with ErrDuplicateID.
func (s *Scene) Insert(el element.Element) error {
	if _, ok := s.records[el.ID]; ok {
		return fmt.Errorf("insert %q: %w", el.ID, ErrDuplicateID)
	}
	if err := element.Validate(el); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	s.put(el.Clone())
	s.emit(Change{Kind: ChangeAdded, IDs: []string{el.ID}})
	return nil
}

// Mutate applies a partial update, bumps the version, draws a fresh nonce
// and stamps the update time. A patch that would leave the record invalid is
// refused and the record is left untouched.
func (s *Scene) Mutate(id string, p element.Patch) (element.Element, error) {
	cur, ok := s.records[id]
	if !ok {
		return element.Element{}, fmt.Errorf("mutate %q: %w", id, ErrNotFound)
	}

	next := cur.Clone()
	p.Apply(&next)
	next.Version = cur.Version + 1
	next.VersionNonce = s.nonceSrc()
	next.Updated = s.clock().UnixMilli()
	if err := element.Validate(next); err != nil {
		return element.Element{}, fmt.Errorf("mutate %q: %w", id, err)
	}

	s.replace(next)
	s.emit(Change{Kind: ChangeUpdated, IDs: []string{id}, Patch: &p})
	return next.Clone(), nil
}

// Delete tombstones the record. The record is kept for reconciliation.
func (s *Scene) Delete(id string) error {
	_, err := s.Mutate(id, element.Patch{IsDeleted: element.Ptr(true)})
	return err
}

// Get returns the record, tombstones included.
func (s *Scene) Get(id string) (element.Element, bool) {
	el, ok := s.records[id]
	if !ok {
		return element.Element{}, false
	}
	return el.Clone(), true
}

// Resolve looks up a weak reference: a missing or tombstoned target is
// reported as absent.
func (s *Scene) Resolve(id string) (element.Element, bool) {
	el, ok := s.records[id]
	if !ok || el.IsDeleted {
		return element.Element{}, false
	}
	return el.Clone(), true
}

// ZIndex returns the element's position in z-order.
func (s *Scene) ZIndex(id string) (int, bool) {
	z, ok := s.z[id]
	return z, ok
}

// NonDeleted returns the live elements in z-order. The view is rebuilt
// lazily after a change; the returned elements must not be modified.
func (s *Scene) NonDeleted() []element.Element {
	if !s.viewValid {
		s.nonDeleted = s.nonDeleted[:0]
		for _, id := range s.order {
			if el := s.records[id]; !el.IsDeleted {
				s.nonDeleted = append(s.nonDeleted, el.Clone())
			}
		}
		s.viewValid = true
	}
	out := make([]element.Element, len(s.nonDeleted))
	copy(out, s.nonDeleted)
	return out
}

// Elements returns every record in z-order, tombstones included.
func (s *Scene) Elements() []element.Element {
	out := make([]element.Element, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// Query returns the live elements whose padded bounds may overlap r, in
// z-order. It is a candidate filter; callers run the precise test.
func (s *Scene) Query(r geometry.Rect) []element.Element {
	ids := s.grid.query(r)
	hits := make([]string, 0, len(ids))
	for id := range ids {
		hits = append(hits, id)
	}
	slices.SortFunc(hits, func(a, b string) int { return s.z[a] - s.z[b] })

	out := make([]element.Element, 0, len(hits))
	for _, id := range hits {
		out = append(out, s.records[id].Clone())
	}
	return out
}

// Merge is the reconciliation entry point. Unknown ids are inserted; a known
// id is replaced only when the remote record is strictly newer by
// element.Compare. Subscribers receive one ChangeMerged for the whole batch.
func (s *Scene) Merge(remote []element.Element) []MergeOutcome {
	out := make([]MergeOutcome, 0, len(remote))
	var changed []string
	touched := make(map[string]bool)
	mark := func(id string) {
		if !touched[id] {
			touched[id] = true
			changed = append(changed, id)
		}
	}

	for _, r := range remote {
		if err := element.Validate(r); err != nil {
			out = append(out, MergeOutcome{ID: r.ID, Action: MergeRejected, Err: err})
			continue
		}
		cur, ok := s.records[r.ID]
		switch {
		case !ok:
			s.put(r.Clone())
			out = append(out, MergeOutcome{ID: r.ID, Action: MergeInserted})
			mark(r.ID)
		case element.Newer(r, *cur):
			s.replace(r.Clone())
			out = append(out, MergeOutcome{ID: r.ID, Action: MergeUpdated})
			mark(r.ID)
		default:
			out = append(out, MergeOutcome{ID: r.ID, Action: MergeSkipped})
		}
	}

	if len(changed) > 0 {
		slog.Debug("scene merge", "changed", len(changed), "received", len(remote))
		s.emit(Change{Kind: ChangeMerged, IDs: changed})
	}
	return out
}

// Subscribe registers fn for change notifications. Notifications are
// delivered synchronously and in the order changes were applied, including
// changes made by a subscriber while handling one.
func (s *Scene) Subscribe(fn func(Change)) (unsubscribe func()) {
	id := s.nextSub
	s.nextSub++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *Scene) put(el element.Element) {
	s.records[el.ID] = &el
	s.z[el.ID] = len(s.order)
	s.order = append(s.order, el.ID)
	s.index(&el)
	s.viewValid = false
}

func (s *Scene) replace(el element.Element) {
	s.records[el.ID] = &el
	s.index(&el)
	s.viewValid = false
}

func (s *Scene) index(el *element.Element) {
	if el.IsDeleted {
		s.grid.remove(el.ID)
		return
	}
	s.grid.insert(el.ID, geometry.BoundingBox(*el).Expand(geometry.Padding(*el)))
}

func (s *Scene) emit(c Change) {
	s.nonce++
	c.Nonce = s.nonce
	s.pending = append(s.pending, c)
	if s.notifying {
		return
	}

	s.notifying = true
	defer func() { s.notifying = false }()
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		for _, sub := range slices.Clone(s.subs) {
			sub.fn(next)
		}
	}
}
