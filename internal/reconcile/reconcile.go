// Package reconcile merges element records received from collaborators into
// a local scene.
//
// Every id is resolved last-writer-wins over (version, versionNonce, id).
// Because that is a total order, collaborators that apply the same records
// in any order end with the same scene. Absence never deletes: only an
// explicit tombstone record does.
package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/scene"
)

// Kind distinguishes a full snapshot from an incremental delta. Both merge
// the same way; a snapshot additionally reports how many local elements it
// did not mention.
type Kind string

const (
	KindSnapshot Kind = "snapshot"
	KindDelta    Kind = "delta"
)

// Batch is one remote message worth of records, still in wire form so that
// each record can be rejected on its own.
type Batch struct {
	Kind     Kind              `json:"kind"`
	Elements []json.RawMessage `json:"elements"`
}

// Rejection reports one record that could not be merged.
type Rejection struct {
	Index int
	ID    string
	Err   error
}

func (r Rejection) Error() string {
	if r.ID == "" {
		return fmt.Sprintf("element %d: %v", r.Index, r.Err)
	}
	return fmt.Sprintf("element %d (%s): %v", r.Index, r.ID, r.Err)
}

func (r Rejection) Unwrap() error { return r.Err }

// MarshalJSON renders Err as text.
func (r Rejection) MarshalJSON() ([]byte, error) {
	msg := ""
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return json.Marshal(struct {
		Index int    `json:"index"`
		ID    string `json:"id,omitempty"`
		Error string `json:"error"`
	}{r.Index, r.ID, msg})
}

// Result summarises one applied batch.
type Result struct {
	Kind     Kind        `json:"kind"`
	Inserted []string    `json:"inserted"`
	Updated  []string    `json:"updated"`
	Skipped  []string    `json:"skipped"`
	Rejected []Rejection `json:"rejected"`
	// Retained counts live local elements a snapshot did not mention.
	Retained int `json:"retained,omitempty"`
}

// Changed lists the ids whose stored record was replaced or created.
func (r Result) Changed() []string {
	out := make([]string, 0, len(r.Inserted)+len(r.Updated))
	out = append(out, r.Inserted...)
	return append(out, r.Updated...)
}

// Err combines every rejection, or returns nil when the batch was clean.
func (r Result) Err() error {
	var err error
	for _, rej := range r.Rejected {
		err = multierr.Append(err, rej)
	}
	return err
}

// Reconciler feeds remote records into one scene.
type Reconciler struct {
	scene  *scene.Scene
	logger *slog.Logger
}

func New(s *scene.Scene) *Reconciler {
	return &Reconciler{scene: s, logger: slog.Default()}
}

// WithLogger returns a copy of the reconciler that logs through l.
func (r *Reconciler) WithLogger(l *slog.Logger) *Reconciler {
	return &Reconciler{scene: r.scene, logger: l}
}

// Apply decodes and merges a wire batch. Malformed records are rejected
// individually; the rest of the batch is still applied.
func (r *Reconciler) Apply(b Batch) Result {
	decoded := make([]indexed, 0, len(b.Elements))
	var rejected []Rejection
	for i, raw := range b.Elements {
		el, err := element.Decode(raw)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, ID: peekID(raw), Err: err})
			continue
		}
		decoded = append(decoded, indexed{i, el})
	}
	return r.merge(b.Kind, decoded, rejected)
}

// ApplyElements validates and merges already decoded records. As with Apply,
// invalid records are rejected before duplicates are collapsed, so they can
// never displace a valid record for the same id.
func (r *Reconciler) ApplyElements(kind Kind, els []element.Element) Result {
	decoded := make([]indexed, 0, len(els))
	var rejected []Rejection
	for i, el := range els {
		if err := element.Validate(el); err != nil {
			rejected = append(rejected, Rejection{Index: i, ID: el.ID, Err: err})
			continue
		}
		decoded = append(decoded, indexed{i, el})
	}
	return r.merge(kind, decoded, rejected)
}

type indexed struct {
	index int
	el    element.Element
}

func (r *Reconciler) merge(kind Kind, in []indexed, rejected []Rejection) Result {
	if kind == "" {
		kind = KindDelta
	}
	res := Result{Kind: kind, Rejected: rejected}

	// A batch may carry the same id more than once; only its greatest record
	// takes part, at the position of the first occurrence.
	winners := dedupe(in)
	batch := make([]element.Element, len(winners))
	for i, w := range winners {
		batch[i] = w.el
	}

	for i, out := range r.scene.Merge(batch) {
		switch out.Action {
		case scene.MergeInserted:
			res.Inserted = append(res.Inserted, out.ID)
		case scene.MergeUpdated:
			res.Updated = append(res.Updated, out.ID)
		case scene.MergeSkipped:
			res.Skipped = append(res.Skipped, out.ID)
		case scene.MergeRejected:
			res.Rejected = append(res.Rejected, Rejection{Index: winners[i].index, ID: out.ID, Err: out.Err})
		}
	}

	if kind == KindSnapshot {
		seen := make(map[string]bool, len(winners))
		for _, w := range winners {
			seen[w.el.ID] = true
		}
		for _, el := range r.scene.NonDeleted() {
			if !seen[el.ID] {
				res.Retained++
			}
		}
	}

	for _, rej := range res.Rejected {
		r.logger.Warn("rejected remote element", "index", rej.Index, "id", rej.ID, "error", rej.Err)
	}
	r.logger.Debug("reconciled batch",
		"kind", kind,
		"inserted", len(res.Inserted),
		"updated", len(res.Updated),
		"skipped", len(res.Skipped),
		"rejected", len(res.Rejected),
	)
	return res
}

func dedupe(in []indexed) []indexed {
	pos := make(map[string]int, len(in))
	out := make([]indexed, 0, len(in))
	for _, rec := range in {
		i, ok := pos[rec.el.ID]
		if !ok {
			pos[rec.el.ID] = len(out)
			out = append(out, rec)
			continue
		}
		if element.Newer(rec.el, out[i].el) {
			out[i] = indexed{out[i].index, rec.el}
		}
	}
	return out
}

// peekID extracts the id of a record that failed to decode, if it has one.
func peekID(raw json.RawMessage) string {
	var probe struct {
		ID any `json:"id"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	if s, ok := probe.ID.(string); ok {
		return s
	}
	return ""
}

// ReconcileElements is the pure form of the merge: it returns the merged
// list without touching any scene. Local order is kept; ids only known
// remotely follow in remote order. Invalid remote records are ignored.
func ReconcileElements(local, remote []element.Element) []element.Element {
	out := make([]element.Element, 0, len(local)+len(remote))
	pos := make(map[string]int, len(local)+len(remote))
	for _, el := range local {
		if i, ok := pos[el.ID]; ok {
			if element.Newer(el, out[i]) {
				out[i] = el.Clone()
			}
			continue
		}
		pos[el.ID] = len(out)
		out = append(out, el.Clone())
	}
	for _, el := range remote {
		if element.Validate(el) != nil {
			continue
		}
		i, ok := pos[el.ID]
		if !ok {
			pos[el.ID] = len(out)
			out = append(out, el.Clone())
			continue
		}
		if element.Newer(el, out[i]) {
			out[i] = el.Clone()
		}
	}
	return out
}
