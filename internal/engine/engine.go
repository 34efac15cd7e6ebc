package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
	"github.com/inamate/sketchboard/internal/hittest"
	"github.com/inamate/sketchboard/internal/reconcile"
	"github.com/inamate/sketchboard/internal/scene"
	"github.com/inamate/sketchboard/internal/shapecache"
	"github.com/inamate/sketchboard/internal/typeid"
)

// Config holds the tunables an engine is created with.
type Config struct {
	ShapeCacheSize   int
	FlattenTolerance float64
	TolerancePx      float64
	MinClickablePx   float64
	CellSize         float64
}

// Engine owns one scene together with its shape cache, reconciler and hit
// tester. It processes commands from the frontend and returns query results
// as JSON strings. All methods except Enqueue must be called from the same
// goroutine.
type Engine struct {
	cfg Config

	scene  *scene.Scene
	cache  *shapecache.Cache
	recon  *reconcile.Reconciler
	tester *hittest.Tester
	queue  *reconcile.Queue

	// Selection state (the engine owns this)
	selection []string

	// Draw commands are recompiled only when the scene nonce moves.
	commands      string
	commandsNonce uint64
	compiled      bool

	listeners []func([]string)
}

// NewEngine creates an engine with an empty scene.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cfg:   cfg,
		cache: shapecache.New(cfg.ShapeCacheSize, cfg.FlattenTolerance),
		queue: reconcile.NewQueue(),
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	if e.tester != nil {
		e.tester.Close()
	}
	e.scene = scene.New(scene.WithCellSize(e.cfg.CellSize))
	e.cache.Purge()
	e.recon = reconcile.New(e.scene)
	e.tester = hittest.New(e.scene, e.cache,
		hittest.WithTolerancePx(e.cfg.TolerancePx),
		hittest.WithMinClickablePx(e.cfg.MinClickablePx),
	)
	e.scene.Subscribe(e.notify)
	e.selection = nil
	e.compiled = false
}

// Scene exposes the underlying store for callers that embed the engine.
func (e *Engine) Scene() *scene.Scene { return e.scene }

// --- Commands (frontend → engine) ---

// LoadScene replaces the scene with the records in jsonData, either a bare
// array of elements or an object with an "elements" array.
func (e *Engine) LoadScene(jsonData string) (reconcile.Result, error) {
	raws, err := parseElements(jsonData)
	if err != nil {
		return reconcile.Result{}, err
	}
	e.reset()
	return e.recon.Apply(reconcile.Batch{Kind: reconcile.KindSnapshot, Elements: raws}), nil
}

// LoadSampleScene loads the built-in sample scene.
func (e *Engine) LoadSampleScene() {
	e.reset()
	e.recon.ApplyElements(reconcile.KindSnapshot, element.NewSampleScene())
}

// ApplyRemote merges a {"kind", "elements"} batch from a collaborator and
// returns the result as JSON.
func (e *Engine) ApplyRemote(batchJSON string) (string, error) {
	var b reconcile.Batch
	if err := json.Unmarshal([]byte(batchJSON), &b); err != nil {
		return "", fmt.Errorf("decode batch: %w", err)
	}
	return marshal(e.recon.Apply(b)), nil
}

// Enqueue accepts a batch from any goroutine. It is applied by the next Pump.
func (e *Engine) Enqueue(b reconcile.Batch) {
	e.queue.Enqueue(b)
}

// Pump applies every queued batch and returns their results.
func (e *Engine) Pump() []reconcile.Result {
	return e.queue.Drain(e.recon)
}

// Ready signals that Pump has work.
func (e *Engine) Ready() <-chan struct{} {
	return e.queue.Ready()
}

// CreateElement inserts a new local element described by jsonData. Missing
// identity and versioning fields are filled in; the new id is returned.
func (e *Engine) CreateElement(jsonData string) (string, error) {
	var el element.Element
	if err := json.Unmarshal([]byte(jsonData), &el); err != nil {
		return "", fmt.Errorf("decode element: %w", err)
	}
	if el.ID == "" {
		el.ID = typeid.NewElementID()
	}
	if el.Version < 1 {
		el.Version = 1
	}
	if el.VersionNonce == 0 {
		el.VersionNonce = scene.RandomNonce()
	}
	if el.Seed == 0 {
		el.Seed = scene.RandomNonce()
	}
	if err := e.scene.Insert(el); err != nil {
		return "", err
	}
	return el.ID, nil
}

// MutateElement applies a JSON patch to one element.
func (e *Engine) MutateElement(id, patchJSON string) error {
	var p element.Patch
	if err := json.Unmarshal([]byte(patchJSON), &p); err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}
	_, err := e.scene.Mutate(id, p)
	return err
}

// DeleteElements tombstones every id, collecting failures.
func (e *Engine) DeleteElements(ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := e.scene.Delete(id); err != nil {
			errs = append(errs, err)
		}
	}
	e.selection = slices.DeleteFunc(e.selection, func(id string) bool { return slices.Contains(ids, id) })
	return errors.Join(errs...)
}

// SetSelection sets the selected element ids.
func (e *Engine) SetSelection(ids []string) {
	e.selection = ids
}

// OnChange registers fn to receive the changed ids after every scene change.
func (e *Engine) OnChange(fn func(ids []string)) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) notify(c scene.Change) {
	for _, fn := range e.listeners {
		fn(c.IDs)
	}
}

// --- Queries (frontend ← engine) ---

// Render returns the draw commands for the live elements as JSON.
func (e *Engine) Render() string {
	if !e.compiled || e.commandsNonce != e.scene.Nonce() {
		e.commands, _ = DrawCommandsToJSON(CompileDrawCommands(e.scene, e.cache))
		e.commandsNonce = e.scene.Nonce()
		e.compiled = true
	}
	return e.commands
}

// HitTest returns the id of the topmost element at (x, y) viewed at zoom,
// or an empty string.
func (e *Engine) HitTest(x, y, zoom float64) string {
	id, _ := e.tester.Topmost(geometry.Point{X: x, Y: y}, hittest.Options{Zoom: zoom})
	return id
}

// HitTestAll returns every element at (x, y) as a JSON array, topmost
// first. optsJSON may be empty.
func (e *Engine) HitTestAll(x, y float64, optsJSON string) (string, error) {
	opts, err := parseOptions(optsJSON)
	if err != nil {
		return "", err
	}
	return marshal(nonNil(e.tester.HitTest(geometry.Point{X: x, Y: y}, opts))), nil
}

// HitTestRegion returns the elements a marquee selects as a JSON array.
// mode is "contain" or "overlap".
func (e *Engine) HitTestRegion(x, y, w, h float64, mode, optsJSON string) (string, error) {
	opts, err := parseOptions(optsJSON)
	if err != nil {
		return "", err
	}
	m := hittest.ModeContain
	if mode == "overlap" {
		m = hittest.ModeOverlap
	}
	r := geometry.Rect{X: x, Y: y, Width: w, Height: h}
	return marshal(nonNil(e.tester.HitTestRegion(r, m, opts))), nil
}

// GetSelectionBounds returns the bounding box of the current selection as JSON.
func (e *Engine) GetSelectionBounds() string {
	return RectToJSON(GetSelectionBounds(e.scene, e.selection))
}

// GetSelection returns the current selection as JSON.
func (e *Engine) GetSelection() string {
	return marshal(nonNil(e.selection))
}

// GetElements returns the live elements as JSON in z-order.
func (e *Engine) GetElements() string {
	return marshal(e.scene.NonDeleted())
}

// GetAllElements returns every record, tombstones included, for syncing.
func (e *Engine) GetAllElements() string {
	return marshal(e.scene.Elements())
}

// GetCacheStats returns shape cache statistics as JSON.
func (e *Engine) GetCacheStats() string {
	return marshal(e.cache.Stats())
}

func parseElements(jsonData string) ([]json.RawMessage, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(jsonData), &raws); err == nil {
		return raws, nil
	}
	var wrapped struct {
		Elements []json.RawMessage `json:"elements"`
	}
	if err := json.Unmarshal([]byte(jsonData), &wrapped); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return wrapped.Elements, nil
}

func parseOptions(optsJSON string) (hittest.Options, error) {
	var opts hittest.Options
	if optsJSON == "" {
		return opts, nil
	}
	if err := json.Unmarshal([]byte(optsJSON), &opts); err != nil {
		return opts, fmt.Errorf("decode hit-test options: %w", err)
	}
	return opts, nil
}

func marshal(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
