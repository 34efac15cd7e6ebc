// Package board serves scene contents over plain HTTP for clients that do not
// hold a websocket open.
package board

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/sketchboard/internal/auth"
	"github.com/inamate/sketchboard/internal/element"
	"github.com/inamate/sketchboard/internal/geometry"
	"github.com/inamate/sketchboard/internal/hittest"
	"github.com/inamate/sketchboard/internal/reconcile"
	"github.com/inamate/sketchboard/internal/scene"
	"github.com/inamate/sketchboard/internal/shapecache"
)

const maxBodySize = 4 << 20

// Scenes is the part of the collaboration hub the handlers use.
type Scenes interface {
	Snapshot(sceneID string) ([]element.Element, error)
	Apply(sceneID, userID string, b reconcile.Batch) (reconcile.Result, error)
}

type Config struct {
	ShapeCacheSize   int
	FlattenTolerance float64
	TolerancePx      float64
	MinClickablePx   float64
}

type Handler struct {
	scenes Scenes
	cfg    Config
}

func NewHandler(scenes Scenes, cfg Config) *Handler {
	return &Handler{scenes: scenes, cfg: cfg}
}

type elementsResponse struct {
	SceneID  string            `json:"sceneId"`
	Elements []element.Element `json:"elements"`
}

// ListElements returns the live elements of a scene in z-order. With
// ?deleted=true tombstones are included.
func (h *Handler) ListElements(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	els, err := h.scenes.Snapshot(sceneID)
	if err != nil {
		slog.Error("snapshot scene failed", "error", err, "scene", sceneID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	if r.URL.Query().Get("deleted") != "true" {
		live := els[:0]
		for _, el := range els {
			if !el.IsDeleted {
				live = append(live, el)
			}
		}
		els = live
	}
	if els == nil {
		els = []element.Element{}
	}

	writeJSON(w, http.StatusOK, elementsResponse{SceneID: sceneID, Elements: els})
}

// SubmitElements merges a {kind, elements} batch into the scene.
func (h *Handler) SubmitElements(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	var batch reconcile.Batch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&batch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	switch batch.Kind {
	case "":
		batch.Kind = reconcile.KindDelta
	case reconcile.KindDelta, reconcile.KindSnapshot:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind must be snapshot or delta"})
		return
	}

	res, err := h.scenes.Apply(sceneID, auth.UserIDFromContext(r.Context()), batch)
	if err != nil {
		slog.Error("apply batch failed", "error", err, "scene", sceneID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := http.StatusOK
	if len(res.Rejected) > 0 && len(res.Changed()) == 0 && len(res.Skipped) == 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

type hitTestRequest struct {
	X       float64         `json:"x"`
	Y       float64         `json:"y"`
	Region  *geometry.Rect  `json:"region,omitempty"`
	Mode    string          `json:"mode,omitempty"`
	Options hittest.Options `json:"options"`
}

type hitTestResponse struct {
	IDs []string `json:"ids"`
}

// HitTest answers a point query or, when region is set, a marquee query.
func (h *Handler) HitTest(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	var req hitTestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	els, err := h.scenes.Snapshot(sceneID)
	if err != nil {
		slog.Error("snapshot scene failed", "error", err, "scene", sceneID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	s := scene.New()
	reconcile.New(s).ApplyElements(reconcile.KindSnapshot, els)
	tester := hittest.New(s, shapecache.New(h.cfg.ShapeCacheSize, h.cfg.FlattenTolerance),
		hittest.WithTolerancePx(h.cfg.TolerancePx),
		hittest.WithMinClickablePx(h.cfg.MinClickablePx),
	)
	defer tester.Close()

	var ids []string
	if req.Region != nil {
		mode, err := parseMode(req.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		ids = tester.HitTestRegion(*req.Region, mode, req.Options)
	} else {
		ids = tester.HitTest(geometry.Point{X: req.X, Y: req.Y}, req.Options)
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, http.StatusOK, hitTestResponse{IDs: ids})
}

func parseMode(s string) (hittest.Mode, error) {
	switch s {
	case "", "contain":
		return hittest.ModeContain, nil
	case "overlap":
		return hittest.ModeOverlap, nil
	}
	return 0, errors.New("mode must be contain or overlap")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
