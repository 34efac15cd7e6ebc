package board

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/sketchboard/internal/collab"
	"github.com/inamate/sketchboard/internal/persist"
	"github.com/inamate/sketchboard/internal/reconcile"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	hub := collab.NewHub(persist.NewMemStore(), time.Hour)
	go hub.Run()
	t.Cleanup(hub.Stop)

	h := NewHandler(hub, Config{ShapeCacheSize: 64})
	r := mux.NewRouter()
	r.HandleFunc("/api/scenes/{sceneId}/elements", h.ListElements).Methods("GET")
	r.HandleFunc("/api/scenes/{sceneId}/elements", h.SubmitElements).Methods("POST")
	r.HandleFunc("/api/scenes/{sceneId}/hit-test", h.HitTest).Methods("POST")
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

const batch = `{"kind":"delta","elements":[
	{"id":"a","type":"rectangle","x":0,"y":0,"width":10,"height":10,"version":1,"versionNonce":1,"isDeleted":false,"strokeWidth":1,"roughness":0},
	{"id":"b","type":"rectangle","x":100,"y":0,"width":10,"height":10,"version":1,"versionNonce":1,"isDeleted":true,"strokeWidth":1}
]}`

func TestSubmitAndList(t *testing.T) {
	r := newRouter(t)

	rec := do(r, http.MethodPost, "/api/scenes/s1/elements", batch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res reconcile.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"a", "b"}, res.Inserted)

	rec = do(r, http.MethodGet, "/api/scenes/s1/elements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list elementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Elements, 1)
	assert.Equal(t, "a", list.Elements[0].ID)

	rec = do(r, http.MethodGet, "/api/scenes/s1/elements?deleted=true", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Elements, 2)

	rec = do(r, http.MethodGet, "/api/scenes/empty/elements", "")
	assert.JSONEq(t, `{"sceneId":"empty","elements":[]}`, rec.Body.String())
}

func TestSubmitRejects(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/scenes/s1/elements", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/scenes/s1/elements", `{"kind":"patch"}`).Code)

	rec := do(r, http.MethodPost, "/api/scenes/s1/elements", `{"elements":[{"id":"x","type":"blob"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"x"`)
}

func TestHitTestEndpoint(t *testing.T) {
	r := newRouter(t)
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/scenes/s1/elements", batch).Code)

	rec := do(r, http.MethodPost, "/api/scenes/s1/hit-test", `{"x":5,"y":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ids":["a"]}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/api/scenes/s1/hit-test", `{"x":105,"y":0}`)
	assert.JSONEq(t, `{"ids":[]}`, rec.Body.String(), "tombstones never hit")

	rec = do(r, http.MethodPost, "/api/scenes/s1/hit-test", `{"region":{"x":-5,"y":-5,"width":20,"height":20}}`)
	assert.JSONEq(t, `{"ids":["a"]}`, rec.Body.String())

	rec = do(r, http.MethodPost, "/api/scenes/s1/hit-test", `{"region":{"x":0,"y":0,"width":1,"height":1},"mode":"inside"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
