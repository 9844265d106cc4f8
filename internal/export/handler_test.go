package export

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/geometry"
	"github.com/isocanvas/isocanvas/internal/persist"
	"github.com/isocanvas/isocanvas/internal/render"
	"github.com/isocanvas/isocanvas/internal/store"
)

type fakeSource map[string]*document.Document

func (f fakeSource) Document(_ context.Context, id string) (*document.Document, error) {
	doc, ok := f[id]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return doc, nil
}

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	vp, err := coords.NewViewport(10, 64, 48)
	require.NoError(t, err)
	opts := store.Options{
		Viewport:     vp,
		DefaultStyle: geometry.Style{StrokeColor: 0xffffff, StrokeWidth: 1, StrokeAlpha: 1},
	}

	visible := true
	source := fakeSource{
		"scene_empty": {Version: document.FormatVersion},
		"scene_square": {
			Version: document.FormatVersion,
			Objects: []document.Record{{
				ID:        "obj_square",
				Kind:      geometry.KindRectangle,
				CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Visible:   &visible,
				Vertices: []coords.Pixeloid{{X: 1, Y: 1}, {X: 4, Y: 4}},
				Style: geometry.Style{
					StrokeColor: 0xff0000, StrokeWidth: 1, StrokeAlpha: 1,
					FillEnabled: true, FillColor: 0xff0000, FillAlpha: 1,
				}.Settings(),
			}},
		},
	}

	h := NewHandler(source, opts, render.DefaultTheme)
	r := mux.NewRouter()
	r.HandleFunc("/scenes/{sceneId}/snapshot.png", h.Snapshot).Methods("GET")
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSnapshotPNG(t *testing.T) {
	r := newRouter(t)

	rec := get(r, "/scenes/scene_square/snapshot.png?layers=geometry")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	// Inside the filled square, (25,25) on screen is pixeloid (2.5,2.5).
	rr, _, _, a := img.At(25, 25).RGBA()
	assert.NotZero(t, a)
	assert.Greater(t, rr, uint32(0x8000))
}

func TestSnapshotQueryOverrides(t *testing.T) {
	r := newRouter(t)

	rec := get(r, "/scenes/scene_empty/snapshot.png?scale=4&width=20&height=10&ox=3&oy=-2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestSnapshotErrors(t *testing.T) {
	r := newRouter(t)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"unknown scene", "/scenes/scene_nope/snapshot.png", http.StatusNotFound},
		{"zero scale", "/scenes/scene_empty/snapshot.png?scale=0", http.StatusBadRequest},
		{"bad width", "/scenes/scene_empty/snapshot.png?width=wide", http.StatusBadRequest},
		{"nan offset", "/scenes/scene_empty/snapshot.png?ox=NaN", http.StatusBadRequest},
		{"too large", "/scenes/scene_empty/snapshot.png?width=10000&height=10000", http.StatusBadRequest},
		{"overflowing size", "/scenes/scene_empty/snapshot.png?width=4294967296&height=4294967296", http.StatusBadRequest},
		{"negative size", "/scenes/scene_empty/snapshot.png?width=-4&height=-4", http.StatusBadRequest},
		{"unknown layer", "/scenes/scene_empty/snapshot.png?layers=grid,shadows", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, get(r, tt.path).Code)
		})
	}
}

func TestSnapshotLayersAndLimits(t *testing.T) {
	layers, err := ParseLayers("grid, geometry")
	require.NoError(t, err)
	assert.Equal(t, []render.Layer{render.LayerGrid, render.LayerGeometry}, layers)

	doc := &document.Document{Version: document.FormatVersion}
	opts := store.Options{DefaultStyle: geometry.DefaultStyle}

	_, err = Snapshot(doc, coords.Viewport{Scale: 1, Width: 5000, Height: 5000}, opts, render.DefaultTheme, nil)
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = Snapshot(doc, coords.Viewport{Scale: 1, Width: 1 << 32, Height: 1 << 32}, opts, render.DefaultTheme, nil)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.NoError(t, CheckSize(coords.Viewport{Scale: 1, Width: 4096, Height: 4096}))

	target, err := Snapshot(doc, coords.Viewport{Scale: 2, Width: 8, Height: 8}, opts, render.DefaultTheme, layers)
	require.NoError(t, err)
	img, err := target.Image()
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}
