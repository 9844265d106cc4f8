package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/isocanvas/isocanvas/internal/coords"
	"github.com/isocanvas/isocanvas/internal/document"
	"github.com/isocanvas/isocanvas/internal/persist"
	"github.com/isocanvas/isocanvas/internal/render"
	"github.com/isocanvas/isocanvas/internal/store"
)

// DocumentSource returns the current document of a scene.
type DocumentSource interface {
	Document(ctx context.Context, sceneID string) (*document.Document, error)
}

type Handler struct {
	source DocumentSource
	opts   store.Options
	theme  render.Theme
}

// NewHandler renders snapshots with opts as the fallback viewport and style.
func NewHandler(source DocumentSource, opts store.Options, theme render.Theme) *Handler {
	return &Handler{source: source, opts: opts, theme: theme}
}

// Snapshot rasterizes a scene to PNG. The viewport starts from the one saved
// in the document and can be overridden with scale, width, height, ox and oy.
// layers is a comma separated list of layers to draw; the default is the
// pipeline's default set.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	doc, err := h.source.Document(r.Context(), sceneID)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			http.Error(w, "scene not found", http.StatusNotFound)
			return
		}
		slog.Error("load snapshot document", "scene", sceneID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	base := h.opts.Viewport
	if doc.Viewport != nil {
		base = *doc.Viewport
	}
	vp, err := viewportFromQuery(base, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := CheckSize(vp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var layers []render.Layer
	if raw := r.URL.Query().Get("layers"); raw != "" {
		if layers, err = ParseLayers(raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	target, err := Snapshot(doc, vp, h.opts, h.theme, layers)
	if err != nil {
		slog.Error("render snapshot", "scene", sceneID, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := target.EncodePNG(&buf); err != nil {
		slog.Error("encode snapshot", "scene", sceneID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("snapshot rendered", "scene", sceneID, "width", vp.Width, "height", vp.Height, "scale", vp.Scale)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.png"`, sceneID))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("write snapshot", "scene", sceneID, "error", err)
	}
}

func viewportFromQuery(vp coords.Viewport, r *http.Request) (coords.Viewport, error) {
	q := r.URL.Query()
	ints := []struct {
		name string
		dst  *int
	}{
		{"scale", &vp.Scale},
		{"width", &vp.Width},
		{"height", &vp.Height},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return vp, fmt.Errorf("invalid %s: %q", p.name, raw)
		}
		*p.dst = n
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"ox", &vp.Offset.X},
		{"oy", &vp.Offset.Y},
	}
	for _, p := range floats {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return vp, fmt.Errorf("invalid %s: %q", p.name, raw)
		}
		*p.dst = f
	}
	if err := vp.Validate(); err != nil {
		return vp, err
	}
	return vp, nil
}
