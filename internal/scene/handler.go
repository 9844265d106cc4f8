package scene

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/isocanvas/isocanvas/internal/document"
)

const maxDocumentSize = 4 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name   string `json:"name"`
	Sample bool   `json:"sample"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	info, err := h.service.Create(r.Context(), req.Name, req.Sample)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Get(r.Context(), mux.Vars(r)["sceneId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	scenes, err := h.service.List(r.Context())
	if err != nil {
		slog.Error("list scenes failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, scenes)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["sceneId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetDocument writes the scene document as JSON, or YAML with ?format=yaml.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Document(r.Context(), mux.Vars(r)["sceneId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, err := doc.YAML()
		if err != nil {
			handleServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// PutDocument accepts a JSON or YAML (by Content-Type) document.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request too large"})
		return
	}

	var doc *document.Document
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		doc, err = document.ParseYAML(data)
	} else {
		doc, err = document.ParseJSON(data)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.service.PutDocument(r.Context(), mux.Vars(r)["sceneId"], doc); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
