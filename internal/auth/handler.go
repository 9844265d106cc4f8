package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

const maxTokenRequest = 4 << 10

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type editTokenRequest struct {
	Passphrase  string `json:"passphrase"`
	DisplayName string `json:"displayName"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// EditToken handles POST /api/scenes/{sceneId}/edit-token. An open service
// accepts an empty body.
func (h *Handler) EditToken(w http.ResponseWriter, r *http.Request) {
	sceneID := mux.Vars(r)["sceneId"]

	var req editTokenRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTokenRequest)).Decode(&req)
	if err != nil && !(errors.Is(err, io.EOF) && h.service.Open()) {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid request body"})
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if !h.service.Open() && req.Passphrase == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"passphrase is required"})
		return
	}

	tok, err := h.service.IssueEditToken(sceneID, req.Passphrase, req.DisplayName)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		slog.Info("edit token refused", "scene", sceneID)
		writeJSON(w, http.StatusUnauthorized, errorResponse{"invalid credentials"})
	case err != nil:
		slog.Error("issue edit token", "scene", sceneID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})
	default:
		writeJSON(w, http.StatusCreated, tok)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
