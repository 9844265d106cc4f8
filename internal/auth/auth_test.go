package auth

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
)

const secret = "test-secret"

func TestOpenServiceIssuesWithoutPassphrase(t *testing.T) {
	s := NewService(secret, "")
	assert.True(t, s.Open())

	tok, err := s.IssueEditToken("scene_a", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Editor", tok.DisplayName)
	assert.True(t, strings.HasPrefix(tok.EditorID, "editor-"))

	claims, err := s.Authorize(tok.Token, "scene_a")
	require.NoError(t, err)
	assert.Equal(t, tok.EditorID, claims.EditorID)
	assert.Equal(t, "scene_a", claims.SceneID)
}

func TestPassphraseChecked(t *testing.T) {
	hash, err := HashPassphrase("open sesame")
	require.NoError(t, err)
	s := NewService(secret, hash)
	assert.False(t, s.Open())

	_, err = s.IssueEditToken("scene_a", "wrong", "Ann")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tok, err := s.IssueEditToken("scene_a", "open sesame", "Ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", tok.DisplayName)
}

func TestTokenRejections(t *testing.T) {
	s := NewService(secret, "")
	tok, err := s.IssueEditToken("scene_a", "", "Ann")
	require.NoError(t, err)

	_, err = s.Authorize(tok.Token, "scene_b")
	assert.ErrorIs(t, err, ErrWrongScene)

	other := NewService("other-secret", "")
	_, err = other.ValidateToken(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(tokenTTL + time.Hour) }
	_, err = s.ValidateToken(tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func router(s *Service) *mux.Router {
	r := mux.NewRouter()
	h := NewHandler(s)
	r.HandleFunc("/api/scenes/{sceneId}/edit-token", h.EditToken).Methods("POST")
	protected := r.PathPrefix("/api/scenes/{sceneId}").Subrouter()
	protected.Use(s.RequireEdit)
	protected.HandleFunc("/document", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"editor": ClaimsFromContext(r.Context()).EditorID})
	}).Methods("PUT")
	return r
}

func TestHandlerAndMiddleware(t *testing.T) {
	hash, err := HashPassphrase("pw")
	require.NoError(t, err)
	r := router(NewService(secret, hash))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scenes/scene_a/edit-token", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scenes/scene_a/edit-token", strings.NewReader(`{"passphrase":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scenes/scene_a/edit-token", strings.NewReader(`{"passphrase":"pw","displayName":"Ann"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var tok EditToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("PUT", "/api/scenes/scene_a/document", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("PUT", "/api/scenes/scene_b/document", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest("PUT", "/api/scenes/scene_a/document", nil)
	req.Header.Set("Authorization", "Basic "+tok.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest("PUT", "/api/scenes/scene_a/document", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), tok.EditorID)
}

func TestOpenServiceAcceptsEmptyBody(t *testing.T) {
	r := router(NewService(secret, ""))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/scenes/scene_a/edit-token", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var tok EditToken
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.Equal(t, "scene_a", tok.SceneID)
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws/scenes/scene_a?token=q", nil)
	assert.Equal(t, "q", TokenFromRequest(req))

	req.Header.Set("Authorization", "bearer h")
	assert.Equal(t, "h", TokenFromRequest(req))

	req.Header.Set("Authorization", "Token h")
	assert.Empty(t, TokenFromRequest(req))
}
