package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type claimsKey struct{}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the token query parameter used by websocket clients,
// which cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

// RequireEdit rejects requests without a valid edit token for the
// {sceneId} route variable. A valid token for another scene is a 403.
func (s *Service) RequireEdit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{"missing edit token"})
			return
		}

		claims, err := s.Authorize(token, mux.Vars(r)["sceneId"])
		if errors.Is(err, ErrWrongScene) {
			writeJSON(w, http.StatusForbidden, errorResponse{"token is for another scene"})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{"invalid token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// ClaimsFromContext returns the claims RequireEdit stored, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}
