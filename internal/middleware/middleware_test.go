package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggerPassesThrough(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestCORS(t *testing.T) {
	r := mux.NewRouter()
	r.Use(CORS([]string{"localhost:5173"}))
	r.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET", "OPTIONS")

	tests := []struct {
		name   string
		method string
		origin string
		code   int
		allow  string
	}{
		{"allowed origin", http.MethodGet, "http://localhost:5173", http.StatusOK, "http://localhost:5173"},
		{"other origin", http.MethodGet, "http://evil.example", http.StatusOK, ""},
		{"preflight", http.MethodOptions, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.allow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestAllowedWildcard(t *testing.T) {
	assert.True(t, allowed([]string{"*"}, "https://anywhere.example"))
	assert.False(t, allowed(nil, "https://anywhere.example"))
}
