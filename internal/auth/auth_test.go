package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	h := Middleware(Config{Enabled: true, Token: "s3cret"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/healthz", "", http.StatusOK},
		{"catalog is public", "/api/v1/catalog", "", http.StatusOK},
		{"evaluate is public", "/api/v1/events/Great Conjunction/evaluate", "", http.StatusOK},
		{"search needs token", "/api/v1/events/Great Conjunction/search", "", http.StatusUnauthorized},
		{"search with token", "/api/v1/events/Great Conjunction/search", "Bearer s3cret", http.StatusOK},
		{"wrong token", "/api/v1/upcoming", "Bearer nope", http.StatusUnauthorized},
		{"missing scheme", "/api/v1/upcoming", "s3cret", http.StatusUnauthorized},
		{"stream needs token", "/api/v1/stream/search", "", http.StatusUnauthorized},
		{"precomputed needs token", "/api/v1/precomputed", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

// TestMiddlewareDisabled verifies nothing is checked when auth is off.
func TestMiddlewareDisabled(t *testing.T) {
	h := Middleware(Config{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/upcoming", nil))
	if w.Code != http.StatusOK {
		t.Errorf("got %d, want %d", w.Code, http.StatusOK)
	}
}
