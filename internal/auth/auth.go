// Package auth enforces bearer-token authentication on the expensive parts
// of the API. Read-only catalog and geometry endpoints stay public.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/httputil"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// exemptPaths are always public regardless of auth configuration.
var exemptPaths = map[string]bool{
	"/":                 true,
	"/healthz":          true,
	"/readyz":           true,
	"/metrics":          true,
	"/api/v1/catalog":   true,
	"/api/v1/events":    true,
	"/api/v1/positions": true,
	"/api/v1/keyframes": true,
}

// isExempt returns true if the path is exempt from auth. Evaluating an event
// at one instant is public; searching for one is not.
func isExempt(path string) bool {
	if exemptPaths[path] {
		return true
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/events/"); ok {
		return strings.HasSuffix(rest, "/evaluate")
	}
	return false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt paths when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")

			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sebaka"`)
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
