package mw

import (
	"net/http"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
)

var corsAllowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

var corsAllowedHeaders = strings.Join([]string{
	"Content-Type",
	"X-Request-ID",
	"Accept-Language",
	APIVersionHeader,
}, ", ")

var corsExposedHeaders = strings.Join([]string{
	"X-Request-ID",
	"X-Model",
	"X-Generation-ID",
	"Retry-After",
}, ", ")

func CORS(cfg config.Config, next http.Handler) http.Handler {
	allowed := cfg.CORSAllowedOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))

		if r.Method == http.MethodOptions && strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != "" {
			if !originAllowed(allowed, origin) {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Non-preflight: only attach CORS headers when explicitly allowlisted.
		if originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Expose-Headers", corsExposedHeaders)
		}

		next.ServeHTTP(w, r)
	})
}

// OriginAllowed reports whether a browser origin may use the API. The voice
// upgrader reuses it for its CheckOrigin hook.
func OriginAllowed(cfg config.Config, origin string) bool {
	return originAllowed(cfg.CORSAllowedOrigins, strings.TrimSpace(origin))
}

func originAllowed(allowed map[string]struct{}, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return false
	}
	_, ok := allowed[origin]
	return ok
}
