package mw

import (
	"net/http"
	"slices"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/core"
)

const (
	APIVersionHeader    = "X-Omnichat-Version"
	SupportedAPIVersion = "1"
)

// APIVersion rejects /v1 requests that pin any version other than the
// supported one. A missing header means the current version.
func APIVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || IsWebSocketUpgrade(r) || !isV1Path(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		versions := splitHeaderTokens(r.Header.Values(APIVersionHeader))
		if slices.ContainsFunc(versions, func(v string) bool { return v != SupportedAPIVersion }) {
			reqID, _ := RequestIDFrom(r.Context())
			writeJSONError(w, http.StatusBadRequest, &core.Error{
				Type:      core.ErrInvalidRequest,
				Message:   "unsupported API version",
				Param:     APIVersionHeader,
				Code:      "unsupported_version",
				RequestID: reqID,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isV1Path(path string) bool {
	return path == "/v1" || strings.HasPrefix(path, "/v1/")
}

// IsWebSocketUpgrade reports whether r asks for a websocket upgrade.
func IsWebSocketUpgrade(r *http.Request) bool {
	if !slices.ContainsFunc(splitHeaderTokens(r.Header.Values("Connection")), func(tok string) bool {
		return strings.EqualFold(tok, "upgrade")
	}) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket")
}

func splitHeaderTokens(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
