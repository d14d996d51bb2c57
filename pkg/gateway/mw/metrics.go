package mw

import (
	"net/http"
	"time"
)

// RequestRecorder receives one observation per finished request.
type RequestRecorder interface {
	RecordRequest(route, method string, status int, duration time.Duration)
}

// Metrics records per-route request counts. It must wrap the mux so that
// r.Pattern is set by the time next returns.
func Metrics(rec RequestRecorder, next http.Handler) http.Handler {
	if rec == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww, sw := wrapStatus(w)
		next.ServeHTTP(ww, r)
		rec.RecordRequest(r.Pattern, r.Method, sw.status, time.Since(start))
	})
}
