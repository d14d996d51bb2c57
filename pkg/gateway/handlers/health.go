package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK            bool     `json:"ok"`
		Draining      bool     `json:"draining,omitempty"`
		DrainingSince string   `json:"draining_since,omitempty"`
		LimitsEnabled bool     `json:"limits_enabled"`
		TracingOn     bool     `json:"tracing_enabled"`
		Issues        []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key is not configured")
	}
	if h.Config.MaxBodyBytes <= 0 {
		issues = append(issues, "max_body_bytes must be > 0")
	}
	if h.Config.SSEPingInterval <= 0 {
		issues = append(issues, "sse ping interval must be > 0")
	}
	if h.Config.SSEMaxStreamDuration <= 0 {
		issues = append(issues, "sse max stream duration must be > 0")
	}
	if h.Config.WSMaxSessionDuration <= 0 {
		issues = append(issues, "ws max session duration must be > 0")
	}
	if h.Config.WSMaxSessions <= 0 {
		issues = append(issues, "ws max sessions must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}

	resp := readyResp{
		LimitsEnabled: (h.Config.LimitRPS > 0 && h.Config.LimitBurst > 0) || h.Config.LimitMaxConcurrentStreams > 0,
		TracingOn:     h.Config.OTLPEndpoint != "",
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		resp.Draining = true
		if since := h.Lifecycle.DrainingSince(); !since.IsZero() {
			resp.DrainingSince = since.UTC().Format(time.RFC3339)
		}
		issues = append(issues, "draining")
	}
	resp.Issues = issues
	resp.OK = len(issues) == 0

	status := http.StatusOK
	switch {
	case resp.Draining:
		status = http.StatusServiceUnavailable
	case !resp.OK:
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
