package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/gemini-omnichat/pkg/gateway/lifecycle"
)

func TestHealthHandler(t *testing.T) {
	rr := serve(HealthHandler{}, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler_Ready(t *testing.T) {
	rr := serve(ReadyHandler{Config: testConfig(), Lifecycle: &lifecycle.Lifecycle{}}, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	decodeBody(t, rr.Body, &resp)
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("ok = %v, want true", resp["ok"])
	}
}

func TestReadyHandler_MissingKeyNotReady(t *testing.T) {
	cfg := testConfig()
	cfg.GeminiAPIKey = ""
	rr := serve(ReadyHandler{Config: cfg}, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestReadyHandler_Draining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	rr := serve(ReadyHandler{Config: testConfig(), Lifecycle: lc}, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
	var resp map[string]any
	decodeBody(t, rr.Body, &resp)
	if resp["draining"] != true || resp["draining_since"] == nil {
		t.Fatalf("resp = %v", resp)
	}
}
