package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

func TestModelsHandler(t *testing.T) {
	rr := serve(ModelsHandler{Config: testConfig()}, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var resp modelsResponse
	decodeBody(t, rr.Body, &resp)
	if len(resp.Models) != len(chat.KnownModels()) {
		t.Fatalf("models = %d, want %d", len(resp.Models), len(chat.KnownModels()))
	}
	if resp.Default != chat.DefaultModel || resp.Fallback != chat.FallbackModel {
		t.Fatalf("default=%q fallback=%q", resp.Default, resp.Fallback)
	}
	for _, m := range resp.Models {
		if m.ID == chat.ModelGemini3Pro && !m.HighPower {
			t.Fatalf("%s should be high power", m.ID)
		}
		if m.ID == chat.FallbackModel && !m.Fallback {
			t.Fatalf("%s should be marked fallback", m.ID)
		}
	}
}

func TestAgentsHandler_CreateAndList(t *testing.T) {
	store := chat.NewStore()
	h := AgentsHandler{Store: store, MaxBodyBytes: 1 << 16}

	body := `{"name":"Lawyer","description":"legal","system_instruction":"You review contracts.","icon":"gavel","category":"analysis"}`
	rr := serve(http.HandlerFunc(h.Create), httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created chat.Agent
	decodeBody(t, rr.Body, &created)
	if created.ID == "" || created.Icon != chat.IconGavel || created.IsSystem {
		t.Fatalf("created = %+v", created)
	}

	rr = serve(http.HandlerFunc(h.List), httptest.NewRequest(http.MethodGet, "/v1/agents", nil))
	var resp agentsResponse
	decodeBody(t, rr.Body, &resp)
	if n := len(resp.Agents); n != len(chat.DefaultAgents())+1 {
		t.Fatalf("agents = %d", n)
	}
	if resp.Agents[len(resp.Agents)-1].ID != created.ID {
		t.Fatalf("new agent not appended last")
	}
}

func TestAgentsHandler_CreateRequiresName(t *testing.T) {
	h := AgentsHandler{Store: chat.NewStore()}
	rr := serve(http.HandlerFunc(h.Create), httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader(`{"system_instruction":"x"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if typ, param := errorCode(t, rr.Body); typ != "invalid_request_error" || param != "name" {
		t.Fatalf("type=%q param=%q", typ, param)
	}
}

func TestAgentsHandler_RejectsUnknownFields(t *testing.T) {
	h := AgentsHandler{Store: chat.NewStore()}
	rr := serve(http.HandlerFunc(h.Create), httptest.NewRequest(http.MethodPost, "/v1/agents", strings.NewReader(`{"name":"a","system_instruction":"b","colour":"red"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestSettingsHandler_PartialUpdate(t *testing.T) {
	store := chat.NewStore()
	h := SettingsHandler{Store: store}

	rr := serve(http.HandlerFunc(h.Put), httptest.NewRequest(http.MethodPut, "/v1/settings", strings.NewReader(`{"language":"en-US","thinking_mode":true}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := store.Snapshot().Settings
	if got.Language != chat.LanguageEnglish || !got.ThinkingMode || got.SelectedModel != chat.DefaultModel {
		t.Fatalf("settings = %+v", got)
	}

	rr = serve(http.HandlerFunc(h.Get), httptest.NewRequest(http.MethodGet, "/v1/settings", nil))
	var s chat.Settings
	decodeBody(t, rr.Body, &s)
	if s != got {
		t.Fatalf("GET settings = %+v, want %+v", s, got)
	}
}

func TestSettingsHandler_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantParam string
	}{
		{"unknown language", `{"language":"fr"}`, "language"},
		{"unknown model", `{"selected_model":"gpt-4"}`, "selected_model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := chat.NewStore()
			h := SettingsHandler{Store: store}
			rr := serve(http.HandlerFunc(h.Put), httptest.NewRequest(http.MethodPut, "/v1/settings", strings.NewReader(tt.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", rr.Code)
			}
			if _, param := errorCode(t, rr.Body); param != tt.wantParam {
				t.Fatalf("param = %q, want %q", param, tt.wantParam)
			}
			if store.Snapshot().Settings != chat.DefaultSettings() {
				t.Fatalf("settings changed on rejected update")
			}
		})
	}
}

func TestQuickActionsHandler(t *testing.T) {
	rr := serve(QuickActionsHandler{}, httptest.NewRequest(http.MethodGet, "/v1/quick-actions", nil))
	var resp struct {
		QuickActions []map[string]any `json:"quick_actions"`
	}
	decodeBody(t, rr.Body, &resp)
	if len(resp.QuickActions) != 3 {
		t.Fatalf("quick actions = %d, want 3", len(resp.QuickActions))
	}
}
