package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/types"
)

func drain(t *testing.T, s core.TextStream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		frag, err := s.Next()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(frag)
	}
}

func TestStreamGenerate_SendsRequestAndYieldsText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"thinking","thought":true},{"text":"Hello"}]}}]}`+"\n\n")
		_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":", world"}]},"finishReason":"STOP"}]}`+"\n\n")
	}))
	defer srv.Close()

	p := New("test-key", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	budget := 8000
	stream, err := p.StreamGenerate(context.Background(), &types.GenerateRequest{
		Model: "gemini-3-flash-preview",
		Contents: []types.Content{
			{Role: types.RoleUser, Parts: []types.Part{{Text: "hi"}, {InlineData: &types.Blob{MIMEType: "image/png", Data: "AAAA"}}}},
		},
		SystemInstruction: "be nice",
		ThinkingBudget:    &budget,
		GoogleSearch:      true,
		SafetySettings:    []types.SafetySetting{{Category: types.HarmCategoryHarassment, Threshold: types.BlockNone}},
	})
	if err != nil {
		t.Fatalf("StreamGenerate() error = %v", err)
	}
	defer stream.Close()

	text, err := drain(t, stream)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if text != "Hello, world" {
		t.Fatalf("text=%q, want %q", text, "Hello, world")
	}

	if gotPath != "/models/gemini-3-flash-preview:streamGenerateContent?alt=sse" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("api key header=%q", gotKey)
	}
	sys := gotBody["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)["text"]
	if sys != "be nice" {
		t.Fatalf("systemInstruction=%v", sys)
	}
	tools := gotBody["tools"].([]any)
	if _, ok := tools[0].(map[string]any)["googleSearch"]; !ok {
		t.Fatalf("tools=%v, want googleSearch", tools)
	}
	thinking := gotBody["generationConfig"].(map[string]any)["thinkingConfig"].(map[string]any)["thinkingBudget"]
	if thinking != float64(8000) {
		t.Fatalf("thinkingBudget=%v, want 8000", thinking)
	}
	parts := gotBody["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("parts=%d, want 2", len(parts))
	}
	if parts[1].(map[string]any)["inlineData"].(map[string]any)["mimeType"] != "image/png" {
		t.Fatalf("inline part=%v", parts[1])
	}
}

func TestStreamGenerate_OmitsThinkingConfigWhenNil(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		_, _ = io.WriteString(w, "")
	}))
	defer srv.Close()

	p := New("k", WithBaseURL(srv.URL))
	stream, err := p.StreamGenerate(context.Background(), &types.GenerateRequest{
		Model:    "gemini-2.0-flash",
		Contents: []types.Content{{Role: types.RoleUser, Parts: []types.Part{{Text: "x"}}}},
	})
	if err != nil {
		t.Fatalf("StreamGenerate() error = %v", err)
	}
	defer stream.Close()
	if _, err := drain(t, stream); err != nil {
		t.Fatalf("drain error = %v", err)
	}
	if strings.Contains(string(raw), "thinkingConfig") || strings.Contains(string(raw), "generationConfig") {
		t.Fatalf("body=%s, want no generationConfig", raw)
	}
}

func TestStreamGenerate_MapsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	p := New("k", WithBaseURL(srv.URL))
	_, err := p.StreamGenerate(context.Background(), &types.GenerateRequest{Model: "gemini-3-pro-preview"})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		t.Fatalf("err=%T %v, want *core.Error", err, err)
	}
	if coreErr.Type != core.ErrRateLimit || coreErr.Code != "RESOURCE_EXHAUSTED" || coreErr.Message != "quota exceeded" {
		t.Fatalf("err=%+v", coreErr)
	}
}

func TestStreamGenerate_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	p := New("k", WithBaseURL(srv.URL))
	_, err := p.StreamGenerate(context.Background(), &types.GenerateRequest{Model: "gemini-3-pro-preview"})
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrOverloaded || coreErr.Message != "upstream down" {
		t.Fatalf("err=%v, want overloaded 'upstream down'", err)
	}
}

func TestTextStream_InStreamErrorIsSticky(t *testing.T) {
	body := `data: {"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}` + "\n\n" +
		`data: {"error":{"code":500,"message":"boom","status":"INTERNAL"}}` + "\n\n"
	s := newTextStream(io.NopCloser(strings.NewReader(body)))

	frag, err := s.Next()
	if err != nil || frag != "partial" {
		t.Fatalf("first Next()=(%q,%v)", frag, err)
	}
	_, err = s.Next()
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrAPI {
		t.Fatalf("second Next() err=%v, want api_error", err)
	}
	if _, again := s.Next(); again != err {
		t.Fatalf("third Next() err=%v, want sticky %v", again, err)
	}
}

func TestTextStream_BlockedPrompt(t *testing.T) {
	body := `data: {"promptFeedback":{"blockReason":"SAFETY"}}` + "\n"
	s := newTextStream(io.NopCloser(strings.NewReader(body)))
	_, err := s.Next()
	if err == nil || !strings.Contains(err.Error(), "prompt blocked: SAFETY") {
		t.Fatalf("err=%v, want prompt blocked", err)
	}
}

func TestTextStream_LastLineWithoutNewline(t *testing.T) {
	body := `data: {"candidates":[{"content":{"parts":[{"text":"tail"}]}}]}`
	s := newTextStream(io.NopCloser(strings.NewReader(body)))
	frag, err := s.Next()
	if err != nil || frag != "tail" {
		t.Fatalf("Next()=(%q,%v), want tail", frag, err)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("Next() err=%v, want io.EOF", err)
	}
}

func TestNew_OptionsKeepDefaultsForBlankValues(t *testing.T) {
	p := New("k", WithBaseURL("  "), WithHTTPClient(nil))
	if p.baseURL != DefaultBaseURL {
		t.Fatalf("baseURL=%q, want %q", p.baseURL, DefaultBaseURL)
	}
	if p.httpClient == nil {
		t.Fatalf("httpClient is nil")
	}

	client := &http.Client{}
	p = New("k", WithBaseURL("http://127.0.0.1:9/v1beta/"), WithHTTPClient(client))
	if p.baseURL != "http://127.0.0.1:9/v1beta" || p.httpClient != client {
		t.Fatalf("baseURL=%q client=%p, want trimmed URL and the given client", p.baseURL, p.httpClient)
	}
}
