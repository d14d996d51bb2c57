package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/assistant"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/generation"
	"github.com/vango-go/gemini-omnichat/pkg/core/types"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
)

type scriptProvider struct {
	mu    sync.Mutex
	frags []string
	reqs  []*types.GenerateRequest
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) StreamGenerate(ctx context.Context, req *types.GenerateRequest) (core.TextStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reqs = append(p.reqs, req)
	return &scriptStream{frags: append([]string(nil), p.frags...)}, nil
}

func (p *scriptProvider) requests() []*types.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*types.GenerateRequest(nil), p.reqs...)
}

type scriptStream struct {
	frags []string
}

func (s *scriptStream) Next() (string, error) {
	if len(s.frags) == 0 {
		return "", io.EOF
	}
	f := s.frags[0]
	s.frags = s.frags[1:]
	return f, nil
}

func (s *scriptStream) Close() error { return nil }

func newTestAssistant(p *scriptProvider) *assistant.Service {
	n := 0
	var mu sync.Mutex
	store := chat.NewStore(
		chat.WithClock(func() time.Time { return time.Unix(1000, 0) }),
		chat.WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return assistant.New(store, generation.New(p), nil)
}

func testConfig() config.Config {
	return config.Config{
		GeminiAPIKey:            "test-key",
		DefaultModel:            string(chat.DefaultModel),
		MaxBodyBytes:            1 << 20,
		SSEPingInterval:         time.Hour,
		SSEMaxStreamDuration:    time.Minute,
		WSMaxSessionDuration:    time.Minute,
		WSMaxSessions:           2,
		LiveMaxAudioFrameBytes:  16384,
		LiveMaxJSONMessageBytes: 65536,
		LiveWSPingInterval:      time.Hour,
		LiveWSWriteTimeout:      time.Second,
		LiveHandshakeTimeout:    time.Second,
		VoiceGrace:              20 * time.Millisecond,
		ReadHeaderTimeout:       time.Second,
		ReadTimeout:             time.Second,
	}
}

type sseEvent struct {
	Name string
	Data map[string]any
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	var cur sseEvent
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.Data); err != nil {
				t.Fatalf("bad sse data %q: %v", line, err)
			}
		case line == "":
			if cur.Name != "" {
				out = append(out, cur)
			}
			cur = sseEvent{}
		}
	}
	return out
}

func decodeBody(t *testing.T, body io.Reader, v any) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func errorCode(t *testing.T, body io.Reader) (string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Type  string `json:"type"`
			Param string `json:"param"`
		} `json:"error"`
	}
	decodeBody(t, body, &env)
	return env.Error.Type, env.Error.Param
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}
