package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
	gatewayserver "github.com/vango-go/gemini-omnichat/pkg/gateway/server"
)

func TestRunMain_ReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, serverDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newGateway: func(cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
			t.Fatalf("newGateway should not be called when config load fails")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); !strings.Contains(got, "boom") {
		t.Fatalf("stderr = %q, want the config error", got)
	}
}

func TestRunMain_ReturnsNonZeroWhenGatewayFails(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, serverDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{LogLevel: "debug", ShutdownGracePeriod: time.Second}, nil
		},
		newGateway: func(cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
			return nil, errors.New("no connector")
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if got := stderr.String(); !strings.Contains(got, "build gateway") {
		t.Fatalf("stderr = %q, want build gateway error", got)
	}
}

func TestRunServer_MissingDependencies(t *testing.T) {
	t.Parallel()

	if err := runServer(context.Background(), nil, nil, serverDeps{}); err == nil {
		t.Fatalf("expected an error for empty deps")
	}
}

func TestRunServer_RejectsBadLogLevel(t *testing.T) {
	t.Parallel()

	err := runServer(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), new(slog.LevelVar), serverDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{LogLevel: "loud"}, nil
		},
		newGateway: func(cfg config.Config, logger *slog.Logger) (*gatewayserver.Server, error) {
			t.Fatalf("newGateway should not be called with a bad log level")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("err = %v, want load config error", err)
	}
}

func TestBuildHTTPServer_UsesConfiguredAddress(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
		IdleTimeout:       4 * time.Second,
	}

	srv := buildHTTPServer(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr=%q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout {
		t.Fatalf("ReadHeaderTimeout=%v, want %v", srv.ReadHeaderTimeout, cfg.ReadHeaderTimeout)
	}
	if srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("ReadTimeout=%v, want %v", srv.ReadTimeout, cfg.ReadTimeout)
	}
	if srv.WriteTimeout != 0 {
		t.Fatalf("WriteTimeout=%v, want 0 so streams stay open", srv.WriteTimeout)
	}
	if srv.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("IdleTimeout=%v, want %v", srv.IdleTimeout, cfg.IdleTimeout)
	}
}

func TestGatewayHandlerStack_Smoke(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw, err := gatewayserver.New(config.Config{
		GeminiAPIKey:       "test-key",
		GeminiBaseURL:      "http://127.0.0.1:1",
		DefaultModel:       string(chat.DefaultModel),
		CORSAllowedOrigins: map[string]struct{}{},
		ReadHeaderTimeout:  time.Second,
		ReadTimeout:        time.Second,
		UpstreamTimeout:    time.Second,

		// Values below are only needed to keep all handlers fully configured.
		MaxBodyBytes:            1 << 20,
		SSEPingInterval:         15 * time.Second,
		SSEMaxStreamDuration:    5 * time.Minute,
		WSMaxSessionDuration:    2 * time.Hour,
		WSMaxSessions:           2,
		LiveMaxAudioFrameBytes:  16384,
		LiveMaxJSONMessageBytes: 64 * 1024,
		LiveWSPingInterval:      20 * time.Second,
		LiveWSWriteTimeout:      5 * time.Second,
		LiveHandshakeTimeout:    5 * time.Second,
		VoiceGrace:              500 * time.Millisecond,
		LimitRPS:                10,
		LimitBurst:              20,

		LimitMaxConcurrentStreams: 4,
	}, logger)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d, want %d", resp.StatusCode, http.StatusOK)
	}
}
