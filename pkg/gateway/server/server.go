package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/assistant"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/generation"
	"github.com/vango-go/gemini-omnichat/pkg/core/live"
	"github.com/vango-go/gemini-omnichat/pkg/core/providers/gemini"
	"github.com/vango-go/gemini-omnichat/pkg/core/providers/genailive"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/handlers"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/lifecycle"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/sessions"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/metrics"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/mw"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/ratelimit"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	limiter      *ratelimit.Limiter
	lifecycle    *lifecycle.Lifecycle
	liveSessions *sessions.Tracker
	metrics      *metrics.Metrics

	assistant *assistant.Service
	connector live.Connector
}

type options struct {
	provider  core.Provider
	connector live.Connector
	tracer    trace.Tracer
	store     *chat.Store
}

type Option func(*options)

// WithProvider replaces the Gemini REST generation backend.
func WithProvider(p core.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithConnector replaces the Gemini Live audio backend.
func WithConnector(c live.Connector) Option {
	return func(o *options) { o.connector = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func WithStore(s *chat.Store) Option {
	return func(o *options) { o.store = s }
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider == nil {
		o.provider = gemini.New(cfg.GeminiAPIKey,
			gemini.WithBaseURL(cfg.GeminiBaseURL),
			gemini.WithHTTPClient(newUpstreamClient(cfg)),
		)
	}
	if o.connector == nil {
		c, err := genailive.New(context.Background(), cfg.GeminiAPIKey,
			genailive.WithModel(cfg.LiveModel),
			genailive.WithVoice(cfg.LiveVoice),
		)
		if err != nil {
			return nil, fmt.Errorf("live connector: %w", err)
		}
		o.connector = c
	}
	if o.store == nil {
		o.store = chat.NewStore()
	}
	if def := chat.ModelID(cfg.DefaultModel); chat.IsKnownModel(def) {
		settings := o.store.Snapshot().Settings
		settings.SelectedModel = def
		if _, err := o.store.Dispatch(chat.UpdateSettings{Settings: settings}); err != nil {
			return nil, fmt.Errorf("default model: %w", err)
		}
	}

	m := metrics.New("omnichat")
	genOpts := []generation.Option{
		generation.WithLogger(logger),
		generation.WithMetrics(m),
	}
	if o.tracer != nil {
		genOpts = append(genOpts, generation.WithTracer(o.tracer))
	}
	orchestrator := generation.New(o.provider, genOpts...)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:                     cfg.LimitRPS,
			Burst:                   cfg.LimitBurst,
			MaxConcurrentStreams:    cfg.LimitMaxConcurrentStreams,
			MaxConcurrentWSSessions: cfg.WSMaxSessions,
		}),
		lifecycle:    &lifecycle.Lifecycle{},
		liveSessions: sessions.NewTracker(),
		metrics:      m,
		assistant:    assistant.New(o.store, orchestrator, logger),
		connector:    o.connector,
	}

	s.routes()
	return s, nil
}

func newUpstreamClient(cfg config.Config) *http.Client {
	return &http.Client{
		Timeout: cfg.UpstreamTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func (s *Server) routes() {
	store := s.assistant.Store()

	s.mux.Handle("GET /healthz", handlers.HealthHandler{})
	s.mux.Handle("GET /readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.Handle("GET /v1/models", handlers.ModelsHandler{Config: s.cfg})
	s.mux.Handle("GET /v1/quick-actions", handlers.QuickActionsHandler{})

	agents := handlers.AgentsHandler{Store: store, MaxBodyBytes: s.cfg.MaxBodyBytes}
	s.mux.HandleFunc("GET /v1/agents", agents.List)
	s.mux.HandleFunc("POST /v1/agents", agents.Create)

	settings := handlers.SettingsHandler{Store: store, MaxBodyBytes: s.cfg.MaxBodyBytes}
	s.mux.HandleFunc("GET /v1/settings", settings.Get)
	s.mux.HandleFunc("PUT /v1/settings", settings.Put)

	chats := handlers.SessionsHandler{Assistant: s.assistant, LiveSessions: s.liveSessions, MaxBodyBytes: s.cfg.MaxBodyBytes}
	s.mux.HandleFunc("GET /v1/sessions", chats.List)
	s.mux.HandleFunc("POST /v1/sessions", chats.Create)
	s.mux.HandleFunc("DELETE /v1/sessions", chats.Clear)
	s.mux.HandleFunc("GET /v1/sessions/{id}", chats.Get)
	s.mux.HandleFunc("PATCH /v1/sessions/{id}", chats.Patch)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", chats.Delete)
	s.mux.HandleFunc("POST /v1/sessions/{id}/stop", chats.Stop)

	messages := handlers.MessagesHandler{
		Config:    s.cfg,
		Assistant: s.assistant,
		Logger:    s.logger,
		Limiter:   s.limiter,
		Lifecycle: s.lifecycle,
		Limits:    s.metrics,
	}
	s.mux.Handle("POST /v1/sessions/{id}/messages", messages)

	code := handlers.CodeHandler{Messages: messages}
	s.mux.HandleFunc("POST /v1/sessions/{id}/code/port", code.Port)
	s.mux.HandleFunc("POST /v1/sessions/{id}/code/diagnose", code.Diagnose)
	s.mux.HandleFunc("GET /v1/sessions/{id}/code", code.Snippets)

	s.mux.Handle("GET /v1/sessions/{id}/voice", handlers.VoiceHandler{
		Config:       s.cfg,
		Store:        store,
		Saver:        s.assistant,
		Connector:    s.connector,
		Logger:       s.logger,
		Limiter:      s.limiter,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.liveSessions,
		Metrics:      s.metrics,
		Limits:       s.metrics,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.Metrics(s.metrics, h)
	h = mw.RateLimit(s.cfg, s.limiter, h)
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.APIVersion(h)
	h = mw.RequestID(h)
	return h
}

// Store exposes the application state, mainly for tests.
func (s *Server) Store() *chat.Store { return s.assistant.Store() }

func (s *Server) SetDraining() {
	if s == nil || s.lifecycle == nil {
		return
	}
	s.lifecycle.SetDraining(true)
}

func (s *Server) WarnLiveSessionsDraining() int {
	if s == nil || s.liveSessions == nil {
		return 0
	}
	return s.liveSessions.WarnAll("draining", "server is shutting down")
}

// FinishLiveSessions asks every voice session to save its turns and close.
func (s *Server) FinishLiveSessions() int {
	if s == nil || s.liveSessions == nil {
		return 0
	}
	return s.liveSessions.FinishAll()
}

func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	if s == nil || s.liveSessions == nil {
		return true
	}
	return s.liveSessions.Wait(ctx)
}

func (s *Server) CancelLiveSessions() int {
	if s == nil || s.liveSessions == nil {
		return 0
	}
	return s.liveSessions.CancelAll()
}
