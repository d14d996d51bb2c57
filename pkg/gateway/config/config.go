package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

type Config struct {
	Addr string `env:"OMNICHAT_ADDR" envDefault:":8080"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY,required"`
	GeminiBaseURL string `env:"OMNICHAT_GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	DefaultModel  string `env:"OMNICHAT_DEFAULT_MODEL" envDefault:"gemini-3-pro-preview"`

	LiveModel  string        `env:"OMNICHAT_LIVE_MODEL" envDefault:"gemini-2.5-flash-native-audio-preview-09-2025"`
	LiveVoice  string        `env:"OMNICHAT_LIVE_VOICE" envDefault:"Zephyr"`
	VoiceGrace time.Duration `env:"OMNICHAT_VOICE_GRACE" envDefault:"500ms"`

	// If true, client identity may be derived from X-Forwarded-For. Only
	// enable behind a trusted proxy/LB.
	TrustProxyHeaders bool `env:"OMNICHAT_TRUST_PROXY_HEADERS"`

	CORSOrigins        []string            `env:"OMNICHAT_CORS_ORIGINS" envSeparator:","`
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Attachments travel inline as base64, so the default is generous.
	MaxBodyBytes int64 `env:"OMNICHAT_MAX_BODY_BYTES" envDefault:"33554432"`

	// SSE
	SSEPingInterval      time.Duration `env:"OMNICHAT_SSE_PING_INTERVAL" envDefault:"15s"`
	SSEMaxStreamDuration time.Duration `env:"OMNICHAT_SSE_MAX_STREAM_DURATION" envDefault:"5m"`

	// In-memory limits (per client).
	LimitRPS                  float64 `env:"OMNICHAT_LIMIT_RPS" envDefault:"5"`
	LimitBurst                int     `env:"OMNICHAT_LIMIT_BURST" envDefault:"10"`
	LimitMaxConcurrentStreams int     `env:"OMNICHAT_LIMIT_MAX_CONCURRENT_STREAMS" envDefault:"4"`

	// Live voice WebSocket.
	WSMaxSessionDuration    time.Duration `env:"OMNICHAT_WS_MAX_SESSION_DURATION" envDefault:"2h"`
	WSMaxSessions           int           `env:"OMNICHAT_WS_MAX_SESSIONS" envDefault:"2"`
	LiveMaxAudioFrameBytes  int           `env:"OMNICHAT_LIVE_MAX_AUDIO_FRAME_BYTES" envDefault:"16384"`
	LiveMaxJSONMessageBytes int64         `env:"OMNICHAT_LIVE_MAX_JSON_MESSAGE_BYTES" envDefault:"65536"`
	LiveWSPingInterval      time.Duration `env:"OMNICHAT_LIVE_WS_PING_INTERVAL" envDefault:"20s"`
	LiveWSWriteTimeout      time.Duration `env:"OMNICHAT_LIVE_WS_WRITE_TIMEOUT" envDefault:"5s"`
	LiveHandshakeTimeout    time.Duration `env:"OMNICHAT_LIVE_HANDSHAKE_TIMEOUT" envDefault:"5s"`

	// Operational defaults
	ReadHeaderTimeout   time.Duration `env:"OMNICHAT_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ReadTimeout         time.Duration `env:"OMNICHAT_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout        time.Duration `env:"OMNICHAT_WRITE_TIMEOUT" envDefault:"0s"` // 0 keeps SSE streams open
	IdleTimeout         time.Duration `env:"OMNICHAT_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownGracePeriod time.Duration `env:"OMNICHAT_SHUTDOWN_GRACE_PERIOD" envDefault:"30s"`
	UpstreamTimeout     time.Duration `env:"OMNICHAT_UPSTREAM_TIMEOUT" envDefault:"5m"`

	// Observability
	OTLPEndpoint string `env:"OMNICHAT_OTLP_ENDPOINT"`
	LogLevel     string `env:"OMNICHAT_LOG_LEVEL" envDefault:"info"`
}

// LoadFromEnv reads the process environment.
func LoadFromEnv() (Config, error) {
	return load(env.Options{})
}

// LoadFrom reads environ instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)
	cfg.CORSAllowedOrigins = make(map[string]struct{})
	for _, origin := range cfg.CORSOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must not be empty")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("OMNICHAT_ADDR must not be empty")
	}
	if strings.TrimSpace(cfg.GeminiBaseURL) == "" {
		return fmt.Errorf("OMNICHAT_GEMINI_BASE_URL must not be empty")
	}
	if !chat.IsKnownModel(chat.ModelID(cfg.DefaultModel)) {
		return fmt.Errorf("OMNICHAT_DEFAULT_MODEL must be one of the known models, got %q", cfg.DefaultModel)
	}
	if strings.TrimSpace(cfg.LiveModel) == "" {
		return fmt.Errorf("OMNICHAT_LIVE_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.LiveVoice) == "" {
		return fmt.Errorf("OMNICHAT_LIVE_VOICE must not be empty")
	}
	if cfg.VoiceGrace <= 0 {
		return fmt.Errorf("OMNICHAT_VOICE_GRACE must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("OMNICHAT_MAX_BODY_BYTES must be > 0")
	}
	if cfg.SSEPingInterval <= 0 {
		return fmt.Errorf("OMNICHAT_SSE_PING_INTERVAL must be > 0")
	}
	if cfg.SSEMaxStreamDuration <= 0 {
		return fmt.Errorf("OMNICHAT_SSE_MAX_STREAM_DURATION must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return fmt.Errorf("OMNICHAT_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return fmt.Errorf("OMNICHAT_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentStreams < 0 {
		return fmt.Errorf("OMNICHAT_LIMIT_MAX_CONCURRENT_STREAMS must be >= 0")
	}
	if cfg.WSMaxSessionDuration <= 0 {
		return fmt.Errorf("OMNICHAT_WS_MAX_SESSION_DURATION must be > 0")
	}
	if cfg.WSMaxSessions <= 0 {
		return fmt.Errorf("OMNICHAT_WS_MAX_SESSIONS must be > 0")
	}
	if cfg.LiveMaxAudioFrameBytes <= 0 {
		return fmt.Errorf("OMNICHAT_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return fmt.Errorf("OMNICHAT_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return fmt.Errorf("OMNICHAT_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return fmt.Errorf("OMNICHAT_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return fmt.Errorf("OMNICHAT_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("OMNICHAT_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("OMNICHAT_READ_TIMEOUT must be > 0")
	}
	if cfg.WriteTimeout < 0 {
		return fmt.Errorf("OMNICHAT_WRITE_TIMEOUT must be >= 0")
	}
	if cfg.IdleTimeout <= 0 {
		return fmt.Errorf("OMNICHAT_IDLE_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("OMNICHAT_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("OMNICHAT_UPSTREAM_TIMEOUT must be > 0")
	}
	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error (any case).
func ParseLogLevel(raw string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("OMNICHAT_LOG_LEVEL must be one of debug|info|warn|error")
	}
	return lvl, nil
}
