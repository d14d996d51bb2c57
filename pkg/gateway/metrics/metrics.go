// Package metrics exposes the gateway's Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Generation metrics
	GenerationAttempts  *prometheus.CounterVec
	GenerationFallbacks *prometheus.CounterVec

	// Live session metrics
	LiveSessionsActive  prometheus.Gauge
	LiveSessionsTotal   *prometheus.CounterVec
	LiveSessionDuration prometheus.Histogram
	VoiceFramesDropped  *prometheus.CounterVec
	VoiceTurnsTotal     prometheus.Counter
	VoiceMessagesSaved  prometheus.Counter

	// Rate limit metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates a Metrics instance with every collector registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "omnichat"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"route"},
	)

	generationAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_attempts_total",
			Help:      "Generation attempts by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	generationFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_fallbacks_total",
			Help:      "Generations retried on the fallback model",
		},
		[]string{"from", "to"},
	)

	liveSessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of active voice sessions",
		},
	)

	liveSessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of voice sessions",
		},
		[]string{"status"},
	)

	liveSessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_session_duration_seconds",
			Help:      "Voice session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	voiceFramesDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_frames_dropped_total",
			Help:      "Voice frames dropped by reason",
		},
		[]string{"reason"},
	)

	voiceTurnsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_turns_total",
			Help:      "Finalized voice turns",
		},
	)

	voiceMessagesSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_messages_saved_total",
			Help:      "Voice messages saved into chat sessions",
		},
	)

	rateLimitHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit hits",
		},
		[]string{"limit_type"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		generationAttempts,
		generationFallbacks,
		liveSessionsActive,
		liveSessionsTotal,
		liveSessionDuration,
		voiceFramesDropped,
		voiceTurnsTotal,
		voiceMessagesSaved,
		rateLimitHits,
	)

	return &Metrics{
		registry:            registry,
		RequestsTotal:       requestsTotal,
		RequestDuration:     requestDuration,
		GenerationAttempts:  generationAttempts,
		GenerationFallbacks: generationFallbacks,
		LiveSessionsActive:  liveSessionsActive,
		LiveSessionsTotal:   liveSessionsTotal,
		LiveSessionDuration: liveSessionDuration,
		VoiceFramesDropped:  voiceFramesDropped,
		VoiceTurnsTotal:     voiceTurnsTotal,
		VoiceMessagesSaved:  voiceMessagesSaved,
		RateLimitHits:       rateLimitHits,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordRequest records a completed request. route is the matched mux
// pattern.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) ObserveAttempt(model, outcome string) {
	m.GenerationAttempts.WithLabelValues(model, outcome).Inc()
}

func (m *Metrics) ObserveFallback(from, to string) {
	m.GenerationFallbacks.WithLabelValues(from, to).Inc()
}

// RecordLiveSessionStart records a new voice session starting.
func (m *Metrics) RecordLiveSessionStart() {
	m.LiveSessionsActive.Inc()
}

// RecordLiveSessionEnd records a voice session ending.
func (m *Metrics) RecordLiveSessionEnd(status string, duration time.Duration) {
	m.LiveSessionsActive.Dec()
	m.LiveSessionsTotal.WithLabelValues(status).Inc()
	m.LiveSessionDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveVoiceDrop(reason string) {
	m.VoiceFramesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveVoiceTurn() { m.VoiceTurnsTotal.Inc() }

func (m *Metrics) ObserveVoiceSaved(messages int) {
	if messages > 0 {
		m.VoiceMessagesSaved.Add(float64(messages))
	}
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(limitType string) {
	m.RateLimitHits.WithLabelValues(limitType).Inc()
}
