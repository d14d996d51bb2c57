// Package generation turns a user turn into a stream of text fragments,
// falling back to a stable model once when the backend fails.
package generation

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

const tracerName = "github.com/vango-go/gemini-omnichat/pkg/core/generation"

// Attempt outcomes reported to Metrics.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
)

// Metrics receives per-attempt observations.
type Metrics interface {
	ObserveAttempt(model, outcome string)
	ObserveFallback(from, to string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAttempt(string, string)  {}
func (nopMetrics) ObserveFallback(string, string) {}

type Orchestrator struct {
	provider core.Provider
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  Metrics
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func New(provider core.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate returns a lazy stream for req. No backend call is made until the
// first Next.
func (o *Orchestrator) Generate(ctx context.Context, req Request) *Stream {
	model := req.ModelID
	if model == "" {
		model = chat.DefaultModel
	}
	return &Stream{
		ctx:      ctx,
		o:        o,
		req:      req,
		model:    model,
		thinking: req.ThinkingEnabled,
	}
}

// Stream is a finite, non-restartable sequence of text fragments.
//
// Backend failures never surface as errors: they become in-band notice
// fragments. The only error besides io.EOF is ctx.Err() of the context given
// to Generate.
type Stream struct {
	ctx context.Context
	o   *Orchestrator
	req Request

	model    chat.ModelID
	thinking bool
	fellBack bool

	cur  core.TextStream
	span trace.Span

	pending   []string
	exhausted bool
}

// Model returns the model of the current (or last) attempt.
func (s *Stream) Model() chat.ModelID { return s.model }

// FellBack reports whether the stream switched to the fallback model.
func (s *Stream) FellBack() bool { return s.fellBack }

// Next returns the next fragment, or io.EOF once the sequence is complete.
func (s *Stream) Next() (string, error) {
	for {
		if err := s.ctx.Err(); err != nil {
			s.endAttempt(OutcomeCancelled, err)
			s.pending = nil
			s.exhausted = true
			return "", err
		}
		if len(s.pending) > 0 {
			frag := s.pending[0]
			s.pending = s.pending[1:]
			return frag, nil
		}
		if s.exhausted {
			return "", io.EOF
		}

		if s.cur == nil {
			if err := s.open(); err != nil {
				s.endAttempt(OutcomeError, err)
				s.fail(err)
				continue
			}
		}

		frag, err := s.cur.Next()
		if err == io.EOF {
			s.endAttempt(OutcomeOK, nil)
			s.exhausted = true
			return "", io.EOF
		}
		if err != nil {
			if s.ctx.Err() != nil {
				continue
			}
			s.endAttempt(OutcomeError, err)
			s.fail(err)
			continue
		}
		if frag == "" {
			continue
		}
		return frag, nil
	}
}

// Close releases the in-flight backend call. Further Next calls return io.EOF.
func (s *Stream) Close() error {
	s.endAttempt(OutcomeCancelled, nil)
	s.pending = nil
	s.exhausted = true
	return nil
}

func (s *Stream) open() error {
	ctx, span := s.o.tracer.Start(s.ctx, "generation.attempt", trace.WithAttributes(
		attribute.String("gen_ai.request.model", string(s.model)),
		attribute.Bool("generation.fallback", s.fellBack),
		attribute.Bool("generation.thinking", s.thinking),
		attribute.Bool("generation.comparison", s.req.ComparisonEnabled),
		attribute.String("generation.language", string(s.req.Language)),
		attribute.Int("generation.history_len", len(s.req.History)),
	))
	s.span = span

	stream, err := s.o.provider.StreamGenerate(ctx, backendRequest(s.req, s.model, s.thinking))
	if err != nil {
		return err
	}
	s.cur = stream
	return nil
}

func (s *Stream) endAttempt(outcome string, err error) {
	if s.cur == nil && s.span == nil {
		return
	}
	if s.cur != nil {
		_ = s.cur.Close()
		s.cur = nil
	}
	if s.span != nil {
		if err != nil && outcome == OutcomeError {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, errorMessage(err))
		}
		s.span.SetAttributes(attribute.String("generation.outcome", outcome))
		s.span.End()
		s.span = nil
	}
	s.o.metrics.ObserveAttempt(string(s.model), outcome)
}

// fail queues the notice for a failed attempt and decides whether another
// attempt follows. At most one fallback attempt is ever made.
func (s *Stream) fail(err error) {
	if !s.fellBack && s.model != chat.FallbackModel {
		s.o.logger.Warn("generation attempt failed; falling back",
			"model", string(s.model),
			"fallback_model", string(chat.FallbackModel),
			"error", err,
		)
		s.o.metrics.ObserveFallback(string(s.model), string(chat.FallbackModel))
		s.pending = append(s.pending, FallbackNotice(s.model))
		s.model = chat.FallbackModel
		s.thinking = false
		s.fellBack = true
		return
	}

	s.o.logger.Error("generation failed on fallback model",
		"model", string(s.model),
		"fell_back", s.fellBack,
		"error", err,
	)
	s.pending = append(s.pending, ConnectionErrorNotice(err))
	s.exhausted = true
}
