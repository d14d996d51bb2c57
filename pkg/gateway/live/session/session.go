// Package session bridges one voice WebSocket to a live.Controller. The
// socket carries microphone audio and push-to-talk controls in, and state,
// transcripts and assistant audio out.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/live"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/protocol"
)

const outboundPriorityQueueSize = 8

var (
	errBackpressure   = errors.New("live outbound backpressure")
	errOutboundClosed = errors.New("live outbound closed")
)

type Config struct {
	MaxAudioFrameBytes     int
	MaxJSONMessageBytes    int64
	MaxAudioFPS            int
	MaxAudioBytesPerSecond int64
	InboundBurstSeconds    int
	GraceDelay             time.Duration
	PingInterval           time.Duration
	WriteTimeout           time.Duration
	ReadTimeout            time.Duration
	MaxSessionDuration     time.Duration
	OutboundQueueSize      int
}

// Saver persists a finished conversation and returns the chat session it
// was written to.
type Saver interface {
	SaveVoiceMessages(sessionID string, msgs []live.VoiceMessage) (string, error)
}

type Metrics interface {
	ObserveVoiceDrop(reason string)
	ObserveVoiceTurn()
	ObserveVoiceSaved(messages int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveVoiceDrop(string) {}
func (noopMetrics) ObserveVoiceTurn()       {}
func (noopMetrics) ObserveVoiceSaved(int)   {}

type Dependencies struct {
	Conn      *websocket.Conn
	Logger    *slog.Logger
	Connector live.Connector
	Saver     Saver
	Metrics   Metrics

	SessionID     string
	ChatSessionID string
	History       []chat.Message
	Language      chat.Language
	Personality   string

	Config Config
	Now    func() time.Time
}

type LiveSession struct {
	conn          *websocket.Conn
	logger        *slog.Logger
	saver         Saver
	metrics       Metrics
	sessionID     string
	chatSessionID string
	cfg           Config
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	ctrl   *live.Controller

	outMu            sync.Mutex
	outClosed        bool
	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	// audioEpoch advances on every playback reset; chunks from an older
	// epoch are never written.
	audioEpoch atomic.Int64

	// Owned by the read loop.
	limiter     *inboundAudioLimiter
	language    chat.Language
	personality string
	rateWarned  bool
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Connector == nil {
		return nil, fmt.Errorf("live connector is required")
	}
	if deps.Saver == nil {
		return nil, fmt.Errorf("saver is required")
	}
	if strings.TrimSpace(deps.ChatSessionID) == "" {
		return nil, fmt.Errorf("chat session id is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Language == "" {
		deps.Language = chat.LanguageJapanese
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.Config.MaxAudioFPS <= 0 {
		deps.Config.MaxAudioFPS = 100
	}
	if deps.Config.MaxAudioBytesPerSecond <= 0 {
		// Twice real time for 16 kHz mono 16-bit input.
		deps.Config.MaxAudioBytesPerSecond = 2 * int64(live.InputFormat.SampleRate*live.InputFormat.Channels*2)
	}
	if deps.Config.InboundBurstSeconds <= 0 {
		deps.Config.InboundBurstSeconds = 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &LiveSession{
		conn:             deps.Conn,
		logger:           deps.Logger.With("voice_session_id", deps.SessionID, "session_id", deps.ChatSessionID),
		saver:            deps.Saver,
		metrics:          deps.Metrics,
		sessionID:        deps.SessionID,
		chatSessionID:    deps.ChatSessionID,
		cfg:              deps.Config,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, max(1, min(deps.Config.OutboundQueueSize, outboundPriorityQueueSize))),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		limiter:          newInboundAudioLimiter(deps.Config.MaxAudioFPS, deps.Config.MaxAudioBytesPerSecond, deps.Config.InboundBurstSeconds),
		language:         deps.Language,
		personality:      deps.Personality,
	}

	ctrl, err := live.NewController(live.Config{
		Connector:   deps.Connector,
		Sink:        sessionSink{s: s},
		Language:    deps.Language,
		Personality: deps.Personality,
		History:     deps.History,
		GraceDelay:  deps.Config.GraceDelay,
		Logger:      s.logger,
		Now:         deps.Now,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// Run blocks until the conversation is finished, the client goes away or
// the session is cancelled.
func (s *LiveSession) Run() error {
	defer s.cancel()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}
	if s.cfg.MaxSessionDuration > 0 {
		timer := time.AfterFunc(s.cfg.MaxSessionDuration, s.expire)
		defer timer.Stop()
	}

	s.logger.Info("voice session started", "language", s.language)
	started := s.now()

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		w := outboundWriter{
			ws:       s.conn,
			ctx:      gctx,
			cfg:      s.cfg,
			priority: s.outboundPriority,
			normal:   s.outboundNormal,
			epoch:    s.audioEpoch.Load,
		}
		return w.Run()
	})
	g.Go(func() error {
		defer s.closeOutbound()
		if err := s.ctrl.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.readLoop()
		return nil
	})

	err := g.Wait()
	s.logger.Info("voice session ended", "duration_ms", s.now().Sub(started).Milliseconds())
	return err
}

// Cancel ends the session at once. Turns not yet saved are discarded.
func (s *LiveSession) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// Finish ends the conversation the way a client finish does: the pending
// turn is finalized and the new messages are saved.
func (s *LiveSession) Finish() {
	if s == nil || s.ctrl == nil {
		return
	}
	_ = s.ctrl.Finish()
}

func (s *LiveSession) SendWarning(code, message string) error {
	if s == nil {
		return nil
	}
	return s.sendJSONPriority(protocol.ServerWarning{Type: "warning", Code: code, Message: message})
}

func (s *LiveSession) expire() {
	_ = s.SendWarning("session_max_duration", "voice session reached its maximum duration")
	s.Finish()
}

func (s *LiveSession) readLoop() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("voice socket read ended", "error", err)
			}
			// A client that leaves without finishing still keeps its turns.
			if s.ctx.Err() == nil {
				_ = s.ctrl.Finish()
			}
			return
		}
		switch messageType {
		case websocket.BinaryMessage:
			s.handleAudio(data)
		case websocket.TextMessage:
			s.handleText(data)
		}
	}
}

func (s *LiveSession) handleText(data []byte) {
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			_ = s.sendProtocolError(de.Code, de.Message, de.Param)
			return
		}
		_ = s.sendProtocolError("bad_request", "invalid frame", "")
		return
	}
	switch m := msg.(type) {
	case protocol.ClientHello:
		_ = s.sendProtocolError("bad_request", "hello already received", "type")
	case protocol.ClientAudioFrame:
		pcm, err := base64.StdEncoding.DecodeString(m.DataB64)
		if err != nil {
			_ = s.sendProtocolError("bad_request", "audio_frame.data_b64 must be base64", "data_b64")
			return
		}
		s.handleAudio(pcm)
	case protocol.ClientControl:
		s.handleControl(m)
	}
}

func (s *LiveSession) handleAudio(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	if s.cfg.MaxAudioFrameBytes > 0 && len(pcm) > s.cfg.MaxAudioFrameBytes {
		s.metrics.ObserveVoiceDrop("frame_too_large")
		_ = s.sendProtocolError("frame_too_large", fmt.Sprintf("audio frame exceeds %d bytes", s.cfg.MaxAudioFrameBytes), "data_b64")
		return
	}
	if !s.limiter.Allow(s.now(), len(pcm)) {
		s.metrics.ObserveVoiceDrop("rate_limited")
		if !s.rateWarned {
			s.rateWarned = true
			_ = s.SendWarning("audio_rate_limited", "inbound audio is arriving faster than real time; frames are being dropped")
		}
		return
	}
	_ = s.ctrl.MicAudio(pcm)
}

func (s *LiveSession) handleControl(m protocol.ClientControl) {
	switch m.Op {
	case protocol.OpTalkStart:
		_ = s.ctrl.PressTalk()
	case protocol.OpTalkStop:
		_ = s.ctrl.ReleaseTalk()
	case protocol.OpFinish:
		_ = s.ctrl.Finish()
	case protocol.OpMediaError:
		reason := strings.TrimSpace(m.Reason)
		if reason == "" {
			reason = "microphone unavailable"
		}
		_ = s.ctrl.MediaError(reason)
	case protocol.OpReconfigure:
		if raw := strings.TrimSpace(m.Language); raw != "" {
			lang, ok := chat.MatchLanguage(raw)
			if !ok {
				_ = s.sendProtocolError("unsupported", "unsupported language", "language")
				return
			}
			s.language = lang
		}
		if p := strings.TrimSpace(m.Personality); p != "" {
			s.personality = p
		}
		_ = s.ctrl.Reconfigure(s.language, s.personality)
	}
}

func (s *LiveSession) sendProtocolError(code, message, param string) error {
	var details map[string]any
	if param != "" {
		details = map[string]any{"param": param}
	}
	return s.sendJSON(protocol.ServerError{Type: "error", Scope: "protocol", Code: code, Message: message, Details: details})
}

func marshalFrame(v any) ([]byte, error) { return json.Marshal(v) }

func (s *LiveSession) sendJSON(v any) error {
	payload, err := marshalFrame(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{textPayload: payload})
}

func (s *LiveSession) sendJSONPriority(v any) error {
	payload, err := marshalFrame(v)
	if err != nil {
		return err
	}
	return s.enqueuePriority(outboundFrame{textPayload: payload})
}

func (s *LiveSession) enqueueNormal(frame outboundFrame) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outClosed {
		return errOutboundClosed
	}
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		return errBackpressure
	}
}

// enqueuePriority evicts the oldest priority frames if it has to.
func (s *LiveSession) enqueuePriority(frame outboundFrame) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outClosed {
		return errOutboundClosed
	}
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

// closeOutbound lets the writer drain what is queued, send a close frame
// and close the socket.
func (s *LiveSession) closeOutbound() {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outClosed {
		return
	}
	s.outClosed = true
	close(s.outboundPriority)
	close(s.outboundNormal)
}

func (s *LiveSession) handleBackpressure() {
	s.metrics.ObserveVoiceDrop("backpressure")
	s.audioEpoch.Add(1)
	_ = s.sendJSONPriority(protocol.ServerAudioReset{Type: "audio_reset", Reason: "backpressure"})
}
