package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/live"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/lifecycle"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/protocol"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/session"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/sessions"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/mw"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/ratelimit"
)

// VoiceMetrics is what the voice endpoint reports beyond per-frame counts.
type VoiceMetrics interface {
	session.Metrics
	RecordLiveSessionStart()
	RecordLiveSessionEnd(status string, duration time.Duration)
}

// VoiceHandler handles /v1/sessions/{id}/voice websocket sessions.
type VoiceHandler struct {
	Config       config.Config
	Store        *chat.Store
	Saver        session.Saver
	Connector    live.Connector
	Logger       *slog.Logger
	Limiter      *ratelimit.Limiter
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
	Metrics      VoiceMetrics
	Limits       LimitRecorder
}

func (h VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := requestIDFromRequest(r)
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining", RequestID: reqID}, 529)
		return
	}
	if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" && !mw.OriginAllowed(h.Config, origin) {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin", RequestID: reqID}, http.StatusForbidden)
		return
	}
	chatSessionID := r.PathValue("id")
	sess, ok := h.Store.Session(chatSessionID)
	if !ok {
		writeErr(w, r, core.NewNotFoundError("session not found: "+chatSessionID))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	handshakeTimeout := h.Config.LiveHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, "bad_request", "failed to read hello", nil)
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, "bad_request", "first frame must be hello", nil)
		return
	}
	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		h.writeDecodeError(conn, err)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		h.writeWSError(conn, "bad_request", "first frame must be hello", nil)
		return
	}
	if err := protocol.ValidateHello(hello); err != nil {
		h.writeDecodeError(conn, err)
		return
	}

	if h.Limiter != nil {
		dec := h.Limiter.AcquireWSSession(mw.ClientKey(r, h.Config.TrustProxyHeaders), time.Now())
		if !dec.Allowed {
			if h.Limits != nil {
				h.Limits.RecordRateLimitHit("ws_session")
			}
			h.writeWSError(conn, "rate_limited", "too many active voice sessions", nil)
			return
		}
		defer dec.Permit.Release()
	}

	lang := h.language(r, hello)
	personality := strings.TrimSpace(hello.Personality)
	if personality == "" {
		personality = sess.CustomSystemInstruction
	}

	voiceSessionID := "vs_" + uuid.NewString()
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       voiceSessionID,
		ChatSessionID:   chatSessionID,
		Language:        string(lang),
		AudioIn:         protocol.AudioIn,
		AudioOut:        protocol.AudioOut,
		Limits: protocol.HelloAckLimits{
			MaxAudioFrameBytes:  h.Config.LiveMaxAudioFrameBytes,
			MaxJSONMessageBytes: h.Config.LiveMaxJSONMessageBytes,
			GraceMS:             h.Config.VoiceGrace.Milliseconds(),
			MaxSessionMS:        h.Config.WSMaxSessionDuration.Milliseconds(),
		},
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	var metrics session.Metrics
	if h.Metrics != nil {
		metrics = h.Metrics
	}
	s, err := session.New(session.Dependencies{
		Conn:          conn,
		Logger:        h.logger().With("request_id", reqID),
		Connector:     h.Connector,
		Saver:         h.Saver,
		Metrics:       metrics,
		SessionID:     voiceSessionID,
		ChatSessionID: chatSessionID,
		History:       sess.Messages,
		Language:      lang,
		Personality:   personality,
		Config: session.Config{
			MaxAudioFrameBytes:  h.Config.LiveMaxAudioFrameBytes,
			MaxJSONMessageBytes: h.Config.LiveMaxJSONMessageBytes,
			GraceDelay:          h.Config.VoiceGrace,
			PingInterval:        h.Config.LiveWSPingInterval,
			WriteTimeout:        h.Config.LiveWSWriteTimeout,
			MaxSessionDuration:  h.Config.WSMaxSessionDuration,
		},
	})
	if err != nil {
		h.writeWSError(conn, "internal", "failed to initialize voice session", nil)
		return
	}

	unregister := h.LiveSessions.Register(voiceSessionID, chatSessionID, s)
	defer unregister()

	if h.Metrics != nil {
		h.Metrics.RecordLiveSessionStart()
	}
	started := time.Now()
	status := "ok"
	if err := s.Run(); err != nil {
		status = "error"
		h.logger().Warn("voice session ended with error", "voice_session_id", voiceSessionID, "request_id", reqID, "error", err)
	}
	if h.Metrics != nil {
		h.Metrics.RecordLiveSessionEnd(status, time.Since(started))
	}
}

// language prefers the hello, then Accept-Language, then the app setting.
func (h VoiceHandler) language(r *http.Request, hello protocol.ClientHello) chat.Language {
	if lang, ok := chat.MatchLanguage(hello.Language); ok {
		return lang
	}
	if lang, ok := chat.MatchLanguage(r.Header.Get("Accept-Language")); ok {
		return lang
	}
	return h.Store.Snapshot().Settings.Language
}

func (h VoiceHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h VoiceHandler) writeDecodeError(conn *websocket.Conn, err error) {
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		var details map[string]any
		if de.Param != "" {
			details = map[string]any{"param": de.Param}
		}
		h.writeWSError(conn, de.Code, de.Message, details)
		return
	}
	h.writeWSError(conn, "bad_request", "invalid hello frame", nil)
}

func (h VoiceHandler) writeWSError(conn *websocket.Conn, code, message string, details map[string]any) {
	_ = conn.WriteJSON(protocol.ServerError{Type: "error", Scope: "session", Code: code, Message: message, Close: true, Details: details})
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
}
