package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/assistant"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/apierror"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/config"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/lifecycle"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/mw"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/ratelimit"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/sse"
)

// LimitRecorder counts requests turned away by a concurrency cap.
type LimitRecorder interface {
	RecordRateLimitHit(limitType string)
}

// MessagesHandler sends a chat turn and streams the reply as SSE.
type MessagesHandler struct {
	Config    config.Config
	Assistant *assistant.Service
	Logger    *slog.Logger
	Limiter   *ratelimit.Limiter
	Lifecycle *lifecycle.Lifecycle
	Limits    LimitRecorder
}

type sendMessageRequest struct {
	Text        string            `json:"text"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
	ModelID     string            `json:"model_id,omitempty"`
}

type messageStartEvent struct {
	Type         string       `json:"type"`
	GenerationID string       `json:"generation_id"`
	Model        chat.ModelID `json:"model"`
	UserMessage  chat.Message `json:"user_message"`
	ModelMessage chat.Message `json:"model_message"`
}

type fragmentEvent struct {
	Type         string `json:"type"`
	GenerationID string `json:"generation_id"`
	Text         string `json:"text"`
}

type messageStopEvent struct {
	Type         string       `json:"type"`
	GenerationID string       `json:"generation_id"`
	Model        chat.ModelID `json:"model"`
	FellBack     bool         `json:"fell_back"`
	Stopped      bool         `json:"stopped"`
	Message      chat.Message `json:"message"`
}

type errorEvent struct {
	Type  string      `json:"type"`
	Error *core.Error `json:"error"`
}

func (h MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	h.stream(w, r, assistant.SendInput{
		SessionID:   r.PathValue("id"),
		Text:        req.Text,
		Attachments: req.Attachments,
		ModelID:     chat.ModelID(strings.TrimSpace(req.ModelID)),
	})
}

// stream validates what it can before the first byte, then runs the turn.
// Anything that fails after that is reported as an SSE error event.
func (h MessagesHandler) stream(w http.ResponseWriter, r *http.Request, in assistant.SendInput) {
	reqID := requestIDFromRequest(r)

	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrOverloaded, Message: "gateway is draining", Code: "draining", RequestID: reqID}, 529)
		return
	}
	if strings.TrimSpace(in.Text) == "" && len(in.Attachments) == 0 {
		writeErr(w, r, core.NewInvalidRequestErrorWithParam("message text or attachments are required", "text"))
		return
	}
	if in.ModelID != "" && !chat.IsKnownModel(in.ModelID) {
		writeErr(w, r, core.NewInvalidRequestErrorWithParam("unknown model "+strconv.Quote(string(in.ModelID)), "model_id"))
		return
	}
	if _, ok := h.Assistant.Store().Session(in.SessionID); !ok {
		writeErr(w, r, core.NewNotFoundError("session not found: "+in.SessionID))
		return
	}

	if h.Limiter != nil {
		dec := h.Limiter.AcquireStream(mw.ClientKey(r, h.Config.TrustProxyHeaders), time.Now())
		if !dec.Allowed {
			if h.Limits != nil {
				h.Limits.RecordRateLimitHit("stream")
			}
			writeErr(w, r, core.NewRateLimitError("too many concurrent streams", dec.RetryAfter))
			return
		}
		defer dec.Permit.Release()
	}

	ctx := r.Context()
	if h.Config.SSEMaxStreamDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.SSEMaxStreamDuration)
		defer cancel()
	}

	sw, err := sse.New(w)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	sse.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)

	// Keepalive must stop before the handler returns and w goes away.
	kaCtx, stopKeepAlive := context.WithCancel(ctx)
	var kaWG sync.WaitGroup
	kaWG.Add(1)
	go func() {
		defer kaWG.Done()
		sw.KeepAlive(kaCtx, h.Config.SSEPingInterval)
	}()
	defer func() {
		stopKeepAlive()
		kaWG.Wait()
	}()

	_, err = h.Assistant.Send(ctx, in, func(ev assistant.Event) {
		switch ev.Type {
		case assistant.EventStarted:
			_ = sw.Send(sse.EventMessageStart, messageStartEvent{
				Type:         sse.EventMessageStart,
				GenerationID: ev.GenerationID,
				Model:        ev.Model,
				UserMessage:  ev.UserMessage,
				ModelMessage: ev.ModelMessage,
			})
		case assistant.EventFragment:
			_ = sw.Send(sse.EventFragment, fragmentEvent{
				Type:         sse.EventFragment,
				GenerationID: ev.GenerationID,
				Text:         ev.Text,
			})
		case assistant.EventDone:
			_ = sw.Send(sse.EventMessageStop, messageStopEvent{
				Type:         sse.EventMessageStop,
				GenerationID: ev.GenerationID,
				Model:        ev.Model,
				FellBack:     ev.FellBack,
				Stopped:      ev.Stopped,
				Message:      ev.ModelMessage,
			})
		}
	})
	if err != nil {
		h.sendStreamErr(sw, reqID, err)
		return
	}
	// A max-duration timeout (not a client disconnect) gets a terminal error event.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.Context().Err() == nil {
		h.sendStreamErr(sw, reqID, ctx.Err())
	}
}

func (h MessagesHandler) sendStreamErr(sw *sse.Writer, reqID string, err error) {
	coreErr, status := apierror.FromError(err, reqID)
	if h.Logger != nil && status >= http.StatusInternalServerError {
		h.Logger.Warn("message stream failed", "request_id", reqID, "status", status, "error", err)
	}
	_ = sw.Send(sse.EventError, errorEvent{Type: sse.EventError, Error: coreErr})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
