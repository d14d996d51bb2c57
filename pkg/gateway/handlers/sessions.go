package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/assistant"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/sessions"
)

// SessionsHandler serves the chat session collection and its items.
type SessionsHandler struct {
	Assistant    *assistant.Service
	LiveSessions *sessions.Tracker
	MaxBodyBytes int64
}

type sessionSummary struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	AgentID      string       `json:"agent_id"`
	ModelID      chat.ModelID `json:"model_id"`
	UpdatedAt    time.Time    `json:"updated_at"`
	MessageCount int          `json:"message_count"`
	Generating   bool         `json:"generating,omitempty"`
}

type sessionsResponse struct {
	Sessions         []sessionSummary `json:"sessions"`
	CurrentSessionID string           `json:"current_session_id,omitempty"`
}

type createSessionRequest struct {
	AgentID string `json:"agent_id"`
	ModelID string `json:"model_id"`
}

type patchSessionRequest struct {
	Personality *string `json:"personality"`
	ModelID     *string `json:"model_id"`
}

func (h SessionsHandler) store() *chat.Store { return h.Assistant.Store() }

func (h SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	state := h.store().Snapshot()
	out := make([]sessionSummary, 0, len(state.Sessions))
	for _, s := range state.Sessions {
		out = append(out, sessionSummary{
			ID:           s.ID,
			Title:        s.Title,
			AgentID:      s.AgentID,
			ModelID:      s.ModelID,
			UpdatedAt:    s.UpdatedAt,
			MessageCount: len(s.Messages),
			Generating:   h.store().Generating(s.ID),
		})
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: out, CurrentSessionID: state.CurrentSessionID})
}

func (h SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	sess, err := h.store().NewSession(strings.TrimSpace(req.AgentID), chat.ModelID(strings.TrimSpace(req.ModelID)))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// Clear removes every session. Open voice sessions are cancelled first.
func (h SessionsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.LiveSessions.CancelAll()
	if _, err := h.store().Dispatch(chat.ClearSessions{}); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h SessionsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req patchSessionRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if req.Personality == nil && req.ModelID == nil {
		writeErr(w, r, core.NewInvalidRequestError("personality or model_id is required"))
		return
	}
	if req.ModelID != nil {
		if _, err := h.store().Dispatch(chat.SetSessionModel{SessionID: sess.ID, ModelID: chat.ModelID(strings.TrimSpace(*req.ModelID))}); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	if req.Personality != nil {
		if _, err := h.store().Dispatch(chat.UpdatePersonality{SessionID: sess.ID, Instruction: *req.Personality, Now: h.store().Now()}); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	updated, _ := h.store().Session(sess.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (h SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.LiveSessions.CancelChat(id)
	if _, err := h.store().Dispatch(chat.DeleteSession{ID: id}); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	stopped, err := h.Assistant.Stop(r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Stopped bool `json:"stopped"`
	}{Stopped: stopped})
}

func (h SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (chat.ChatSession, bool) {
	id := r.PathValue("id")
	sess, ok := h.store().Session(id)
	if !ok {
		writeErr(w, r, core.NewNotFoundError("session not found: "+id))
		return chat.ChatSession{}, false
	}
	return sess, true
}
