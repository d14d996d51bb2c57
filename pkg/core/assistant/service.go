// Package assistant runs a chat turn end to end: it records the user's
// message, streams the model reply into the store, and reports progress to
// the caller.
package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/generation"
	"github.com/vango-go/gemini-omnichat/pkg/core/live"
)

// Generator produces the reply stream for one turn.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) *generation.Stream
}

type EventType string

const (
	EventStarted  EventType = "started"
	EventFragment EventType = "fragment"
	EventDone     EventType = "done"
)

// Event reports Send progress. Which fields are set depends on Type.
type Event struct {
	Type         EventType
	GenerationID string
	UserMessage  chat.Message
	ModelMessage chat.Message
	Text         string
	Model        chat.ModelID
	FellBack     bool
	// Stopped is set on done when the generation was cancelled or superseded.
	Stopped bool
}

type SendInput struct {
	SessionID   string
	Text        string
	Attachments []chat.Attachment
	// ModelID overrides the session's model for this turn.
	ModelID chat.ModelID
}

type Service struct {
	store  *chat.Store
	gen    Generator
	logger *slog.Logger
}

func New(store *chat.Store, gen Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gen: gen, logger: logger}
}

func (s *Service) Store() *chat.Store { return s.store }

// Send runs one turn and blocks until the reply is complete, stopped or
// superseded. It returns the model message as it stands at the end.
// onEvent may be nil.
func (s *Service) Send(ctx context.Context, in SendInput, onEvent func(Event)) (chat.Message, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	if strings.TrimSpace(in.Text) == "" && len(in.Attachments) == 0 {
		return chat.Message{}, core.NewInvalidRequestErrorWithParam("message text or attachments are required", "text")
	}
	sess, ok := s.store.Session(in.SessionID)
	if !ok {
		return chat.Message{}, core.NewNotFoundError("session not found: " + in.SessionID)
	}
	model := in.ModelID
	if model == "" {
		model = sess.ModelID
	}
	if !chat.IsKnownModel(model) {
		model = s.store.Snapshot().Settings.SelectedModel
	}
	settings := s.store.Snapshot().Settings

	s.store.StopGeneration(in.SessionID)

	now := s.store.Now()
	user := chat.Message{
		ID:          s.store.NewID(),
		Role:        chat.RoleUser,
		Content:     in.Text,
		Timestamp:   now,
		Attachments: append([]chat.Attachment(nil), in.Attachments...),
	}
	reply := chat.Message{
		ID:        s.store.NewID(),
		Role:      chat.RoleModel,
		Timestamp: now,
	}
	history := sess.Messages
	if _, err := s.store.Dispatch(chat.AppendMessages{SessionID: in.SessionID, Messages: []chat.Message{user, reply}, Now: now}); err != nil {
		return chat.Message{}, mapStoreError(err)
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	genID, err := s.store.BeginGeneration(in.SessionID, reply.ID, cancel)
	if err != nil {
		return chat.Message{}, mapStoreError(err)
	}
	onEvent(Event{Type: EventStarted, GenerationID: genID, UserMessage: user, ModelMessage: reply, Model: model})

	stream := s.gen.Generate(genCtx, generation.Request{
		ModelID:           model,
		History:           history,
		Prompt:            in.Text,
		Attachments:       in.Attachments,
		SystemInstruction: sess.CustomSystemInstruction,
		ThinkingEnabled:   settings.ThinkingMode,
		ComparisonEnabled: settings.ComparisonMode,
		Language:          settings.Language,
	})
	defer stream.Close()

	start := time.Now()
	stopped := false
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			stopped = true
			break
		}
		if !s.store.ApplyFragment(in.SessionID, genID, frag) {
			stopped = true
			break
		}
		onEvent(Event{Type: EventFragment, GenerationID: genID, Text: frag})
	}
	if !s.store.EndGeneration(in.SessionID, genID) {
		stopped = true
	}

	final := reply
	if cur, ok := s.store.Session(in.SessionID); ok {
		for _, m := range cur.Messages {
			if m.ID == reply.ID {
				final = m
				break
			}
		}
	}
	s.logger.Info("generation finished",
		"session_id", in.SessionID,
		"generation_id", genID,
		"model", string(stream.Model()),
		"fell_back", stream.FellBack(),
		"stopped", stopped,
		"chars", len(final.Content),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	onEvent(Event{
		Type:         EventDone,
		GenerationID: genID,
		ModelMessage: final,
		Model:        stream.Model(),
		FellBack:     stream.FellBack(),
		Stopped:      stopped,
	})
	return final, nil
}

// Stop cancels the session's live generation, if any.
func (s *Service) Stop(sessionID string) (bool, error) {
	if _, ok := s.store.Session(sessionID); !ok {
		return false, core.NewNotFoundError("session not found: " + sessionID)
	}
	return s.store.StopGeneration(sessionID), nil
}

// SaveVoiceMessages appends a finished voice conversation to the session.
// If the session is gone, a new general session receives them. It returns
// the ID of the session written to.
func (s *Service) SaveVoiceMessages(sessionID string, msgs []live.VoiceMessage) (string, error) {
	msgs = live.NewMessages(msgs)
	if len(msgs) == 0 {
		return sessionID, nil
	}
	if _, ok := s.store.Session(sessionID); !ok {
		sess, err := s.store.NewSession(chat.GeneralAgentID, "")
		if err != nil {
			return "", mapStoreError(err)
		}
		s.logger.Info("voice session target missing; created new session", "missing_session_id", sessionID, "session_id", sess.ID)
		sessionID = sess.ID
	}
	if _, err := s.store.Dispatch(chat.AppendMessages{
		SessionID: sessionID,
		Messages:  live.ToChatMessages(msgs),
		Now:       s.store.Now(),
	}); err != nil {
		return "", mapStoreError(err)
	}
	return sessionID, nil
}

func mapStoreError(err error) error {
	var ve *chat.ValidationError
	switch {
	case errors.Is(err, chat.ErrSessionNotFound), errors.Is(err, chat.ErrMessageNotFound), errors.Is(err, chat.ErrAgentNotFound):
		return core.NewNotFoundError(err.Error())
	case errors.As(err, &ve):
		return core.NewInvalidRequestErrorWithParam(ve.Message, ve.Param)
	default:
		return err
	}
}
