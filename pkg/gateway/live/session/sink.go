package session

import (
	"encoding/base64"
	"errors"

	"github.com/vango-go/gemini-omnichat/pkg/core"
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/live"
	"github.com/vango-go/gemini-omnichat/pkg/gateway/live/protocol"
)

// sessionSink renders controller output as socket frames. It is only
// called from the controller goroutine.
type sessionSink struct {
	s *LiveSession
}

func (k sessionSink) State(st live.State) {
	_ = k.s.sendJSON(protocol.ServerState{Type: "state", State: string(st)})
}

func (k sessionSink) Transcript(role chat.Role, text string) {
	_ = k.s.sendJSON(protocol.ServerTranscriptDelta{Type: "transcript_delta", Role: string(role), Text: text})
}

func (k sessionSink) Audio(chunk live.Chunk) {
	payload, err := marshalFrame(protocol.ServerAssistantAudioChunk{
		Type:       "assistant_audio_chunk",
		Seq:        chunk.Seq,
		StartMS:    chunk.Start.Milliseconds(),
		DurationMS: chunk.Duration.Milliseconds(),
		DataB64:    base64.StdEncoding.EncodeToString(chunk.PCM),
	})
	if err != nil {
		return
	}
	frame := outboundFrame{isAssistantAudio: true, audioEpoch: k.s.audioEpoch.Load(), textPayload: payload}
	if err := k.s.enqueueNormal(frame); errors.Is(err, errBackpressure) {
		k.s.handleBackpressure()
	}
}

func (k sessionSink) ResetAudio(reason string) {
	k.s.audioEpoch.Add(1)
	_ = k.s.sendJSONPriority(protocol.ServerAudioReset{Type: "audio_reset", Reason: reason})
}

func (k sessionSink) MicLevel(level float64) {
	_ = k.s.sendJSON(protocol.ServerMicLevel{Type: "mic_level", Level: level})
}

func (k sessionSink) Turn(user, model live.VoiceMessage) {
	k.s.metrics.ObserveVoiceTurn()
	msg := protocol.ServerTurn{Type: "turn", User: wireMessage(user), Model: wireMessage(model)}
	if err := k.s.sendJSON(msg); errors.Is(err, errBackpressure) {
		_ = k.s.sendJSONPriority(msg)
	}
}

func (k sessionSink) Saved(msgs []live.VoiceMessage) {
	target, err := k.s.saver.SaveVoiceMessages(k.s.chatSessionID, msgs)
	if err != nil {
		k.s.logger.Error("voice save failed", "error", err, "messages", len(msgs))
		_ = k.s.sendJSONPriority(protocol.ServerError{
			Type:    "error",
			Scope:   "voice",
			Code:    "save_failed",
			Message: "could not save the voice conversation",
		})
		return
	}
	k.s.metrics.ObserveVoiceSaved(len(msgs))
	k.s.logger.Info("voice conversation saved", "target_session_id", target, "messages", len(msgs))
	_ = k.s.sendJSONPriority(protocol.ServerSaved{Type: "saved", SessionID: target, Count: len(msgs)})
}

func (k sessionSink) Error(err error) {
	_ = k.s.sendJSONPriority(voiceError(err))
}

func voiceError(err error) protocol.ServerError {
	out := protocol.ServerError{
		Type:      "error",
		Scope:     "voice",
		Code:      "live_backend_error",
		Message:   "voice connection failed",
		Retryable: true,
	}
	var ce *core.Error
	if errors.As(err, &ce) && ce != nil {
		out.Code = ce.Code
		if out.Code == "" {
			out.Code = string(ce.Type)
		}
		out.Message = ce.Message
		out.Retryable = false
	}
	return out
}

func wireMessage(m live.VoiceMessage) protocol.VoiceMessage {
	return protocol.VoiceMessage{
		ID:          m.ID,
		Role:        string(m.Role),
		Text:        m.Text,
		TimestampMS: m.Timestamp.UnixMilli(),
	}
}
