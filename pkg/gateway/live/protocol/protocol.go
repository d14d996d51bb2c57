// Package protocol defines the JSON frames exchanged on the voice WebSocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ProtocolVersion1 = "1"

	EncodingPCMS16LE = "pcm_s16le"
)

// Control operations a client may send.
const (
	OpTalkStart   = "talk_start"
	OpTalkStop    = "talk_stop"
	OpFinish      = "finish"
	OpReconfigure = "reconfigure"
	OpMediaError  = "media_error"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// AudioFormat describes negotiated live audio shape.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

var (
	AudioIn  = AudioFormat{Encoding: EncodingPCMS16LE, SampleRateHz: 16000, Channels: 1}
	AudioOut = AudioFormat{Encoding: EncodingPCMS16LE, SampleRateHz: 24000, Channels: 1}
)

type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	AudioIn         AudioFormat `json:"audio_in"`
	AudioOut        AudioFormat `json:"audio_out"`
	// Language and Personality default to the chat session's settings.
	Language    string `json:"language,omitempty"`
	Personality string `json:"personality,omitempty"`
}

type ClientAudioFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	DataB64 string `json:"data_b64"`
}

type ClientControl struct {
	Type        string `json:"type"`
	Op          string `json:"op"`
	Language    string `json:"language,omitempty"`
	Personality string `json:"personality,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "audio_frame":
		var msg ClientAudioFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_frame", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_frame.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		switch op {
		case OpTalkStart, OpTalkStop, OpFinish, OpMediaError:
		case OpReconfigure:
			if strings.TrimSpace(msg.Language) == "" && strings.TrimSpace(msg.Personality) == "" {
				return nil, badRequest("control.reconfigure needs language or personality", "language")
			}
		default:
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func ValidateHello(msg ClientHello) error {
	version := strings.TrimSpace(msg.ProtocolVersion)
	if version == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if version != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	if err := validateFormat(msg.AudioIn, AudioIn, "audio_in"); err != nil {
		return err
	}
	return validateFormat(msg.AudioOut, AudioOut, "audio_out")
}

// validateFormat accepts an omitted format and otherwise requires the one
// the live backend speaks.
func validateFormat(got, want AudioFormat, param string) error {
	if got == (AudioFormat{}) {
		return nil
	}
	if strings.TrimSpace(got.Encoding) != want.Encoding {
		return unsupported("hello."+param+".encoding must be "+want.Encoding, param+".encoding")
	}
	if got.SampleRateHz != want.SampleRateHz {
		return unsupported(fmt.Sprintf("hello.%s.sample_rate_hz must be %d", param, want.SampleRateHz), param+".sample_rate_hz")
	}
	if got.Channels != want.Channels {
		return unsupported(fmt.Sprintf("hello.%s.channels must be %d", param, want.Channels), param+".channels")
	}
	return nil
}

type HelloAckLimits struct {
	MaxAudioFrameBytes  int   `json:"max_audio_frame_bytes"`
	MaxJSONMessageBytes int64 `json:"max_json_message_bytes"`
	MaxAudioFPS         int   `json:"max_audio_fps,omitempty"`
	GraceMS             int64 `json:"grace_ms"`
	MaxSessionMS        int64 `json:"max_session_ms,omitempty"`
}

type ServerHelloAck struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	ChatSessionID   string         `json:"chat_session_id"`
	Language        string         `json:"language"`
	AudioIn         AudioFormat    `json:"audio_in"`
	AudioOut        AudioFormat    `json:"audio_out"`
	Limits          HelloAckLimits `json:"limits"`
}

type ServerError struct {
	Type      string         `json:"type"`
	Scope     string         `json:"scope,omitempty"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Close     bool           `json:"close,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerState struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// ServerTranscriptDelta carries the whole live partial for role; an empty
// text clears it.
type ServerTranscriptDelta struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Text string `json:"text"`
}

type ServerAssistantAudioChunk struct {
	Type       string `json:"type"`
	Seq        int64  `json:"seq"`
	StartMS    int64  `json:"start_ms"`
	DurationMS int64  `json:"duration_ms"`
	DataB64    string `json:"data_b64"`
}

type ServerAudioReset struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type ServerMicLevel struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

type VoiceMessage struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	Text        string `json:"text"`
	TimestampMS int64  `json:"timestamp_ms"`
}

type ServerTurn struct {
	Type  string       `json:"type"`
	User  VoiceMessage `json:"user"`
	Model VoiceMessage `json:"model"`
}

type ServerSaved struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}
