package live

import (
	"time"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

// VoiceMessage is one side of a finalized voice turn.
type VoiceMessage struct {
	ID        string    `json:"id"`
	Role      chat.Role `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	// IsFromHistory marks messages seeded from the chat transcript; they are
	// never saved back.
	IsFromHistory bool `json:"is_from_history,omitempty"`
}

// emptySidePlaceholder stands in for the silent side of a turn.
const emptySidePlaceholder = "..."

// SeedHistory converts chat messages into history-flagged voice messages.
func SeedHistory(messages []chat.Message) []VoiceMessage {
	out := make([]VoiceMessage, 0, len(messages))
	for _, m := range messages {
		role := chat.RoleModel
		if m.Role == chat.RoleUser {
			role = chat.RoleUser
		}
		out = append(out, VoiceMessage{
			ID:            m.ID,
			Role:          role,
			Text:          m.Content,
			Timestamp:     m.Timestamp,
			IsFromHistory: true,
		})
	}
	return out
}

// NewMessages returns the messages produced during the session, in order.
func NewMessages(msgs []VoiceMessage) []VoiceMessage {
	out := make([]VoiceMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsFromHistory {
			out = append(out, m)
		}
	}
	return out
}

// ToChatMessages maps voice messages to chat messages with the same IDs,
// roles, text and timestamps.
func ToChatMessages(msgs []VoiceMessage) []chat.Message {
	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		role := chat.RoleModel
		if m.Role == chat.RoleUser {
			role = chat.RoleUser
		}
		out = append(out, chat.Message{
			ID:        m.ID,
			Role:      role,
			Content:   m.Text,
			Timestamp: m.Timestamp,
		})
	}
	return out
}
