// Package chat holds the conversation model and the application state that
// owns it.
package chat

import (
	"time"
)

// Role tags the author of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// ModelID identifies a generation model.
type ModelID string

const (
	ModelGemini3Pro        ModelID = "gemini-3-pro-preview"
	ModelGemini3Flash      ModelID = "gemini-3-flash-preview"
	ModelGemini20Pro       ModelID = "gemini-2.0-pro-exp-02-05"
	ModelGemini20Flash     ModelID = "gemini-2.0-flash"
	ModelGemini20FlashLite ModelID = "gemini-2.0-flash-lite-preview-02-05"
)

const (
	DefaultModel = ModelGemini3Pro
	// FallbackModel is the stable model used when generation fails.
	FallbackModel = ModelGemini20Flash
)

// KnownModels lists the selectable models, newest series first.
func KnownModels() []ModelID {
	return []ModelID{
		ModelGemini3Pro,
		ModelGemini3Flash,
		ModelGemini20Pro,
		ModelGemini20Flash,
		ModelGemini20FlashLite,
	}
}

// IsKnownModel reports whether id is one of KnownModels.
func IsKnownModel(id ModelID) bool {
	for _, m := range KnownModels() {
		if m == id {
			return true
		}
	}
	return false
}

// Attachment is user-supplied binary content embedded by value in a message.
// Data is base64 text and is passed through unvalidated.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type ChatSession struct {
	ID                      string    `json:"id"`
	Title                   string    `json:"title"`
	Messages                []Message `json:"messages"`
	AgentID                 string    `json:"agent_id"`
	ModelID                 ModelID   `json:"model_id"`
	UpdatedAt               time.Time `json:"updated_at"`
	CustomSystemInstruction string    `json:"custom_system_instruction,omitempty"`
}

// Settings are the process-wide user preferences.
type Settings struct {
	Language       Language `json:"language"`
	SelectedModel  ModelID  `json:"selected_model"`
	ThinkingMode   bool     `json:"thinking_mode"`
	ComparisonMode bool     `json:"comparison_mode"`
}

func DefaultSettings() Settings {
	return Settings{
		Language:      LanguageJapanese,
		SelectedModel: DefaultModel,
	}
}

// NewChatTitle is the title given to sessions before their first message.
const NewChatTitle = "新規チャット"

// titleRunes bounds the title derived from a session's first message.
const titleRunes = 30

// TitleFrom derives a session title from the first message text.
func TitleFrom(text string) string {
	r := []rune(text)
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r)
}

func cloneSession(s ChatSession) ChatSession {
	out := s
	out.Messages = append([]Message(nil), s.Messages...)
	return out
}
