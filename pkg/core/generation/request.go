package generation

import (
	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/types"
)

// Request describes one user turn to generate a reply for.
type Request struct {
	ModelID chat.ModelID
	// History holds the messages before the current turn.
	History           []chat.Message
	Prompt            string
	Attachments       []chat.Attachment
	SystemInstruction string
	ThinkingEnabled   bool
	ComparisonEnabled bool
	Language          chat.Language
}

// ComparisonInstruction is appended to the system instruction in comparison mode.
const ComparisonInstruction = "\n\n【天秤(Tenbin)モード】客観的に評価し、以下の形式で出力:\n    1. ⚖️ 比較対象\n    2. 📈 メリット\n    3. 📉 デメリット\n    4. 🏆 推奨"

const (
	HighThinkingBudget    = 16000
	DefaultThinkingBudget = 8000
)

var highPowerModels = map[chat.ModelID]struct{}{
	chat.ModelGemini3Pro:  {},
	chat.ModelGemini20Pro: {},
}

// IsHighPower reports whether model gets the larger thinking budget.
func IsHighPower(model chat.ModelID) bool {
	_, ok := highPowerModels[model]
	return ok
}

// ThinkingBudget returns nil when thinking is disabled.
func ThinkingBudget(model chat.ModelID, enabled bool) *int {
	if !enabled {
		return nil
	}
	budget := DefaultThinkingBudget
	if IsHighPower(model) {
		budget = HighThinkingBudget
	}
	return &budget
}

func SystemInstruction(base string, comparison bool) string {
	if comparison {
		return base + ComparisonInstruction
	}
	return base
}

// BuildContents converts prior messages into role-tagged turns, preserving order.
// Messages with neither text nor attachments are skipped.
func BuildContents(history []chat.Message) []types.Content {
	out := make([]types.Content, 0, len(history))
	for _, m := range history {
		role := types.RoleModel
		if m.Role == chat.RoleUser {
			role = types.RoleUser
		}
		parts := buildParts(m.Content, m.Attachments, false)
		if len(parts) == 0 {
			continue
		}
		out = append(out, types.Content{Role: role, Parts: parts})
	}
	return out
}

// CurrentTurn builds the user turn for the prompt. The text part is always
// present so the turn is never empty.
func CurrentTurn(prompt string, attachments []chat.Attachment) types.Content {
	return types.Content{Role: types.RoleUser, Parts: buildParts(prompt, attachments, true)}
}

func buildParts(text string, attachments []chat.Attachment, keepEmptyText bool) []types.Part {
	parts := make([]types.Part, 0, 1+len(attachments))
	if text != "" || keepEmptyText {
		parts = append(parts, types.Part{Text: text})
	}
	for _, att := range attachments {
		parts = append(parts, types.Part{InlineData: &types.Blob{
			MIMEType: att.MIMEType,
			Data:     att.Data,
		}})
	}
	return parts
}

func permissiveSafety() []types.SafetySetting {
	cats := types.HarmCategories()
	out := make([]types.SafetySetting, 0, len(cats))
	for _, c := range cats {
		out = append(out, types.SafetySetting{Category: c, Threshold: types.BlockNone})
	}
	return out
}

// backendRequest builds the wire request for a single attempt.
func backendRequest(req Request, model chat.ModelID, thinking bool) *types.GenerateRequest {
	contents := BuildContents(req.History)
	contents = append(contents, CurrentTurn(req.Prompt, req.Attachments))
	return &types.GenerateRequest{
		Model:             string(model),
		Contents:          contents,
		SystemInstruction: SystemInstruction(req.SystemInstruction, req.ComparisonEnabled),
		ThinkingBudget:    ThinkingBudget(model, thinking),
		GoogleSearch:      true,
		SafetySettings:    permissiveSafety(),
	}
}
