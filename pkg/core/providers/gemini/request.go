package gemini

import (
	"github.com/vango-go/gemini-omnichat/pkg/core/types"
)

// geminiRequest is the request body for streamGenerateContent.
type geminiRequest struct {
	Contents          []geminiContent       `json:"contents"`
	SystemInstruction *geminiContent        `json:"systemInstruction,omitempty"`
	Tools             []geminiTool          `json:"tools,omitempty"`
	GenerationConfig  *geminiGenConfig      `json:"generationConfig,omitempty"`
	SafetySettings    []geminiSafetySetting `json:"safetySettings,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
	// Thought marks hidden reasoning parts in responses.
	Thought bool `json:"thought,omitempty"`
}

type geminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiTool struct {
	GoogleSearch *geminiGoogleSearch `json:"googleSearch,omitempty"`
}

type geminiGoogleSearch struct{}

type geminiGenConfig struct {
	ThinkingConfig *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingBudget *int `json:"thinkingBudget,omitempty"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

func buildRequest(req *types.GenerateRequest) *geminiRequest {
	out := &geminiRequest{
		Contents: make([]geminiContent, 0, len(req.Contents)),
	}

	for _, c := range req.Contents {
		gc := geminiContent{Role: c.Role, Parts: make([]geminiPart, 0, len(c.Parts))}
		for _, part := range c.Parts {
			gc.Parts = append(gc.Parts, convertPart(part))
		}
		out.Contents = append(out.Contents, gc)
	}

	if req.SystemInstruction != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemInstruction}},
		}
	}

	if req.GoogleSearch {
		out.Tools = []geminiTool{{GoogleSearch: &geminiGoogleSearch{}}}
	}

	if req.ThinkingBudget != nil {
		budget := *req.ThinkingBudget
		out.GenerationConfig = &geminiGenConfig{
			ThinkingConfig: &geminiThinkingConfig{ThinkingBudget: &budget},
		}
	}

	for _, s := range req.SafetySettings {
		out.SafetySettings = append(out.SafetySettings, geminiSafetySetting{
			Category:  string(s.Category),
			Threshold: s.Threshold,
		})
	}

	return out
}

func convertPart(part types.Part) geminiPart {
	if part.InlineData != nil {
		return geminiPart{InlineData: &geminiBlob{
			MIMEType: part.InlineData.MIMEType,
			Data:     part.InlineData.Data,
		}}
	}
	return geminiPart{Text: part.Text}
}
