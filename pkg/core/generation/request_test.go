package generation

import (
	"strings"
	"testing"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
	"github.com/vango-go/gemini-omnichat/pkg/core/types"
)

func TestThinkingBudget(t *testing.T) {
	tests := []struct {
		model   chat.ModelID
		enabled bool
		want    int // 0 means nil
	}{
		{chat.ModelGemini3Pro, true, HighThinkingBudget},
		{chat.ModelGemini20Pro, true, HighThinkingBudget},
		{chat.ModelGemini3Flash, true, DefaultThinkingBudget},
		{chat.ModelGemini20Flash, true, DefaultThinkingBudget},
		{chat.ModelGemini3Pro, false, 0},
		{chat.ModelGemini20FlashLite, false, 0},
	}
	for _, tt := range tests {
		got := ThinkingBudget(tt.model, tt.enabled)
		if tt.want == 0 {
			if got != nil {
				t.Errorf("ThinkingBudget(%s,%v)=%d, want nil", tt.model, tt.enabled, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ThinkingBudget(%s,%v)=%v, want %d", tt.model, tt.enabled, got, tt.want)
		}
	}
}

func TestSystemInstruction_ComparisonAppendedVerbatim(t *testing.T) {
	for _, base := range []string{"", "あなたはGoogleのGeminiです。"} {
		got := SystemInstruction(base, true)
		if got != base+ComparisonInstruction {
			t.Fatalf("SystemInstruction(%q,true)=%q", base, got)
		}
		if !strings.Contains(got, "4. 🏆 推奨") {
			t.Fatalf("missing recommendation section: %q", got)
		}
		if SystemInstruction(base, false) != base {
			t.Fatalf("comparison off changed base")
		}
	}
}

func TestBuildContents_RolesPartsAndOrder(t *testing.T) {
	history := []chat.Message{
		{Role: chat.RoleUser, Content: "look", Attachments: []chat.Attachment{{MIMEType: "image/png", Data: "AA"}}},
		{Role: chat.RoleModel, Content: "a cat"},
		{Role: chat.RoleModel, Content: ""},
		{Role: chat.RoleUser, Attachments: []chat.Attachment{{MIMEType: "application/pdf", Data: "BB"}}},
	}
	got := BuildContents(history)
	if len(got) != 3 {
		t.Fatalf("turns=%d, want 3 (empty skipped)", len(got))
	}
	if got[0].Role != types.RoleUser || len(got[0].Parts) != 2 || got[0].Parts[0].Text != "look" || got[0].Parts[1].InlineData.MIMEType != "image/png" {
		t.Fatalf("turn0=%+v", got[0])
	}
	if got[1].Role != types.RoleModel || got[1].Parts[0].Text != "a cat" {
		t.Fatalf("turn1=%+v", got[1])
	}
	if len(got[2].Parts) != 1 || got[2].Parts[0].InlineData == nil {
		t.Fatalf("turn2=%+v, want attachment only", got[2])
	}
}

func TestBackendRequest_Shape(t *testing.T) {
	req := Request{
		History:           []chat.Message{{Role: chat.RoleUser, Content: "earlier"}},
		Prompt:            "now",
		Attachments:       []chat.Attachment{{MIMEType: "text/plain", Data: "Zm9v"}},
		SystemInstruction: "base",
		ComparisonEnabled: true,
	}
	got := backendRequest(req, chat.ModelGemini3Flash, true)
	if got.Model != "gemini-3-flash-preview" || !got.GoogleSearch {
		t.Fatalf("req=%+v", got)
	}
	if len(got.Contents) != 2 || got.Contents[1].Parts[0].Text != "now" || got.Contents[1].Parts[1].InlineData.Data != "Zm9v" {
		t.Fatalf("contents=%+v", got.Contents)
	}
	if got.SystemInstruction != "base"+ComparisonInstruction {
		t.Fatalf("system=%q", got.SystemInstruction)
	}
	if len(got.SafetySettings) != 4 {
		t.Fatalf("safety=%v, want 4 categories", got.SafetySettings)
	}
	for _, s := range got.SafetySettings {
		if s.Threshold != types.BlockNone {
			t.Fatalf("threshold=%q, want BLOCK_NONE", s.Threshold)
		}
	}
}
