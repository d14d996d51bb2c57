package live

import (
	"fmt"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

const contextMessages = 10

const (
	japaneseHint = "日本語で応答してください。ユーザーが話し終わるまで（マイクが切られるまで）待機し、マイクが切られた瞬間に返答を開始します。ユーザーが最初に話しかけるまで、あなたから絶対に話し始めないでください（挨拶も不要です）。"
	englishHint  = "Always respond in English. Wait until the user finishes talking (mic off). DO NOT initiate speech until the user speaks first. No greetings."
)

// LanguageHint returns the turn-taking guideline for lang.
func LanguageHint(lang chat.Language) string {
	if lang == chat.LanguageEnglish {
		return englishHint
	}
	return japaneseHint
}

// ContextSummary renders the last ten history messages as "User: …" / "AI: …" lines.
func ContextSummary(history []chat.Message) string {
	if len(history) > contextMessages {
		history = history[len(history)-contextMessages:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "AI"
		if m.Role == chat.RoleUser {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildSystemInstruction is the instruction sent when a live connection opens.
func BuildSystemInstruction(lang chat.Language, history []chat.Message, personality string) string {
	return fmt.Sprintf("対話ガイドライン: %s\n\nこれまでの会話コンテキスト:\n%s\n\n現在の性格設定:\n%s",
		LanguageHint(lang), ContextSummary(history), personality)
}
