// Package codelab builds the prompts behind the code tools and extracts code
// snippets from a conversation.
package codelab

import (
	"fmt"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/core"
)

const portingTemplate = "\n【Code Transmutation Request】\n" +
	"Act as a professional \"Code Porter/Transmuter\".\n" +
	"\n" +
	"[INPUT 1: SOURCE LOGIC]\n" +
	"Contains the key algorithm, techniques, or logic to preserve.\n" +
	"```\n%s\n```\n" +
	"\n" +
	"[INPUT 2: TARGET STRUCTURE]\n" +
	"Contains the framework, class design, variable naming conventions, and coding style to adapt to.\n" +
	"```\n%s\n```\n" +
	"\n" +
	"[INSTRUCTION]\n" +
	"Rewrite the logic from [INPUT 1] so that it perfectly matches the code style, framework structure, and variable naming conventions of [INPUT 2].\n" +
	"- DO NOT change the core logic of Input 1.\n" +
	"- DO NOT change the structural style of Input 2.\n" +
	"- Output ONLY the result code in a Markdown code block.\n"

const diagnosisTemplate = "\n以下のコードにエラーや問題があります。修正してください。\n" +
	"\n" +
	"[Code]\n" +
	"```\n%s\n```\n" +
	"\n" +
	"[Errors/Logs]\n" +
	"```\n%s\n```\n"

// PortingPrompt asks the model to rewrite source in the style of target.
func PortingPrompt(source, target string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", core.NewInvalidRequestErrorWithParam("source code is required", "source")
	}
	if strings.TrimSpace(target) == "" {
		return "", core.NewInvalidRequestErrorWithParam("target structure is required", "target")
	}
	return fmt.Sprintf(portingTemplate, source, target), nil
}

// DiagnosisPrompt asks the model to repair code given its errors. errors may be empty.
func DiagnosisPrompt(code, errors string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", core.NewInvalidRequestErrorWithParam("code is required", "code")
	}
	return fmt.Sprintf(diagnosisTemplate, code, errors), nil
}

type QuickAction struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	PromptTemplate string `json:"prompt_template"`
	Icon           string `json:"icon"`
	Category       string `json:"category"`
}

// QuickActions returns the built-in prompt prefixes.
func QuickActions() []QuickAction {
	return []QuickAction{
		{ID: "summary", Label: "要約", PromptTemplate: "以下の内容を3つのポイントで要約してください：\n\n", Icon: "file-text", Category: "util"},
		{ID: "debug", Label: "デバッグ", PromptTemplate: "以下のコードのバグを見つけて修正案を提示してください：\n\n", Icon: "bug", Category: "dev"},
		{ID: "trans", Label: "翻訳", PromptTemplate: "以下の日本語を自然な英語に翻訳してください：\n\n", Icon: "languages", Category: "util"},
	}
}

func FindQuickAction(id string) (QuickAction, bool) {
	for _, a := range QuickActions() {
		if a.ID == id {
			return a, true
		}
	}
	return QuickAction{}, false
}
