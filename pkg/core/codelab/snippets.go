package codelab

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

const maxSnippetNameLen = 50

// Snippet is a fenced code block found in a message.
type Snippet struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

var markdown = goldmark.New()

// ExtractSnippets lists every fenced code block in messages, newest first.
func ExtractSnippets(messages []chat.Message) []Snippet {
	var out []Snippet
	for msgIdx, m := range messages {
		for i, block := range fencedBlocks([]byte(m.Content)) {
			codeIdx := i + 1
			content := strings.TrimSpace(block.code)
			announced := snippetName(content)
			name := announced
			if name == "" {
				name = fmt.Sprintf("Snippet_%d_%d", msgIdx+1, codeIdx)
			}
			out = append(out, Snippet{
				ID:        fmt.Sprintf("%s-%d", m.ID, codeIdx),
				Name:      name,
				Language:  strings.ToUpper(snippetLanguage(block.info, announced, content)),
				Content:   content,
				Timestamp: m.Timestamp,
			})
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

type fencedBlock struct {
	info string
	code string
}

func fencedBlocks(source []byte) []fencedBlock {
	doc := markdown.Parser().Parse(text.NewReader(source))
	var blocks []fencedBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		blocks = append(blocks, fencedBlock{info: string(fcb.Language(source)), code: buf.String()})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// snippetName returns the file name announced by a leading comment such as
// "// main.go" or "# setup.py", or "" when there is none.
func snippetName(content string) string {
	first, _, _ := strings.Cut(content, "\n")
	first = strings.TrimSpace(first)
	if !strings.HasPrefix(first, "--") && !strings.HasPrefix(first, "//") && !strings.HasPrefix(first, "#") {
		return ""
	}
	name := strings.TrimSpace(strings.TrimLeft(first, "-|/# \t"))
	if !strings.Contains(name, ".") || len(name) >= maxSnippetNameLen {
		return ""
	}
	return name
}

func snippetLanguage(info, name, content string) string {
	if info != "" {
		return info
	}
	var lexer chroma.Lexer
	if name != "" {
		lexer = lexers.Match(name)
	}
	if lexer == nil {
		lexer = lexers.Analyse(content)
	}
	if lexer == nil {
		return "text"
	}
	return lexer.Config().Name
}
