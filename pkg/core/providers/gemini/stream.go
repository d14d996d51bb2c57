package gemini

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vango-go/gemini-omnichat/pkg/core"
)

// textStream implements core.TextStream for Gemini SSE responses.
type textStream struct {
	reader   *bufio.Reader
	closer   io.Closer
	err      error
	finished bool
}

// streamChunk represents a streaming chunk from Gemini.
type streamChunk struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *promptFeedback   `json:"promptFeedback,omitempty"`
	Error          *geminiErrorBody  `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

func newTextStream(body io.ReadCloser) *textStream {
	return &textStream{
		reader: bufio.NewReader(body),
		closer: body,
	}
}

// Next returns the next non-empty text delta.
// Returns "", io.EOF when the stream is complete.
func (s *textStream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.finished {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				s.finished = true
				return "", io.EOF
			}
			s.err = err
			return "", err
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data:") {
			if err == io.EOF {
				s.finished = true
				return "", io.EOF
			}
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.finished = true
			return "", io.EOF
		}

		var chunk streamChunk
		if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
			continue // Skip unparseable chunks
		}

		if chunk.Error != nil {
			s.err = streamError(chunk.Error)
			return "", s.err
		}
		if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			s.err = core.NewInvalidRequestError(fmt.Sprintf("prompt blocked: %s", chunk.PromptFeedback.BlockReason))
			return "", s.err
		}

		if text := chunkText(chunk); text != "" {
			return text, nil
		}
		if err == io.EOF {
			s.finished = true
			return "", io.EOF
		}
	}
}

// chunkText concatenates the visible text parts of the first candidate.
func chunkText(chunk streamChunk) string {
	if len(chunk.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range chunk.Candidates[0].Content.Parts {
		if part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// Close releases resources.
func (s *textStream) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
