package live

import (
	"context"

	"github.com/vango-go/gemini-omnichat/pkg/core/chat"
)

// ConnectConfig is what a live backend needs to open a connection.
type ConnectConfig struct {
	SystemInstruction string
	Language          chat.Language
}

// Connector opens live audio connections.
type Connector interface {
	Connect(ctx context.Context, cfg ConnectConfig) (Conn, error)
}

// Conn is one open live connection. Receive blocks until the next server
// event and returns an error once the connection is gone; it must unblock
// when Close is called.
type Conn interface {
	SendAudio(pcm []byte) error
	Receive() (ServerEvent, error)
	Close() error
}

// ServerEvent is the part of a backend message the controller acts on. Any
// field may be empty.
type ServerEvent struct {
	InputTranscript  string
	OutputTranscript string
	// Audio holds PCM in OutputFormat, one entry per inline audio part.
	Audio [][]byte
	// Interrupted means the backend abandoned the reply it was speaking.
	Interrupted bool
}
