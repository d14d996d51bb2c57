package live

import "github.com/vango-go/gemini-omnichat/pkg/core/chat"

// State is the controller's user-visible status.
type State string

const (
	// StateConnecting is both the initial state and idle between turns.
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateSpeaking   State = "speaking"
	StateError      State = "error"
)

// Reasons passed to Sink.ResetAudio.
const (
	ResetTalkStart   = "talk_start"
	ResetReconfigure = "reconfigure"
	ResetInterrupted = "interrupted"
)

// Sink receives everything the media/view layer must render or play. Calls
// come from the controller's loop goroutine, one at a time.
type Sink interface {
	State(State)
	// Transcript carries the full live partial for role. An empty text
	// clears it.
	Transcript(role chat.Role, text string)
	Audio(Chunk)
	// ResetAudio stops every playing and scheduled chunk.
	ResetAudio(reason string)
	MicLevel(level float64)
	Turn(user, model VoiceMessage)
	Saved([]VoiceMessage)
	Error(err error)
}
