package chat

import (
	"fmt"
	"time"
)

// State is the whole application state. Values are never mutated in place;
// Reduce returns a new State that shares unchanged sessions with the old one.
type State struct {
	Sessions         []ChatSession `json:"sessions"`
	CurrentSessionID string        `json:"current_session_id,omitempty"`
	Agents           []Agent       `json:"agents"`
	Settings         Settings      `json:"settings"`
}

func NewState() State {
	return State{
		Agents:   DefaultAgents(),
		Settings: DefaultSettings(),
	}
}

// Session returns the session with id.
func (s State) Session(id string) (ChatSession, bool) {
	for _, sess := range s.Sessions {
		if sess.ID == id {
			return sess, true
		}
	}
	return ChatSession{}, false
}

// Event is a state transition.
type Event interface {
	apply(State) (State, error)
}

// Reduce applies ev to prev and returns the next state. prev is left untouched,
// and on error the returned state equals prev.
func Reduce(prev State, ev Event) (State, error) {
	if ev == nil {
		return prev, nil
	}
	next, err := ev.apply(prev)
	if err != nil {
		return prev, err
	}
	return next, nil
}

// withSession replaces the session with id by the result of fn applied to a copy.
func (s State) withSession(id string, fn func(*ChatSession) error) (State, error) {
	for i := range s.Sessions {
		if s.Sessions[i].ID != id {
			continue
		}
		updated := cloneSession(s.Sessions[i])
		if err := fn(&updated); err != nil {
			return s, err
		}
		sessions := append([]ChatSession(nil), s.Sessions...)
		sessions[i] = updated
		s.Sessions = sessions
		return s, nil
	}
	return s, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// CreateSession prepends a session and makes it current.
type CreateSession struct {
	Session ChatSession
}

func (e CreateSession) apply(s State) (State, error) {
	if e.Session.ID == "" {
		return s, &ValidationError{Param: "id", Message: "session id is required"}
	}
	if _, ok := s.Session(e.Session.ID); ok {
		return s, &ValidationError{Param: "id", Message: "session already exists"}
	}
	sessions := make([]ChatSession, 0, len(s.Sessions)+1)
	sessions = append(sessions, cloneSession(e.Session))
	sessions = append(sessions, s.Sessions...)
	s.Sessions = sessions
	s.CurrentSessionID = e.Session.ID
	return s, nil
}

type DeleteSession struct {
	ID string
}

func (e DeleteSession) apply(s State) (State, error) {
	sessions := make([]ChatSession, 0, len(s.Sessions))
	found := false
	for _, sess := range s.Sessions {
		if sess.ID == e.ID {
			found = true
			continue
		}
		sessions = append(sessions, sess)
	}
	if !found {
		return s, fmt.Errorf("%w: %s", ErrSessionNotFound, e.ID)
	}
	s.Sessions = sessions
	if s.CurrentSessionID == e.ID {
		s.CurrentSessionID = ""
		if len(sessions) > 0 {
			s.CurrentSessionID = sessions[0].ID
		}
	}
	return s, nil
}

type ClearSessions struct{}

func (ClearSessions) apply(s State) (State, error) {
	s.Sessions = nil
	s.CurrentSessionID = ""
	return s, nil
}

type SelectSession struct {
	ID string
}

func (e SelectSession) apply(s State) (State, error) {
	if _, ok := s.Session(e.ID); !ok {
		return s, fmt.Errorf("%w: %s", ErrSessionNotFound, e.ID)
	}
	s.CurrentSessionID = e.ID
	return s, nil
}

// AppendMessages adds messages to the end of a session. The first message of
// an empty session titles it.
type AppendMessages struct {
	SessionID string
	Messages  []Message
	Now       time.Time
}

func (e AppendMessages) apply(s State) (State, error) {
	return s.withSession(e.SessionID, func(sess *ChatSession) error {
		if len(e.Messages) == 0 {
			return nil
		}
		if len(sess.Messages) == 0 && e.Messages[0].Content != "" {
			sess.Title = TitleFrom(e.Messages[0].Content)
		}
		sess.Messages = append(sess.Messages, e.Messages...)
		sess.UpdatedAt = e.Now
		return nil
	})
}

// AppendFragment accumulates streamed text onto a message.
type AppendFragment struct {
	SessionID string
	MessageID string
	Delta     string
}

func (e AppendFragment) apply(s State) (State, error) {
	return s.withSession(e.SessionID, func(sess *ChatSession) error {
		for i := range sess.Messages {
			if sess.Messages[i].ID == e.MessageID {
				sess.Messages[i].Content += e.Delta
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrMessageNotFound, e.MessageID)
	})
}

// UpdatePersonality replaces a session's custom system instruction.
type UpdatePersonality struct {
	SessionID   string
	Instruction string
	Now         time.Time
}

func (e UpdatePersonality) apply(s State) (State, error) {
	return s.withSession(e.SessionID, func(sess *ChatSession) error {
		sess.CustomSystemInstruction = e.Instruction
		sess.UpdatedAt = e.Now
		return nil
	})
}

type SetSessionModel struct {
	SessionID string
	ModelID   ModelID
}

func (e SetSessionModel) apply(s State) (State, error) {
	if !IsKnownModel(e.ModelID) {
		return s, &ValidationError{Param: "model_id", Message: fmt.Sprintf("unknown model %q", e.ModelID)}
	}
	return s.withSession(e.SessionID, func(sess *ChatSession) error {
		sess.ModelID = e.ModelID
		return nil
	})
}

type AddAgent struct {
	Agent Agent
}

func (e AddAgent) apply(s State) (State, error) {
	for _, a := range s.Agents {
		if a.ID == e.Agent.ID {
			return s, &ValidationError{Param: "id", Message: "agent already exists"}
		}
	}
	agents := make([]Agent, 0, len(s.Agents)+1)
	agents = append(agents, s.Agents...)
	s.Agents = append(agents, e.Agent)
	return s, nil
}

type UpdateSettings struct {
	Settings Settings
}

func (e UpdateSettings) apply(s State) (State, error) {
	if !IsKnownModel(e.Settings.SelectedModel) {
		return s, &ValidationError{Param: "selected_model", Message: fmt.Sprintf("unknown model %q", e.Settings.SelectedModel)}
	}
	switch e.Settings.Language {
	case LanguageJapanese, LanguageEnglish:
	default:
		return s, &ValidationError{Param: "language", Message: "language must be ja or en"}
	}
	s.Settings = e.Settings
	return s, nil
}
