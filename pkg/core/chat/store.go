package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the single writer of the application State. It also tracks the
// live generation of each session so that superseded streams cannot write.
type Store struct {
	mu    sync.Mutex
	state State
	gens  map[string]*generation

	now   func() time.Time
	newID func() string
}

type generation struct {
	id        string
	messageID string
	cancel    context.CancelFunc
}

type StoreOption func(*Store)

// WithClock overrides the store's time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides how session and generation IDs are minted.
func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) { s.newID = newID }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state: NewState(),
		gens:  make(map[string]*generation),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Now() time.Time { return s.now() }

// NewID mints an ID from the store's generator.
func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newID()
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) Session(id string) (ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Session(id)
}

// Dispatch applies ev and returns the resulting state.
func (s *Store) Dispatch(ev Event) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatchLocked(ev)
}

func (s *Store) dispatchLocked(ev Event) (State, error) {
	next, err := Reduce(s.state, ev)
	if err != nil {
		return s.state, err
	}
	s.state = next

	switch e := ev.(type) {
	case DeleteSession:
		s.stopLocked(e.ID)
	case ClearSessions:
		for id := range s.gens {
			s.stopLocked(id)
		}
	}
	return s.state, nil
}

// NewSession creates a session seeded from agentID. An unknown agent falls
// back to the default agent; an empty model uses the selected model.
func (s *Store) NewSession(agentID string, model ModelID) (ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, _ := FindAgent(s.state.Agents, agentID)
	if model == "" {
		model = s.state.Settings.SelectedModel
	}
	if !IsKnownModel(model) {
		return ChatSession{}, &ValidationError{Param: "model_id", Message: fmt.Sprintf("unknown model %q", model)}
	}
	sess := ChatSession{
		ID:                      s.newID(),
		Title:                   NewChatTitle,
		AgentID:                 agent.ID,
		ModelID:                 model,
		UpdatedAt:               s.now(),
		CustomSystemInstruction: agent.SystemInstruction,
	}
	if _, err := s.dispatchLocked(CreateSession{Session: sess}); err != nil {
		return ChatSession{}, err
	}
	return sess, nil
}

// BeginGeneration registers a new live generation targeting messageID and
// supersedes any previous one on the session.
func (s *Store) BeginGeneration(sessionID, messageID string, cancel context.CancelFunc) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Session(sessionID); !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.stopLocked(sessionID)
	g := &generation{id: s.newID(), messageID: messageID, cancel: cancel}
	s.gens[sessionID] = g
	return g.id, nil
}

// ApplyFragment appends delta to the generation's message if genID is still
// live. Stale fragments are dropped and false is returned.
func (s *Store) ApplyFragment(sessionID, genID, delta string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gens[sessionID]
	if !ok || g.id != genID {
		return false
	}
	if _, err := s.dispatchLocked(AppendFragment{SessionID: sessionID, MessageID: g.messageID, Delta: delta}); err != nil {
		return false
	}
	return true
}

// EndGeneration clears genID if it is still live.
func (s *Store) EndGeneration(sessionID, genID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.gens[sessionID]
	if !ok || g.id != genID {
		return false
	}
	delete(s.gens, sessionID)
	return true
}

// StopGeneration invalidates and cancels the live generation of a session.
func (s *Store) StopGeneration(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(sessionID)
}

// Generating reports whether the session has a live generation.
func (s *Store) Generating(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.gens[sessionID]
	return ok
}

func (s *Store) stopLocked(sessionID string) bool {
	g, ok := s.gens[sessionID]
	if !ok {
		return false
	}
	delete(s.gens, sessionID)
	if g.cancel != nil {
		g.cancel()
	}
	return true
}
