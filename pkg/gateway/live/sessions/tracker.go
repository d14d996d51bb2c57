// Package sessions keeps the set of open voice sessions so shutdown and
// chat deletion can reach them.
package sessions

import (
	"context"
	"sync"
)

// Session is what the tracker needs from a running voice session.
type Session interface {
	SendWarning(code, message string) error
	// Finish saves finalized turns and ends the session.
	Finish()
	// Cancel ends the session without saving.
	Cancel()
}

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	chatSessionID string
	session       Session
	once          sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*trackedSession),
	}
}

// Register adds a voice session attached to chatSessionID. Registering an ID
// again replaces the earlier entry.
func (t *Tracker) Register(voiceSessionID, chatSessionID string, s Session) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedSession{chatSessionID: chatSessionID, session: s}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*trackedSession)
	}
	old := t.sessions[voiceSessionID]
	t.sessions[voiceSessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(voiceSessionID, old)
	}

	return func() { t.unregister(voiceSessionID, entry) }
}

func (t *Tracker) unregister(voiceSessionID string, entry *trackedSession) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions != nil && t.sessions[voiceSessionID] == entry {
			delete(t.sessions, voiceSessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// matching snapshots the sessions selected by keep so callers never invoke
// a session while holding the lock.
func (t *Tracker) matching(keep func(*trackedSession) bool) []Session {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Session, 0, len(t.sessions))
	for _, entry := range t.sessions {
		if entry == nil || entry.session == nil || !keep(entry) {
			continue
		}
		out = append(out, entry.session)
	}
	return out
}

func all(*trackedSession) bool { return true }

// WarnAll is best effort; a failed send still counts.
func (t *Tracker) WarnAll(code, message string) (sent int) {
	for _, s := range t.matching(all) {
		_ = s.SendWarning(code, message)
		sent++
	}
	return sent
}

func (t *Tracker) FinishAll() (finished int) {
	for _, s := range t.matching(all) {
		s.Finish()
		finished++
	}
	return finished
}

func (t *Tracker) CancelAll() (canceled int) {
	for _, s := range t.matching(all) {
		s.Cancel()
		canceled++
	}
	return canceled
}

// CancelChat cancels the voice sessions attached to a chat session that is
// going away.
func (t *Tracker) CancelChat(chatSessionID string) (canceled int) {
	sessions := t.matching(func(e *trackedSession) bool { return e.chatSessionID == chatSessionID })
	for _, s := range sessions {
		s.Cancel()
		canceled++
	}
	return canceled
}

// Wait reports whether every registered session unregistered before ctx
// was done.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
