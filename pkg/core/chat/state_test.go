package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mustReduce(t *testing.T, s State, ev Event) State {
	t.Helper()
	next, err := Reduce(s, ev)
	if err != nil {
		t.Fatalf("Reduce(%T) error = %v", ev, err)
	}
	return next
}

func TestReduce_CreateSessionPrependsAndSelects(t *testing.T) {
	s := NewState()
	s = mustReduce(t, s, CreateSession{Session: ChatSession{ID: "a"}})
	s = mustReduce(t, s, CreateSession{Session: ChatSession{ID: "b"}})

	if len(s.Sessions) != 2 || s.Sessions[0].ID != "b" || s.Sessions[1].ID != "a" {
		t.Fatalf("sessions=%v, want [b a]", s.Sessions)
	}
	if s.CurrentSessionID != "b" {
		t.Fatalf("current=%q, want b", s.CurrentSessionID)
	}
	if _, err := Reduce(s, CreateSession{Session: ChatSession{ID: "a"}}); err == nil {
		t.Fatalf("duplicate create: want error")
	}
}

func TestReduce_DoesNotMutatePrevious(t *testing.T) {
	s0 := mustReduce(t, NewState(), CreateSession{Session: ChatSession{ID: "a"}})
	s1 := mustReduce(t, s0, AppendMessages{
		SessionID: "a",
		Messages:  []Message{{ID: "m1", Role: RoleModel, Content: ""}},
		Now:       time.Unix(10, 0),
	})
	s2 := mustReduce(t, s1, AppendFragment{SessionID: "a", MessageID: "m1", Delta: "hi"})

	if got := len(s0.Sessions[0].Messages); got != 0 {
		t.Fatalf("s0 messages=%d, want 0", got)
	}
	if got := s1.Sessions[0].Messages[0].Content; got != "" {
		t.Fatalf("s1 content=%q, want empty", got)
	}
	if got := s2.Sessions[0].Messages[0].Content; got != "hi" {
		t.Fatalf("s2 content=%q, want hi", got)
	}
}

func TestReduce_AppendMessagesTitlesEmptySession(t *testing.T) {
	s := mustReduce(t, NewState(), CreateSession{Session: ChatSession{ID: "a", Title: NewChatTitle}})
	long := strings.Repeat("あ", 40)
	s = mustReduce(t, s, AppendMessages{SessionID: "a", Messages: []Message{{ID: "1", Role: RoleUser, Content: long}}})

	sess, _ := s.Session("a")
	if want := strings.Repeat("あ", 30); sess.Title != want {
		t.Fatalf("title=%q, want 30 runes", sess.Title)
	}

	s = mustReduce(t, s, AppendMessages{SessionID: "a", Messages: []Message{{ID: "2", Role: RoleUser, Content: "second"}}})
	sess, _ = s.Session("a")
	if sess.Title != strings.Repeat("あ", 30) {
		t.Fatalf("title changed to %q on second message", sess.Title)
	}
}

func TestReduce_AttachmentOnlyMessageKeepsTitle(t *testing.T) {
	s := mustReduce(t, NewState(), CreateSession{Session: ChatSession{ID: "a", Title: NewChatTitle}})
	s = mustReduce(t, s, AppendMessages{SessionID: "a", Messages: []Message{{ID: "1", Role: RoleUser, Attachments: []Attachment{{ID: "x"}}}}})
	sess, _ := s.Session("a")
	if sess.Title != NewChatTitle {
		t.Fatalf("title=%q, want %q", sess.Title, NewChatTitle)
	}
}

func TestReduce_DeleteSessionMovesCurrent(t *testing.T) {
	s := NewState()
	s = mustReduce(t, s, CreateSession{Session: ChatSession{ID: "a"}})
	s = mustReduce(t, s, CreateSession{Session: ChatSession{ID: "b"}})
	s = mustReduce(t, s, DeleteSession{ID: "b"})
	if s.CurrentSessionID != "a" {
		t.Fatalf("current=%q, want a", s.CurrentSessionID)
	}
	_, err := Reduce(s, DeleteSession{ID: "missing"})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err=%v, want ErrSessionNotFound", err)
	}
	s = mustReduce(t, s, ClearSessions{})
	if len(s.Sessions) != 0 || s.CurrentSessionID != "" {
		t.Fatalf("after clear: %+v", s)
	}
}

func TestReduce_ErrorReturnsPrevious(t *testing.T) {
	s := mustReduce(t, NewState(), CreateSession{Session: ChatSession{ID: "a"}})
	next, err := Reduce(s, AppendFragment{SessionID: "a", MessageID: "nope", Delta: "x"})
	if !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("err=%v, want ErrMessageNotFound", err)
	}
	if len(next.Sessions) != 1 || next.Sessions[0].ID != "a" {
		t.Fatalf("next=%+v, want previous state", next)
	}
}

func TestReduce_SettingsAndModelValidation(t *testing.T) {
	s := mustReduce(t, NewState(), CreateSession{Session: ChatSession{ID: "a", ModelID: DefaultModel}})

	if _, err := Reduce(s, SetSessionModel{SessionID: "a", ModelID: "gpt-4"}); err == nil {
		t.Fatalf("unknown model: want error")
	}
	s = mustReduce(t, s, SetSessionModel{SessionID: "a", ModelID: ModelGemini3Flash})
	if sess, _ := s.Session("a"); sess.ModelID != ModelGemini3Flash {
		t.Fatalf("model=%q", sess.ModelID)
	}

	bad := DefaultSettings()
	bad.Language = "fr"
	if _, err := Reduce(s, UpdateSettings{Settings: bad}); err == nil {
		t.Fatalf("bad language: want error")
	}
	good := DefaultSettings()
	good.Language = LanguageEnglish
	good.ThinkingMode = true
	s = mustReduce(t, s, UpdateSettings{Settings: good})
	if s.Settings != good {
		t.Fatalf("settings=%+v, want %+v", s.Settings, good)
	}
}

func TestReduce_UpdatePersonalityAndAddAgent(t *testing.T) {
	s := mustReduce(t, NewState(), CreateSession{Session: ChatSession{ID: "a"}})
	now := time.Unix(50, 0)
	s = mustReduce(t, s, UpdatePersonality{SessionID: "a", Instruction: "be terse", Now: now})
	sess, _ := s.Session("a")
	if sess.CustomSystemInstruction != "be terse" || !sess.UpdatedAt.Equal(now) {
		t.Fatalf("session=%+v", sess)
	}

	s = mustReduce(t, s, AddAgent{Agent: Agent{ID: "custom", Name: "X"}})
	if len(s.Agents) != 3 || s.Agents[2].ID != "custom" {
		t.Fatalf("agents=%v", s.Agents)
	}
	if _, err := Reduce(s, AddAgent{Agent: Agent{ID: GeneralAgentID}}); err == nil {
		t.Fatalf("duplicate agent: want error")
	}
}
