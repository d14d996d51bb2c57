package sessions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSession struct {
	warns    atomic.Int64
	finishes atomic.Int64
	cancels  atomic.Int64
	warnErr  error
}

func (f *fakeSession) SendWarning(code, message string) error {
	f.warns.Add(1)
	return f.warnErr
}

func (f *fakeSession) Finish() { f.finishes.Add(1) }
func (f *fakeSession) Cancel() { f.cancels.Add(1) }

func TestTracker_RegisterUnregister_CountAndWait(t *testing.T) {
	tr := NewTracker()
	if tr.Count() != 0 {
		t.Fatalf("initial count=%d, want 0", tr.Count())
	}

	u1 := tr.Register("v1", "s1", &fakeSession{})
	u2 := tr.Register("v2", "s1", &fakeSession{})
	if tr.Count() != 2 {
		t.Fatalf("count=%d, want 2", tr.Count())
	}

	u1()
	u1()
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}

	u2()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if ok := tr.Wait(ctx); !ok {
		t.Fatalf("expected Wait to return true")
	}
}

func TestTracker_WaitTimesOutWhileSessionsOpen(t *testing.T) {
	tr := NewTracker()
	tr.Register("v1", "s1", &fakeSession{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if ok := tr.Wait(ctx); ok {
		t.Fatalf("Wait() = true, want false with an open session")
	}
}

func TestTracker_ReRegisterReplaces(t *testing.T) {
	tr := NewTracker()
	tr.Register("v1", "s1", &fakeSession{})
	tr.Register("v1", "s1", &fakeSession{})
	if tr.Count() != 1 {
		t.Fatalf("count=%d, want 1", tr.Count())
	}
}

func TestTracker_WarnFinishCancelAll(t *testing.T) {
	tr := NewTracker()
	a := &fakeSession{}
	b := &fakeSession{warnErr: errors.New("nope")}
	tr.Register("v1", "s1", a)
	tr.Register("v2", "s2", b)

	if sent := tr.WarnAll("draining", "test"); sent != 2 {
		t.Fatalf("sent=%d, want 2", sent)
	}
	if n := tr.FinishAll(); n != 2 {
		t.Fatalf("finished=%d, want 2", n)
	}
	if n := tr.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	for name, s := range map[string]*fakeSession{"a": a, "b": b} {
		if s.warns.Load() != 1 || s.finishes.Load() != 1 || s.cancels.Load() != 1 {
			t.Fatalf("%s calls warn/finish/cancel = %d/%d/%d, want 1/1/1",
				name, s.warns.Load(), s.finishes.Load(), s.cancels.Load())
		}
	}
}

func TestTracker_CancelChatOnlyTouchesThatChat(t *testing.T) {
	tr := NewTracker()
	a := &fakeSession{}
	b := &fakeSession{}
	tr.Register("v1", "s1", a)
	tr.Register("v2", "s2", b)

	if n := tr.CancelChat("s1"); n != 1 {
		t.Fatalf("canceled=%d, want 1", n)
	}
	if a.cancels.Load() != 1 || b.cancels.Load() != 0 {
		t.Fatalf("cancels a=%d b=%d, want 1/0", a.cancels.Load(), b.cancels.Load())
	}
}

func TestTracker_NilSafe(t *testing.T) {
	var tr *Tracker
	tr.Register("v1", "s1", &fakeSession{})()
	if tr.Count() != 0 || tr.WarnAll("x", "y") != 0 || tr.CancelAll() != 0 || !tr.Wait(context.Background()) {
		t.Fatalf("nil tracker should be a no-op")
	}
}
