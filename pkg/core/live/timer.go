package live

import "time"

// loopTimer is a one-shot timer owned by a select loop. C is nil while the
// timer is disarmed so the select case never fires.
type loopTimer struct {
	t      *time.Timer
	active bool
}

func (l *loopTimer) stop() {
	if l.t == nil {
		return
	}
	if !l.t.Stop() {
		select {
		case <-l.t.C:
		default:
		}
	}
	l.active = false
}

func (l *loopTimer) reset(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if l.t == nil {
		l.t = time.NewTimer(d)
		l.active = true
		return
	}
	l.stop()
	l.t.Reset(d)
	l.active = true
}

// fired must be called after receiving from C.
func (l *loopTimer) fired() { l.active = false }

func (l *loopTimer) C() <-chan time.Time {
	if !l.active || l.t == nil {
		return nil
	}
	return l.t.C
}
