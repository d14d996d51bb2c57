// Package lifecycle holds process state shared across handlers, such as
// readiness draining during graceful shutdown.
package lifecycle

import (
	"sync/atomic"
	"time"
)

type Lifecycle struct {
	draining atomic.Bool
	since    atomic.Int64
}

// SetDraining flips draining and records when it started.
func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	if draining {
		l.since.CompareAndSwap(0, time.Now().UnixNano())
	} else {
		l.since.Store(0)
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// DrainingSince is zero unless draining.
func (l *Lifecycle) DrainingSince() time.Time {
	if l == nil {
		return time.Time{}
	}
	ns := l.since.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
