// Package ratelimit keeps per-client request rates and concurrency caps in
// process memory.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	RPS   float64
	Burst int

	MaxConcurrentStreams    int
	MaxConcurrentWSSessions int

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*clientLimiter
}

type clientLimiter struct {
	tokens *rate.Limiter

	streamSem chan struct{}
	wsSem     chan struct{}

	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{
		cfg: cfg,
		m:   make(map[string]*clientLimiter),
	}
}

type Permit struct {
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

type Decision struct {
	Allowed    bool
	RetryAfter int
	Permit     *Permit
}

// AcquireRequest spends one token from the client's bucket.
func (l *Limiter) AcquireRequest(client string, now time.Time) Decision {
	cl := l.getOrCreate(client, now)
	if cl.tokens == nil {
		return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
	}

	res := cl.tokens.ReserveN(now, 1)
	if !res.OK() {
		return Decision{Allowed: false, RetryAfter: 1}
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		retryAfter := int(math.Ceil(delay.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}
	return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
}

// AcquireStream caps concurrent SSE generations per client.
func (l *Limiter) AcquireStream(client string, now time.Time) Decision {
	cl := l.getOrCreate(client, now)
	return acquireSlot(cl.streamSem, l.cfg.MaxConcurrentStreams)
}

// AcquireWSSession caps concurrent voice sessions per client.
func (l *Limiter) AcquireWSSession(client string, now time.Time) Decision {
	cl := l.getOrCreate(client, now)
	return acquireSlot(cl.wsSem, l.cfg.MaxConcurrentWSSessions)
}

func acquireSlot(sem chan struct{}, limit int) Decision {
	if limit <= 0 {
		return Decision{Allowed: true, Permit: &Permit{release: func() {}}}
	}
	select {
	case sem <- struct{}{}:
		return Decision{
			Allowed: true,
			Permit:  &Permit{release: func() { <-sem }},
		}
	default:
		return Decision{Allowed: false, RetryAfter: 1}
	}
}

func (l *Limiter) getOrCreate(client string, now time.Time) *clientLimiter {
	if client == "" {
		client = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.m[client]; ok {
		cl.lastSeen = now
		return cl
	}

	if len(l.m) >= l.cfg.MaxEntries {
		l.gcLocked(now)
		// If still too big, drop one arbitrary entry.
		if len(l.m) >= l.cfg.MaxEntries {
			for k := range l.m {
				delete(l.m, k)
				break
			}
		}
	}

	cl := &clientLimiter{
		streamSem: make(chan struct{}, max(1, l.cfg.MaxConcurrentStreams)),
		wsSem:     make(chan struct{}, max(1, l.cfg.MaxConcurrentWSSessions)),
		lastSeen:  now,
	}
	if l.cfg.RPS > 0 && l.cfg.Burst > 0 {
		cl.tokens = rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)
	}
	l.m[client] = cl
	return cl
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, v := range l.m {
		if now.Sub(v.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, k)
		}
	}
}

// Len reports how many clients are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
