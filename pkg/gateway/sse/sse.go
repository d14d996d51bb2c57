// Package sse writes server-sent events for the streaming endpoints.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Events emitted on a message stream.
const (
	EventMessageStart = "message_start"
	EventFragment     = "fragment"
	EventMessageStop  = "message_stop"
	EventPing         = "ping"
	EventError        = "error"
)

type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	last    time.Time
}

func New(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &Writer{w: w, flusher: f, last: time.Now()}, nil
}

// SetHeaders marks the response as an event stream. Call it before the
// first write.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (sw *Writer) Send(event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", string(b)); err != nil {
		return err
	}
	sw.flusher.Flush()
	if event != EventPing {
		sw.last = time.Now()
	}
	return nil
}

func (sw *Writer) idleFor(now time.Time) time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return now.Sub(sw.last)
}

// KeepAlive sends a ping whenever nothing else was sent for interval. It
// returns when ctx is done or a write fails.
func (sw *Writer) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if sw.idleFor(now) < interval {
				continue
			}
			if err := sw.Send(EventPing, map[string]string{"type": EventPing}); err != nil {
				return
			}
		}
	}
}
