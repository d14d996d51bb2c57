package live

import "time"

// Chunk is one scheduled unit of assistant audio. Start is a position on the
// session's playback clock.
type Chunk struct {
	Seq      int64
	Start    time.Duration
	Duration time.Duration
	PCM      []byte
}

// End is the playback clock position at which the chunk finishes.
func (c Chunk) End() time.Duration { return c.Start + c.Duration }

// Scheduler places chunks back to back so playback never overlaps.
// It is not safe for concurrent use.
type Scheduler struct {
	format AudioFormat
	next   time.Duration
	seq    int64
}

func NewScheduler(format AudioFormat) *Scheduler {
	return &Scheduler{format: format}
}

// Schedule returns a chunk starting at max(next, now) and advances the cursor
// by its duration.
func (s *Scheduler) Schedule(pcm []byte, now time.Duration) Chunk {
	start := s.next
	if now > start {
		start = now
	}
	d := s.format.Duration(len(pcm))
	s.next = start + d
	s.seq++
	return Chunk{Seq: s.seq, Start: start, Duration: d, PCM: pcm}
}

// Next is the cursor: where the next chunk would start if nothing is late.
func (s *Scheduler) Next() time.Duration { return s.next }

// Idle reports whether all scheduled audio has finished by now.
func (s *Scheduler) Idle(now time.Duration) bool { return now >= s.next }

// Reset moves the cursor back to zero.
func (s *Scheduler) Reset() { s.next = 0 }
