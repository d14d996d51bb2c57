package session

import (
	"time"

	"golang.org/x/time/rate"
)

// inboundAudioLimiter caps microphone frames per second and bytes per
// second. A frame is admitted only if both buckets can pay for it.
type inboundAudioLimiter struct {
	frames *rate.Limiter
	bytes  *rate.Limiter
}

func newInboundAudioLimiter(fps int, bps int64, burstSeconds int) *inboundAudioLimiter {
	if fps <= 0 && bps <= 0 {
		return nil
	}
	if burstSeconds <= 0 {
		burstSeconds = 1
	}
	l := &inboundAudioLimiter{}
	if fps > 0 {
		l.frames = rate.NewLimiter(rate.Limit(fps), fps*burstSeconds)
	}
	if bps > 0 {
		l.bytes = rate.NewLimiter(rate.Limit(bps), int(bps)*burstSeconds)
	}
	return l
}

func (l *inboundAudioLimiter) Allow(now time.Time, frameBytes int) bool {
	if l == nil {
		return true
	}
	frameBytes = max(frameBytes, 0)

	var frameRes *rate.Reservation
	if l.frames != nil {
		frameRes = l.frames.ReserveN(now, 1)
		if !admitted(frameRes, now) {
			return false
		}
	}
	if l.bytes != nil {
		byteRes := l.bytes.ReserveN(now, frameBytes)
		if !admitted(byteRes, now) {
			if frameRes != nil {
				frameRes.CancelAt(now)
			}
			return false
		}
	}
	return true
}

// admitted reports whether res can be honoured immediately. A reservation
// that would have to wait is handed back.
func admitted(res *rate.Reservation, now time.Time) bool {
	if !res.OK() {
		return false
	}
	if res.DelayFrom(now) > 0 {
		res.CancelAt(now)
		return false
	}
	return true
}
