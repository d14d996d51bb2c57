package live

import (
	"fmt"
	"math"
	"time"
)

// AudioFormat describes 16-bit signed little-endian PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

var (
	// InputFormat is what the microphone path sends to the backend.
	InputFormat = AudioFormat{SampleRate: 16000, Channels: 1}
	// OutputFormat is what the backend returns for playback.
	OutputFormat = AudioFormat{SampleRate: 24000, Channels: 1}
)

// MIMEType returns the blob type the live backend expects, e.g. "audio/pcm;rate=16000".
func (f AudioFormat) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// Duration returns the playback length of n bytes of PCM.
func (f AudioFormat) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / (2 * f.Channels)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// DecodePCM16 converts little-endian int16 samples to float32 in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		sample := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = float32(sample) / 32768.0
	}
	return out
}

// RMSEnergy computes the root-mean-square energy of PCM audio, between 0.0 and 1.0.
func RMSEnergy(pcm []byte) float64 {
	samples := DecodePCM16(pcm)
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

const (
	micLevelGain  = 4.0
	micNoiseFloor = 0.01
	micLevelMax   = 1.2
)

// MicLevel maps a microphone frame to the visualiser level. Silence below the
// noise floor reads as zero.
func MicLevel(pcm []byte) float64 {
	rms := RMSEnergy(pcm)
	if rms < micNoiseFloor {
		return 0
	}
	return math.Min(rms*micLevelGain, micLevelMax)
}
